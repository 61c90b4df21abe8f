package rootcache

import (
	"errors"
	"testing"
)

type fakeDir struct {
	records map[string]int64
	lookups int
}

func newFakeDir() *fakeDir { return &fakeDir{records: map[string]int64{}} }

func (f *fakeDir) Lookup(name string) (int64, error) {
	f.lookups++
	id, ok := f.records[name]
	if !ok {
		return 0, errors.New("not found")
	}
	return id, nil
}

func (f *fakeDir) InsertRecord(name string, rootID int64) error {
	f.records[name] = rootID
	return nil
}

func (f *fakeDir) UpdateRecord(name string, rootID int64) error {
	f.records[name] = rootID
	return nil
}

func TestCacheLookupPopulatesFromDirectory(t *testing.T) {
	dir := newFakeDir()
	dir.records["orders"] = 7

	c, err := New(dir, 100, 1000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	id, err := c.Lookup("orders")
	if err != nil || id != 7 {
		t.Fatalf("Lookup: got %d, %v", id, err)
	}
	if dir.lookups != 1 {
		t.Fatalf("expected exactly one directory lookup, got %d", dir.lookups)
	}

	if _, err := c.Lookup("orders"); err != nil {
		t.Fatalf("second Lookup: %v", err)
	}
	if dir.lookups != 1 {
		t.Fatalf("second Lookup should be served from cache, directory lookups = %d", dir.lookups)
	}
}

func TestCacheUpdateInvalidatesStaleEntry(t *testing.T) {
	dir := newFakeDir()
	c, err := New(dir, 100, 1000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if err := c.InsertRecord("orders", 1); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	id, _ := c.Lookup("orders")
	if id != 1 {
		t.Fatalf("expected root 1, got %d", id)
	}

	if err := c.UpdateRecord("orders", 2); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	id, err = c.Lookup("orders")
	if err != nil || id != 2 {
		t.Fatalf("expected updated root 2, got %d, %v", id, err)
	}
}

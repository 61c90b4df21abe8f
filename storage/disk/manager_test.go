package disk

import (
	"bytes"
	"path/filepath"
	"testing"

	"coreidx/storage/page"
)

func openTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestAllocateReadWritePage(t *testing.T) {
	m := openTestManager(t)

	id, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected first allocated page id to be 1, got %d", id)
	}

	want := make([]byte, page.Size)
	copy(want, []byte("hello disk manager"))
	if err := m.WritePage(id, want); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got := make([]byte, page.Size)
	if err := m.ReadPage(id, got); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(want, got) {
		t.Fatalf("read data does not match written data")
	}
}

func TestAllocatePageSequential(t *testing.T) {
	m := openTestManager(t)
	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := m.AllocatePage()
		if err != nil {
			t.Fatalf("AllocatePage: %v", err)
		}
		ids = append(ids, id)
	}
	for i, id := range ids {
		if id != int64(i+1) {
			t.Errorf("expected page id %d, got %d", i+1, id)
		}
	}
}

func TestDeallocateRecycles(t *testing.T) {
	m := openTestManager(t)

	id, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if err := m.DeallocatePage(id); err != nil {
		t.Fatalf("DeallocatePage: %v", err)
	}

	next, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if next != id {
		t.Fatalf("expected recycled page id %d, got %d", id, next)
	}
}

func TestHeaderRecordRoundTrip(t *testing.T) {
	m := openTestManager(t)

	if err := m.InsertRecord("orders_idx", 42); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	got, err := m.Lookup("orders_idx")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected root id 42, got %d", got)
	}

	if err := m.InsertRecord("orders_idx", 7); err == nil {
		t.Fatalf("expected ErrRecordExists on duplicate InsertRecord")
	}

	if err := m.UpdateRecord("orders_idx", 99); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	got, err = m.Lookup("orders_idx")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != 99 {
		t.Fatalf("expected root id 99 after update, got %d", got)
	}
}

func TestHeaderPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	m1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := m1.InsertRecord("idx", 5); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	id, err := m1.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	buf := make([]byte, page.Size)
	copy(buf, []byte("payload"))
	if err := m1.WritePage(id, buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := m1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	defer m2.Close()

	got, err := m2.Lookup("idx")
	if err != nil {
		t.Fatalf("Lookup after reopen: %v", err)
	}
	if got != 5 {
		t.Fatalf("expected root id 5 after reopen, got %d", got)
	}

	readBack := make([]byte, page.Size)
	if err := m2.ReadPage(id, readBack); err != nil {
		t.Fatalf("ReadPage after reopen: %v", err)
	}
	if !bytes.Equal(readBack[:7], []byte("payload")) {
		t.Fatalf("payload did not survive reopen")
	}
}

func TestLookupMissing(t *testing.T) {
	m := openTestManager(t)
	if _, err := m.Lookup("nope"); err != ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

// Package rootcache is a read-through cache in front of the disk manager's
// index-name-to-root-page-id directory, so a hot index's root lookup does
// not have to walk the on-disk header page on every tree descent.
package rootcache

import (
	"github.com/dgraph-io/ristretto/v2"
)

// Directory is the disk-backed directory rootcache sits in front of.
type Directory interface {
	Lookup(name string) (int64, error)
	InsertRecord(name string, rootID int64) error
	UpdateRecord(name string, rootID int64) error
}

// Cache wraps a Directory with an in-memory ristretto cache keyed by index
// name. It satisfies index.RootDirectory itself, so a *BPlusTree can be
// opened directly against a *Cache in place of a bare *disk.Manager.
type Cache struct {
	dir   Directory
	inner *ristretto.Cache[string, int64]
}

// New builds a rootcache in front of dir. numCounters and maxCost follow
// ristretto's own sizing advice (roughly 10x the expected number of index
// names, and the max number of cached entries respectively); one root id
// costs one unit.
func New(dir Directory, numCounters, maxCost int64) (*Cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config[string, int64]{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{dir: dir, inner: inner}, nil
}

// Lookup returns name's root page id, consulting the cache before falling
// through to the backing directory on a miss.
func (c *Cache) Lookup(name string) (int64, error) {
	if id, ok := c.inner.Get(name); ok {
		return id, nil
	}
	id, err := c.dir.Lookup(name)
	if err != nil {
		return 0, err
	}
	c.inner.Set(name, id, 1)
	c.inner.Wait()
	return id, nil
}

// InsertRecord creates name's directory entry and primes the cache with it.
func (c *Cache) InsertRecord(name string, rootID int64) error {
	if err := c.dir.InsertRecord(name, rootID); err != nil {
		return err
	}
	c.inner.Set(name, rootID, 1)
	c.inner.Wait()
	return nil
}

// UpdateRecord updates name's directory entry and invalidates the stale
// cache entry so the next Lookup re-populates it.
func (c *Cache) UpdateRecord(name string, rootID int64) error {
	if err := c.dir.UpdateRecord(name, rootID); err != nil {
		return err
	}
	c.Invalidate(name)
	c.inner.Set(name, rootID, 1)
	c.inner.Wait()
	return nil
}

// Invalidate drops name's cached root id, if any.
func (c *Cache) Invalidate(name string) {
	c.inner.Del(name)
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.inner.Close()
}

package buffer

import (
	"path/filepath"
	"testing"

	"coreidx/storage/disk"
	"coreidx/storage/page"
)

func openTestPool(t *testing.T, poolSize int) *BufferPoolManager {
	t.Helper()
	dm, err := disk.Open(filepath.Join(t.TempDir(), "pool.db"))
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	t.Cleanup(func() { dm.Close() })
	return NewBufferPoolManager(poolSize, dm)
}

// Pool size 10: NewPage 10 times succeeds and pins each; the 11th fails;
// unpinning one frees capacity for the next NewPage to succeed.
func TestNewPageExhaustionAndRecovery(t *testing.T) {
	bp := openTestPool(t, 10)

	var ids []int64
	for i := 0; i < 10; i++ {
		pg, err := bp.NewPage()
		if err != nil {
			t.Fatalf("NewPage %d: %v", i, err)
		}
		if pg.PinCount != 1 {
			t.Fatalf("expected pin count 1, got %d", pg.PinCount)
		}
		ids = append(ids, pg.ID)
	}

	if _, err := bp.NewPage(); err != ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory on 11th NewPage, got %v", err)
	}

	if !bp.UnpinPage(ids[0], false) {
		t.Fatalf("UnpinPage should succeed")
	}

	if _, err := bp.NewPage(); err != nil {
		t.Fatalf("NewPage after unpin should succeed: %v", err)
	}
}

func TestFetchPageHitAndMiss(t *testing.T) {
	bp := openTestPool(t, 4)

	pg, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	id := pg.ID
	copy(pg.Data, []byte("payload"))
	pg.IsDirty = true
	if !bp.UnpinPage(id, true) {
		t.Fatalf("UnpinPage should succeed")
	}
	if !bp.FlushPage(id) {
		t.Fatalf("FlushPage should succeed")
	}

	fetched, err := bp.FetchPage(id)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if string(fetched.Data[:7]) != "payload" {
		t.Fatalf("expected payload to survive flush+refetch, got %q", fetched.Data[:7])
	}
	bp.UnpinPage(id, false)
}

func TestFetchInvalidPageID(t *testing.T) {
	bp := openTestPool(t, 2)
	if _, err := bp.FetchPage(page.InvalidID); err != ErrInvalidPageID {
		t.Fatalf("expected ErrInvalidPageID, got %v", err)
	}
}

func TestUnpinUnknownOrAlreadyZero(t *testing.T) {
	bp := openTestPool(t, 2)
	if bp.UnpinPage(999, false) {
		t.Fatalf("expected false for unresident page")
	}

	pg, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if !bp.UnpinPage(pg.ID, false) {
		t.Fatalf("first unpin should succeed")
	}
	if bp.UnpinPage(pg.ID, false) {
		t.Fatalf("second unpin should return false, already at pin count 0")
	}
}

func TestEvictionWritesBackDirtyVictim(t *testing.T) {
	bp := openTestPool(t, 1)

	pg1, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	id1 := pg1.ID
	copy(pg1.Data, []byte("dirty-data"))
	bp.UnpinPage(id1, true)

	pg2, err := bp.NewPage() // forces eviction of pg1's frame
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	bp.UnpinPage(pg2.ID, false)

	refetched, err := bp.FetchPage(id1)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if string(refetched.Data[:10]) != "dirty-data" {
		t.Fatalf("expected evicted dirty page to have been written back, got %q", refetched.Data[:10])
	}
	bp.UnpinPage(id1, false)
}

func TestDeletePageRefusesWhilePinned(t *testing.T) {
	bp := openTestPool(t, 2)
	pg, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}

	ok, err := bp.DeletePage(pg.ID)
	if err != nil {
		t.Fatalf("DeletePage: %v", err)
	}
	if ok {
		t.Fatalf("expected DeletePage to refuse a pinned page")
	}

	bp.UnpinPage(pg.ID, false)
	ok, err = bp.DeletePage(pg.ID)
	if err != nil {
		t.Fatalf("DeletePage: %v", err)
	}
	if !ok {
		t.Fatalf("expected DeletePage to succeed once unpinned")
	}
}

func TestBalancedFetchUnpinLeavesZeroPins(t *testing.T) {
	bp := openTestPool(t, 3)

	ids := make([]int64, 0, 3)
	for i := 0; i < 3; i++ {
		pg, err := bp.NewPage()
		if err != nil {
			t.Fatalf("NewPage: %v", err)
		}
		ids = append(ids, pg.ID)
		bp.UnpinPage(pg.ID, false)
	}

	for i := 0; i < 20; i++ {
		id := ids[i%len(ids)]
		pg, err := bp.FetchPage(id)
		if err != nil {
			t.Fatalf("FetchPage: %v", err)
		}
		bp.UnpinPage(pg.ID, false)
	}

	stats := bp.GetStats()
	if stats.PinnedPages != 0 {
		t.Fatalf("expected zero pinned pages after balanced fetch/unpin, got %d", stats.PinnedPages)
	}
}

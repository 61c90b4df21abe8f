// Package buffer implements the fixed-size page buffer pool: a pluggable
// Replacer (LRU by default) plus the BufferPoolManager that owns the pool's
// frames, page table, and free list, and translates page ids to pinned,
// latchable page.Page frames on behalf of the B+ tree.
package buffer

import (
	"container/list"
	"fmt"
	"sync"

	"coreidx/storage/disk"
	"coreidx/storage/page"
)

// Stats reports point-in-time buffer pool occupancy.
type Stats struct {
	TotalPages  int
	PinnedPages int
	DirtyPages  int
	Capacity    int
}

// Option configures a BufferPoolManager at construction time.
type Option func(*BufferPoolManager)

// WithVerboseLogging turns on fmt.Printf trace lines for fetch/evict/flush,
// in a bracketed "[bufferpool] HIT/MISS/EVICT ..." style. Off by default so
// tests stay quiet.
func WithVerboseLogging(v bool) Option {
	return func(bp *BufferPoolManager) { bp.verbose = v }
}

// WithReplacer overrides the default LRUReplacer, e.g. in tests that want
// to control eviction order directly.
func WithReplacer(r Replacer) Option {
	return func(bp *BufferPoolManager) { bp.replacer = r }
}

// BufferPoolManager owns pool_size preallocated frames and translates
// page ids to frames, pinning/unpinning, flushing, and allocating pages
// via the disk manager. All public operations acquire a single pool-wide
// mutex for the duration of their page-table mutation; they never hold it
// while doing page-latch or page-byte-level work — that belongs to
// callers (the B+ tree layer).
type BufferPoolManager struct {
	mu sync.Mutex

	poolSize int
	frames   []*page.Page
	disk     *disk.Manager
	replacer Replacer
	verbose  bool

	pageTable map[int64]FrameID
	freeList  *list.List // of FrameID
}

// NewBufferPoolManager allocates poolSize frames and wires them to dm.
func NewBufferPoolManager(poolSize int, dm *disk.Manager, opts ...Option) *BufferPoolManager {
	bp := &BufferPoolManager{
		poolSize:  poolSize,
		frames:    make([]*page.Page, poolSize),
		disk:      dm,
		replacer:  NewLRUReplacer(poolSize),
		pageTable: make(map[int64]FrameID, poolSize),
		freeList:  list.New(),
	}
	for i := 0; i < poolSize; i++ {
		bp.frames[i] = page.New()
		bp.freeList.PushBack(FrameID(i))
	}
	for _, opt := range opts {
		opt(bp)
	}
	return bp
}

func (bp *BufferPoolManager) logf(format string, args ...any) {
	if bp.verbose {
		fmt.Printf("[bufferpool] "+format+"\n", args...)
	}
}

// obtainFrameLocked returns a frame ready to receive a page: from the free
// list first (FIFO — untouched frames), else evicted from the replacer.
// If the victim frame held a dirty page, it is written back to disk BEFORE
// its page-table entry is erased: the victim's outgoing page id is
// captured first, then written back, then the mapping is erased.
func (bp *BufferPoolManager) obtainFrameLocked() (FrameID, error) {
	if el := bp.freeList.Front(); el != nil {
		bp.freeList.Remove(el)
		return el.Value.(FrameID), nil
	}

	frame, ok := bp.replacer.Victim()
	if !ok {
		return 0, ErrOutOfMemory
	}

	victim := bp.frames[frame]
	oldID := victim.ID
	if victim.IsDirty {
		if err := bp.disk.WritePage(oldID, victim.Data); err != nil {
			return 0, fmt.Errorf("buffer: writing back victim page %d: %w", oldID, err)
		}
	}
	delete(bp.pageTable, oldID)
	bp.logf("EVICT frame=%d pageID=%d", frame, oldID)
	return frame, nil
}

// FetchPage returns the page for pageID, pinning it. Returns
// (nil, ErrInvalidPageID) for page.InvalidID and (nil, ErrOutOfMemory) if
// the pool has no evictable frame.
func (bp *BufferPoolManager) FetchPage(pageID int64) (*page.Page, error) {
	if pageID == page.InvalidID {
		return nil, ErrInvalidPageID
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if frame, ok := bp.pageTable[pageID]; ok {
		pg := bp.frames[frame]
		bp.replacer.Pin(frame)
		pg.PinCount++
		bp.logf("HIT pageID=%d pin=%d", pageID, pg.PinCount)
		return pg, nil
	}

	frame, err := bp.obtainFrameLocked()
	if err != nil {
		return nil, err
	}

	pg := bp.frames[frame]
	pg.ResetTo(pageID)
	if err := bp.disk.ReadPage(pageID, pg.Data); err != nil {
		// Roll back: frame goes back to the free list, no mapping installed.
		bp.freeList.PushBack(frame)
		return nil, fmt.Errorf("buffer: loading page %d: %w", pageID, err)
	}
	pg.PinCount = 1
	bp.pageTable[pageID] = frame
	bp.logf("MISS pageID=%d loaded", pageID)
	return pg, nil
}

// UnpinPage decrements pageID's pin count, OR-ing isDirty into its dirty
// flag. Returns false if the page is not resident or already unpinned.
func (bp *BufferPoolManager) UnpinPage(pageID int64, isDirty bool) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frame, ok := bp.pageTable[pageID]
	if !ok {
		return false
	}
	pg := bp.frames[frame]
	if pg.PinCount == 0 {
		return false
	}

	if isDirty {
		pg.IsDirty = true
	}
	pg.PinCount--
	if pg.PinCount == 0 {
		bp.replacer.Unpin(frame)
	}
	return true
}

// FlushPage writes pageID's frame to disk if resident, regardless of pin
// count, and clears its dirty flag.
func (bp *BufferPoolManager) FlushPage(pageID int64) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frame, ok := bp.pageTable[pageID]
	if !ok {
		return false
	}
	pg := bp.frames[frame]
	if err := bp.disk.WritePage(pageID, pg.Data); err != nil {
		return false
	}
	pg.IsDirty = false
	return true
}

// NewPage allocates a fresh page id via the disk manager, installs it in a
// frame, pins it, and returns it. Returns ErrOutOfMemory if the pool has
// no evictable frame.
func (bp *BufferPoolManager) NewPage() (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frame, err := bp.obtainFrameLocked()
	if err != nil {
		return nil, err
	}

	id, err := bp.disk.AllocatePage()
	if err != nil {
		bp.freeList.PushBack(frame)
		return nil, fmt.Errorf("buffer: allocating page: %w", err)
	}

	pg := bp.frames[frame]
	pg.ResetTo(id)
	pg.PinCount = 1
	bp.pageTable[id] = frame
	bp.logf("NEW pageID=%d frame=%d", id, frame)
	return pg, nil
}

// DeletePage removes pageID from the pool and deallocates it on disk.
// Returns true if the page is not resident (nothing to do), or once it has
// been removed; returns false without deallocating if it is still pinned.
func (bp *BufferPoolManager) DeletePage(pageID int64) (bool, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frame, ok := bp.pageTable[pageID]
	if !ok {
		return true, nil
	}
	pg := bp.frames[frame]
	if pg.PinCount > 0 {
		return false, nil
	}

	// Pin count is verified zero above BEFORE deallocation.
	if err := bp.disk.DeallocatePage(pageID); err != nil {
		return false, fmt.Errorf("buffer: deallocating page %d: %w", pageID, err)
	}

	bp.replacer.Pin(frame) // detach from replacer tracking before recycling
	delete(bp.pageTable, pageID)
	pg.ResetTo(page.InvalidID)
	bp.freeList.PushBack(frame)
	return true, nil
}

// FlushAllPages writes every resident dirty page to disk and clears their
// dirty flags.
func (bp *BufferPoolManager) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for pageID, frame := range bp.pageTable {
		pg := bp.frames[frame]
		if !pg.IsDirty {
			continue
		}
		if err := bp.disk.WritePage(pageID, pg.Data); err != nil {
			return fmt.Errorf("buffer: flushing page %d: %w", pageID, err)
		}
		pg.IsDirty = false
	}
	return nil
}

// GetStats reports current pool occupancy.
func (bp *BufferPoolManager) GetStats() Stats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	stats := Stats{Capacity: bp.poolSize, TotalPages: len(bp.pageTable)}
	for _, frame := range bp.pageTable {
		pg := bp.frames[frame]
		if pg.PinCount > 0 {
			stats.PinnedPages++
		}
		if pg.IsDirty {
			stats.DirtyPages++
		}
	}
	return stats
}

// Size returns the number of resident pages.
func (bp *BufferPoolManager) Size() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.pageTable)
}

// Capacity returns pool_size.
func (bp *BufferPoolManager) Capacity() int { return bp.poolSize }

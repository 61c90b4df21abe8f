// Package disk implements the disk manager: a byte-addressable page store
// plus the page-0 header directory mapping index name to root page id.
// Manager is the concrete, single-file implementation that makes the
// buffer pool and B+ tree package independently testable.
package disk

import (
	"fmt"
	"os"
	"sync"

	"coreidx/storage/page"
)

// HeaderPageID is the reserved page id of the header/directory page.
const HeaderPageID int64 = 0

// Manager owns one OS file and the id space of pages within it. Page ids
// are the page's offset in the file divided by page.Size; id 0 is always
// the header page.
type Manager struct {
	mu     sync.RWMutex
	file   *os.File
	closed bool

	nextPageID int64
	freeList   []int64
	header     *headerPage
}

// Open opens path, creating it (and its header page) if it does not exist.
func Open(path string) (*Manager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("disk.Open: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("disk.Open: stat: %w", err)
	}

	m := &Manager{file: file}

	if stat.Size() == 0 {
		m.header = newHeaderPage()
		buf := make([]byte, page.Size)
		if err := m.header.encode(buf); err != nil {
			file.Close()
			return nil, err
		}
		if _, err := file.WriteAt(buf, 0); err != nil {
			file.Close()
			return nil, fmt.Errorf("disk.Open: writing header page: %w", err)
		}
		m.nextPageID = 1
		return m, nil
	}

	buf := make([]byte, page.Size)
	if _, err := file.ReadAt(buf, 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("disk.Open: reading header page: %w", err)
	}
	m.header = decodeHeaderPage(buf)
	m.freeList = append([]int64(nil), m.header.free...)
	m.nextPageID = stat.Size() / page.Size
	if m.nextPageID < 1 {
		m.nextPageID = 1
	}
	return m, nil
}

func (m *Manager) checkBuf(buf []byte) error {
	if len(buf) != page.Size {
		return ErrBufferSize
	}
	return nil
}

// AllocatePage reserves a fresh page id, preferring a recycled id from the
// free list (LIFO — the most recently deallocated page is most likely to
// still be resident and cache-warm) before growing the file's high-water
// mark. It does not touch the disk; the caller is responsible for writing
// the page's initial contents.
func (m *Manager) AllocatePage() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return page.InvalidID, ErrClosed
	}

	if n := len(m.freeList); n > 0 {
		id := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		if err := m.persistFreeListLocked(); err != nil {
			return page.InvalidID, err
		}
		return id, nil
	}

	id := m.nextPageID
	m.nextPageID++
	return id, nil
}

// DeallocatePage returns pageID to the free list for future reuse.
// Verifying pin_count == 0 before calling this is the caller's
// (BufferPoolManager's) responsibility — Manager itself has no notion of
// pins.
func (m *Manager) DeallocatePage(pageID int64) error {
	if pageID == HeaderPageID || pageID < 0 {
		return ErrInvalidPageID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.freeList = append(m.freeList, pageID)
	return m.persistFreeListLocked()
}

func (m *Manager) persistFreeListLocked() error {
	if len(m.freeList) > maxFreeIDs {
		// Drop the oldest recycled ids rather than fail allocation outright;
		// they simply won't be reused and the file grows instead.
		m.freeList = m.freeList[len(m.freeList)-maxFreeIDs:]
	}
	m.header.free = m.freeList
	return m.writeHeaderLocked()
}

func (m *Manager) writeHeaderLocked() error {
	buf := make([]byte, page.Size)
	if err := m.header.encode(buf); err != nil {
		return err
	}
	if _, err := m.file.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("disk: writing header page: %w", err)
	}
	return nil
}

// ReadPage reads page.Size bytes for pageID into buf.
func (m *Manager) ReadPage(pageID int64, buf []byte) error {
	if err := m.checkBuf(buf); err != nil {
		return err
	}
	if pageID < 0 {
		return ErrInvalidPageID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	n, err := m.file.ReadAt(buf, pageID*page.Size)
	if err != nil && n == 0 {
		return fmt.Errorf("disk: reading page %d: %w", pageID, err)
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage writes buf (exactly page.Size bytes) to pageID's offset.
func (m *Manager) WritePage(pageID int64, buf []byte) error {
	if err := m.checkBuf(buf); err != nil {
		return err
	}
	if pageID < 0 {
		return ErrInvalidPageID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if _, err := m.file.WriteAt(buf, pageID*page.Size); err != nil {
		return fmt.Errorf("disk: writing page %d: %w", pageID, err)
	}
	if pageID >= m.nextPageID {
		m.nextPageID = pageID + 1
	}
	return nil
}

// Lookup returns the root page id registered under name.
func (m *Manager) Lookup(name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return page.InvalidID, ErrClosed
	}
	i := m.header.find(name)
	if i < 0 {
		return page.InvalidID, ErrRecordNotFound
	}
	return m.header.records[i].rootID, nil
}

// InsertRecord registers a brand-new index name -> root page id mapping.
func (m *Manager) InsertRecord(name string, rootID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.header.find(name) >= 0 {
		return ErrRecordExists
	}
	slot := m.header.firstFree()
	if slot < 0 {
		return ErrHeaderFull
	}
	m.header.records[slot] = headerRecord{used: true, name: name, rootID: rootID}
	return m.writeHeaderLocked()
}

// UpdateRecord changes the root page id registered under name. It inserts
// the record if it does not already exist, matching BusTub's header page
// semantics where the first Insert and every subsequent root change both
// go through the same "set root for this index" call.
func (m *Manager) UpdateRecord(name string, rootID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	i := m.header.find(name)
	if i < 0 {
		slot := m.header.firstFree()
		if slot < 0 {
			return ErrHeaderFull
		}
		m.header.records[slot] = headerRecord{used: true, name: name, rootID: rootID}
		return m.writeHeaderLocked()
	}
	m.header.records[i].rootID = rootID
	return m.writeHeaderLocked()
}

// Sync flushes the OS file buffer to stable storage.
func (m *Manager) Sync() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return m.file.Sync()
}

// Close syncs and closes the underlying file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if err := m.file.Sync(); err != nil {
		m.file.Close()
		return fmt.Errorf("disk.Close: sync: %w", err)
	}
	return m.file.Close()
}

package disk

import (
	"encoding/binary"

	"coreidx/storage/page"
)

// Page 0 of every database file is reserved as the header page: it maps
// index name -> root page id and persists the free list of
// deallocated page ids so AllocatePage can recycle them across restarts.
//
// Layout (little-endian, packed into page.Size bytes):
//
//	offset 0:  uint32 numRecords
//	offset 4:  uint32 numFreeIDs
//	offset 8:  recordsArea  (maxRecords * recordSize bytes)
//	offset 8+recordsArea: freeArea (maxFreeIDs * 8 bytes)
const (
	maxNameLen  = 128
	recordSize  = 1 + 2 + maxNameLen + 8 // used, nameLen, name, rootID
	maxRecords  = 20
	recordsArea = maxRecords * recordSize

	freeIDsOffset = 8 + recordsArea
	maxFreeIDs    = (page.Size - freeIDsOffset) / 8
)

type headerRecord struct {
	used   bool
	name   string
	rootID int64
}

type headerPage struct {
	records []headerRecord // len == maxRecords, unused slots have used == false
	free    []int64
}

func newHeaderPage() *headerPage {
	return &headerPage{records: make([]headerRecord, maxRecords)}
}

func decodeHeaderPage(buf []byte) *headerPage {
	h := newHeaderPage()
	numRecords := binary.LittleEndian.Uint32(buf[0:4])
	numFree := binary.LittleEndian.Uint32(buf[4:8])

	off := 8
	seen := 0
	for i := 0; i < maxRecords && seen < int(numRecords); i++ {
		rec := buf[off : off+recordSize]
		off += recordSize
		if rec[0] == 0 {
			continue
		}
		nameLen := binary.LittleEndian.Uint16(rec[1:3])
		name := string(rec[3 : 3+nameLen])
		rootID := int64(binary.LittleEndian.Uint64(rec[3+maxNameLen : 3+maxNameLen+8]))
		h.records[i] = headerRecord{used: true, name: name, rootID: rootID}
		seen++
	}

	free := buf[freeIDsOffset:]
	h.free = make([]int64, 0, numFree)
	for i := uint32(0); i < numFree; i++ {
		id := int64(binary.LittleEndian.Uint64(free[i*8 : i*8+8]))
		h.free = append(h.free, id)
	}
	return h
}

func (h *headerPage) encode(buf []byte) error {
	for i := range buf {
		buf[i] = 0
	}

	numRecords := 0
	off := 8
	for _, rec := range h.records {
		slot := buf[off : off+recordSize]
		off += recordSize
		if !rec.used {
			continue
		}
		if len(rec.name) > maxNameLen {
			return ErrHeaderFull
		}
		slot[0] = 1
		binary.LittleEndian.PutUint16(slot[1:3], uint16(len(rec.name)))
		copy(slot[3:3+maxNameLen], rec.name)
		binary.LittleEndian.PutUint64(slot[3+maxNameLen:3+maxNameLen+8], uint64(rec.rootID))
		numRecords++
	}
	binary.LittleEndian.PutUint32(buf[0:4], uint32(numRecords))

	if len(h.free) > maxFreeIDs {
		return ErrHeaderFull
	}
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(h.free)))
	free := buf[freeIDsOffset:]
	for i, id := range h.free {
		binary.LittleEndian.PutUint64(free[i*8:i*8+8], uint64(id))
	}
	return nil
}

func (h *headerPage) find(name string) int {
	for i, rec := range h.records {
		if rec.used && rec.name == name {
			return i
		}
	}
	return -1
}

func (h *headerPage) firstFree() int {
	for i, rec := range h.records {
		if !rec.used {
			return i
		}
	}
	return -1
}

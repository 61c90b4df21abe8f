package index

import (
	"encoding/binary"

	"coreidx/storage/page"
)

const (
	offNextPageID  = commonHeaderSize // int64, leaf-only
	leafHeaderSize = commonHeaderSize + 8
)

// LeafView is a polymorphic view over a *page.Page's bytes, interpreted as
// a B+ tree leaf node: a slotted array of (key, RID) entries plus the
// singly-linked next_page_id that chains leaves in ascending key order.
// It holds no state of its own; every method reads or writes directly
// through to the page's Data buffer.
type LeafView struct {
	pg      *page.Page
	keySize int
}

// AsLeaf views pg as a leaf node, using keySize-byte fixed-width keys.
func AsLeaf(pg *page.Page, keySize int) LeafView {
	return LeafView{pg: pg, keySize: keySize}
}

func (v LeafView) h() header { return header{v.pg.Data} }

func (v LeafView) entrySize() int { return v.keySize + ridSize }

func (v LeafView) entryOffset(i int) int { return leafHeaderSize + i*v.entrySize() }

// Init formats the page as an empty leaf node.
func (v LeafView) Init(selfID, parentID int64, maxSize int) {
	writeKind(v.pg.Data, kindLeaf)
	h := v.h()
	h.setSize(0)
	h.setMaxSize(maxSize)
	h.setParentPageID(parentID)
	h.setSelfPageID(selfID)
	v.SetNextPageID(page.InvalidID)
}

func (v LeafView) IsLeafPage() bool  { return true }
func (v LeafView) IsRootPage() bool  { return v.h().isRoot() }
func (v LeafView) GetSize() int      { return v.h().size() }
func (v LeafView) SetSize(n int)     { v.h().setSize(n) }
func (v LeafView) GetMaxSize() int   { return v.h().maxSize() }
func (v LeafView) GetMinSize() int   { return minSizeLeaf(v.h().maxSize()) }
func (v LeafView) ParentPageID() int64     { return v.h().parentPageID() }
func (v LeafView) SetParentPageID(id int64) { v.h().setParentPageID(id) }
func (v LeafView) SelfPageID() int64       { return v.h().selfPageID() }

func (v LeafView) GetNextPageId() int64 {
	return int64(binary.LittleEndian.Uint64(v.pg.Data[offNextPageID:]))
}

func (v LeafView) SetNextPageId(id int64) {
	binary.LittleEndian.PutUint64(v.pg.Data[offNextPageID:], uint64(id))
}

// aliases for the "Id"-cased spelling ("GetNextPageId"/"SetNextPageId")
func (v LeafView) GetNextPageID() int64    { return v.GetNextPageId() }
func (v LeafView) SetNextPageID(id int64)  { v.SetNextPageId(id) }

func (v LeafView) KeyAt(i int) []byte {
	off := v.entryOffset(i)
	return v.pg.Data[off : off+v.keySize]
}

func (v LeafView) SetKeyAt(i int, key []byte) {
	off := v.entryOffset(i)
	copy(v.pg.Data[off:off+v.keySize], key)
}

func (v LeafView) ValueAt(i int) RID {
	off := v.entryOffset(i) + v.keySize
	return decodeRID(v.pg.Data[off : off+ridSize])
}

func (v LeafView) SetValueAt(i int, rid RID) {
	off := v.entryOffset(i) + v.keySize
	rid.encode(v.pg.Data[off : off+ridSize])
}

func (v LeafView) setEntry(i int, key []byte, rid RID) {
	v.SetKeyAt(i, key)
	v.SetValueAt(i, rid)
}

func (v LeafView) copyEntry(dst, src int) {
	v.setEntry(dst, v.KeyAt(src), v.ValueAt(src))
}

// shiftRight moves entries [from, size) up by one slot, opening a hole at
// from. Caller must SetSize(size+1) and fill the hole.
func (v LeafView) shiftRight(from int) {
	size := v.GetSize()
	for i := size; i > from; i-- {
		v.copyEntry(i, i-1)
	}
}

// shiftLeft moves entries (from, size) down by one slot, closing the hole
// at from. Caller must SetSize(size-1) afterward.
func (v LeafView) shiftLeft(from int) {
	size := v.GetSize()
	for i := from; i < size-1; i++ {
		v.copyEntry(i, i+1)
	}
}

// KeyIndex returns the first index i with KeyAt(i) >= key (used to
// position range-start iteration).
func (v LeafView) KeyIndex(key []byte, cmp Comparator) int {
	size := v.GetSize()
	lo, hi := 0, size
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(v.KeyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup reports the value for key, if present.
func (v LeafView) Lookup(key []byte, cmp Comparator) (RID, bool) {
	i := v.KeyIndex(key, cmp)
	if i < v.GetSize() && cmp(v.KeyAt(i), key) == 0 {
		return v.ValueAt(i), true
	}
	return RID{}, false
}

// Insert places (key, value) in sorted position. Returns the new size;
// if key was already present, the size is unchanged (duplicates are
// rejected, not overwritten).
func (v LeafView) Insert(key []byte, value RID, cmp Comparator) int {
	size := v.GetSize()
	i := v.KeyIndex(key, cmp)
	if i < size && cmp(v.KeyAt(i), key) == 0 {
		return size
	}
	v.shiftRight(i)
	v.SetSize(size + 1)
	v.setEntry(i, key, value)
	return size + 1
}

// RemoveAndDeleteRecord removes key if present, returning the new size, or
// -1 if key was absent.
func (v LeafView) RemoveAndDeleteRecord(key []byte, cmp Comparator) int {
	size := v.GetSize()
	i := v.KeyIndex(key, cmp)
	if i >= size || cmp(v.KeyAt(i), key) != 0 {
		return -1
	}
	v.shiftLeft(i)
	v.SetSize(size - 1)
	return size - 1
}

// MoveHalfTo moves the upper half [size/2, size) of v's entries to the
// empty sibling.
func (v LeafView) MoveHalfTo(sibling LeafView) {
	size := v.GetSize()
	mid := size / 2
	n := size - mid
	for i := 0; i < n; i++ {
		sibling.setEntry(i, v.KeyAt(mid+i), v.ValueAt(mid+i))
	}
	sibling.SetSize(n)
	v.SetSize(mid)
}

// MoveAllTo appends all of v's entries onto sibling and inherits v's
// next_page_id: the recipient inherits the emptied leaf's former next
// pointer, never a self-reference.
func (v LeafView) MoveAllTo(sibling LeafView) {
	size := v.GetSize()
	base := sibling.GetSize()
	for i := 0; i < size; i++ {
		sibling.setEntry(base+i, v.KeyAt(i), v.ValueAt(i))
	}
	sibling.SetSize(base + size)
	sibling.SetNextPageID(v.GetNextPageID())
	v.SetSize(0)
}

// MoveFirstToEndOf moves v's first entry to the end of sibling.
func (v LeafView) MoveFirstToEndOf(sibling LeafView) {
	key, val := v.KeyAt(0), v.ValueAt(0)
	sibling.setEntry(sibling.GetSize(), key, val)
	sibling.SetSize(sibling.GetSize() + 1)
	v.shiftLeft(0)
	v.SetSize(v.GetSize() - 1)
}

// MoveLastToFrontOf moves v's last entry to the front of sibling.
func (v LeafView) MoveLastToFrontOf(sibling LeafView) {
	last := v.GetSize() - 1
	key, val := v.KeyAt(last), v.ValueAt(last)
	sibling.shiftRight(0)
	sibling.SetSize(sibling.GetSize() + 1)
	sibling.setEntry(0, key, val)
	v.SetSize(last)
}

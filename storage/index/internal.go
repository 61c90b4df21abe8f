package index

import (
	"encoding/binary"

	"coreidx/storage/page"
)

const internalHeaderSize = commonHeaderSize

// PageFetcher is the slice of BufferPoolManager's API the index package
// needs to reparent a moved child during a split, merge, or redistribute.
// Declared here so index depends only on the method shapes it uses, not on
// the buffer package itself.
type PageFetcher interface {
	FetchPage(pageID int64) (*page.Page, error)
	UnpinPage(pageID int64, isDirty bool) bool
}

// InternalView is a polymorphic view over a *page.Page's bytes, interpreted
// as a B+ tree internal (branch) node: GetSize() (key, child_page_id) pairs
// where entry 0's key is unused (entry 0's value is the leftmost child, the
// customary B+ tree convention).
type InternalView struct {
	pg      *page.Page
	keySize int
}

// AsInternal views pg as an internal node, using keySize-byte fixed-width
// keys.
func AsInternal(pg *page.Page, keySize int) InternalView {
	return InternalView{pg: pg, keySize: keySize}
}

func (v InternalView) h() header { return header{v.pg.Data} }

func (v InternalView) entrySize() int { return v.keySize + 8 }

func (v InternalView) entryOffset(i int) int { return internalHeaderSize + i*v.entrySize() }

// Init formats the page as an empty internal node.
func (v InternalView) Init(selfID, parentID int64, maxSize int) {
	writeKind(v.pg.Data, kindInternal)
	h := v.h()
	h.setSize(0)
	h.setMaxSize(maxSize)
	h.setParentPageID(parentID)
	h.setSelfPageID(selfID)
}

func (v InternalView) IsLeafPage() bool         { return false }
func (v InternalView) IsRootPage() bool         { return v.h().isRoot() }
func (v InternalView) GetSize() int             { return v.h().size() }
func (v InternalView) SetSize(n int)            { v.h().setSize(n) }
func (v InternalView) GetMaxSize() int          { return v.h().maxSize() }
func (v InternalView) GetMinSize() int          { return minSizeInternal(v.h().maxSize()) }
func (v InternalView) ParentPageID() int64      { return v.h().parentPageID() }
func (v InternalView) SetParentPageID(id int64) { v.h().setParentPageID(id) }
func (v InternalView) SelfPageID() int64        { return v.h().selfPageID() }

func (v InternalView) KeyAt(i int) []byte {
	off := v.entryOffset(i)
	return v.pg.Data[off : off+v.keySize]
}

func (v InternalView) SetKeyAt(i int, key []byte) {
	off := v.entryOffset(i)
	copy(v.pg.Data[off:off+v.keySize], key)
}

func (v InternalView) ValueAt(i int) int64 {
	off := v.entryOffset(i) + v.keySize
	return int64(binary.LittleEndian.Uint64(v.pg.Data[off : off+8]))
}

func (v InternalView) SetValueAt(i int, id int64) {
	off := v.entryOffset(i) + v.keySize
	binary.LittleEndian.PutUint64(v.pg.Data[off:off+8], uint64(id))
}

func (v InternalView) setEntry(i int, key []byte, val int64) {
	v.SetKeyAt(i, key)
	v.SetValueAt(i, val)
}

func (v InternalView) copyEntry(dst, src int) {
	v.setEntry(dst, v.KeyAt(src), v.ValueAt(src))
}

func (v InternalView) shiftRight(from int) {
	size := v.GetSize()
	for i := size; i > from; i-- {
		v.copyEntry(i, i-1)
	}
}

func (v InternalView) shiftLeft(from int) {
	size := v.GetSize()
	for i := from; i < size-1; i++ {
		v.copyEntry(i, i+1)
	}
}

// Lookup returns the child page id to descend into for key: the customary
// binary search over separators, where entry i's key is the lower bound for
// entry i's child (for i >= 1).
func (v InternalView) Lookup(key []byte, cmp Comparator) int64 {
	size := v.GetSize()
	lo, hi := 1, size
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(key, v.KeyAt(mid)) < 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return v.ValueAt(lo - 1)
}

// ValueIndex returns the index of the child pointer equal to value, or -1.
func (v InternalView) ValueIndex(value int64) int {
	size := v.GetSize()
	for i := 0; i < size; i++ {
		if v.ValueAt(i) == value {
			return i
		}
	}
	return -1
}

// PopulateNewRoot formats v (freshly allocated) as a two-child root: index 0
// holds oldChild with no meaningful key, index 1 holds key/newChild.
func (v InternalView) PopulateNewRoot(oldChild int64, key []byte, newChild int64) {
	v.SetSize(2)
	v.SetValueAt(0, oldChild)
	v.SetKeyAt(1, key)
	v.SetValueAt(1, newChild)
}

// InsertNodeAfter inserts (key, newChild) immediately after oldChild's
// entry, returning the new size.
func (v InternalView) InsertNodeAfter(oldChild int64, key []byte, newChild int64) int {
	i := v.ValueIndex(oldChild)
	size := v.GetSize()
	v.shiftRight(i + 1)
	v.setEntry(i+1, key, newChild)
	v.SetSize(size + 1)
	return size + 1
}

func reparent(pf PageFetcher, childID int64, newParent int64) {
	child, err := pf.FetchPage(childID)
	if err != nil {
		return
	}
	header{child.Data}.setParentPageID(newParent)
	pf.UnpinPage(childID, true)
}

// MoveHalfTo moves the upper half of v's entries to the empty sibling,
// reparenting each moved child to sibling.
func (v InternalView) MoveHalfTo(sibling InternalView, pf PageFetcher) {
	size := v.GetSize()
	mid := size / 2
	n := size - mid
	for i := 0; i < n; i++ {
		sibling.setEntry(i, v.KeyAt(mid+i), v.ValueAt(mid+i))
		reparent(pf, v.ValueAt(mid+i), sibling.SelfPageID())
	}
	sibling.SetSize(n)
	v.SetSize(mid)
}

// MoveAllTo appends all of v's entries onto sibling, using middleKey as the
// key pulled down from the parent for v's former entry 0 (whose stored key
// was unused), reparenting each moved child.
func (v InternalView) MoveAllTo(sibling InternalView, middleKey []byte, pf PageFetcher) {
	v.SetKeyAt(0, middleKey)
	size := v.GetSize()
	base := sibling.GetSize()
	for i := 0; i < size; i++ {
		sibling.setEntry(base+i, v.KeyAt(i), v.ValueAt(i))
		reparent(pf, v.ValueAt(i), sibling.SelfPageID())
	}
	sibling.SetSize(base + size)
	v.SetSize(0)
}

// MoveFirstToEndOf moves v's first child to the end of sibling (sibling is
// v's left neighbor), using middleKey as the parent separator for the moved
// entry. Returns the key that must become the new parent separator between
// sibling and v.
func (v InternalView) MoveFirstToEndOf(sibling InternalView, middleKey []byte, pf PageFetcher) []byte {
	value0 := v.ValueAt(0)
	newSep := append([]byte(nil), v.KeyAt(1)...)
	sibling.setEntry(sibling.GetSize(), middleKey, value0)
	sibling.SetSize(sibling.GetSize() + 1)
	reparent(pf, value0, sibling.SelfPageID())
	v.shiftLeft(0)
	v.SetSize(v.GetSize() - 1)
	return newSep
}

// MoveLastToFrontOf moves v's last child to the front of sibling (sibling
// is v's right neighbor), using middleKey as the parent separator for the
// moved entry. Returns the key that must become the new parent separator
// between v and sibling.
//
// shiftRight(0) carries sibling's existing entries right as whole
// (key, value) pairs, which drags sibling's old, semantically-unused
// index-0 key into index 1 — the position that now needs the *real*
// separator between the newly-front child and what used to be sibling's
// first child. That slot is fixed up explicitly with middleKey after the
// shift, rather than trusting the shifted-in key.
func (v InternalView) MoveLastToFrontOf(sibling InternalView, middleKey []byte, pf PageFetcher) []byte {
	last := v.GetSize() - 1
	valueLast := v.ValueAt(last)
	newSep := append([]byte(nil), v.KeyAt(last)...)
	sibling.shiftRight(0)
	sibling.SetSize(sibling.GetSize() + 1)
	sibling.SetValueAt(0, valueLast)
	sibling.SetKeyAt(1, middleKey)
	reparent(pf, valueLast, sibling.SelfPageID())
	v.SetSize(last)
	return newSep
}

// Remove deletes the entry at index, shifting subsequent entries left.
func (v InternalView) Remove(index int) {
	v.shiftLeft(index)
	v.SetSize(v.GetSize() - 1)
}

// RemoveAndReturnOnlyChild returns the sole remaining child pointer and
// empties v; used when collapsing a root that has been reduced to one
// child.
func (v InternalView) RemoveAndReturnOnlyChild() int64 {
	child := v.ValueAt(0)
	v.SetSize(0)
	return child
}

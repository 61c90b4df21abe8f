package index

import (
	"errors"

	"coreidx/storage/page"
)

// Iterator walks leaves in ascending key order. Between calls it holds no
// latch and no pin at all — only the current leaf's page id and slot index
// — and re-fetches/re-latches that leaf for the duration of each Key,
// Value, or Next call. This trades a fetch-latch-copy-unlatch round trip
// per step for never holding a latch across the boundary between two user
// calls, which is what keeps a goroutine that calls Next while also
// running Insert/Remove from deadlocking against itself.
type Iterator struct {
	tree   *BPlusTree
	leafID int64
	idx    int
	done   bool
}

// Begin starts iteration at the first key >= key. Passing a nil key starts
// at the very first key in the tree.
func (t *BPlusTree) Begin(key []byte) (*Iterator, error) {
	if key == nil {
		return t.beginLeftmost()
	}
	leaf, err := t.FindLeafPage(key, opRead, nil)
	if err != nil {
		if errors.Is(err, ErrEmptyTree) {
			return &Iterator{done: true}, nil
		}
		return nil, err
	}
	lv := AsLeaf(leaf, t.keySize)
	idx := lv.KeyIndex(key, t.cmp)
	leafID := leaf.ID
	leaf.RUnlock()
	t.bpm.UnpinPage(leaf.ID, false)

	it := &Iterator{tree: t, leafID: leafID, idx: idx}
	it.skipToValid()
	return it, nil
}

// begin is Begin(nil): the leftmost key in the tree.
func (t *BPlusTree) begin() (*Iterator, error) { return t.Begin(nil) }

func (t *BPlusTree) beginLeftmost() (*Iterator, error) {
	curID := t.getRoot()
	if curID == page.InvalidID {
		return &Iterator{done: true}, nil
	}
	for {
		pg, err := t.bpm.FetchPage(curID)
		if err != nil {
			return nil, err
		}
		pg.RLock()
		if readKind(pg.Data) == kindLeaf {
			pg.RUnlock()
			t.bpm.UnpinPage(pg.ID, false)
			it := &Iterator{tree: t, leafID: curID, idx: 0}
			it.skipToValid()
			return it, nil
		}
		iv := AsInternal(pg, t.keySize)
		nextID := iv.ValueAt(0)
		pg.RUnlock()
		t.bpm.UnpinPage(pg.ID, false)
		curID = nextID
	}
}

// end reports the exhausted sentinel; Valid() on it is always false.
func (t *BPlusTree) end() *Iterator { return &Iterator{done: true} }

// skipToValid advances leafID/idx across empty/exhausted leaves until idx
// points at a live entry or the chain is exhausted, fetch-latching each
// candidate leaf just long enough to read its size and next-pointer.
func (it *Iterator) skipToValid() {
	for it.leafID != page.InvalidID {
		leaf, err := it.tree.bpm.FetchPage(it.leafID)
		if err != nil {
			it.done = true
			return
		}
		leaf.RLock()
		lv := AsLeaf(leaf, it.tree.keySize)
		valid := it.idx < lv.GetSize()
		nextID := lv.GetNextPageID()
		leaf.RUnlock()
		it.tree.bpm.UnpinPage(leaf.ID, false)

		if valid {
			return
		}
		it.leafID = nextID
		it.idx = 0
	}
	it.done = true
}

// Valid reports whether Key/Value refer to a live entry.
func (it *Iterator) Valid() bool { return !it.done }

// Key fetch-latches the current leaf just long enough to copy out the key
// at the current slot.
func (it *Iterator) Key() []byte {
	leaf, err := it.tree.bpm.FetchPage(it.leafID)
	if err != nil {
		return nil
	}
	leaf.RLock()
	lv := AsLeaf(leaf, it.tree.keySize)
	key := append([]byte(nil), lv.KeyAt(it.idx)...)
	leaf.RUnlock()
	it.tree.bpm.UnpinPage(leaf.ID, false)
	return key
}

// Value fetch-latches the current leaf just long enough to read the RID at
// the current slot.
func (it *Iterator) Value() RID {
	leaf, err := it.tree.bpm.FetchPage(it.leafID)
	if err != nil {
		return RID{}
	}
	leaf.RLock()
	lv := AsLeaf(leaf, it.tree.keySize)
	val := lv.ValueAt(it.idx)
	leaf.RUnlock()
	it.tree.bpm.UnpinPage(leaf.ID, false)
	return val
}

// Next advances to the following entry.
func (it *Iterator) Next() {
	if it.done {
		return
	}
	it.idx++
	it.skipToValid()
}

// Close marks the iterator exhausted. Safe to call more than once; since
// no latch or pin is ever held between calls, there is nothing else to
// release.
func (it *Iterator) Close() {
	it.done = true
}

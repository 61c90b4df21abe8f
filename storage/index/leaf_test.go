package index

import (
	"encoding/binary"
	"testing"

	"coreidx/storage/page"
)

const testKeySize = 8

func k(n uint64) []byte {
	b := make([]byte, testKeySize)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func newLeafPage(t *testing.T, id, parent int64, maxSize int) (*page.Page, LeafView) {
	t.Helper()
	pg := page.New()
	pg.ID = id
	lv := AsLeaf(pg, testKeySize)
	lv.Init(id, parent, maxSize)
	return pg, lv
}

func TestLeafInsertLookupOrdered(t *testing.T) {
	_, lv := newLeafPage(t, 1, page.InvalidID, 5)

	for _, n := range []uint64{5, 1, 3, 2, 4} {
		lv.Insert(k(n), RID{PageID: int64(n), SlotNum: 0}, ByteKeyComparator)
	}
	if lv.GetSize() != 5 {
		t.Fatalf("expected size 5, got %d", lv.GetSize())
	}
	for i := 0; i < 5; i++ {
		want := uint64(i + 1)
		if got := binary.BigEndian.Uint64(lv.KeyAt(i)); got != want {
			t.Fatalf("index %d: expected key %d, got %d", i, want, got)
		}
	}

	rid, ok := lv.Lookup(k(3), ByteKeyComparator)
	if !ok || rid.PageID != 3 {
		t.Fatalf("Lookup(3): got %v, %v", rid, ok)
	}
	if _, ok := lv.Lookup(k(9), ByteKeyComparator); ok {
		t.Fatalf("Lookup(9) should miss")
	}
}

func TestLeafInsertRejectsDuplicate(t *testing.T) {
	_, lv := newLeafPage(t, 1, page.InvalidID, 5)
	lv.Insert(k(1), RID{PageID: 1}, ByteKeyComparator)
	if n := lv.Insert(k(1), RID{PageID: 99}, ByteKeyComparator); n != 1 {
		t.Fatalf("expected size unchanged at 1, got %d", n)
	}
	rid, _ := lv.Lookup(k(1), ByteKeyComparator)
	if rid.PageID != 1 {
		t.Fatalf("duplicate insert must not overwrite; got %+v", rid)
	}
}

func TestLeafRemoveAndDeleteRecord(t *testing.T) {
	_, lv := newLeafPage(t, 1, page.InvalidID, 5)
	for _, n := range []uint64{1, 2, 3} {
		lv.Insert(k(n), RID{PageID: int64(n)}, ByteKeyComparator)
	}
	if n := lv.RemoveAndDeleteRecord(k(2), ByteKeyComparator); n != 2 {
		t.Fatalf("expected new size 2, got %d", n)
	}
	if _, ok := lv.Lookup(k(2), ByteKeyComparator); ok {
		t.Fatalf("key 2 should be gone")
	}
	if n := lv.RemoveAndDeleteRecord(k(2), ByteKeyComparator); n != -1 {
		t.Fatalf("expected -1 removing absent key, got %d", n)
	}
}

func TestLeafMoveHalfTo(t *testing.T) {
	_, lv := newLeafPage(t, 1, page.InvalidID, 5)
	sibPg, sib := newLeafPage(t, 2, page.InvalidID, 5)
	_ = sibPg

	for _, n := range []uint64{1, 2, 3, 4, 5} {
		lv.Insert(k(n), RID{PageID: int64(n)}, ByteKeyComparator)
	}
	lv.MoveHalfTo(sib)

	if lv.GetSize() != 2 || sib.GetSize() != 3 {
		t.Fatalf("expected split 2/3, got %d/%d", lv.GetSize(), sib.GetSize())
	}
	if binary.BigEndian.Uint64(sib.KeyAt(0)) != 3 {
		t.Fatalf("sibling should start at key 3, got %d", binary.BigEndian.Uint64(sib.KeyAt(0)))
	}
}

func TestLeafMoveAllToInheritsNextPageID(t *testing.T) {
	_, lv := newLeafPage(t, 1, page.InvalidID, 5)
	_, sib := newLeafPage(t, 2, page.InvalidID, 5)

	lv.SetNextPageID(42)
	lv.Insert(k(1), RID{PageID: 1}, ByteKeyComparator)
	sib.Insert(k(5), RID{PageID: 5}, ByteKeyComparator)

	lv.MoveAllTo(sib)

	if lv.GetSize() != 0 {
		t.Fatalf("donor should be empty, got size %d", lv.GetSize())
	}
	if sib.GetSize() != 2 {
		t.Fatalf("recipient should have 2 entries, got %d", sib.GetSize())
	}
	if got := sib.GetNextPageID(); got != 42 {
		t.Fatalf("recipient must inherit donor's next_page_id (42), got %d (not a self-reference)", got)
	}
}

func TestLeafMoveFirstLastRedistribute(t *testing.T) {
	_, a := newLeafPage(t, 1, page.InvalidID, 5)
	_, b := newLeafPage(t, 2, page.InvalidID, 5)

	for _, n := range []uint64{1, 2, 3} {
		a.Insert(k(n), RID{PageID: int64(n)}, ByteKeyComparator)
	}
	b.Insert(k(10), RID{PageID: 10}, ByteKeyComparator)

	a.MoveLastToFrontOf(b)
	if a.GetSize() != 2 || b.GetSize() != 2 {
		t.Fatalf("expected 2/2 after MoveLastToFrontOf, got %d/%d", a.GetSize(), b.GetSize())
	}
	if binary.BigEndian.Uint64(b.KeyAt(0)) != 3 {
		t.Fatalf("b's front should now be 3, got %d", binary.BigEndian.Uint64(b.KeyAt(0)))
	}

	a.MoveFirstToEndOf(b)
	if a.GetSize() != 1 || b.GetSize() != 3 {
		t.Fatalf("expected 1/3 after MoveFirstToEndOf, got %d/%d", a.GetSize(), b.GetSize())
	}
	if binary.BigEndian.Uint64(b.KeyAt(2)) != 1 {
		t.Fatalf("b's end should now be 1, got %d", binary.BigEndian.Uint64(b.KeyAt(2)))
	}
}

package index

import (
	"errors"

	"coreidx/storage/page"
)

var errRetryEmpty = errors.New("index: root changed concurrently, retry")

// Insert adds key/value to the tree. It returns ErrDuplicateKey without
// modifying the tree if key is already present.
func (t *BPlusTree) Insert(key []byte, value RID) error {
	for {
		if t.IsEmpty() {
			err := t.startNewTree(key, value)
			if errors.Is(err, errRetryEmpty) {
				continue
			}
			return err
		}
		txn := NewTransaction()
		_, err := t.FindLeafPage(key, opInsert, txn)
		if errors.Is(err, ErrEmptyTree) {
			continue
		}
		if err != nil {
			return err
		}
		return t.insertIntoLeaf(txn, key, value)
	}
}

// startNewTree allocates the first leaf page and makes it the root; called
// only when the tree was observed empty. If another goroutine won the race
// to create the root first, it returns errRetryEmpty so the caller falls
// back to the normal descent.
func (t *BPlusTree) startNewTree(key []byte, value RID) error {
	t.rootMu.Lock()
	defer t.rootMu.Unlock()
	if t.rootPageID != page.InvalidID {
		return errRetryEmpty
	}
	pg, err := t.bpm.NewPage()
	if err != nil {
		return err
	}
	lv := AsLeaf(pg, t.keySize)
	lv.Init(pg.ID, page.InvalidID, t.leafMaxSize)
	lv.Insert(key, value, t.cmp)
	t.setRootLocked(pg.ID)
	t.bpm.UnpinPage(pg.ID, true)
	return nil
}

func (t *BPlusTree) insertIntoLeaf(txn *Transaction, key []byte, value RID) error {
	leaf := txn.popAncestor()
	lv := AsLeaf(leaf, t.keySize)
	oldSize := lv.GetSize()
	newSize := lv.Insert(key, value, t.cmp)

	if newSize == oldSize {
		unlatch(leaf, opInsert)
		t.bpm.UnpinPage(leaf.ID, false)
		t.releaseAncestors(txn, opInsert)
		return ErrDuplicateKey
	}
	if newSize < lv.GetMaxSize() {
		unlatch(leaf, opInsert)
		t.bpm.UnpinPage(leaf.ID, true)
		t.releaseAncestors(txn, opInsert)
		return nil
	}
	return t.splitLeaf(leaf, lv, txn)
}

func (t *BPlusTree) splitLeaf(leaf *page.Page, lv LeafView, txn *Transaction) error {
	newPg, err := t.bpm.NewPage()
	if err != nil {
		unlatch(leaf, opInsert)
		t.bpm.UnpinPage(leaf.ID, true)
		t.releaseAncestors(txn, opInsert)
		return err
	}
	newLeaf := AsLeaf(newPg, t.keySize)
	newLeaf.Init(newPg.ID, lv.ParentPageID(), t.leafMaxSize)
	newLeaf.SetNextPageID(lv.GetNextPageID())
	lv.MoveHalfTo(newLeaf)
	lv.SetNextPageID(newPg.ID)

	upKey := append([]byte(nil), newLeaf.KeyAt(0)...)
	return t.insertIntoParent(leaf, upKey, newPg, txn)
}

// insertIntoParent inserts (key, right) after left in left's parent,
// creating a new root if left had none, splitting the parent in turn if it
// overflows.
func (t *BPlusTree) insertIntoParent(left *page.Page, key []byte, right *page.Page, txn *Transaction) error {
	parentID := header{left.Data}.parentPageID()

	if parentID == page.InvalidID {
		newRootPg, err := t.bpm.NewPage()
		if err != nil {
			unlatch(left, opInsert)
			t.bpm.UnpinPage(left.ID, true)
			t.bpm.UnpinPage(right.ID, true)
			t.releaseAncestors(txn, opInsert)
			return err
		}
		iv := AsInternal(newRootPg, t.keySize)
		iv.Init(newRootPg.ID, page.InvalidID, t.internalMaxSize)
		iv.PopulateNewRoot(left.ID, key, right.ID)

		header{left.Data}.setParentPageID(newRootPg.ID)
		header{right.Data}.setParentPageID(newRootPg.ID)

		// left had no parent, so it was the root; rootMu is still held on
		// txn's behalf from FindLeafPage's descent (an about-to-split root
		// is never "safe"), so this only needs to release it, not lock it.
		t.setRootLocked(newRootPg.ID)
		if txn.rootLocked {
			t.rootMu.Unlock()
			txn.rootLocked = false
		}

		t.bpm.UnpinPage(newRootPg.ID, true)
		unlatch(left, opInsert)
		t.bpm.UnpinPage(left.ID, true)
		t.bpm.UnpinPage(right.ID, true)
		t.releaseAncestors(txn, opInsert)
		return nil
	}

	parent := txn.popAncestor()
	if parent == nil || parent.ID != parentID {
		var err error
		parent, err = t.bpm.FetchPage(parentID)
		if err != nil {
			unlatch(left, opInsert)
			t.bpm.UnpinPage(left.ID, true)
			t.bpm.UnpinPage(right.ID, true)
			return err
		}
		latch(parent, opInsert)
	}

	iv := AsInternal(parent, t.keySize)
	newSize := iv.InsertNodeAfter(left.ID, key, right.ID)
	header{right.Data}.setParentPageID(parent.ID)

	unlatch(left, opInsert)
	t.bpm.UnpinPage(left.ID, true)
	t.bpm.UnpinPage(right.ID, true)

	if newSize < iv.GetMaxSize() {
		unlatch(parent, opInsert)
		t.bpm.UnpinPage(parent.ID, true)
		t.releaseAncestors(txn, opInsert)
		return nil
	}
	return t.splitInternal(parent, iv, txn)
}

func (t *BPlusTree) splitInternal(node *page.Page, iv InternalView, txn *Transaction) error {
	newPg, err := t.bpm.NewPage()
	if err != nil {
		unlatch(node, opInsert)
		t.bpm.UnpinPage(node.ID, true)
		t.releaseAncestors(txn, opInsert)
		return err
	}
	sibling := AsInternal(newPg, t.keySize)
	sibling.Init(newPg.ID, iv.ParentPageID(), t.internalMaxSize)
	iv.MoveHalfTo(sibling, t.bpm)

	upKey := append([]byte(nil), sibling.KeyAt(0)...)
	return t.insertIntoParent(node, upKey, newPg, txn)
}

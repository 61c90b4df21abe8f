package index

import "coreidx/storage/page"

// opType selects the latch mode and safety rule FindLeafPage applies while
// descending, per the latch-crabbing discipline.
type opType int

const (
	opRead opType = iota
	opInsert
	opDelete
)

func latch(pg *page.Page, op opType) {
	if op == opRead {
		pg.RLock()
	} else {
		pg.Lock()
	}
}

func unlatch(pg *page.Page, op opType) {
	if op == opRead {
		pg.RUnlock()
	} else {
		pg.Unlock()
	}
}

// isSafe reports whether performing op on pg is guaranteed not to
// propagate a structural change (split or merge) to pg's parent: an insert
// is safe if pg has room for one more entry; a delete is safe if pg would
// still meet its minimum occupancy after losing one entry.
func (t *BPlusTree) isSafe(pg *page.Page, op opType) bool {
	if op == opRead {
		return true
	}
	if readKind(pg.Data) == kindLeaf {
		lv := AsLeaf(pg, t.keySize)
		if op == opInsert {
			return lv.GetSize() < lv.GetMaxSize()-1
		}
		return lv.GetSize() > lv.GetMinSize()
	}
	iv := AsInternal(pg, t.keySize)
	if op == opInsert {
		return iv.GetSize() < iv.GetMaxSize()
	}
	return iv.GetSize() > iv.GetMinSize()
}

// releaseAncestors unlatches and unpins every page still recorded in txn,
// deepest-first, called once a descendant has proven safe. If txn still
// holds rootMu on behalf of a since-released root ancestor, it is released
// last, after every page latch.
func (t *BPlusTree) releaseAncestors(txn *Transaction, op opType) {
	for {
		pg := txn.popAncestor()
		if pg == nil {
			break
		}
		unlatch(pg, op)
		t.bpm.UnpinPage(pg.ID, false)
	}
	if txn.rootLocked {
		t.rootMu.Unlock()
		txn.rootLocked = false
	}
}

// FindLeafPage descends from the root to the leaf that would hold key,
// latching each page in op's mode and releasing ancestors as soon as a
// safe descendant is found. For opRead, txn is unused and may be nil; the
// returned leaf is left read-latched and pinned. For opInsert/opDelete,
// the returned leaf and every not-yet-released ancestor remain write
// latched and pinned, recorded in txn, for the caller to walk during
// split/merge propagation.
//
// rootMu is treated as the latch one level above the root page itself:
// it is held across the fetch that resolves rootPageID into a pinned
// *page.Page, closing the window in which a concurrent root collapse could
// free that page id (via adjustRoot's DeletePage) before this call ever
// pins it. It is released the same way any ancestor latch is — immediately
// if the root proves safe for op, or later by releaseAncestors/the root
// mutation itself if it doesn't.
func (t *BPlusTree) FindLeafPage(key []byte, op opType, txn *Transaction) (*page.Page, error) {
	if op == opRead {
		t.rootMu.RLock()
	} else {
		t.rootMu.Lock()
	}
	if t.rootPageID == page.InvalidID {
		if op == opRead {
			t.rootMu.RUnlock()
		} else {
			t.rootMu.Unlock()
		}
		return nil, ErrEmptyTree
	}
	node, err := t.bpm.FetchPage(t.rootPageID)
	if err != nil {
		if op == opRead {
			t.rootMu.RUnlock()
		} else {
			t.rootMu.Unlock()
		}
		return nil, err
	}
	latch(node, op)

	switch {
	case op == opRead:
		t.rootMu.RUnlock()
	case t.isSafe(node, op):
		txn.pushAncestor(node)
		t.rootMu.Unlock()
	default:
		txn.pushAncestor(node)
		txn.rootLocked = true
	}

	for readKind(node.Data) != kindLeaf {
		iv := AsInternal(node, t.keySize)
		childID := iv.Lookup(key, t.cmp)
		child, err := t.bpm.FetchPage(childID)
		if err != nil {
			if op != opRead {
				t.releaseAncestors(txn, op)
			} else {
				unlatch(node, op)
				t.bpm.UnpinPage(node.ID, false)
			}
			return nil, err
		}
		latch(child, op)

		switch {
		case op == opRead:
			unlatch(node, op)
			t.bpm.UnpinPage(node.ID, false)
		case t.isSafe(child, op):
			t.releaseAncestors(txn, op)
			txn.pushAncestor(child)
		default:
			txn.pushAncestor(child)
		}
		node = child
	}
	return node, nil
}

package index

import (
	"errors"

	"coreidx/storage/page"
)

// Remove deletes key from the tree if present. Removing an absent key is a
// silent no-op.
func (t *BPlusTree) Remove(key []byte) error {
	txn := NewTransaction()
	_, err := t.FindLeafPage(key, opDelete, txn)
	if errors.Is(err, ErrEmptyTree) {
		return nil
	}
	if err != nil {
		return err
	}
	return t.removeFromLeaf(txn, key)
}

func (t *BPlusTree) removeFromLeaf(txn *Transaction, key []byte) error {
	leaf := txn.popAncestor()
	lv := AsLeaf(leaf, t.keySize)
	newSize := lv.RemoveAndDeleteRecord(key, t.cmp)
	if newSize < 0 {
		unlatch(leaf, opDelete)
		t.bpm.UnpinPage(leaf.ID, false)
		t.releaseAncestors(txn, opDelete)
		return nil
	}
	return t.coalesceOrRedistribute(leaf, txn)
}

// coalesceOrRedistribute restores node's minimum-occupancy invariant after
// it has shrunk by one entry, merging it with a sibling or borrowing from
// one, recursing up through txn's remaining ancestors as needed.
func (t *BPlusTree) coalesceOrRedistribute(node *page.Page, txn *Transaction) error {
	view := viewOf(node, t.keySize)

	if view.IsRootPage() {
		return t.adjustRoot(node, view, txn)
	}
	if view.GetSize() >= view.GetMinSize() {
		unlatch(node, opDelete)
		t.bpm.UnpinPage(node.ID, true)
		t.releaseAncestors(txn, opDelete)
		return nil
	}

	parent := txn.popAncestor()
	var err error
	if parent == nil {
		parent, err = t.bpm.FetchPage(view.ParentPageID())
		if err != nil {
			unlatch(node, opDelete)
			t.bpm.UnpinPage(node.ID, true)
			return err
		}
		latch(parent, opDelete)
	}
	piv := AsInternal(parent, t.keySize)
	index := piv.ValueIndex(view.SelfPageID())
	size := piv.GetSize()
	threshold := coalesceThreshold(view)

	var (
		neighbor           *page.Page
		nview              nodeView
		neighborIndex      int
		nodeLeftOfNeighbor bool
	)

	switch {
	case index == 0:
		neighborIndex, nodeLeftOfNeighbor = index+1, true
		neighbor, err = t.bpm.FetchPage(piv.ValueAt(neighborIndex))
		if err != nil {
			unlatch(node, opDelete)
			t.bpm.UnpinPage(node.ID, true)
			unlatch(parent, opDelete)
			t.bpm.UnpinPage(parent.ID, false)
			return err
		}
		latch(neighbor, opDelete)
		nview = viewOf(neighbor, t.keySize)

	case index == size-1:
		neighborIndex, nodeLeftOfNeighbor = index-1, false
		neighbor, err = t.bpm.FetchPage(piv.ValueAt(neighborIndex))
		if err != nil {
			unlatch(node, opDelete)
			t.bpm.UnpinPage(node.ID, true)
			unlatch(parent, opDelete)
			t.bpm.UnpinPage(parent.ID, false)
			return err
		}
		latch(neighbor, opDelete)
		nview = viewOf(neighbor, t.keySize)

	default:
		// Neither the first nor the last child: try the right neighbor
		// first for redistribution capacity, then the left, and default
		// to coalescing with the right if neither has room to spare.
		rightIdx := index + 1
		rightPg, rerr := t.bpm.FetchPage(piv.ValueAt(rightIdx))
		if rerr != nil {
			unlatch(node, opDelete)
			t.bpm.UnpinPage(node.ID, true)
			unlatch(parent, opDelete)
			t.bpm.UnpinPage(parent.ID, false)
			return rerr
		}
		latch(rightPg, opDelete)
		rview := viewOf(rightPg, t.keySize)

		leftIdx := index - 1
		leftPg, lerr := t.bpm.FetchPage(piv.ValueAt(leftIdx))
		if lerr != nil {
			unlatch(rightPg, opDelete)
			t.bpm.UnpinPage(rightPg.ID, false)
			unlatch(node, opDelete)
			t.bpm.UnpinPage(node.ID, true)
			unlatch(parent, opDelete)
			t.bpm.UnpinPage(parent.ID, false)
			return lerr
		}
		latch(leftPg, opDelete)
		lview := viewOf(leftPg, t.keySize)

		switch {
		case rview.GetSize()+view.GetSize() > threshold:
			neighbor, nview, neighborIndex, nodeLeftOfNeighbor = rightPg, rview, rightIdx, true
			unlatch(leftPg, opDelete)
			t.bpm.UnpinPage(leftPg.ID, false)
		case lview.GetSize()+view.GetSize() > threshold:
			neighbor, nview, neighborIndex, nodeLeftOfNeighbor = leftPg, lview, leftIdx, false
			unlatch(rightPg, opDelete)
			t.bpm.UnpinPage(rightPg.ID, false)
		default:
			neighbor, nview, neighborIndex, nodeLeftOfNeighbor = rightPg, rview, rightIdx, true
			unlatch(leftPg, opDelete)
			t.bpm.UnpinPage(leftPg.ID, false)
		}
	}

	if nview.GetSize()+view.GetSize() <= threshold {
		var left, right *page.Page
		var mergeIndex int
		if nodeLeftOfNeighbor {
			left, right, mergeIndex = node, neighbor, neighborIndex
		} else {
			left, right, mergeIndex = neighbor, node, index
		}
		return t.coalesce(left, right, parent, piv, mergeIndex, txn)
	}

	fromLeft := !nodeLeftOfNeighbor
	t.redistribute(neighbor, node, piv, index, neighborIndex, fromLeft)

	unlatch(node, opDelete)
	t.bpm.UnpinPage(node.ID, true)
	unlatch(neighbor, opDelete)
	t.bpm.UnpinPage(neighbor.ID, true)
	unlatch(parent, opDelete)
	t.bpm.UnpinPage(parent.ID, true)
	t.releaseAncestors(txn, opDelete)
	return nil
}

// coalesce merges right's entries into left, drops right, and removes the
// parent's separator at rightIndex, then re-checks the parent's own
// occupancy.
func (t *BPlusTree) coalesce(left, right, parent *page.Page, piv InternalView, rightIndex int, txn *Transaction) error {
	if readKind(left.Data) == kindLeaf {
		AsLeaf(right, t.keySize).MoveAllTo(AsLeaf(left, t.keySize))
	} else {
		middleKey := append([]byte(nil), piv.KeyAt(rightIndex)...)
		AsInternal(right, t.keySize).MoveAllTo(AsInternal(left, t.keySize), middleKey, t.bpm)
	}

	unlatch(left, opDelete)
	unlatch(right, opDelete)
	t.bpm.UnpinPage(left.ID, true)
	t.bpm.UnpinPage(right.ID, false)
	_, _ = t.bpm.DeletePage(right.ID)

	piv.Remove(rightIndex)

	return t.coalesceOrRedistribute(parent, txn)
}

// redistribute borrows a single entry across node's parent-adjacent
// neighbor to bring node back up to its minimum occupancy, and fixes the
// parent separator key that the borrow shifts.
func (t *BPlusTree) redistribute(neighbor, node *page.Page, piv InternalView, nodeIndex, neighborIndex int, fromLeft bool) {
	if readKind(node.Data) == kindLeaf {
		nv := AsLeaf(node, t.keySize)
		nb := AsLeaf(neighbor, t.keySize)
		if fromLeft {
			nb.MoveLastToFrontOf(nv)
			piv.SetKeyAt(nodeIndex, nv.KeyAt(0))
		} else {
			nb.MoveFirstToEndOf(nv)
			piv.SetKeyAt(neighborIndex, nb.KeyAt(0))
		}
		return
	}

	ni := AsInternal(node, t.keySize)
	nbi := AsInternal(neighbor, t.keySize)
	if fromLeft {
		middleKey := append([]byte(nil), piv.KeyAt(nodeIndex)...)
		newSep := nbi.MoveLastToFrontOf(ni, middleKey, t.bpm)
		piv.SetKeyAt(nodeIndex, newSep)
	} else {
		middleKey := append([]byte(nil), piv.KeyAt(neighborIndex)...)
		newSep := nbi.MoveFirstToEndOf(ni, middleKey, t.bpm)
		piv.SetKeyAt(neighborIndex, newSep)
	}
}

// adjustRoot handles the two ways a root can degenerate after a deletion:
// an internal root left with a single child collapses into that child, and
// a leaf root left with zero entries empties the tree.
func (t *BPlusTree) adjustRoot(root *page.Page, view nodeView, txn *Transaction) error {
	if !view.IsLeafPage() && view.GetSize() == 1 {
		iv := AsInternal(root, t.keySize)
		onlyChild := iv.RemoveAndReturnOnlyChild()

		if child, err := t.bpm.FetchPage(onlyChild); err == nil {
			header{child.Data}.setParentPageID(page.InvalidID)
			t.bpm.UnpinPage(onlyChild, true)
		}

		// root is on the ancestor chain, so rootMu is still held on txn's
		// behalf; hand it off with a plain unlock rather than locking again.
		t.setRootLocked(onlyChild)
		if txn.rootLocked {
			t.rootMu.Unlock()
			txn.rootLocked = false
		}

		unlatch(root, opDelete)
		t.bpm.UnpinPage(root.ID, false)
		_, _ = t.bpm.DeletePage(root.ID)
		t.releaseAncestors(txn, opDelete)
		return nil
	}

	if view.IsLeafPage() && view.GetSize() == 0 {
		t.setRootLocked(page.InvalidID)
		if txn.rootLocked {
			t.rootMu.Unlock()
			txn.rootLocked = false
		}

		unlatch(root, opDelete)
		t.bpm.UnpinPage(root.ID, false)
		_, _ = t.bpm.DeletePage(root.ID)
		t.releaseAncestors(txn, opDelete)
		return nil
	}

	unlatch(root, opDelete)
	t.bpm.UnpinPage(root.ID, true)
	t.releaseAncestors(txn, opDelete)
	return nil
}

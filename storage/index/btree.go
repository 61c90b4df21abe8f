package index

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"coreidx/storage/page"
)

// ErrEmptyTree is returned by lookups and range scans against a tree that
// has never had a key inserted.
var ErrEmptyTree = errors.New("index: tree is empty")

// ErrDuplicateKey is returned by Insert when the key is already present;
// duplicate keys are rejected rather than overwriting the stored value.
var ErrDuplicateKey = errors.New("index: duplicate key")

// BufferPool is the subset of BufferPoolManager the tree drives directly.
type BufferPool interface {
	PageFetcher
	NewPage() (*page.Page, error)
	DeletePage(pageID int64) (bool, error)
}

// RootDirectory persists the mapping from an index's name to its current
// root page id, so a tree survives a process restart. disk.Manager and
// rootcache.Cache both satisfy it.
type RootDirectory interface {
	Lookup(name string) (int64, error)
	InsertRecord(name string, rootID int64) error
	UpdateRecord(name string, rootID int64) error
}

// BPlusTree is a concurrent, disk-backed B+ tree index over fixed-width
// keys: point lookup, insert, delete, and ordered range iteration, all
// synchronized with latch crabbing rather than a single coarse lock.
type BPlusTree struct {
	name    string
	bpm     BufferPool
	dir     RootDirectory
	cmp     Comparator
	keySize int

	leafMaxSize     int
	internalMaxSize int

	rootMu     sync.RWMutex
	rootPageID int64
}

// Open loads (or lazily creates) the named tree. leafMaxSize and
// internalMaxSize bound the number of entries a leaf or internal page may
// hold; the caller picks them so that a page's byte layout fits within
// page.Size for the given keySize, and so an internal page has room for one
// entry beyond internalMaxSize (see DESIGN.md's coalesce/redistribute note).
func Open(name string, bpm BufferPool, dir RootDirectory, cmp Comparator, keySize, leafMaxSize, internalMaxSize int) (*BPlusTree, error) {
	rootID, err := dir.Lookup(name)
	if err != nil {
		rootID = page.InvalidID
	}
	return &BPlusTree{
		name:            name,
		bpm:             bpm,
		dir:             dir,
		cmp:             cmp,
		keySize:         keySize,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		rootPageID:      rootID,
	}, nil
}

// IsEmpty reports whether the tree holds no keys.
func (t *BPlusTree) IsEmpty() bool {
	t.rootMu.RLock()
	defer t.rootMu.RUnlock()
	return t.rootPageID == page.InvalidID
}

func (t *BPlusTree) getRoot() int64 {
	t.rootMu.RLock()
	defer t.rootMu.RUnlock()
	return t.rootPageID
}

// setRootLocked updates the in-memory root pointer and persists it, called
// only while the caller holds rootMu for writing (from startNewTree,
// insertIntoParent's new-root path, or adjustRoot's collapse path).
func (t *BPlusTree) setRootLocked(id int64) {
	t.rootPageID = id
	if err := t.dir.UpdateRecord(t.name, id); err != nil {
		_ = t.dir.InsertRecord(t.name, id)
	}
}

// GetValue looks up key, latch-crabbing down as a pure reader.
func (t *BPlusTree) GetValue(key []byte) (RID, bool, error) {
	leaf, err := t.FindLeafPage(key, opRead, nil)
	if err != nil {
		if errors.Is(err, ErrEmptyTree) {
			return RID{}, false, nil
		}
		return RID{}, false, err
	}
	lv := AsLeaf(leaf, t.keySize)
	rid, ok := lv.Lookup(key, t.cmp)
	leaf.RUnlock()
	t.bpm.UnpinPage(leaf.ID, false)
	return rid, ok, nil
}

// ToString renders the tree depth-first for debugging, one line per node.
func (t *BPlusTree) ToString() (string, error) {
	root := t.getRoot()
	if root == page.InvalidID {
		return "<empty tree>", nil
	}
	var sb strings.Builder
	if err := t.dumpNode(&sb, root, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (t *BPlusTree) dumpNode(sb *strings.Builder, id int64, depth int) error {
	pg, err := t.bpm.FetchPage(id)
	if err != nil {
		return err
	}
	defer t.bpm.UnpinPage(id, false)

	indent := strings.Repeat("  ", depth)
	if readKind(pg.Data) == kindLeaf {
		lv := AsLeaf(pg, t.keySize)
		fmt.Fprintf(sb, "%sleaf(page=%d, size=%d, next=%d) keys=%v\n",
			indent, id, lv.GetSize(), lv.GetNextPageID(), leafKeys(lv))
		return nil
	}
	iv := AsInternal(pg, t.keySize)
	fmt.Fprintf(sb, "%sinternal(page=%d, size=%d)\n", indent, id, iv.GetSize())
	for i := 0; i < iv.GetSize(); i++ {
		if err := t.dumpNode(sb, iv.ValueAt(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func leafKeys(lv LeafView) [][]byte {
	out := make([][]byte, lv.GetSize())
	for i := range out {
		out[i] = append([]byte(nil), lv.KeyAt(i)...)
	}
	return out
}

// ToGraphviz renders the tree as a Graphviz "dot" digraph, matching the
// visualization BusTub-style B+ tree implementations ship for debugging.
func (t *BPlusTree) ToGraphviz() (string, error) {
	root := t.getRoot()
	var sb strings.Builder
	sb.WriteString("digraph G {\nnode [shape=record];\n")
	if root != page.InvalidID {
		if err := t.graphvizNode(&sb, root); err != nil {
			return "", err
		}
	}
	sb.WriteString("}\n")
	return sb.String(), nil
}

func (t *BPlusTree) graphvizNode(sb *strings.Builder, id int64) error {
	pg, err := t.bpm.FetchPage(id)
	if err != nil {
		return err
	}
	defer t.bpm.UnpinPage(id, false)

	if readKind(pg.Data) == kindLeaf {
		lv := AsLeaf(pg, t.keySize)
		fmt.Fprintf(sb, "  n%d [label=\"leaf %d | size=%d\"];\n", id, id, lv.GetSize())
		return nil
	}
	iv := AsInternal(pg, t.keySize)
	fmt.Fprintf(sb, "  n%d [label=\"internal %d | size=%d\"];\n", id, id, iv.GetSize())
	for i := 0; i < iv.GetSize(); i++ {
		child := iv.ValueAt(i)
		fmt.Fprintf(sb, "  n%d -> n%d;\n", id, child)
		if err := t.graphvizNode(sb, child); err != nil {
			return err
		}
	}
	return nil
}

// Package index implements the on-disk B+ tree: node page layouts
// (leaf.go, internal.go), the tree operations and latch-crabbing
// (btree.go, insert.go, delete.go), and the range iterator (iterator.go).
package index

import (
	"encoding/binary"
	"errors"

	"coreidx/storage/page"
)

// pageKind discriminates a raw page's contents: a page's bytes are
// interpreted as one of two node layouts based on this header field,
// never via struct embedding or inheritance.
type pageKind uint32

const (
	kindInvalid pageKind = iota
	kindInternal
	kindLeaf
)

// Shared header layout, little-endian, common to both node kinds:
//
//	offset 0:  uint32 pageType   (kindInternal | kindLeaf)
//	offset 4:  uint32 lsn        (always 0; no WAL in this subsystem)
//	offset 8:  int32  size       (number of live entries)
//	offset 12: int32  maxSize    (declared capacity)
//	offset 16: int64  parentPageID
//	offset 24: int64  selfPageID
//
// Leaf pages add one more field immediately after (see leaf.go):
//
//	offset 32: int64  nextPageID
const (
	offPageType = 0
	offLSN      = 4
	offSize     = 8
	offMaxSize  = 12
	offParent   = 16
	offSelf     = 24

	commonHeaderSize = 32
)

// ErrCorruption reports a violated on-disk invariant found while decoding
// a node page. A debug-build-style panic-worthy condition, surfaced as an
// error here so callers can decide.
var ErrCorruption = errors.New("index: corrupt node page")

func readKind(data []byte) pageKind {
	return pageKind(binary.LittleEndian.Uint32(data[offPageType:]))
}

func writeKind(data []byte, k pageKind) {
	binary.LittleEndian.PutUint32(data[offPageType:], uint32(k))
}

type header struct{ data []byte }

func (h header) size() int          { return int(int32(binary.LittleEndian.Uint32(h.data[offSize:]))) }
func (h header) setSize(n int)      { binary.LittleEndian.PutUint32(h.data[offSize:], uint32(int32(n))) }
func (h header) maxSize() int       { return int(int32(binary.LittleEndian.Uint32(h.data[offMaxSize:]))) }
func (h header) setMaxSize(n int)   { binary.LittleEndian.PutUint32(h.data[offMaxSize:], uint32(int32(n))) }
func (h header) parentPageID() int64 {
	return int64(binary.LittleEndian.Uint64(h.data[offParent:]))
}
func (h header) setParentPageID(id int64) {
	binary.LittleEndian.PutUint64(h.data[offParent:], uint64(id))
}
func (h header) selfPageID() int64 { return int64(binary.LittleEndian.Uint64(h.data[offSelf:])) }
func (h header) setSelfPageID(id int64) {
	binary.LittleEndian.PutUint64(h.data[offSelf:], uint64(id))
}
func (h header) isRoot() bool { return h.parentPageID() == page.InvalidID }

// minSize implements the customary B+ tree occupancy thresholds:
// ceil(max/2) for leaves, ceil((max+1)/2) for internal nodes.
func minSizeLeaf(maxSize int) int     { return (maxSize + 1) / 2 }
func minSizeInternal(maxSize int) int { return (maxSize + 2) / 2 }

// nodeView is the subset of LeafView/InternalView that coalesce/redistribute
// logic needs without caring which kind of node it's holding.
type nodeView interface {
	GetSize() int
	GetMinSize() int
	GetMaxSize() int
	IsLeafPage() bool
	IsRootPage() bool
	ParentPageID() int64
	SelfPageID() int64
}

// viewOf wraps pg as whichever nodeView its stored page kind indicates.
func viewOf(pg *page.Page, keySize int) nodeView {
	if readKind(pg.Data) == kindLeaf {
		return AsLeaf(pg, keySize)
	}
	return AsInternal(pg, keySize)
}

// coalesceThreshold is the combined-size ceiling below which two siblings of
// view's kind are merged rather than redistributed. Internal nodes get one
// extra slot of headroom over their declared maxSize to account for the
// child pointer that survives a merge without a matching key.
func coalesceThreshold(view nodeView) int {
	if view.IsLeafPage() {
		return view.GetMaxSize()
	}
	return view.GetMaxSize() + 1
}

// Build a small on-disk index and print its structure.
// Usage: go run ./cmd/coreidx-demo <path-to-.db> <count>
// Example: go run ./cmd/coreidx-demo /tmp/demo.db 200
package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"strconv"

	"coreidx/storage/buffer"
	"coreidx/storage/disk"
	"coreidx/storage/index"
)

const keySize = 8

func encodeKey(n uint64) []byte {
	b := make([]byte, keySize)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func main() {
	if len(os.Args) < 3 {
		log.Fatalf("Usage: %s <index.db> <count>\nExample: %s /tmp/demo.db 200", os.Args[0], os.Args[0])
	}
	path := os.Args[1]
	count, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.Fatalf("bad count %q: %v", os.Args[2], err)
	}

	dm, err := disk.Open(path)
	if err != nil {
		log.Fatalf("opening %s: %v", path, err)
	}
	defer dm.Close()

	bpm := buffer.NewBufferPoolManager(64, dm, buffer.WithVerboseLogging(true))
	tree, err := index.Open("demo", bpm, dm, index.ByteKeyComparator, keySize, 32, 32)
	if err != nil {
		log.Fatalf("opening index: %v", err)
	}

	for n := 0; n < count; n++ {
		key := encodeKey(uint64(n))
		if err := tree.Insert(key, index.RID{PageID: int64(n), SlotNum: 0}); err != nil {
			log.Fatalf("inserting %d: %v", n, err)
		}
	}

	dump, err := tree.ToString()
	if err != nil {
		log.Fatalf("dumping tree: %v", err)
	}
	fmt.Println(dump)

	stats := bpm.GetStats()
	fmt.Printf("buffer pool: capacity=%d total=%d pinned=%d dirty=%d\n",
		stats.Capacity, stats.TotalPages, stats.PinnedPages, stats.DirtyPages)
}

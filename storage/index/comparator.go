package index

// Comparator totally orders two fixed-width keys, returning -1, 0, or +1.
// It is an external collaborator; ByteKeyComparator below is the concrete
// default used by tests and the demo command.
type Comparator func(a, b []byte) int

// ByteKeyComparator lexicographically compares two equal-length byte
// slices, the default byte-ordered comparator for fixed-width keys.
func ByteKeyComparator(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

package index

import "encoding/binary"

// RID identifies a tuple's location: the heap page holding it and its slot
// within that page. It is an external collaborator owned by the
// tuple/heap layer; this is the minimal concrete shape a leaf value needs
// (page id, slot number), widened to an int64 page id to match this
// module's page-id width (see DESIGN.md).
type RID struct {
	PageID  int64
	SlotNum uint32
}

const ridSize = 8 + 4

func (r RID) encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(r.PageID))
	binary.LittleEndian.PutUint32(buf[8:12], r.SlotNum)
}

func decodeRID(buf []byte) RID {
	return RID{
		PageID:  int64(binary.LittleEndian.Uint64(buf[0:8])),
		SlotNum: binary.LittleEndian.Uint32(buf[8:12]),
	}
}

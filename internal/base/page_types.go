package base

import "encoding/binary"

const (
	PageSize = 4096

	LeafPageFlag    uint16 = 0x01
	BranchPageFlag  uint16 = 0x02
	MetaPageFlag    uint16 = 0x08
	// SectionPageFlag marks an opaque header page that groups the page
	// images following it
	SectionPageFlag uint16 = 0x10

	PageHeaderSize = 40 // PageID(8) + Flags(2) + Span(2) + NumKeys(4) + Next(8) + BodySize(4) + Reserved(4) + Checksum(8)

	checksumOffset = 32
)

type PageID uint64

// PageHeader represents the fixed-size header at the start of each page image
// Layout: [PageID: 8][Flags: 2][Span: 2][NumKeys: 4][Next: 8][BodySize: 4][Reserved: 4][Checksum: 8]
type PageHeader struct {
	PageID   PageID // 8 bytes
	Flags    uint16 // 2 bytes: leaf/branch/meta
	Span     uint16 // 2 bytes: number of contiguous PageSize units in this image
	NumKeys  uint32 // 4 bytes
	Next     PageID // 8 bytes: right sibling for leaves, 0 otherwise
	BodySize uint32 // 4 bytes: bytes of body following the header
	Reserved uint32 // 4 bytes: unused
	Checksum uint64 // 8 bytes: xxhash64 of the image with this field zeroed
}

func (h *PageHeader) encode(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], uint64(h.PageID))
	binary.LittleEndian.PutUint16(b[8:10], h.Flags)
	binary.LittleEndian.PutUint16(b[10:12], h.Span)
	binary.LittleEndian.PutUint32(b[12:16], h.NumKeys)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.Next))
	binary.LittleEndian.PutUint32(b[24:28], h.BodySize)
	binary.LittleEndian.PutUint32(b[28:32], h.Reserved)
	binary.LittleEndian.PutUint64(b[32:40], h.Checksum)
}

func decodeHeader(b []byte) PageHeader {
	return PageHeader{
		PageID:   PageID(binary.LittleEndian.Uint64(b[0:8])),
		Flags:    binary.LittleEndian.Uint16(b[8:10]),
		Span:     binary.LittleEndian.Uint16(b[10:12]),
		NumKeys:  binary.LittleEndian.Uint32(b[12:16]),
		Next:     PageID(binary.LittleEndian.Uint64(b[16:24])),
		BodySize: binary.LittleEndian.Uint32(b[24:28]),
		Reserved: binary.LittleEndian.Uint32(b[28:32]),
		Checksum: binary.LittleEndian.Uint64(b[32:40]),
	}
}

// SpanFor returns the number of pages needed to hold a body of bodySize bytes
func SpanFor(bodySize int) int {
	return (PageHeaderSize + bodySize + PageSize - 1) / PageSize
}

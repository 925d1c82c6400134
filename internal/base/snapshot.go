package base

import "encoding/binary"

const (
	// MagicNumber for page stream identification ("cldb" in hex)
	MagicNumber uint32 = 0x636c6462

	FormatVersion uint16 = 1

	metaBodySize = 40
)

// MetaPage describes one tree in a page stream and precedes its node pages
// Layout: [Magic: 4][Version: 2][Reserved: 2][Order: 4][Reserved: 4][Root: 8][Count: 8][NumNodes: 8]
type MetaPage struct {
	Magic    uint32
	Version  uint16
	Order    uint32
	Root     PageID
	Count    uint64 // entries in the tree
	NumNodes uint64 // node pages that follow
}

// Serialize encodes the meta page into a sealed page image
func (m *MetaPage) Serialize() (*Page, error) {
	page, err := NewPage(metaBodySize)
	if err != nil {
		return nil, err
	}
	page.WriteHeader(&PageHeader{Flags: MetaPageFlag, BodySize: metaBodySize})

	b := page.Data[PageHeaderSize : PageHeaderSize+metaBodySize]
	binary.LittleEndian.PutUint32(b[0:4], m.Magic)
	binary.LittleEndian.PutUint16(b[4:6], m.Version)
	binary.LittleEndian.PutUint32(b[8:12], m.Order)
	binary.LittleEndian.PutUint64(b[16:24], uint64(m.Root))
	binary.LittleEndian.PutUint64(b[24:32], m.Count)
	binary.LittleEndian.PutUint64(b[32:40], m.NumNodes)

	page.Seal()
	return page, nil
}

// Deserialize decodes and validates a meta page image
func (m *MetaPage) Deserialize(p *Page) error {
	if err := p.Verify(); err != nil {
		return err
	}
	if p.Header().Flags != MetaPageFlag {
		return ErrInvalidPageType
	}
	b, err := p.Body()
	if err != nil {
		return err
	}
	if len(b) < metaBodySize {
		return ErrInvalidOffset
	}

	m.Magic = binary.LittleEndian.Uint32(b[0:4])
	m.Version = binary.LittleEndian.Uint16(b[4:6])
	m.Order = binary.LittleEndian.Uint32(b[8:12])
	m.Root = PageID(binary.LittleEndian.Uint64(b[16:24]))
	m.Count = binary.LittleEndian.Uint64(b[24:32])
	m.NumNodes = binary.LittleEndian.Uint64(b[32:40])
	return m.Validate()
}

// Validate checks if the metadata is valid
func (m *MetaPage) Validate() error {
	if m.Magic != MagicNumber {
		return ErrInvalidMagicNumber
	}
	if m.Version != FormatVersion {
		return ErrInvalidVersion
	}
	return nil
}

// NewSectionPage wraps body in a sealed section page image
func NewSectionPage(body []byte) (*Page, error) {
	page, err := NewPage(len(body))
	if err != nil {
		return nil, err
	}
	page.WriteHeader(&PageHeader{Flags: SectionPageFlag, BodySize: uint32(len(body))})
	copy(page.Data[PageHeaderSize:], body)
	page.Seal()
	return page, nil
}

// SectionBody returns the body of a verified section page
func SectionBody(p *Page) ([]byte, error) {
	if err := p.Verify(); err != nil {
		return nil, err
	}
	if p.Header().Flags != SectionPageFlag {
		return nil, ErrInvalidPageType
	}
	return p.Body()
}

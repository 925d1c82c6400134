package base

import (
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Page is the serialized image of one node: one or more contiguous PageSize
// units. Nodes are bounded by key count rather than bytes, so a node holding
// large rows spans several units instead of overflowing.
//
// PAGE IMAGE LAYOUT:
// ┌─────────────────────────────────────────────────────────────────────┐
// │ Header (40 bytes)                                                   │
// │ PageID, Flags, Span, NumKeys, Next, BodySize, Reserved, Checksum    │
// ├─────────────────────────────────────────────────────────────────────┤
// │ Body (BodySize bytes)                                               │
// │   leaf:   { KeySize(4) ValueSize(4) Key Value } * NumKeys           │
// │   branch: Child[0](8) { KeySize(4) Key Child[i+1](8) } * NumKeys    │
// │   meta:   see MetaPage                                              │
// ├─────────────────────────────────────────────────────────────────────┤
// │ Zero padding up to Span * PageSize                                  │
// └─────────────────────────────────────────────────────────────────────┘
type Page struct {
	Data []byte
}

// NewPage allocates a zeroed page image able to hold bodySize bytes of body
func NewPage(bodySize int) (*Page, error) {
	span := SpanFor(bodySize)
	if span > math.MaxUint16 {
		return nil, fmt.Errorf("%w: body of %d bytes", ErrInvalidPageSize, bodySize)
	}
	return &Page{Data: make([]byte, span*PageSize)}, nil
}

// Header decodes the page header
func (p *Page) Header() PageHeader {
	return decodeHeader(p.Data[:PageHeaderSize])
}

// WriteHeader writes the page header; Span is derived from the image length
func (p *Page) WriteHeader(h *PageHeader) {
	h.Span = uint16(len(p.Data) / PageSize)
	h.encode(p.Data[:PageHeaderSize])
}

// Body returns the body bytes described by the header
func (p *Page) Body() ([]byte, error) {
	h := p.Header()
	end := PageHeaderSize + int(h.BodySize)
	if end > len(p.Data) {
		return nil, ErrInvalidOffset
	}
	return p.Data[PageHeaderSize:end], nil
}

// Seal computes and stores the checksum. It must be the last write.
func (p *Page) Seal() {
	h := p.Header()
	h.Checksum = p.checksum()
	h.encode(p.Data[:PageHeaderSize])
}

// Verify checks the image size and checksum
func (p *Page) Verify() error {
	if len(p.Data) == 0 || len(p.Data)%PageSize != 0 {
		return ErrInvalidPageSize
	}
	h := p.Header()
	if int(h.Span)*PageSize != len(p.Data) {
		return ErrInvalidPageSize
	}
	if h.Checksum != p.checksum() {
		return ErrInvalidChecksum
	}
	return nil
}

func (p *Page) checksum() uint64 {
	d := xxhash.New()
	_, _ = d.Write(p.Data[:checksumOffset])
	_, _ = d.Write(p.Data[checksumOffset+8:])
	return d.Sum64()
}

// WriteTo writes the raw image to w
func (p *Page) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Data)
	return int64(n), err
}

// ReadPage reads one page image, including any continuation units, and
// verifies its checksum
func ReadPage(r io.Reader) (*Page, error) {
	first := make([]byte, PageSize)
	if _, err := io.ReadFull(r, first); err != nil {
		return nil, err
	}

	h := decodeHeader(first)
	if h.Span == 0 {
		return nil, ErrInvalidPageSize
	}

	p := &Page{Data: first}
	if h.Span > 1 {
		p.Data = make([]byte, int(h.Span)*PageSize)
		copy(p.Data, first)
		if _, err := io.ReadFull(r, p.Data[PageSize:]); err != nil {
			return nil, fmt.Errorf("page %d continuation: %w", h.PageID, err)
		}
	}

	if err := p.Verify(); err != nil {
		return nil, fmt.Errorf("page %d: %w", h.PageID, err)
	}
	return p, nil
}

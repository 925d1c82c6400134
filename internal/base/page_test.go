package base

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	page, err := NewPage(0)
	require.NoError(t, err)

	writeHdr := PageHeader{
		PageID:   42,
		Flags:    LeafPageFlag,
		NumKeys:  10,
		Next:     77,
		BodySize: 0,
	}
	page.WriteHeader(&writeHdr)

	readHdr := page.Header()
	assert.Equal(t, writeHdr.PageID, readHdr.PageID, "PageID")
	assert.Equal(t, writeHdr.Flags, readHdr.Flags, "Flags")
	assert.Equal(t, writeHdr.NumKeys, readHdr.NumKeys, "NumKeys")
	assert.Equal(t, writeHdr.Next, readHdr.Next, "Next")
	assert.Equal(t, uint16(1), readHdr.Span, "Span")
}

func TestPageHeaderByteLayout(t *testing.T) {
	t.Parallel()

	page, err := NewPage(0)
	require.NoError(t, err)

	page.WriteHeader(&PageHeader{
		PageID:  0x0123456789ABCDEF,
		Flags:   0x1234,
		NumKeys: 0x0A0B0C0D,
	})

	expected := []byte{
		// PageID (8 bytes, little-endian)
		0xEF, 0xCD, 0xAB, 0x89, 0x67, 0x45, 0x23, 0x01,
		// Flags (2 bytes)
		0x34, 0x12,
		// Span (2 bytes)
		0x01, 0x00,
		// NumKeys (4 bytes)
		0x0D, 0x0C, 0x0B, 0x0A,
	}
	assert.Equal(t, expected, page.Data[:16])
}

func TestSpanFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, SpanFor(0))
	assert.Equal(t, 1, SpanFor(PageSize-PageHeaderSize))
	assert.Equal(t, 2, SpanFor(PageSize-PageHeaderSize+1))
	assert.Equal(t, 3, SpanFor(2*PageSize))
}

func TestPageStreamRoundTrip(t *testing.T) {
	t.Parallel()

	small := &Node{PageID: 1, Leaf: true, Keys: [][]byte{[]byte("a")}, Values: [][]byte{[]byte("1")}}
	large := &Node{PageID: 2, Leaf: true, Keys: [][]byte{[]byte("b")}, Values: [][]byte{bytes.Repeat([]byte("x"), 3*PageSize)}}

	var buf bytes.Buffer
	for _, n := range []*Node{small, large} {
		page, err := n.Serialize()
		require.NoError(t, err)
		_, err = page.WriteTo(&buf)
		require.NoError(t, err)
	}
	assert.Zero(t, buf.Len()%PageSize, "stream must stay page aligned")

	for _, want := range []*Node{small, large} {
		page, err := ReadPage(&buf)
		require.NoError(t, err)

		var got Node
		require.NoError(t, got.Deserialize(page))
		assert.Equal(t, want.PageID, got.PageID)
		assert.Equal(t, want.Values, got.Values)
	}
	assert.Zero(t, buf.Len())
}

func TestReadPageDetectsCorruption(t *testing.T) {
	t.Parallel()

	page, err := (&Node{PageID: 9, Leaf: true}).Serialize()
	require.NoError(t, err)
	page.Data[PageSize-1] = 0x01

	_, err = ReadPage(bytes.NewReader(page.Data))
	assert.ErrorIs(t, err, ErrInvalidChecksum)
}

func TestMetaPageRoundTrip(t *testing.T) {
	t.Parallel()

	meta := MetaPage{Magic: MagicNumber, Version: FormatVersion, Order: 4, Root: 12, Count: 99, NumNodes: 31}
	page, err := meta.Serialize()
	require.NoError(t, err)

	var got MetaPage
	require.NoError(t, got.Deserialize(page))
	assert.Equal(t, meta, got)

	bad := MetaPage{Magic: 1, Version: FormatVersion}
	page, err = bad.Serialize()
	require.NoError(t, err)
	assert.ErrorIs(t, got.Deserialize(page), ErrInvalidMagicNumber)

	leaf, err := NewLeaf(1).Serialize()
	require.NoError(t, err)
	assert.ErrorIs(t, got.Deserialize(leaf), ErrInvalidPageType)
}

func TestSectionPage(t *testing.T) {
	t.Parallel()

	body := []byte("section header")
	page, err := NewSectionPage(body)
	require.NoError(t, err)

	got, err := SectionBody(page)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	leaf, err := NewLeaf(1).Serialize()
	require.NoError(t, err)
	_, err = SectionBody(leaf)
	assert.ErrorIs(t, err, ErrInvalidPageType)
}

package base

import "errors"

// Page image decoding errors. A stream that fails any of these checks is
// rejected before a node is installed.
var (
	ErrInvalidOffset      = errors.New("page image: node body truncated")
	ErrInvalidMagicNumber = errors.New("page image: not a tree image")
	ErrInvalidVersion     = errors.New("page image: unsupported format version")
	ErrInvalidPageSize    = errors.New("page image: span does not match body")
	ErrInvalidChecksum    = errors.New("page image: checksum mismatch")
	ErrInvalidPageType    = errors.New("page image: unexpected page kind")
)

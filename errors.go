package clusterdb

import (
	"errors"
	"fmt"

	"clusterdb/internal/base"
	"clusterdb/internal/bptree"
)

//goland:noinspection GoUnusedGlobalVariable
var (
	ErrNotFound                  = errors.New("not found")
	ErrPrimaryKeyViolation       = errors.New("primary key already exists")
	ErrUniqueConstraintViolation = errors.New("unique constraint violated")
	ErrIndexCorruption           = errors.New("secondary index references a missing row")

	ErrIndexExists   = errors.New("index already exists")
	ErrIndexNotFound = errors.New("index not found")

	ErrInvalidSchema = errors.New("invalid schema")
	ErrUnknownColumn = errors.New("unknown column")
	ErrTypeMismatch  = errors.New("value does not match column type")
	ErrNullValue     = errors.New("null value in non-nullable column")

	ErrCheckpointMismatch = errors.New("checkpoint does not match table")

	ErrInvalidOrder       = bptree.ErrInvalidOrder
	ErrOrderMismatch      = bptree.ErrOrderMismatch
	ErrInvariant          = bptree.ErrInvariant
	ErrInvalidOffset      = base.ErrInvalidOffset
	ErrInvalidMagicNumber = base.ErrInvalidMagicNumber
	ErrInvalidVersion     = base.ErrInvalidVersion
	ErrInvalidPageSize    = base.ErrInvalidPageSize
	ErrInvalidChecksum    = base.ErrInvalidChecksum
	ErrInvalidPageType    = base.ErrInvalidPageType
)

// CorruptionError reports a secondary index entry and the clustered index
// disagreeing about a row
type CorruptionError struct {
	Index      string
	PrimaryKey Key
	Detail     string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("index %s: primary key %v: %s", e.Index, []any(e.PrimaryKey), e.Detail)
}

func (e *CorruptionError) Unwrap() error {
	return ErrIndexCorruption
}

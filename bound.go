package clusterdb

import (
	"clusterdb/internal/bptree"
	"clusterdb/internal/keycodec"
)

// Bound is one end of a range over an index's columns. Key may name a
// prefix of the columns, in which case the bound covers every entry sharing
// that prefix. A nil Key leaves that end of the range open.
type Bound struct {
	Key       Key
	Inclusive bool
}

// Unbounded is the open end of a range
var Unbounded = Bound{}

// Inclusive returns a bound that includes values
func Inclusive(values ...any) Bound {
	return Bound{Key: Key(values), Inclusive: true}
}

// Exclusive returns a bound that excludes values
func Exclusive(values ...any) Bound {
	return Bound{Key: Key(values)}
}

// encodeRange translates a typed range over cols into a byte range over
// tree keys that start with the encoded column values. Extensions of a
// bound's encoding (longer tuples and appended primary keys) fall on the
// bound's side of it.
func (s *schema) encodeRange(cols []int, lo, hi Bound) (bptree.Bound, bptree.Bound, error) {
	var blo, bhi bptree.Bound

	if lo.Key != nil {
		enc, err := s.encodeKey(cols, lo.Key, true)
		if err != nil {
			return blo, bhi, err
		}
		if lo.Inclusive {
			blo = bptree.Inclusive(enc)
		} else {
			// Encodings never start with 0xFF, so the successor exists
			blo = bptree.Inclusive(keycodec.PrefixEnd(enc))
		}
	}

	if hi.Key != nil {
		enc, err := s.encodeKey(cols, hi.Key, true)
		if err != nil {
			return blo, bhi, err
		}
		if hi.Inclusive {
			bhi = bptree.Exclusive(keycodec.PrefixEnd(enc))
		} else {
			bhi = bptree.Exclusive(enc)
		}
	}

	return blo, bhi, nil
}

package clusterdb

import (
	"bytes"
	"fmt"
	"maps"

	"clusterdb/internal/keycodec"
)

// ColumnType is the type of values a column holds
type ColumnType int

const (
	TypeInt    ColumnType = iota + 1 // int64; every Go integer kind is accepted
	TypeFloat                        // float64; float32 is accepted
	TypeString                       // string
	TypeBytes                        // []byte
	TypeBool                         // bool
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	case TypeBool:
		return "bool"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Column describes one column of a table
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Schema lists a table's columns in storage order and names the columns that
// form its primary key. Primary key columns can never be null.
type Schema struct {
	Columns    []Column
	PrimaryKey []string
}

// Row maps column names to values. Missing nullable columns read as nil.
type Row map[string]any

// Clone returns a deep copy of the row
func (r Row) Clone() Row {
	out := maps.Clone(r)
	for k, v := range out {
		if b, ok := v.([]byte); ok {
			out[k] = bytes.Clone(b)
		}
	}
	return out
}

// Key is a tuple of column values, such as a primary key or the values of
// an indexed column list
type Key []any

// schema is the validated form of a Schema
type schema struct {
	columns []Column
	byName  map[string]int
	pk      []int // column positions of the primary key
}

func compileSchema(s Schema) (*schema, error) {
	if len(s.Columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrInvalidSchema)
	}
	if len(s.PrimaryKey) == 0 {
		return nil, fmt.Errorf("%w: no primary key", ErrInvalidSchema)
	}

	c := &schema{
		columns: append([]Column(nil), s.Columns...),
		byName:  make(map[string]int, len(s.Columns)),
	}
	for i, col := range s.Columns {
		if col.Name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrInvalidSchema, i)
		}
		if col.Type < TypeInt || col.Type > TypeBool {
			return nil, fmt.Errorf("%w: column %s has type %v", ErrInvalidSchema, col.Name, col.Type)
		}
		if _, dup := c.byName[col.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %s", ErrInvalidSchema, col.Name)
		}
		c.byName[col.Name] = i
	}

	pk, err := c.resolve(s.PrimaryKey)
	if err != nil {
		return nil, fmt.Errorf("%w: primary key: %w", ErrInvalidSchema, err)
	}
	for _, i := range pk {
		if c.columns[i].Nullable {
			return nil, fmt.Errorf("%w: primary key column %s is nullable", ErrInvalidSchema, c.columns[i].Name)
		}
	}
	c.pk = pk
	return c, nil
}

// resolve maps column names to positions, rejecting unknown and repeated
// names
func (s *schema) resolve(names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: empty column list", ErrUnknownColumn)
	}
	out := make([]int, len(names))
	seen := make(map[int]bool, len(names))
	for i, name := range names {
		pos, ok := s.byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
		if seen[pos] {
			return nil, fmt.Errorf("%w: column %s listed twice", ErrInvalidSchema, name)
		}
		seen[pos] = true
		out[i] = pos
	}
	return out, nil
}

// value normalizes v and checks it against column col
func (s *schema) value(col int, v any) (any, error) {
	c := s.columns[col]
	v, err := keycodec.Normalize(v)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w: %w", c.Name, ErrTypeMismatch, err)
	}
	if v == nil {
		if !c.Nullable {
			return nil, fmt.Errorf("%w: %s", ErrNullValue, c.Name)
		}
		return nil, nil
	}

	var ok bool
	switch c.Type {
	case TypeInt:
		_, ok = v.(int64)
	case TypeFloat:
		_, ok = v.(float64)
	case TypeString:
		_, ok = v.(string)
	case TypeBytes:
		_, ok = v.([]byte)
	case TypeBool:
		_, ok = v.(bool)
	}
	if !ok {
		return nil, fmt.Errorf("%w: column %s is %v, got %T", ErrTypeMismatch, c.Name, c.Type, v)
	}
	return v, nil
}

// record is a row prepared for storage
type record struct {
	row    Row    // normalized, one entry per column
	pk     []byte // encoded primary key
	encode []byte // encoded row, columns in schema order
}

// prepare validates and normalizes a caller's row and encodes it
func (s *schema) prepare(row Row) (*record, error) {
	for name := range row {
		if _, ok := s.byName[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
	}

	norm := make(Row, len(s.columns))
	values := make([]any, len(s.columns))
	for i, c := range s.columns {
		v, err := s.value(i, row[c.Name])
		if err != nil {
			return nil, err
		}
		if b, ok := v.([]byte); ok {
			v = bytes.Clone(b)
		}
		norm[c.Name] = v
		values[i] = v
	}

	enc, err := keycodec.Encode(values...)
	if err != nil {
		return nil, err
	}
	pk, err := s.encodeColumns(s.pk, norm)
	if err != nil {
		return nil, err
	}
	return &record{row: norm, pk: pk, encode: enc}, nil
}

// decodeRow turns a stored row back into a Row
func (s *schema) decodeRow(enc []byte) (Row, error) {
	values, err := keycodec.Decode(enc)
	if err != nil {
		return nil, err
	}
	if len(values) != len(s.columns) {
		return nil, fmt.Errorf("%w: stored row has %d values, schema has %d columns", keycodec.ErrMalformed, len(values), len(s.columns))
	}
	row := make(Row, len(s.columns))
	for i, c := range s.columns {
		row[c.Name] = values[i]
	}
	return row, nil
}

// encodeColumns encodes the values of the given columns of a normalized row
func (s *schema) encodeColumns(cols []int, row Row) ([]byte, error) {
	var out []byte
	for _, i := range cols {
		var err error
		out, err = keycodec.Append(out, row[s.columns[i].Name])
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// encodeKey checks a caller supplied tuple against cols and encodes it. A
// prefix of cols is accepted when partial is set.
func (s *schema) encodeKey(cols []int, key Key, partial bool) ([]byte, error) {
	if len(key) > len(cols) || (!partial && len(key) != len(cols)) {
		return nil, fmt.Errorf("%w: got %d values for %d columns", ErrTypeMismatch, len(key), len(cols))
	}
	var out []byte
	for i, v := range key {
		v, err := s.value(cols[i], v)
		if err != nil {
			return nil, err
		}
		out, err = keycodec.Append(out, v)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// decodeKey turns an encoded primary key back into a Key
func decodeKey(enc []byte) (Key, error) {
	values, err := keycodec.Decode(enc)
	if err != nil {
		return nil, err
	}
	return Key(values), nil
}

// primaryKey extracts the primary key of a normalized row
func (s *schema) primaryKey(row Row) Key {
	key := make(Key, len(s.pk))
	for i, col := range s.pk {
		key[i] = row[s.columns[col].Name]
	}
	return key
}

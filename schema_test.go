package clusterdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersSchema() Schema {
	return Schema{
		Columns: []Column{
			{Name: "id", Type: TypeInt},
			{Name: "email", Type: TypeString},
			{Name: "city", Type: TypeString, Nullable: true},
			{Name: "age", Type: TypeInt, Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}
}

func TestCompileSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		schema  Schema
		wantErr error
	}{
		{
			name:   "valid",
			schema: usersSchema(),
		},
		{
			name: "composite_primary_key",
			schema: Schema{
				Columns:    []Column{{Name: "a", Type: TypeString}, {Name: "b", Type: TypeInt}},
				PrimaryKey: []string{"a", "b"},
			},
		},
		{
			name:    "no_columns",
			schema:  Schema{PrimaryKey: []string{"id"}},
			wantErr: ErrInvalidSchema,
		},
		{
			name:    "no_primary_key",
			schema:  Schema{Columns: []Column{{Name: "id", Type: TypeInt}}},
			wantErr: ErrInvalidSchema,
		},
		{
			name: "unknown_primary_key_column",
			schema: Schema{
				Columns:    []Column{{Name: "id", Type: TypeInt}},
				PrimaryKey: []string{"nope"},
			},
			wantErr: ErrUnknownColumn,
		},
		{
			name: "nullable_primary_key",
			schema: Schema{
				Columns:    []Column{{Name: "id", Type: TypeInt, Nullable: true}},
				PrimaryKey: []string{"id"},
			},
			wantErr: ErrInvalidSchema,
		},
		{
			name: "duplicate_column",
			schema: Schema{
				Columns:    []Column{{Name: "id", Type: TypeInt}, {Name: "id", Type: TypeString}},
				PrimaryKey: []string{"id"},
			},
			wantErr: ErrInvalidSchema,
		},
		{
			name: "bad_type",
			schema: Schema{
				Columns:    []Column{{Name: "id", Type: ColumnType(42)}},
				PrimaryKey: []string{"id"},
			},
			wantErr: ErrInvalidSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileSchema(tt.schema)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	s, err := compileSchema(usersSchema())
	require.NoError(t, err)

	t.Run("normalizes_values", func(t *testing.T) {
		rec, err := s.prepare(Row{"id": 7, "email": "a@x", "age": uint8(30)})
		require.NoError(t, err)
		assert.Equal(t, Row{"id": int64(7), "email": "a@x", "city": nil, "age": int64(30)}, rec.row)

		row, err := s.decodeRow(rec.encode)
		require.NoError(t, err)
		assert.Equal(t, rec.row, row)

		pk, err := decodeKey(rec.pk)
		require.NoError(t, err)
		assert.Equal(t, Key{int64(7)}, pk)
	})

	tests := []struct {
		name    string
		row     Row
		wantErr error
	}{
		{name: "unknown_column", row: Row{"id": 1, "email": "a", "zip": 1}, wantErr: ErrUnknownColumn},
		{name: "missing_required", row: Row{"id": 1}, wantErr: ErrNullValue},
		{name: "null_required", row: Row{"id": 1, "email": nil}, wantErr: ErrNullValue},
		{name: "wrong_type", row: Row{"id": "one", "email": "a"}, wantErr: ErrTypeMismatch},
		{name: "unsupported_type", row: Row{"id": 1, "email": "a", "age": struct{}{}}, wantErr: ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.prepare(tt.row)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEncodeKey(t *testing.T) {
	t.Parallel()

	s, err := compileSchema(usersSchema())
	require.NoError(t, err)

	_, err = s.encodeKey(s.pk, Key{1, 2}, false)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = s.encodeKey(s.pk, Key{}, false)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = s.encodeKey(s.pk, Key{nil}, false)
	assert.ErrorIs(t, err, ErrNullValue)

	cols, err := s.resolve([]string{"city", "age"})
	require.NoError(t, err)
	prefix, err := s.encodeKey(cols, Key{"x"}, true)
	require.NoError(t, err)
	full, err := s.encodeKey(cols, Key{"x", 3}, false)
	require.NoError(t, err)
	assert.Equal(t, prefix, full[:len(prefix)])
}

func TestRowClone(t *testing.T) {
	t.Parallel()

	row := Row{"id": int64(1), "blob": []byte("abc")}
	c := row.Clone()
	c["blob"].([]byte)[0] = 'z'
	c["id"] = int64(2)

	assert.Equal(t, []byte("abc"), row["blob"])
	assert.Equal(t, int64(1), row["id"])
}

func TestColumnTypeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "int", TypeInt.String())
	assert.Equal(t, "bytes", TypeBytes.String())
	assert.Equal(t, "ColumnType(9)", ColumnType(9).String())
}

package bptree

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/btree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(i int) []byte {
	return []byte(fmt.Sprintf("key%05d", i))
}

func val(i int) []byte {
	return []byte(fmt.Sprintf("val%d", i))
}

// collect returns every key in the range
func collect(t *testing.T, tree *Tree, lo, hi Bound) [][]byte {
	t.Helper()
	var keys [][]byte
	tree.Ascend(lo, hi, func(k, _ []byte) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

func TestNew_InvalidOrder(t *testing.T) {
	t.Parallel()

	for _, order := range []int{-1, 0, 1, 2} {
		_, err := New(order)
		assert.ErrorIs(t, err, ErrInvalidOrder, "order %d", order)
	}

	tree, err := New(3)
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, 1, tree.Height())
	assert.NoError(t, tree.Check())
}

func TestInsertGetDelete(t *testing.T) {
	t.Parallel()

	tree, err := New(4)
	require.NoError(t, err)

	require.NoError(t, tree.Insert([]byte("k"), []byte("v")))
	got, err := tree.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.True(t, tree.Has([]byte("k")))

	assert.ErrorIs(t, tree.Insert([]byte("k"), []byte("other")), ErrKeyExists)
	got, err = tree.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got, "failed insert must not overwrite")

	old, err := tree.Delete([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), old)

	_, err = tree.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = tree.Delete([]byte("k"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, 0, tree.Len())
}

func TestInsert_CopiesCallerBuffers(t *testing.T) {
	t.Parallel()

	tree, err := New(4)
	require.NoError(t, err)

	k := []byte("key")
	v := []byte("value")
	require.NoError(t, tree.Insert(k, v))
	k[0], v[0] = 'x', 'x'

	got, err := tree.Get([]byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	got[0] = 'y'
	got, err = tree.Get([]byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

func TestPutAndUpdate(t *testing.T) {
	t.Parallel()

	tree, err := New(3)
	require.NoError(t, err)

	old, replaced := tree.Put([]byte("a"), []byte("1"))
	assert.False(t, replaced)
	assert.Nil(t, old)

	old, replaced = tree.Put([]byte("a"), []byte("2"))
	assert.True(t, replaced)
	assert.Equal(t, []byte("1"), old)
	assert.Equal(t, 1, tree.Len())

	assert.ErrorIs(t, tree.Update([]byte("b"), []byte("x")), ErrKeyNotFound)

	for i := 0; i < 30; i++ {
		require.NoError(t, tree.Insert(key(i), val(i)))
	}
	before := tree.Stats()
	require.NoError(t, tree.Update(key(7), []byte("updated")))
	assert.Equal(t, before, tree.Stats(), "update must not change shape")

	got, err := tree.Get(key(7))
	require.NoError(t, err)
	assert.Equal(t, []byte("updated"), got)
}

func TestSequentialInsert_Order4(t *testing.T) {
	t.Parallel()

	tree, err := New(4)
	require.NoError(t, err)

	for i := 1; i <= 20; i++ {
		require.NoError(t, tree.Insert(key(i), val(i)))
		require.NoError(t, tree.Check(), "after insert %d", i)
	}

	// Ascending inserts always split the rightmost leaf, leaving two keys
	// behind each time: 8 leaves of 2 plus a last leaf of 4, under 3
	// branches and a root.
	stats := tree.Stats()
	assert.Equal(t, Stats{Count: 20, Height: 3, Leaves: 9, Branches: 4}, stats)

	keys := collect(t, tree, Unbounded, Unbounded)
	require.Len(t, keys, 20)
	for i, k := range keys {
		assert.Equal(t, key(i+1), k)
	}
}

func TestDelete_ShrinksToEmptyRoot(t *testing.T) {
	t.Parallel()

	for _, order := range []int{3, 4, 5, 8} {
		t.Run(fmt.Sprintf("order_%d", order), func(t *testing.T) {
			t.Parallel()

			tree, err := New(order)
			require.NoError(t, err)
			for i := 0; i < 200; i++ {
				require.NoError(t, tree.Insert(key(i), val(i)))
			}
			require.Greater(t, tree.Height(), 2)

			// Delete from the middle outwards to exercise both borrow sides
			for i := 0; i < 100; i++ {
				for _, k := range []int{100 + i, 99 - i} {
					_, err := tree.Delete(key(k))
					require.NoError(t, err)
					require.NoError(t, tree.Check(), "after delete %d", k)
				}
			}

			assert.Equal(t, 0, tree.Len())
			assert.Equal(t, 1, tree.Height())
			assert.Equal(t, Stats{Height: 1, Leaves: 1}, tree.Stats())
		})
	}
}

type item struct {
	key, value []byte
}

func itemLess(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

func TestRandomOperations_MatchOracle(t *testing.T) {
	t.Parallel()

	for _, order := range []int{3, 4, 5, 7, 16} {
		t.Run(fmt.Sprintf("order_%d", order), func(t *testing.T) {
			t.Parallel()

			rng := rand.New(rand.NewSource(int64(order)))
			tree, err := New(order)
			require.NoError(t, err)
			oracle := btree.NewG(8, itemLess)

			for op := 0; op < 3000; op++ {
				k := key(rng.Intn(400))
				v := val(op)

				switch rng.Intn(4) {
				case 0, 1:
					err := tree.Insert(k, v)
					if _, ok := oracle.Get(item{key: k}); ok {
						require.ErrorIs(t, err, ErrKeyExists)
					} else {
						require.NoError(t, err)
						oracle.ReplaceOrInsert(item{key: k, value: v})
					}
				case 2:
					old, replaced := tree.Put(k, v)
					prev, ok := oracle.ReplaceOrInsert(item{key: k, value: v})
					require.Equal(t, ok, replaced)
					if ok {
						require.Equal(t, prev.value, old)
					}
				case 3:
					old, err := tree.Delete(k)
					prev, ok := oracle.Delete(item{key: k})
					if ok {
						require.NoError(t, err)
						require.Equal(t, prev.value, old)
					} else {
						require.ErrorIs(t, err, ErrKeyNotFound)
					}
				}

				require.NoError(t, tree.Check(), "op %d", op)
				require.Equal(t, oracle.Len(), tree.Len())
			}

			var want []item
			oracle.Ascend(func(it item) bool {
				want = append(want, it)
				return true
			})
			var got []item
			tree.Ascend(Unbounded, Unbounded, func(k, v []byte) bool {
				got = append(got, item{key: k, value: v})
				return true
			})
			assert.Equal(t, want, got)
		})
	}
}

func TestTree_Swap(t *testing.T) {
	t.Parallel()

	a, err := New(4)
	require.NoError(t, err)
	b, err := New(4)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, a.Insert(key(i), val(i)))
	}
	require.NoError(t, b.Insert(key(1000), val(1000)))
	epochA, epochB := a.Epoch(), b.Epoch()

	require.NoError(t, a.Swap(b))
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 50, b.Len())
	assert.True(t, a.Has(key(1000)))
	assert.True(t, b.Has(key(49)))
	assert.NotEqual(t, epochA, a.Epoch())
	assert.NotEqual(t, epochB, b.Epoch())
	require.NoError(t, a.Check())
	require.NoError(t, b.Check())

	c, err := New(5)
	require.NoError(t, err)
	assert.ErrorIs(t, a.Swap(c), ErrOrderMismatch)
	assert.NoError(t, a.Swap(a))
}

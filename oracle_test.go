package clusterdb

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/btree"
	"github.com/stretchr/testify/require"
)

type oracleRow struct {
	id  int64
	row Row
}

func oracleLess(a, b oracleRow) bool {
	return a.id < b.id
}

// emailOwner returns the id holding email, if any
func emailOwner(rows *btree.BTreeG[oracleRow], email string) (int64, bool) {
	var owner int64
	found := false
	rows.Ascend(func(r oracleRow) bool {
		if r.row["email"] == email {
			owner, found = r.id, true
			return false
		}
		return true
	})
	return owner, found
}

func TestTable_RandomOperationsMatchOracle(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	tbl := newUsers(t, WithRowCacheSize(8))
	oracle := btree.NewG(4, oracleLess)
	cities := []string{"a", "b", "c"}

	randomRow := func(id int) Row {
		return user(id, fmt.Sprintf("e%d", rng.Intn(60)), cities[rng.Intn(len(cities))], rng.Intn(5))
	}

	for op := 0; op < 1500; op++ {
		id := rng.Intn(50)
		switch rng.Intn(3) {
		case 0:
			row := randomRow(id)
			err := tbl.Insert(row)

			existing, exists := oracle.Get(oracleRow{id: int64(id)})
			owner, taken := emailOwner(oracle, row["email"].(string))
			switch {
			case exists && fmt.Sprint(existing.row) == fmt.Sprint(row):
				require.NoError(t, err)
			case exists:
				require.ErrorIs(t, err, ErrPrimaryKeyViolation)
			case taken:
				require.ErrorIs(t, err, ErrUniqueConstraintViolation, "email owned by %d", owner)
			default:
				require.NoError(t, err)
				oracle.ReplaceOrInsert(oracleRow{id: int64(id), row: row})
			}

		case 1:
			newID := id
			if rng.Intn(4) == 0 {
				newID = rng.Intn(50)
			}
			row := randomRow(newID)
			err := tbl.Update(Key{id}, row)

			_, exists := oracle.Get(oracleRow{id: int64(id)})
			_, targetExists := oracle.Get(oracleRow{id: int64(newID)})
			owner, taken := emailOwner(oracle, row["email"].(string))
			switch {
			case !exists:
				require.ErrorIs(t, err, ErrNotFound)
			case newID != id && targetExists:
				require.ErrorIs(t, err, ErrPrimaryKeyViolation)
			case taken && owner != int64(id):
				require.ErrorIs(t, err, ErrUniqueConstraintViolation)
			default:
				require.NoError(t, err)
				oracle.Delete(oracleRow{id: int64(id)})
				oracle.ReplaceOrInsert(oracleRow{id: int64(newID), row: row})
			}

		case 2:
			err := tbl.Delete(id)
			if _, ok := oracle.Delete(oracleRow{id: int64(id)}); ok {
				require.NoError(t, err)
			} else {
				require.True(t, errors.Is(err, ErrNotFound))
			}
		}

		require.NoError(t, tbl.Check(), "op %d", op)
		require.Equal(t, oracle.Len(), tbl.Len())
	}

	var want []Row
	oracle.Ascend(func(r oracleRow) bool {
		want = append(want, r.row)
		return true
	})
	got, err := tbl.RangeByPK(Unbounded, Unbounded)
	require.NoError(t, err)
	require.Equal(t, want, got)

	for _, r := range want {
		rows, err := tbl.PointQueryByColumn("email", r["email"])
		require.NoError(t, err)
		require.Equal(t, []Row{r}, rows)
	}
}

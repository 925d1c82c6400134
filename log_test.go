package clusterdb_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"clusterdb"
	"clusterdb/logger"
)

func TestTableLogging(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	tbl, err := clusterdb.NewTable("users", clusterdb.Schema{
		Columns: []clusterdb.Column{
			{Name: "id", Type: clusterdb.TypeInt},
			{Name: "email", Type: clusterdb.TypeString},
			{Name: "city", Type: clusterdb.TypeString},
		},
		PrimaryKey: []string{"id"},
	}, clusterdb.WithOrder(4), clusterdb.WithLogger(logger.NewZap(zap.New(core))))
	require.NoError(t, err)

	_, err = tbl.DeclareSecondaryIndex("city", []string{"city"}, false)
	require.NoError(t, err)
	_, err = tbl.DeclareSecondaryIndex("email", []string{"email"}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, logs.FilterMessage("declared secondary index").Len())

	for i := 1; i <= 3; i++ {
		require.NoError(t, tbl.Insert(clusterdb.Row{"id": i, "email": fmt.Sprintf("u%d", i), "city": "x"}))
	}

	// Rollback is a warning
	err = tbl.Insert(clusterdb.Row{"id": 4, "email": "u1", "city": "x"})
	require.ErrorIs(t, err, clusterdb.ErrUniqueConstraintViolation)
	rollbacks := logs.FilterMessage("rolling back write").All()
	require.Len(t, rollbacks, 1)
	assert.Equal(t, zapcore.WarnLevel, rollbacks[0].Level)
	assert.Equal(t, "insert", rollbacks[0].ContextMap()["op"])

	// Corruption is an error
	_, err = tbl.Primary().Remove(clusterdb.Key{2})
	require.NoError(t, err)
	_, err = tbl.PointQueryByColumn("email", "u2")
	require.ErrorIs(t, err, clusterdb.ErrIndexCorruption)
	corrupt := logs.FilterMessage("index corruption detected").All()
	require.Len(t, corrupt, 1)
	assert.Equal(t, zapcore.ErrorLevel, corrupt[0].Level)
	assert.Equal(t, "email", corrupt[0].ContextMap()["index"])

	assert.Zero(t, logs.FilterMessage("undo step failed").Len())
}

func TestTableLogging_Slog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tbl, err := clusterdb.NewTable("tags", clusterdb.Schema{
		Columns:    []clusterdb.Column{{Name: "name", Type: clusterdb.TypeString}},
		PrimaryKey: []string{"name"},
	}, clusterdb.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)

	_, err = tbl.DeclareSecondaryIndex("by_name", []string{"name"}, true)
	require.NoError(t, err)
	require.NoError(t, tbl.DropSecondaryIndex("by_name"))

	out := buf.String()
	assert.Contains(t, out, `msg="declared secondary index"`)
	assert.Contains(t, out, `msg="dropped secondary index"`)
	assert.Contains(t, out, "index=by_name")
}

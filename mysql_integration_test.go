package dbrecord_test

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zzguang83325/dbrecord"
)

const createMySQLTestTable = `CREATE TABLE dbrecord_test (
	id INT UNSIGNED NOT NULL AUTO_INCREMENT,
	name VARCHAR(255) NOT NULL DEFAULT '',
	field2 INT NULL,
	field3 VARCHAR(255) DEFAULT NULL,
	managed_field VARCHAR(255) DEFAULT NULL,
	unique_field VARCHAR(255) DEFAULT NULL,
	PRIMARY KEY (id),
	UNIQUE KEY unique_field (unique_field)
) ENGINE=InnoDB`

// setupMySQL runs against DBRECORD_TEST_MYSQL_DSN and skips when it is unset
func setupMySQL(t *testing.T, pooled bool) context.Context {
	t.Helper()
	dsn := os.Getenv("DBRECORD_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("DBRECORD_TEST_MYSQL_DSN not set")
	}
	ctx := context.Background()
	cfg := &dbrecord.Config{DSN: dsn, ConnectionLimit: 4, QueryTimeout: dbrecord.Duration(10 * time.Second)}

	dbrecord.MasterDbhDestroy()
	dbrecord.ClearSchemaCache()
	if pooled {
		require.NoError(t, dbrecord.SetupPool(ctx, cfg))
	} else {
		dbrecord.MasterConfig(cfg)
	}
	t.Cleanup(func() {
		_, _ = dbrecord.Exec(context.Background(), "DROP TABLE IF EXISTS dbrecord_test")
		dbrecord.MasterDbhDestroy()
		dbrecord.ClearSchemaCache()
	})

	_, err := dbrecord.Exec(ctx, "DROP TABLE IF EXISTS dbrecord_test")
	require.NoError(t, err)
	_, err = dbrecord.Exec(ctx, createMySQLTestTable)
	require.NoError(t, err)
	return ctx
}

func TestMySQL_Describe(t *testing.T) {
	ctx := setupMySQL(t, false)

	dbh, err := dbrecord.MasterDbh(ctx)
	require.NoError(t, err)
	cols, err := dbh.Describe(ctx, "dbrecord_test")
	require.NoError(t, err)
	require.Len(t, cols, 6)

	assert.Equal(t, "id", cols[0].Name)
	assert.True(t, cols[0].IsPK)
	assert.True(t, cols[0].IsAutoIncr)
	assert.Equal(t, "field2", cols[2].Name)
	assert.True(t, cols[2].Nullable)
	assert.False(t, cols[1].Nullable)
}

func TestMySQL_RecordLifecycle(t *testing.T) {
	ctx := setupMySQL(t, false)

	rec, err := dbrecord.NewRecord[TestRecord](ctx, dbrecord.Fields{"name": "mysql", "field2": 7, "unique_field": "u1"})
	require.NoError(t, err)
	assert.NotZero(t, rec.ID())

	found, err := dbrecord.Locate[TestRecord](ctx, dbrecord.Fields{"field2": 7})
	require.NoError(t, err)
	assert.Equal(t, rec.ID(), found.ID())
	require.NoError(t, found.SetName(ctx, "changed"))

	_, err = dbrecord.NewRecord[TestRecord](ctx, dbrecord.Fields{"name": "dup", "unique_field": "u1"})
	assert.True(t, dbrecord.IsDuplicateKey(err), "%v", err)

	require.NoError(t, found.Delete(ctx))
	_, err = dbrecord.Locate[TestRecord](ctx, dbrecord.Fields{"id": rec.ID()})
	assert.ErrorIs(t, err, dbrecord.ErrRecordNotFound)
}

func TestMySQL_ForUpdateBlocksSecondTransaction(t *testing.T) {
	ctx := setupMySQL(t, true)

	rec, err := dbrecord.NewRecord[TestRecord](ctx, dbrecord.Fields{"name": "locked"})
	require.NoError(t, err)
	id := rec.ID()

	locked := make(chan struct{})
	release := make(chan struct{})
	var firstDone atomic.Bool

	go func() {
		_, _ = dbrecord.ExecTransaction(ctx, func(ctx context.Context, _ *dbrecord.Connection) error {
			me, err := dbrecord.Locate[TestRecord](ctx, dbrecord.Fields{"id": id}, dbrecord.ForUpdate())
			if err != nil {
				close(locked)
				return err
			}
			close(locked)
			<-release
			firstDone.Store(true)
			return me.SetName(ctx, "first")
		})
	}()

	<-locked
	go func() {
		time.Sleep(200 * time.Millisecond)
		close(release)
	}()

	_, err = dbrecord.ExecTransaction(ctx, func(ctx context.Context, _ *dbrecord.Connection) error {
		me, err := dbrecord.Locate[TestRecord](ctx, dbrecord.Fields{"id": id}, dbrecord.ForUpdate())
		if err != nil {
			return err
		}
		assert.True(t, firstDone.Load(), "second lock granted only after the first commit")
		assert.Equal(t, "first", me.Name())
		return me.SetName(ctx, "second")
	})
	require.NoError(t, err)

	final, err := dbrecord.Locate[TestRecord](ctx, dbrecord.Fields{"id": id})
	require.NoError(t, err)
	assert.Equal(t, "second", final.Name())
}

func TestMySQL_PoolIsolatesTransactions(t *testing.T) {
	ctx := setupMySQL(t, true)

	_, err := dbrecord.ExecTransaction(ctx, func(txCtx context.Context, dbh *dbrecord.Connection) error {
		_, err := dbrecord.NewRecord[TestRecord](txCtx, dbrecord.Fields{"name": "pending"})
		require.NoError(t, err)

		// 事务外的连接看不到未提交的数据
		row, err := dbrecord.GetRow(ctx, "SELECT COUNT(*) AS n FROM dbrecord_test WHERE name = ?", "pending")
		require.NoError(t, err)
		assert.Equal(t, int64(0), row.GetInt64("n"))

		row, err = dbh.GetRow(txCtx, "SELECT COUNT(*) AS n FROM dbrecord_test WHERE name = ?", "pending")
		require.NoError(t, err)
		assert.Equal(t, int64(1), row.GetInt64("n"))
		return dbrecord.ErrRollback
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), countRows(t, ctx))

	stats := dbrecord.MasterPool().Stats()
	assert.Equal(t, 4, stats.MaxOpenConnections)
}

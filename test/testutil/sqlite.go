package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var sqliteSeq atomic.Int64

// OpenSQLite opens a private in-memory SQLite database through GORM.
//
// Each call gets its own shared-cache database so that every pooled
// connection sees the same tables. The statements in ddl run before the
// handle is returned.
func OpenSQLite(t *testing.T, ddl ...string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:switchyard_%d?mode=memory&cache=shared", sqliteSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Keep one connection open so the in-memory database outlives idle connections.
	sqlDB.SetMaxIdleConns(1)

	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error, "ddl failed: %s", stmt)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// Package testutil opens throwaway stores for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"crm-backend/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLite returns an in-memory SQLite store private to t. When migrate is
// empty the full schema is migrated.
func NewSQLite(t *testing.T, migrate ...interface{}) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the shared in-memory database alive and
	// serializes access to it.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(migrate) == 0 {
		migrate = models.All()
	}
	require.NoError(t, db.AutoMigrate(migrate...))
	return db
}

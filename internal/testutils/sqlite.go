package testutils

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/linskybing/chainjob-cache/internal/config/db"
	"github.com/linskybing/chainjob-cache/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var sqliteSeq atomic.Int64

// NewSQLiteStore returns a migrated store backed by a private in-memory
// sqlite database that lives as long as the test.
func NewSQLiteStore(t *testing.T) *repository.DBJobRepo {
	t.Helper()
	name := fmt.Sprintf("%s_%d", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()), sqliteSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	store := repository.NewJobRepo(gdb)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

package sqlite

import (
	"fmt"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var memSeq atomic.Int64

// Open creates a GORM *DB backed by a SQLite database file.
func Open(path string) (*gorm.DB, error) {
	return open(path)
}

// OpenMemory creates a private in-memory database. Each call returns an
// independent store; the named shared-cache DSN keeps the database alive
// across the connections in GORM's pool.
func OpenMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", memSeq.Add(1))
	return open(dsn)
}

func open(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

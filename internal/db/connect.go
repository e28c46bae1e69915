// Package db opens and migrates the herald persistent store.
package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options selects the backing database. DSN takes precedence: when it is
// non-empty the store runs on MySQL; otherwise Path names a SQLite file.
type Options struct {
	Path string // sqlite file path, e.g. "herald.db"
	DSN  string // mysql DSN, e.g. "user:pass@tcp(host:3306)/herald?parseTime=true"
}

// Connect opens a GORM connection per Options.
func Connect(opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Surface unique-constraint violations as gorm.ErrDuplicatedKey
		// so the onboarding code can report them as conflicts.
		TranslateError: true,
	}

	if dsn := strings.TrimSpace(opts.DSN); dsn != "" {
		gdb, err := gorm.Open(mysql.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: connect mysql: %w", err)
		}
		return gdb, nil
	}

	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, fmt.Errorf("db: either path or dsn is required")
	}
	gdb, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("db: connect sqlite %s: %w", path, err)
	}
	return gdb, nil
}

// ConnectMemory opens an in-memory SQLite store, used by tests and by
// CLI invocations that must not touch disk.
func ConnectMemory() (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect memory: %w", err)
	}
	return gdb, nil
}

// Package store opens the session storage named by a storage URL.
package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarkoPoloResearchLab/srquick/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/srquick/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/srquick/pkg/session"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultSQLiteFile = "srquick.db"
)

// Handle is an open storage with its cleanup.
type Handle struct {
	session.Storage
	Driver string
	close  func() error
}

// Close releases the underlying connections.
func (handle *Handle) Close() error {
	if handle == nil || handle.close == nil {
		return nil
	}
	return handle.close()
}

// Open connects to dsn and prepares the storage table. postgres:// URLs use
// a pgx pool; sqlite:// URLs and bare paths use GORM.
func Open(ctx context.Context, dsn string) (*Handle, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverPostgres:
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		store := pgstore.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &Handle{Storage: store, Driver: driver, close: func() error { pool.Close(); return nil }}, nil
	case DriverSQLite:
		db, err := gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			return nil, fmt.Errorf("sqlite open: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		store := gormstore.New(db)
		if err := store.Migrate(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return &Handle{Storage: store, Driver: driver, close: sqlDB.Close}, nil
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", driver)
	}
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DriverPostgres, "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if u.Host != "" {
			path = u.Host + path
		}
		if path == "" || path == "/" {
			path = defaultSQLiteFile
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return DriverSQLite, sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return DriverSQLite, sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if filepath.IsAbs(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

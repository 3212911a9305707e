package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned by repositories when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Database wraps the PostgreSQL connection pool
type Database struct {
	conn *sql.DB
	log  *logrus.Entry
}

// NewDatabase opens and pings a PostgreSQL connection pool
func NewDatabase(dsn string, opts Options, log *logrus.Entry) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewFromDB(db, log), nil
}

// NewFromDB wraps an already opened pool.
func NewFromDB(db *sql.DB, log *logrus.Entry) *Database {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Database{conn: db, log: log.WithField("component", "store")}
}

// Close closes the database connection
func (db *Database) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// DB returns the underlying *sql.DB for queries
func (db *Database) DB() *sql.DB {
	return db.conn
}

// RunMigrations applies every *.sql file in dir, in lexical order, that has
// not been recorded in schema_migrations yet.
func (db *Database) RunMigrations(ctx context.Context, dir string) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}
	sort.Strings(files)

	applied := 0
	for _, path := range files {
		ok, err := db.runMigration(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to run migration %s: %w", filepath.Base(path), err)
		}
		if ok {
			applied++
		}
	}

	db.log.WithFields(logrus.Fields{"dir": dir, "applied": applied, "total": len(files)}).Info("Migrations complete")
	return nil
}

func (db *Database) createMigrationsTable(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// runMigration applies one file inside a transaction. It reports false when
// the file was applied before.
func (db *Database) runMigration(ctx context.Context, path string) (bool, error) {
	version := strings.TrimSuffix(filepath.Base(path), ".sql")

	var exists bool
	err := db.conn.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return false, fmt.Errorf("failed to execute migration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	db.log.WithField("version", version).Info("Applied migration")
	return true, nil
}

// HealthCheck performs a health check on the database
func (db *Database) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return db.conn.PingContext(ctx)
}

// Package sqlite implements the block lineage store (domain.JournalStorage
// and domain.BlockStorage) on top of a single sqlite database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	zlog "github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Client owns the database connection pool and exposes context-aware
// wrappers used by the Store.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	zlog.Info().Str("path", dbPath).Msg("initializing sqlite client")

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	// modernc.org/sqlite gives each connection its own :memory: database, and
	// sqlite itself rejects concurrent writers; a single pooled connection
	// keeps both in check.
	db.SetMaxOpenConns(1)

	client := &Client{db: db}

	if err := client.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	zlog.Info().Msg("sqlite client initialized")
	return client, nil
}

func (c *Client) Migrate() error {
	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

func (c *Client) Close() error {
	zlog.Info().Msg("closing sqlite connection")
	return c.db.Close()
}

func (c *Client) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	zlog.Debug().Str("query", query).Msg("executing sqlite query")
	return c.db.ExecContext(ctx, query, args...)
}

func (c *Client) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	zlog.Debug().Str("query", query).Msg("executing sqlite query")
	return c.db.QueryContext(ctx, query, args...)
}

func (c *Client) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	zlog.Debug().Str("query", query).Msg("executing sqlite query")
	return c.db.QueryRowContext(ctx, query, args...)
}

func (c *Client) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	zlog.Debug().Msg("beginning sqlite transaction")
	return c.db.BeginTx(ctx, opts)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sqlite opens the SQLite databases backing the packet container.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver
)

// Config defines SQLite operational parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
	// JournalMode is applied to every connection. Single-file containers use
	// DELETE so no -wal/-shm side files outlive the writer.
	JournalMode string
	ReadOnly    bool
}

// DefaultConfig returns the writer configuration.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
		JournalMode:  "DELETE",
	}
}

// ReaderConfig returns the configuration for read-only access.
func ReaderConfig() Config {
	cfg := DefaultConfig()
	cfg.ReadOnly = true
	return cfg
}

// DSN renders a file: URI with pragmas applied to all pooled connections.
// The path is percent-encoded so '?', '#' and '%' stay part of the file name.
func DSN(dbPath string, cfg Config) string {
	mode := "rwc"
	if cfg.ReadOnly {
		mode = "ro"
	}
	journal := cfg.JournalMode
	if journal == "" {
		journal = "DELETE"
	}
	q := url.Values{}
	q.Set("mode", mode)
	q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", journal))
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "synchronous(NORMAL)")
	u := url.URL{Scheme: "file", OmitHost: true, Path: dbPath, RawQuery: q.Encode()}
	return u.String()
}

// Open initializes a SQLite connection pool and checks connectivity.
func Open(dbPath string, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(dbPath, cfg))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	return db, nil
}

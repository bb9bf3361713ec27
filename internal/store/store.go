// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists synced faculty records in SQLite: user
// profiles, their publication and grant activities, derived
// classifications, and an audit trail of sync runs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

// Store manages the faculty SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path, applies the pool
// settings from cfg, and creates the schema if it does not exist.
// An unreachable or unwritable database is reported as
// types.ErrStoreUnavailable.
func Open(path string, cfg types.StoreConfig) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = maxOpen
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT,
			firstname TEXT,
			lastname TEXT,
			middlename TEXT,
			employmentstatus TEXT,
			position TEXT,
			primaryunit INTEGER,
			orcid TEXT,
			rank TEXT,
			url TEXT,
			lastlogin TEXT,
			pid INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS publications (
			activity_id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			type TEXT,
			title TEXT,
			journal TEXT,
			series_title TEXT,
			year INTEGER,
			month_season TEXT,
			publisher TEXT,
			publisher_location TEXT,
			publisher_country TEXT,
			volume TEXT,
			issue_number TEXT,
			pages TEXT,
			isbn TEXT,
			issn TEXT,
			doi TEXT,
			url TEXT,
			description TEXT,
			origin TEXT,
			status TEXT,
			term TEXT,
			status_year INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_publications_user_id ON publications(user_id)`,
		`CREATE TABLE IF NOT EXISTS grants (
			activity_id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			title TEXT,
			sponsor TEXT,
			grant_number TEXT,
			award_date TEXT,
			start_date TEXT,
			end_date TEXT,
			period_length TEXT,
			period_unit TEXT,
			periods INTEGER,
			indirect_funding REAL,
			indirect_cost_rate TEXT,
			total_funding REAL,
			total_direct_funding REAL,
			currency TEXT,
			description TEXT,
			abstract TEXT,
			url TEXT,
			status TEXT,
			term TEXT,
			status_year INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_grants_user_id ON grants(user_id)`,
		`CREATE TABLE IF NOT EXISTS classified_users (
			user_id TEXT PRIMARY KEY REFERENCES users(id),
			identified_via TEXT NOT NULL,
			matched_keywords TEXT NOT NULL,
			date_added TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sync_runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			status TEXT NOT NULL,
			summary TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	return nil
}

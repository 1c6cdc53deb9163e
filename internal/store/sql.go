package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/serroba/go-redirector/internal/redirect"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // Local SQLite driver
)

var sqlQueries = newQueries(func(int) string { return "?" })

// Schema creates the tables on SQLite. Production schemas are managed outside this service.
const Schema = `
CREATE TABLE IF NOT EXISTS link_groups (
	group_id     INTEGER PRIMARY KEY,
	is_default   BOOLEAN NOT NULL DEFAULT 0,
	default_link TEXT,
	visits       INTEGER NOT NULL DEFAULT 0,
	latest_visit TIMESTAMP,
	description  TEXT,
	created_on   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS domains (
	name       TEXT PRIMARY KEY,
	group_id   INTEGER NOT NULL REFERENCES link_groups(group_id),
	created_on TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS records (
	record_id    INTEGER PRIMARY KEY,
	slug         TEXT NOT NULL,
	is_active    BOOLEAN NOT NULL DEFAULT 1,
	link         TEXT,
	group_id     INTEGER REFERENCES link_groups(group_id),
	visits       INTEGER NOT NULL DEFAULT 0,
	latest_visit TIMESTAMP,
	created_by   TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	created_on   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS group_visits (
	group_visit_id INTEGER PRIMARY KEY,
	group_id       INTEGER NOT NULL REFERENCES link_groups(group_id),
	visited_at     TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS record_visits (
	record_visit_id INTEGER PRIMARY KEY,
	record_id       INTEGER NOT NULL REFERENCES records(record_id),
	visited_at      TIMESTAMP NOT NULL
);
`

// SQLStore is a database/sql implementation of redirect.Repository and
// redirect.VisitStore for SQLite and libsql.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens dsn with the libsql driver for remote URLs and the local
// SQLite driver otherwise.
func OpenSQLStore(dsn string) (*SQLStore, error) {
	driverName := "sqlite"
	if strings.HasPrefix(dsn, "libsql://") || strings.HasPrefix(dsn, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}

	if driverName == "sqlite" && strings.Contains(dsn, ":memory:") {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	return NewSQLStore(db), nil
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// DB returns the underlying handle.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// EnsureSchema creates missing tables.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)

	return err
}

func (s *SQLStore) GroupIDForDomain(ctx context.Context, domain string) (int64, error) {
	var groupID int64

	err := s.db.QueryRowContext(ctx, sqlQueries.groupIDForDomain, domain).Scan(&groupID)
	if err != nil {
		return 0, sqlError(err)
	}

	return groupID, nil
}

func (s *SQLStore) ActiveRecord(ctx context.Context, groupID *int64, slug string) (*redirect.ResolvedTarget, error) {
	if groupID == nil {
		return s.scanTarget(s.db.QueryRowContext(ctx, sqlQueries.activeGlobalRecord, slug))
	}

	return s.scanTarget(s.db.QueryRowContext(ctx, sqlQueries.activeRecord, *groupID, slug))
}

func (s *SQLStore) GroupDefault(ctx context.Context, groupID int64) (*redirect.ResolvedTarget, error) {
	return s.scanTarget(s.db.QueryRowContext(ctx, sqlQueries.groupDefault, groupID))
}

func (s *SQLStore) SystemDefault(ctx context.Context) (*redirect.ResolvedTarget, error) {
	return s.scanTarget(s.db.QueryRowContext(ctx, sqlQueries.systemDefault))
}

func (s *SQLStore) RecordGroupVisit(ctx context.Context, groupID int64, at time.Time) error {
	return s.recordVisit(ctx, sqlQueries.incrementGroup, sqlQueries.insertGroupVisit, groupID, at)
}

func (s *SQLStore) RecordRecordVisit(ctx context.Context, recordID int64, at time.Time) error {
	return s.recordVisit(ctx, sqlQueries.incrementRecord, sqlQueries.insertRecordVisit, recordID, at)
}

func (s *SQLStore) recordVisit(ctx context.Context, increment, insert string, id int64, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, increment, id, at)
	if err != nil {
		_ = tx.Rollback()

		return err
	}

	if n, err := res.RowsAffected(); err != nil || n == 0 {
		_ = tx.Rollback()

		if err != nil {
			return err
		}

		return redirect.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, insert, id, at); err != nil {
		_ = tx.Rollback()

		return err
	}

	return tx.Commit()
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Shutdown closes the database handle.
func (s *SQLStore) Shutdown() error {
	return s.db.Close()
}

func (s *SQLStore) scanTarget(row *sql.Row) (*redirect.ResolvedTarget, error) {
	var (
		target redirect.ResolvedTarget
		link   sql.NullString
	)

	if err := row.Scan(&target.ID, &link); err != nil {
		return nil, sqlError(err)
	}

	target.Link = link.String

	return &target, nil
}

func sqlError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return redirect.ErrNotFound
	}

	return err
}

// Compile-time checks.
var (
	_ redirect.Repository = (*SQLStore)(nil)
	_ redirect.VisitStore = (*SQLStore)(nil)
)

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/go-redirector/internal/redirect"
)

var pgQueries = newQueries(func(n int) string { return "$" + strconv.Itoa(n) })

// PostgresStore is a PostgreSQL implementation of redirect.Repository and redirect.VisitStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed record store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) GroupIDForDomain(ctx context.Context, domain string) (int64, error) {
	var groupID int64

	err := p.pool.QueryRow(ctx, pgQueries.groupIDForDomain, domain).Scan(&groupID)
	if err != nil {
		return 0, pgError(err)
	}

	return groupID, nil
}

func (p *PostgresStore) ActiveRecord(ctx context.Context, groupID *int64, slug string) (*redirect.ResolvedTarget, error) {
	var row pgx.Row
	if groupID == nil {
		row = p.pool.QueryRow(ctx, pgQueries.activeGlobalRecord, slug)
	} else {
		row = p.pool.QueryRow(ctx, pgQueries.activeRecord, *groupID, slug)
	}

	return scanTarget(row)
}

func (p *PostgresStore) GroupDefault(ctx context.Context, groupID int64) (*redirect.ResolvedTarget, error) {
	return scanTarget(p.pool.QueryRow(ctx, pgQueries.groupDefault, groupID))
}

func (p *PostgresStore) SystemDefault(ctx context.Context) (*redirect.ResolvedTarget, error) {
	return scanTarget(p.pool.QueryRow(ctx, pgQueries.systemDefault))
}

func (p *PostgresStore) RecordGroupVisit(ctx context.Context, groupID int64, at time.Time) error {
	return p.recordVisit(ctx, pgQueries.incrementGroup, pgQueries.insertGroupVisit, groupID, at)
}

func (p *PostgresStore) RecordRecordVisit(ctx context.Context, recordID int64, at time.Time) error {
	return p.recordVisit(ctx, pgQueries.incrementRecord, pgQueries.insertRecordVisit, recordID, at)
}

func (p *PostgresStore) recordVisit(ctx context.Context, increment, insert string, id int64, at time.Time) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, increment, id, at)
		if err != nil {
			return pgError(err)
		}

		if tag.RowsAffected() == 0 {
			return redirect.ErrNotFound
		}

		if _, err := tx.Exec(ctx, insert, id, at); err != nil {
			return pgError(err)
		}

		return nil
	})
}

// Ping checks database connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Shutdown closes the connection pool.
func (p *PostgresStore) Shutdown() error {
	p.pool.Close()

	return nil
}

func scanTarget(row pgx.Row) (*redirect.ResolvedTarget, error) {
	var (
		target redirect.ResolvedTarget
		link   *string
	)

	if err := row.Scan(&target.ID, &link); err != nil {
		return nil, pgError(err)
	}

	target.Link = redirect.LinkOf(link)

	return &target, nil
}

func pgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return redirect.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s", redirect.ErrNotFound, pgErr.ConstraintName)
		case pgerrcode.IsConnectionException(pgErr.Code):
			return fmt.Errorf("postgres connection exception %s: %w", pgErr.Code, err)
		}
	}

	return err
}

// Compile-time checks.
var (
	_ redirect.Repository = (*PostgresStore)(nil)
	_ redirect.VisitStore = (*PostgresStore)(nil)
)

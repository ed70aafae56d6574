// Package repository stores saved searches in PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/logsearch/common/database"
	"github.com/telhawk-systems/logsearch/logsearch/migrations"
	"github.com/telhawk-systems/logsearch/logsearch/pkg/model"
)

var (
	// ErrNotFound is returned when no saved search has the requested id.
	ErrNotFound = errors.New("saved search not found")
	// ErrInvalidSavedSearch is returned when a saved search lacks a name or query.
	ErrInvalidSavedSearch = errors.New("invalid saved search")
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() { r.pool.Close() }

// Migrate applies the embedded schema migrations to databaseURL.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Create inserts s, assigning an id and timestamps when they are unset.
func (r *PostgresRepository) Create(ctx context.Context, s *model.SavedSearch) error {
	if strings.TrimSpace(s.Name) == "" || len(s.Query) == 0 {
		return fmt.Errorf("%w: name and query are required", ErrInvalidSavedSearch)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	q := `INSERT INTO saved_searches (id, name, description, query, created_at, updated_at)
          VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.pool.Exec(ctx, q, s.ID, s.Name, s.Description, []byte(s.Query), s.CreatedAt, s.UpdatedAt); err != nil {
		return fmt.Errorf("insert saved search: %w", err)
	}
	return nil
}

// Get returns the saved search with the given id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*model.SavedSearch, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	q := `SELECT id::text, name, description, query, created_at, updated_at
          FROM saved_searches
          WHERE id = $1`
	s, err := scanSavedSearch(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get saved search: %w", err)
	}
	return s, nil
}

// List returns every saved search, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]model.SavedSearch, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	q := `SELECT id::text, name, description, query, created_at, updated_at
          FROM saved_searches
          ORDER BY created_at DESC, name`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list saved searches: %w", err)
	}
	defer rows.Close()

	out := make([]model.SavedSearch, 0)
	for rows.Next() {
		s, err := scanSavedSearch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Delete removes the saved search with the given id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM saved_searches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete saved search: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func scanSavedSearch(row pgx.Row) (*model.SavedSearch, error) {
	var s model.SavedSearch
	var query []byte
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &query, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Query = query
	return &s, nil
}

package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/evservice/core/clientstore"
)

// DB is the subset of *pgxpool.Pool used by Storage.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	getSQL = `SELECT value FROM client_storage
WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`

	getManySQL = `SELECT key, value FROM client_storage
WHERE key = ANY($1) AND (expires_at IS NULL OR expires_at > now())`

	upsertSQL = `INSERT INTO client_storage (key, value, expires_at, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`

	lockKeySQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

	deleteSQL        = `DELETE FROM client_storage WHERE key = ANY($1)`
	deleteExpiredSQL = `DELETE FROM client_storage WHERE expires_at IS NOT NULL AND expires_at <= now()`
)

// Storage implements clientstore.Storage on the client_storage table.
type Storage struct {
	db DB
}

// NewStorage creates a PostgreSQL-backed storage.
func NewStorage(db DB) *Storage {
	return &Storage{db: db}
}

// Get implements clientstore.Storage.
func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", clientstore.ErrEmptyKey
	}

	var value string
	err := s.queryRow(ctx, getSQL, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", clientstore.ErrNotFound
	}
	if err != nil {
		return "", errors.Join(clientstore.ErrReadFailed, err)
	}
	return value, nil
}

// GetMany implements clientstore.Storage with one statement, so the rows come
// from a single snapshot.
func (s *Storage) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	for _, k := range keys {
		if k == "" {
			return nil, clientstore.ErrEmptyKey
		}
	}
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var (
		rows pgx.Rows
		err  error
	)
	if tx, ok := TxFromContext(ctx); ok {
		rows, err = tx.Query(ctx, getManySQL, keys)
	} else {
		rows, err = s.db.Query(ctx, getManySQL, keys)
	}
	if err != nil {
		return nil, errors.Join(clientstore.ErrReadFailed, err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, errors.Join(clientstore.ErrReadFailed, err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(clientstore.ErrReadFailed, err)
	}
	return out, nil
}

// SetMany implements clientstore.Storage inside one transaction.
func (s *Storage) SetMany(ctx context.Context, values map[string]string, ttl time.Duration) error {
	for k := range values {
		if k == "" {
			return clientstore.ErrEmptyKey
		}
	}
	if len(values) == 0 {
		return nil
	}

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	write := func(tx pgx.Tx) error {
		for k, v := range values {
			if _, err := tx.Exec(ctx, upsertSQL, k, v, expiresAt); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	if tx, ok := TxFromContext(ctx); ok {
		err = write(tx)
	} else {
		err = pgx.BeginFunc(ctx, s.db, write)
	}
	if err != nil {
		return errors.Join(clientstore.ErrWriteFailed, err)
	}
	return nil
}

// Update implements clientstore.Storage. A transaction-scoped advisory lock on
// the key serialises concurrent updates, including ones that create the row.
func (s *Storage) Update(ctx context.Context, key string, ttl time.Duration, fn clientstore.UpdateFunc) error {
	if key == "" {
		return clientstore.ErrEmptyKey
	}

	var fnErr error
	update := func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockKeySQL, key); err != nil {
			return err
		}

		var cur string
		found := true
		err := tx.QueryRow(ctx, getSQL, key).Scan(&cur)
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
		} else if err != nil {
			return err
		}

		next, err := fn(cur, found)
		if err != nil {
			fnErr = err
			return err
		}

		var expiresAt *time.Time
		if ttl > 0 {
			t := time.Now().Add(ttl)
			expiresAt = &t
		}
		_, err = tx.Exec(ctx, upsertSQL, key, next, expiresAt)
		return err
	}

	var err error
	if tx, ok := TxFromContext(ctx); ok {
		err = update(tx)
	} else {
		err = pgx.BeginFunc(ctx, s.db, update)
	}
	switch {
	case err == nil:
		return nil
	case fnErr != nil:
		return fnErr
	default:
		return errors.Join(clientstore.ErrWriteFailed, err)
	}
}

// Delete implements clientstore.Storage.
func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	filtered := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			filtered = append(filtered, k)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if _, err := s.exec(ctx, deleteSQL, filtered); err != nil {
		return errors.Join(clientstore.ErrWriteFailed, err)
	}
	return nil
}

// DeleteExpired purges expired rows and returns how many were removed.
func (s *Storage) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.exec(ctx, deleteExpiredSQL)
	if err != nil {
		return 0, errors.Join(clientstore.ErrWriteFailed, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Storage) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx, ok := TxFromContext(ctx); ok {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.db.QueryRow(ctx, sql, args...)
}

func (s *Storage) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx, ok := TxFromContext(ctx); ok {
		return tx.Exec(ctx, sql, args...)
	}
	return s.db.Exec(ctx, sql, args...)
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps every record as a JSONB document in a single records table.
// Commit locks the touched rows FOR UPDATE, merges in memory and upserts
// inside one transaction, which provides the all-or-nothing guarantee the
// workflows rely on.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// ConnectPostgres opens a pool and ensures the records table exists.
func ConnectPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			key        TEXT NOT NULL,
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (collection, key)
		)
	`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure records table: %w", err)
	}
	return pool, nil
}

func (p *Postgres) Get(ctx context.Context, path string) (json.RawMessage, bool, error) {
	ref, err := splitPath(path)
	if err != nil {
		return nil, false, err
	}

	var doc json.RawMessage
	row := p.pool.QueryRow(ctx,
		`SELECT doc FROM records WHERE collection = $1 AND key = $2`,
		ref.collection, ref.key)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", ref.record(), err)
	}
	if ref.field == "" {
		return doc, true, nil
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, false, fmt.Errorf("record %s: not a document: %w", ref.record(), err)
	}
	fieldRaw, ok := fields[ref.field]
	if !ok {
		return nil, false, nil
	}
	return fieldRaw, true, nil
}

func (p *Postgres) GetAll(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT key, doc FROM records WHERE collection = $1`, collection)
	if err != nil {
		return nil, fmt.Errorf("read collection %s: %w", collection, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key string
		var doc json.RawMessage
		if err := rows.Scan(&key, &doc); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", collection, err)
		}
		out[key] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

func (p *Postgres) Commit(ctx context.Context, updates map[string]any) error {
	staged, err := stageUpdates(updates)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommit, err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrCommit, err)
	}
	defer tx.Rollback(ctx)

	for _, ru := range staged {
		var current json.RawMessage
		row := tx.QueryRow(ctx,
			`SELECT doc FROM records WHERE collection = $1 AND key = $2 FOR UPDATE`,
			ru.ref.collection, ru.ref.key)
		if err := row.Scan(&current); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: lock %s: %v", ErrCommit, ru.ref.record(), err)
		}

		doc, err := mergeDoc(current, ru)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCommit, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO records (collection, key, doc, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (collection, key)
			DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
			ru.ref.collection, ru.ref.key, []byte(doc))
		if err != nil {
			return fmt.Errorf("%w: write %s: %v", ErrCommit, ru.ref.record(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrCommit, err)
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, collection string, value any) (string, error) {
	key := NewKey()
	if err := p.Commit(ctx, map[string]any{Path(collection, key): value}); err != nil {
		return "", err
	}
	return key, nil
}

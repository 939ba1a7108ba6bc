package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/errors"
)

// Client stores dataset snapshots as named payloads in one table:
// (name text primary key, payload bytea, updated_at timestamptz).
type Client struct {
	DB    *sql.DB
	cfg   config.PostgresConfig
	table string
}

func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg, table: pq.QuoteIdentifier(cfg.Table)}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// EnsureSchema creates the snapshot table when missing.
func (c *Client) EnsureSchema(ctx context.Context) error {
	_, err := c.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+c.table+` (
		name text PRIMARY KEY,
		payload bytea NOT NULL,
		updated_at timestamptz NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("creating table %s: %w", c.table, err)
	}
	return nil
}

// Snapshot returns the payload stored under name.
func (c *Client) Snapshot(ctx context.Context, name string) ([]byte, error) {
	var payload []byte
	err := c.DB.QueryRowContext(ctx, `SELECT payload FROM `+c.table+` WHERE name = $1`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", name, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", name, err)
	}
	return payload, nil
}

// PutSnapshots upserts every payload in a single transaction.
func (c *Client) PutSnapshots(ctx context.Context, payloads map[string][]byte) error {
	return c.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+c.table+` (name, payload, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for name, payload := range payloads {
			if _, err := stmt.ExecContext(ctx, name, payload); err != nil {
				return fmt.Errorf("storing snapshot %s: %w", name, err)
			}
		}
		return nil
	})
}

func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

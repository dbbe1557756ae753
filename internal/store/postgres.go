package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/mindloop/models"
)

// Postgres stores blobs in mindloop_state and mirrors archived cycles into
// mindloop_cycles so they can be queried with SQL.
type Postgres struct {
	DB *sql.DB
}

// NewPostgres opens and pings dsn.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Postgres{DB: db}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.DB.QueryRowContext(ctx, `SELECT value FROM mindloop_state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return value, err
}

// Put upserts key. value must be valid JSON.
func (p *Postgres) Put(ctx context.Context, key string, value []byte) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO mindloop_state (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	return err
}

// MirrorCycles upserts every cycle into mindloop_cycles in one transaction.
func (p *Postgres) MirrorCycles(ctx context.Context, cycles []*models.Cycle) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, c := range cycles {
		body, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode cycle %s: %w", c.ID, err)
		}
		var ended sql.NullTime
		if !c.EndTime.IsZero() {
			ended = sql.NullTime{Time: c.EndTime, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO mindloop_cycles (id, number, topic, status, rounds, thoughts, started_at, ended_at, body)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET topic = EXCLUDED.topic, status = EXCLUDED.status, rounds = EXCLUDED.rounds,
thoughts = EXCLUDED.thoughts, ended_at = EXCLUDED.ended_at, body = EXCLUDED.body, archived_at = now()
WHERE mindloop_cycles.body IS DISTINCT FROM EXCLUDED.body`,
			c.ID, c.Number, c.Topic, string(c.Status), c.TotalRounds, len(c.Thoughts), c.StartTime, ended, body); err != nil {
			return fmt.Errorf("mirror cycle %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (p *Postgres) Close() error { return p.DB.Close() }

package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taixiu/internal/game"
)

// PostgresStore keeps the latest snapshot in a single jsonb row and appends every wager
// that reached the game log to an audit table.
type PostgresStore struct {
	db *pgxpool.Pool

	// logged counts the leading games already written. Only the write-behind worker calls
	// Save, so it needs no lock.
	logged int
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS taixiu;
		CREATE TABLE IF NOT EXISTS taixiu.snapshots (
			id smallint PRIMARY KEY CHECK (id = 1),
			saved_at timestamptz NOT NULL,
			body jsonb NOT NULL
		);
		CREATE TABLE IF NOT EXISTS taixiu.games (
			bet_id text PRIMARY KEY,
			user_id text NOT NULL,
			amount bigint NOT NULL,
			side text NOT NULL,
			result text NOT NULL,
			placed_at timestamptz NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (game.Snapshot, error) {
	var body []byte
	err := s.db.QueryRow(ctx, `SELECT body FROM taixiu.snapshots WHERE id = 1`).Scan(&body)
	if err == pgx.ErrNoRows {
		return game.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return game.Snapshot{}, err
	}
	return decode(body)
}

func (s *PostgresStore) Save(ctx context.Context, snap game.Snapshot) error {
	body, err := encode(snap)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO taixiu.snapshots (id, saved_at, body)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET saved_at = EXCLUDED.saved_at, body = EXCLUDED.body
	`, snap.SavedAt, body)
	if err != nil {
		return err
	}

	from := s.logged
	if from > len(snap.Games) {
		from = 0
	}
	batch := &pgx.Batch{}
	for _, g := range snap.Games[from:] {
		batch.Queue(`
			INSERT INTO taixiu.games (bet_id, user_id, amount, side, result, placed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (bet_id) DO NOTHING
		`, g.ID, g.UserID, g.Amount, string(g.Side), string(g.Result), g.PlacedAt)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("append game log: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.logged = len(snap.Games)
	return nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"taixiu/internal/game"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Store persists whole-ledger snapshots. Load is called once at startup; the running
// ledger is authoritative afterwards.
type Store interface {
	Load(ctx context.Context) (game.Snapshot, error)
	Save(ctx context.Context, snap game.Snapshot) error
	Close() error
}

func encode(snap game.Snapshot) ([]byte, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

func decode(b []byte) (game.Snapshot, error) {
	var snap game.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return game.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

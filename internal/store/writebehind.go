package store

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"taixiu/internal/game"
)

const saveTimeout = 10 * time.Second

// WriteBehind implements game.Persister on top of a Store. Changed only records that the
// ledger moved on; a single worker takes the snapshot and writes it out, so bursts of
// mutations coalesce into one write and a write never carries an older version than the
// one before it.
type WriteBehind struct {
	store    Store
	debounce time.Duration
	log      *slog.Logger

	mu   sync.Mutex
	src  game.StateSource
	wake chan struct{}

	// flushMu orders writes to the store.
	flushMu sync.Mutex
	saved   atomic.Uint64

	written  atomic.Uint64
	failures atomic.Uint64
}

func NewWriteBehind(s Store, debounce time.Duration, logger *slog.Logger) *WriteBehind {
	if logger == nil {
		logger = slog.Default()
	}
	return &WriteBehind{store: s, debounce: debounce, log: logger, wake: make(chan struct{}, 1)}
}

func (w *WriteBehind) Changed(src game.StateSource) {
	w.mu.Lock()
	w.src = src
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run writes pending snapshots until ctx is done, then makes a final flush.
func (w *WriteBehind) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			defer cancel()
			if err := w.Flush(flushCtx); err != nil {
				w.log.Error("final snapshot flush failed", "err", err)
			}
			return nil
		case <-w.wake:
		}

		if w.debounce > 0 {
			t := time.NewTimer(w.debounce)
			select {
			case <-ctx.Done():
				t.Stop()
				continue
			case <-t.C:
			}
		}
		saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
		_ = w.Flush(saveCtx)
		cancel()
	}
}

// Flush writes the current ledger state if it is newer than the last successful write.
// After a failure the version stays unsaved, so the next Flush retries with fresh state.
func (w *WriteBehind) Flush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	src := w.src
	w.mu.Unlock()
	if src == nil || src.Version() <= w.saved.Load() {
		return nil
	}

	snap := src.Snapshot()
	if snap.Version <= w.saved.Load() {
		return nil
	}
	if err := w.store.Save(ctx, snap); err != nil {
		w.failures.Add(1)
		w.log.Error("snapshot save failed", "version", snap.Version, "err", err)
		return err
	}
	w.saved.Store(snap.Version)
	w.written.Add(1)
	return nil
}

// Saved is the ledger version of the last successful write.
func (w *WriteBehind) Saved() uint64 { return w.saved.Load() }

func (w *WriteBehind) Written() uint64  { return w.written.Load() }
func (w *WriteBehind) Failures() uint64 { return w.failures.Load() }

package notify

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"taixiu/internal/game"
)

const DefaultBuffer = 64

type subscriber struct {
	userID string
	ch     chan game.Event
}

// Hub delivers events to in-process subscribers such as websocket sessions. A subscriber
// whose buffer is full misses the event rather than stalling the publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID atomic.Uint64
	buffer int
	log    *slog.Logger

	dropped atomic.Uint64
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[uint64]*subscriber), buffer: buffer, log: logger}
}

// Subscribe registers an observer. Events addressed to another user are filtered out;
// broadcasts always pass. The returned func unsubscribes and closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan game.Event, func()) {
	id := h.nextID.Add(1)
	sub := &subscriber{userID: userID, ch: make(chan game.Event, h.buffer)}

	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

func (h *Hub) Publish(e game.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if e.UserID != "" && e.UserID != sub.userID {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			h.dropped.Add(1)
			h.log.Warn("observer too slow, event dropped", "type", e.Type, "user_id", sub.userID)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Multi forwards every event to each notifier in order.
type Multi []game.Notifier

func (m Multi) Publish(e game.Event) {
	for _, n := range m {
		n.Publish(e)
	}
}

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/go-redis/redis/v8"

	"taixiu/internal/game"
)

// RedisPublisher mirrors events onto a Redis pub/sub channel so other processes can relay
// them. Publish only enqueues; Run performs the network writes.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	queue   chan []byte
	log     *slog.Logger

	dropped atomic.Uint64
}

func NewRedisPublisher(rdb *redis.Client, channel string, buffer int, logger *slog.Logger) *RedisPublisher {
	if buffer <= 0 {
		buffer = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{rdb: rdb, channel: channel, queue: make(chan []byte, buffer), log: logger}
}

func (p *RedisPublisher) Publish(e game.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.log.Error("encode event", "type", e.Type, "err", err)
		return
	}
	select {
	case p.queue <- payload:
	default:
		p.dropped.Add(1)
		p.log.Warn("redis queue full, event dropped", "type", e.Type)
	}
}

// Run drains the queue until ctx is done. Failed publishes are logged and skipped.
func (p *RedisPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload := <-p.queue:
			if err := p.send(ctx, payload); err != nil && ctx.Err() != nil {
				return nil
			}
		}
	}
}

// Flush publishes everything currently queued and returns the last failure.
func (p *RedisPublisher) Flush(ctx context.Context) error {
	var last error
	for {
		select {
		case payload := <-p.queue:
			if err := p.send(ctx, payload); err != nil {
				last = err
			}
		default:
			return last
		}
	}
}

func (p *RedisPublisher) send(ctx context.Context, payload []byte) error {
	err := p.rdb.Publish(ctx, p.channel, string(payload)).Err()
	if err != nil {
		p.log.Error("redis publish failed", "channel", p.channel, "err", err)
	}
	return err
}

func (p *RedisPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

package game

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type TickFunc func(ctx context.Context) error

// RunEvery calls fn on every tick of interval until ctx is done. A failing or panicking
// tick is logged and the loop carries on with the next one.
func RunEvery(ctx context.Context, logger *slog.Logger, name string, interval time.Duration, fn TickFunc) error {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		return fmt.Errorf("%s: interval must be > 0", name)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("loop started", "loop", name, "every", interval.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("loop stopped", "loop", name)
			return nil
		case <-ticker.C:
			if err := runTick(ctx, fn); err != nil {
				logger.Error("tick failed", "loop", name, "err", err)
				continue
			}
		}
	}
}

func runTick(ctx context.Context, fn TickFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Loops returns the background tasks of the service keyed by name.
func (s *Service) Loops(marketEvery, agentBetEvery, agentTradeEvery time.Duration) map[string]Loop {
	return map[string]Loop{
		"market":       {Every: marketEvery, Tick: s.RunMarketTick},
		"agent_bets":   {Every: agentBetEvery, Tick: s.RunAgentBets},
		"agent_trades": {Every: agentTradeEvery, Tick: s.RunAgentTrades},
	}
}

type Loop struct {
	Every time.Duration
	Tick  TickFunc
}

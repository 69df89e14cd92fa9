package game

import (
	"context"
	"time"
)

const (
	seedStockCount  = 10
	seedStockSupply = int64(100)
	seedPriceBase   = int64(500_000_000)
	seedPriceSpread = 300_000_000
)

var seedSymbols = []string{"ALPHA", "BETA", "GAMMA", "DELTA", "EPS", "ZETA", "ETA", "THETA", "IOTA", "KAPPA"}

var seedAgents = []Agent{
	{ID: "AI1", Name: "AI_Master", Balance: 5_000_000_000},
	{ID: "AI2", Name: "AI_Player", Balance: 2_000_000_000},
}

// SeedDefaults fills in the default stock board and agents when they are missing.
func (s *Service) SeedDefaults(ctx context.Context) error {
	stocks, agents := s.ledger.seed(s.engine, s.now())
	if !stocks && !agents {
		return nil
	}
	s.log.InfoContext(ctx, "seeded defaults", "stocks", stocks, "agents", agents)
	s.save()
	return nil
}

func (l *Ledger) seed(engine *Engine, now time.Time) (bool, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var seededStocks, seededAgents bool
	if len(l.stocks) < seedStockCount {
		l.stocks = make(map[string]*Stock, seedStockCount)
		l.symbols = l.symbols[:0]
		for _, sym := range seedSymbols {
			st := &Stock{
				Symbol:  sym,
				Name:    sym + " Corp",
				Price:   seedPriceBase + int64(engine.Intn(seedPriceSpread)),
				Supply:  seedStockSupply,
				Holders: map[string]int64{},
			}
			l.appendPriceLocked(st, now)
			l.addStockLocked(st)
		}
		seededStocks = true
	}
	if len(l.agents) == 0 {
		for _, a := range seedAgents {
			a := cloneAgent(a)
			l.agents = append(l.agents, &a)
		}
		seededAgents = true
	}
	return seededStocks, seededAgents
}

package game

import "context"

// RunAgentBets lets every agent wager once. Agents are never pre-debited: a win adds the
// stake, a loss subtracts it and a push changes nothing.
func (s *Service) RunAgentBets(ctx context.Context) error {
	n := s.ledger.agentBets(s.engine, s.dice)
	s.log.DebugContext(ctx, "agent bets applied", "agents", n)
	s.save()
	s.publishAgents()
	return nil
}

// RunAgentTrades lets every agent attempt one purchase of MinPurchaseQty units.
func (s *Service) RunAgentTrades(ctx context.Context) error {
	bought := s.ledger.agentTrades(s.engine)
	s.log.DebugContext(ctx, "agent trades applied", "purchases", bought)
	s.save()
	s.publishAgents()
	s.publishStocks()
	return nil
}

func (l *Ledger) agentBets(engine *Engine, dice Resolver) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, a := range l.agents {
		amount := BetDenominations[engine.Intn(len(BetDenominations))]
		side := SideTai
		if engine.Float64() >= 0.5 {
			side = SideXiu
		}
		switch dice.Resolve(side).Outcome {
		case OutcomeWin:
			a.Balance += amount
		case OutcomeLose:
			a.Balance -= amount
		}
	}
	return len(l.agents)
}

func (l *Ledger) agentTrades(engine *Engine) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	bought := 0
	for _, a := range l.agents {
		var affordable []*Stock
		for _, sym := range l.symbols {
			st := l.stocks[sym]
			if st.Supply > 0 && st.Price*MinPurchaseQty <= a.Balance {
				affordable = append(affordable, st)
			}
		}
		if len(affordable) == 0 {
			continue
		}
		pick := affordable[engine.Intn(len(affordable))]
		qty := min(MinPurchaseQty, pick.Supply)
		if pick.Price > 0 {
			qty = min(qty, a.Balance/pick.Price)
		}
		if qty < MinPurchaseQty {
			continue
		}
		a.Balance -= qty * pick.Price
		a.Stocks[pick.Symbol] += qty
		pick.Supply -= qty
		pick.Holders[a.ID] += qty
		bought++
	}
	return bought
}

package game

import (
	"context"
	"math"
	"time"
)

const maxShock = 0.10

// RunMarketTick applies a uniform ±10% shock to every stock and records the new price.
func (s *Service) RunMarketTick(ctx context.Context) error {
	n := s.ledger.marketTick(s.engine.Float64, s.now())
	s.log.DebugContext(ctx, "market tick applied", "stocks", n)
	s.save()
	s.publishStocks()
	return nil
}

// AdjustStock applies an admin price action. Bankrupt debits every user holding the
// symbol a flat BankruptPenalty regardless of quantity.
func (s *Service) AdjustStock(ctx context.Context, symbol string, action StockAction) (Stock, error) {
	st, debited, err := s.ledger.adjust(normalizeSymbol(symbol), action)
	if err != nil {
		return Stock{}, err
	}
	s.log.InfoContext(ctx, "stock adjusted", "symbol", st.Symbol, "action", action, "price", st.Price, "debited_users", len(debited))
	s.save()
	s.publishStocks()
	for _, d := range debited {
		s.publishBalance(d.UserID, d.Balance)
	}
	return st, nil
}

func (l *Ledger) marketTick(uniform func() float64, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, sym := range l.symbols {
		st := l.stocks[sym]
		change := (uniform() - 0.5) * 2 * maxShock
		st.Price = shockPrice(st.Price, change)
		l.appendPriceLocked(st, now)
	}
	return len(l.symbols)
}

func shockPrice(price int64, change float64) int64 {
	next := int64(math.Floor(float64(price) * (1 + change)))
	if next < 1 {
		return 1
	}
	return next
}

func (l *Ledger) adjust(symbol string, action StockAction) (Stock, []BalanceUpdate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.stocks[symbol]
	if !ok {
		return Stock{}, nil, ErrNoSuchStock
	}

	var debited []BalanceUpdate
	switch action {
	case ActionUp:
		st.Price = st.Price * 11 / 10
	case ActionDown:
		st.Price = st.Price * 9 / 10
		if st.Price < 1 {
			st.Price = 1
		}
	case ActionBankrupt:
		st.Price = 0
		for _, u := range l.users {
			if u.Stocks[symbol] > 0 {
				u.Balance -= BankruptPenalty
				debited = append(debited, BalanceUpdate{UserID: u.ID, Balance: u.Balance})
			}
		}
	default:
		return Stock{}, nil, ErrInvalidAdminAction
	}
	return cloneStock(*st), debited, nil
}

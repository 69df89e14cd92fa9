package game

import (
	"context"
	"time"
)

func (s *Service) BuyStock(ctx context.Context, userID, symbol string, qty int64) (TradeResult, error) {
	out, err := s.ledger.buy(userID, normalizeSymbol(symbol), qty, s.now())
	if err != nil {
		return TradeResult{}, err
	}
	s.log.InfoContext(ctx, "stock bought", "user_id", userID, "symbol", normalizeSymbol(symbol), "qty", qty)
	s.save()
	s.publishStocks()
	s.publishBalance(userID, out.Balance)
	return out, nil
}

func (s *Service) SellStock(ctx context.Context, userID, symbol string, qty int64) (TradeResult, error) {
	out, err := s.ledger.sell(userID, normalizeSymbol(symbol), qty, s.now())
	if err != nil {
		return TradeResult{}, err
	}
	s.log.InfoContext(ctx, "stock sold", "user_id", userID, "symbol", normalizeSymbol(symbol), "qty", qty)
	s.save()
	s.publishStocks()
	s.publishBalance(userID, out.Balance)
	return out, nil
}

func (l *Ledger) buy(userID, symbol string, qty int64, now time.Time) (TradeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[userID]
	if !ok {
		return TradeResult{}, ErrNotAuthenticated
	}
	st, ok := l.stocks[symbol]
	if !ok {
		return TradeResult{}, ErrNoSuchStock
	}
	if qty < MinPurchaseQty {
		return TradeResult{}, ErrBelowMinimumQuantity
	}
	if st.Supply < qty {
		return TradeResult{}, ErrInsufficientSupply
	}
	cost := qty * st.Price
	if u.Balance < cost {
		return TradeResult{}, ErrInsufficientFunds
	}
	if u.BoughtOnce[symbol] {
		return TradeResult{}, ErrAlreadyPurchased
	}

	u.Balance -= cost
	u.Stocks[symbol] += qty
	u.BoughtOnce[symbol] = true
	st.Supply -= qty
	st.Holders[u.ID] += qty
	u.History = append(u.History, HistoryEntry{Type: HistoryStockBuy, At: now, Symbol: symbol, Qty: qty, Price: st.Price})
	return TradeResult{Balance: u.Balance, Holdings: cloneCounts(u.Stocks)}, nil
}

func (l *Ledger) sell(userID, symbol string, qty int64, now time.Time) (TradeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[userID]
	if !ok {
		return TradeResult{}, ErrNotAuthenticated
	}
	st, ok := l.stocks[symbol]
	if !ok {
		return TradeResult{}, ErrNoSuchStock
	}
	if qty <= 0 {
		return TradeResult{}, ErrInvalidQuantity
	}
	if u.Stocks[symbol] < qty {
		return TradeResult{}, ErrInsufficientHoldings
	}

	u.Balance += qty * st.Price
	u.Stocks[symbol] -= qty
	if u.Stocks[symbol] == 0 {
		delete(u.Stocks, symbol)
		u.BoughtOnce[symbol] = false
	}
	st.Supply += qty
	st.Holders[u.ID] -= qty
	if st.Holders[u.ID] == 0 {
		delete(st.Holders, u.ID)
	}
	u.History = append(u.History, HistoryEntry{Type: HistoryStockSell, At: now, Symbol: symbol, Qty: qty, Price: st.Price})
	return TradeResult{Balance: u.Balance, Holdings: cloneCounts(u.Stocks)}, nil
}

package game

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PlaceBet debits the stake, resolves the wager once and applies any win credit
// immediately. The reveal at ReadyAt only replays the stored result.
func (s *Service) PlaceBet(ctx context.Context, userID string, amount int64, side Side) (BetTicket, error) {
	if !ValidBetAmount(amount) {
		return BetTicket{}, ErrInvalidAmount
	}
	if side != SideTai && side != SideXiu {
		return BetTicket{}, ErrInvalidSide
	}

	now := s.now()
	rec, balance, err := s.ledger.placeBet(userID, amount, side, s.dice, now, now.Add(s.cfg.BetDelay))
	if err != nil {
		return BetTicket{}, err
	}
	s.sched.Schedule(rec.ID, rec.ReadyAt)

	s.log.InfoContext(ctx, "bet placed",
		"bet_id", rec.ID, "user_id", userID, "amount", amount, "side", side,
		"result", rec.Result, "ready_at", rec.ReadyAt)
	s.save()
	s.notify.Publish(Event{Type: EventBetStarted, UserID: userID, Data: BetTicket{BetID: rec.ID, ReadyAt: rec.ReadyAt}})
	s.publishBalance(userID, balance)
	return BetTicket{BetID: rec.ID, ReadyAt: rec.ReadyAt}, nil
}

// Bet returns the stored wager of userID.
func (s *Service) Bet(userID, betID string) (BetRecord, error) {
	return s.ledger.bet(userID, betID)
}

// Reveal acknowledges a resolved wager. It never touches balances.
func (s *Service) Reveal(ctx context.Context, userID, betID string) (BetRecord, error) {
	rec, changed, err := s.ledger.revealBet(userID, betID)
	if err != nil {
		return BetRecord{}, err
	}
	if changed {
		s.log.DebugContext(ctx, "bet revealed", "bet_id", betID, "user_id", userID)
		s.save()
	}
	return rec, nil
}

// PendingSettlement reports whether the bet's reveal is still scheduled.
func (s *Service) PendingSettlement(betID string) bool {
	return s.sched.Pending(betID)
}

func (s *Service) settle(betID string) {
	rec, balance, ok := s.ledger.resolveBet(betID)
	if !ok {
		return
	}
	s.save()
	s.notify.Publish(Event{
		Type:   EventBetReady,
		UserID: rec.UserID,
		Data:   BetReady{BetID: rec.ID, Dice: rec.Dice, Result: rec.Result, Balance: balance},
	})
	s.publishBalance(rec.UserID, balance)
}

func (l *Ledger) placeBet(userID string, amount int64, side Side, dice Resolver, now, readyAt time.Time) (BetRecord, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[userID]
	if !ok {
		return BetRecord{}, 0, ErrNotAuthenticated
	}

	rec := &BetRecord{
		ID:       uuid.NewString(),
		UserID:   userID,
		Amount:   amount,
		Side:     side,
		State:    BetPlaced,
		PlacedAt: now,
		ReadyAt:  readyAt,
	}

	u.Balance -= amount
	roll := dice.Resolve(side)
	rec.Result = roll.Outcome
	rec.Dice = roll.Dice
	rec.Sum = roll.Sum
	if roll.Outcome == OutcomeWin {
		u.Balance += 2 * amount
	}

	u.History = append(u.History, HistoryEntry{
		Type:   HistoryBet,
		At:     now,
		BetID:  rec.ID,
		Amount: amount,
		Side:   side,
		Result: rec.Result,
		Dice:   []int{roll.Dice[0], roll.Dice[1], roll.Dice[2]},
	})
	rec.State = BetPending
	l.bets[rec.ID] = rec
	l.games = append(l.games, rec.ID)
	return *rec, u.Balance, nil
}

func (l *Ledger) bet(userID, betID string) (BetRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.bets[betID]
	if !ok || rec.UserID != userID {
		return BetRecord{}, ErrBetNotFound
	}
	return *rec, nil
}

// resolveBet moves a pending wager to resolved. It reports false for anything already
// resolved so that a wager is never settled twice.
func (l *Ledger) resolveBet(betID string) (BetRecord, int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.bets[betID]
	if !ok || rec.State != BetPending {
		return BetRecord{}, 0, false
	}
	rec.State = BetResolved
	var balance int64
	if u, ok := l.users[rec.UserID]; ok {
		balance = u.Balance
	}
	return *rec, balance, true
}

func (l *Ledger) revealBet(userID, betID string) (BetRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.bets[betID]
	if !ok || rec.UserID != userID {
		return BetRecord{}, false, ErrBetNotFound
	}
	switch rec.State {
	case BetPlaced, BetPending:
		return BetRecord{}, false, ErrBetNotReady
	case BetResolved:
		rec.State = BetRevealed
		return *rec, true, nil
	default:
		return *rec, false, nil
	}
}

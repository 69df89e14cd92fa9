package game

import (
	"context"
	"strings"
	"time"
)

// RedeemDeposit credits a deposit code at most once. Disabling the code and crediting
// the user happen in the same critical section.
func (s *Service) RedeemDeposit(ctx context.Context, userID, code string) (int64, error) {
	code = strings.TrimSpace(code)
	balance, amount, err := s.ledger.redeem(userID, code, s.now())
	if err != nil {
		return 0, err
	}
	s.log.InfoContext(ctx, "deposit redeemed", "user_id", userID, "code", code, "amount", amount)
	s.save()
	s.publishBalance(userID, balance)
	return balance, nil
}

func (s *Service) CreateDepositCode(ctx context.Context, code string, amount int64, days int) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrInvalidOrDisabledCode
	}
	if amount <= 0 || amount > MaxDepositAmount {
		return ErrInvalidDepositAmount
	}
	if days < 0 {
		days = 0
	}
	if err := s.ledger.createCode(DepositCode{Code: code, Amount: amount, Days: days, CreatedAt: s.now()}); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "deposit code created", "code", code, "amount", amount, "days", days)
	s.save()
	return nil
}

func (s *Service) DisableDepositCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if err := s.ledger.disableCode(code); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "deposit code disabled", "code", code)
	s.save()
	return nil
}

func (l *Ledger) redeem(userID, code string, now time.Time) (int64, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[userID]
	if !ok {
		return 0, 0, ErrNotAuthenticated
	}
	c, ok := l.codes[code]
	if !ok || c.Disabled {
		return 0, 0, ErrInvalidOrDisabledCode
	}
	if c.Expired(now) {
		return 0, 0, ErrExpiredCode
	}
	u.Balance += c.Amount
	c.Disabled = true
	u.History = append(u.History, HistoryEntry{Type: HistoryDeposit, At: now, Code: code, Amount: c.Amount})
	return u.Balance, c.Amount, nil
}

func (l *Ledger) createCode(c DepositCode) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.codes[c.Code]; ok {
		return ErrDuplicateCode
	}
	l.codes[c.Code] = &c
	return nil
}

func (l *Ledger) disableCode(code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.codes[code]
	if !ok {
		return ErrInvalidOrDisabledCode
	}
	c.Disabled = true
	return nil
}

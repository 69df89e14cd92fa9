package game

import (
	"context"
	"log/slog"
	"time"
)

type Settings struct {
	BetDelay        time.Duration
	HistoryCapacity int
}

type Service struct {
	ledger  *Ledger
	engine  *Engine
	dice    Resolver
	sched   *Scheduler
	notify  Notifier
	persist Persister
	log     *slog.Logger
	cfg     Settings
	now     func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notify = n
		}
	}
}

func WithPersister(p Persister) Option {
	return func(s *Service) {
		if p != nil {
			s.persist = p
		}
	}
}

// WithResolver replaces the engine for wager resolution only.
func WithResolver(r Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.dice = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(cfg Settings, engine *Engine, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		ledger:  NewLedger(cfg.HistoryCapacity),
		engine:  engine,
		dice:    engine,
		notify:  nopNotifier{},
		persist: nopPersister{},
		log:     logger,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sched = NewScheduler(s.settle, logger)
	s.sched.now = s.now
	return s
}

// Ledger exposes the underlying store for read-only queries and tests.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// Restore loads snap as the authoritative state and reschedules wagers still pending.
// It must be called before Run; the store is never reloaded over live state.
func (s *Service) Restore(snap Snapshot) {
	s.ledger.Restore(snap)
	for _, b := range snap.Games {
		if b.State == BetPending {
			s.sched.Schedule(b.ID, b.ReadyAt)
		}
	}
}

// Run drives wager settlement until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	return s.sched.Run(ctx)
}

func (s *Service) RegisterUser(ctx context.Context, username, credential string) (UserView, error) {
	u, err := s.ledger.CreateUser(username, credential, s.now())
	if err != nil {
		return UserView{}, err
	}
	s.log.InfoContext(ctx, "user registered", "user_id", u.ID, "username", u.Username)
	s.save()
	return u, nil
}

func (s *Service) Credential(username string) (string, string, error) {
	return s.ledger.Credential(username)
}

func (s *Service) Me(userID string) (UserView, error) {
	return s.ledger.User(userID)
}

func (s *Service) History(userID string) ([]HistoryEntry, error) {
	return s.ledger.History(userID)
}

func (s *Service) ListStocks() []Stock {
	return s.ledger.Stocks()
}

func (s *Service) ListAgents() []Agent {
	return s.ledger.Agents()
}

func (s *Service) save() {
	s.ledger.markChanged()
	s.persist.Changed(s)
}

// Version is the number of mutations committed to the ledger.
func (s *Service) Version() uint64 {
	return s.ledger.Version()
}

// Snapshot copies the whole ledger for persistence.
func (s *Service) Snapshot() Snapshot {
	snap := s.ledger.Snapshot()
	snap.SavedAt = s.now()
	return snap
}

func (s *Service) publishStocks() {
	s.notify.Publish(Event{Type: EventStocksUpdate, Data: s.ledger.Stocks()})
}

func (s *Service) publishAgents() {
	s.notify.Publish(Event{Type: EventAgentsUpdate, Data: s.ledger.Agents()})
}

func (s *Service) publishBalance(userID string, balance int64) {
	s.notify.Publish(Event{Type: EventBalancesUpdate, Data: BalanceUpdate{UserID: userID, Balance: balance}})
}

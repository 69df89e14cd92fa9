package game

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger is the authoritative in-memory state. Every read-modify-write runs under mu, so
// cross-entity operations (bankrupt sweeps, agent ticks) are atomic with respect to single
// user mutations.
type Ledger struct {
	mu sync.Mutex

	users      map[string]*User
	byUsername map[string]string
	stocks     map[string]*Stock
	symbols    []string
	agents     []*Agent
	codes      map[string]*DepositCode
	bets       map[string]*BetRecord
	games      []string

	// version counts committed mutations.
	version uint64

	historyCap int
}

func NewLedger(historyCap int) *Ledger {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCapacity
	}
	return &Ledger{
		users:      make(map[string]*User),
		byUsername: make(map[string]string),
		stocks:     make(map[string]*Stock),
		codes:      make(map[string]*DepositCode),
		bets:       make(map[string]*BetRecord),
		historyCap: historyCap,
	}
}

// Restore replaces the whole state with snap.
func (l *Ledger) Restore(snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.users = make(map[string]*User, len(snap.Users))
	l.byUsername = make(map[string]string, len(snap.Users))
	for _, u := range snap.Users {
		u := cloneUser(u)
		l.users[u.ID] = &u
		l.byUsername[strings.ToLower(u.Username)] = u.ID
	}
	l.stocks = make(map[string]*Stock, len(snap.Stocks))
	l.symbols = l.symbols[:0]
	for _, s := range snap.Stocks {
		s := cloneStock(s)
		l.stocks[s.Symbol] = &s
		l.symbols = append(l.symbols, s.Symbol)
	}
	sort.Strings(l.symbols)
	l.agents = l.agents[:0]
	for _, a := range snap.Agents {
		a := cloneAgent(a)
		l.agents = append(l.agents, &a)
	}
	l.codes = make(map[string]*DepositCode, len(snap.DepositCodes))
	for _, c := range snap.DepositCodes {
		c := c
		l.codes[c.Code] = &c
	}
	l.bets = make(map[string]*BetRecord, len(snap.Games))
	l.games = l.games[:0]
	for _, b := range snap.Games {
		b := b
		l.bets[b.ID] = &b
		l.games = append(l.games, b.ID)
	}
	l.version = snap.Version
}

// markChanged bumps the version after a committed mutation and returns it.
func (l *Ledger) markChanged() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.version++
	return l.version
}

func (l *Ledger) Version() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := Snapshot{
		Users:        make([]User, 0, len(l.users)),
		Stocks:       l.stocksLocked(),
		Agents:       l.agentsLocked(),
		DepositCodes: make([]DepositCode, 0, len(l.codes)),
		Games:        make([]BetRecord, 0, len(l.games)),
		Version:      l.version,
	}
	for _, u := range l.users {
		out.Users = append(out.Users, cloneUser(*u))
	}
	sort.Slice(out.Users, func(i, j int) bool { return out.Users[i].CreatedAt.Before(out.Users[j].CreatedAt) })
	for _, c := range l.codes {
		out.DepositCodes = append(out.DepositCodes, *c)
	}
	sort.Slice(out.DepositCodes, func(i, j int) bool { return out.DepositCodes[i].Code < out.DepositCodes[j].Code })
	for _, id := range l.games {
		out.Games = append(out.Games, *l.bets[id])
	}
	return out
}

func (l *Ledger) CreateUser(username, credential string, now time.Time) (UserView, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return UserView{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.ToLower(username)
	if _, ok := l.byUsername[key]; ok {
		return UserView{}, ErrUsernameTaken
	}
	u := &User{
		ID:         uuid.NewString(),
		Username:   username,
		Credential: credential,
		Balance:    StartingBalance,
		Stocks:     map[string]int64{},
		BoughtOnce: map[string]bool{},
		CreatedAt:  now,
	}
	l.users[u.ID] = u
	l.byUsername[key] = u.ID
	return viewOf(u), nil
}

// Credential returns the user id and stored credential for username.
func (l *Ledger) Credential(username string) (string, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, ok := l.byUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return "", "", ErrNotAuthenticated
	}
	return id, l.users[id].Credential, nil
}

func (l *Ledger) User(userID string) (UserView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[userID]
	if !ok {
		return UserView{}, ErrNotAuthenticated
	}
	return viewOf(u), nil
}

func (l *Ledger) History(userID string) ([]HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[userID]
	if !ok {
		return nil, ErrNotAuthenticated
	}
	return cloneHistory(u.History), nil
}

func (l *Ledger) Stocks() []Stock {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stocksLocked()
}

func (l *Ledger) Stock(symbol string) (Stock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.stocks[normalizeSymbol(symbol)]
	if !ok {
		return Stock{}, ErrNoSuchStock
	}
	return cloneStock(*s), nil
}

func (l *Ledger) Agents() []Agent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.agentsLocked()
}

func (l *Ledger) DepositCode(code string) (DepositCode, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.codes[code]
	if !ok {
		return DepositCode{}, false
	}
	return *c, true
}

func (l *Ledger) stocksLocked() []Stock {
	out := make([]Stock, 0, len(l.symbols))
	for _, sym := range l.symbols {
		out = append(out, cloneStock(*l.stocks[sym]))
	}
	return out
}

func (l *Ledger) agentsLocked() []Agent {
	out := make([]Agent, 0, len(l.agents))
	for _, a := range l.agents {
		out = append(out, cloneAgent(*a))
	}
	return out
}

func (l *Ledger) addStockLocked(s *Stock) {
	if _, ok := l.stocks[s.Symbol]; !ok {
		l.symbols = append(l.symbols, s.Symbol)
		sort.Strings(l.symbols)
	}
	l.stocks[s.Symbol] = s
}

func (l *Ledger) appendPriceLocked(s *Stock, at time.Time) {
	s.History = append(s.History, PricePoint{At: at, Price: s.Price})
	if over := len(s.History) - l.historyCap; over > 0 {
		s.History = append(s.History[:0:0], s.History[over:]...)
	}
}

func viewOf(u *User) UserView {
	return UserView{
		ID:       u.ID,
		Username: u.Username,
		Balance:  u.Balance,
		Stocks:   cloneCounts(u.Stocks),
	}
}

func cloneUser(u User) User {
	u.Stocks = cloneCounts(u.Stocks)
	bought := make(map[string]bool, len(u.BoughtOnce))
	for k, v := range u.BoughtOnce {
		bought[k] = v
	}
	u.BoughtOnce = bought
	u.History = cloneHistory(u.History)
	return u
}

func cloneStock(s Stock) Stock {
	s.Holders = cloneCounts(s.Holders)
	s.History = append([]PricePoint(nil), s.History...)
	return s
}

func cloneAgent(a Agent) Agent {
	a.Stocks = cloneCounts(a.Stocks)
	return a
}

func cloneHistory(in []HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, len(in))
	for i, h := range in {
		h.Dice = append([]int(nil), h.Dice...)
		out[i] = h
	}
	return out
}

func cloneCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

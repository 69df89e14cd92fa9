package game

import "time"

type User struct {
	ID         string           `json:"id"`
	Username   string           `json:"username"`
	Credential string           `json:"credential"`
	Balance    int64            `json:"balance"`
	Stocks     map[string]int64 `json:"stocks"`
	BoughtOnce map[string]bool  `json:"bought_once"`
	History    []HistoryEntry   `json:"history"`
	CreatedAt  time.Time        `json:"created_at"`
}

type Stock struct {
	Symbol  string           `json:"symbol"`
	Name    string           `json:"name"`
	Price   int64            `json:"price"`
	Supply  int64            `json:"supply"`
	Holders map[string]int64 `json:"holders"`
	History []PricePoint     `json:"history"`
}

type PricePoint struct {
	At    time.Time `json:"ts"`
	Price int64     `json:"price"`
}

type DepositCode struct {
	Code      string    `json:"code"`
	Amount    int64     `json:"amount"`
	Days      int       `json:"days"`
	CreatedAt time.Time `json:"created_at"`
	Disabled  bool      `json:"disabled"`
}

// Expired reports whether the validity window has elapsed at now. Days == 0 never expires.
func (d DepositCode) Expired(now time.Time) bool {
	if d.Days <= 0 {
		return false
	}
	return now.Sub(d.CreatedAt) > time.Duration(d.Days)*24*time.Hour
}

type Agent struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Balance int64            `json:"balance"`
	Stocks  map[string]int64 `json:"stocks"`
}

type BetState string

const (
	BetPlaced   BetState = "placed"
	BetPending  BetState = "pending"
	BetResolved BetState = "resolved"
	BetRevealed BetState = "revealed"
)

type BetRecord struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Amount   int64     `json:"amount"`
	Side     Side      `json:"side"`
	Result   Outcome   `json:"result"`
	Dice     [3]int    `json:"dice"`
	Sum      int       `json:"sum"`
	State    BetState  `json:"state"`
	PlacedAt time.Time `json:"ts"`
	ReadyAt  time.Time `json:"ready_at"`
}

type HistoryKind string

const (
	HistoryBet       HistoryKind = "bet"
	HistoryStockBuy  HistoryKind = "stock_buy"
	HistoryStockSell HistoryKind = "stock_sell"
	HistoryDeposit   HistoryKind = "deposit"
)

// HistoryEntry is a tagged union; only the fields relevant to Type are set.
type HistoryEntry struct {
	Type   HistoryKind `json:"type"`
	At     time.Time   `json:"ts"`
	BetID  string      `json:"bet_id,omitempty"`
	Amount int64       `json:"amount,omitempty"`
	Side   Side        `json:"side,omitempty"`
	Result Outcome     `json:"result,omitempty"`
	Dice   []int       `json:"dice,omitempty"`
	Symbol string      `json:"symbol,omitempty"`
	Qty    int64       `json:"qty,omitempty"`
	Price  int64       `json:"price,omitempty"`
	Code   string      `json:"code,omitempty"`
}

// Snapshot is the full persisted ledger state.
type Snapshot struct {
	Users        []User        `json:"users"`
	Stocks       []Stock       `json:"stocks"`
	Agents       []Agent       `json:"ais"`
	DepositCodes []DepositCode `json:"deposit_codes"`
	Games        []BetRecord   `json:"games"`
	Version      uint64        `json:"version"`
	SavedAt      time.Time     `json:"saved_at"`
}

type UserView struct {
	ID       string           `json:"id"`
	Username string           `json:"username"`
	Balance  int64            `json:"balance"`
	Stocks   map[string]int64 `json:"stocks"`
}

type BetTicket struct {
	BetID   string    `json:"bet_id"`
	ReadyAt time.Time `json:"ready_at"`
}

type TradeResult struct {
	Balance  int64            `json:"balance"`
	Holdings map[string]int64 `json:"holdings"`
}

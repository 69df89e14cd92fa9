package game

const (
	EventBetStarted     = "bet:started"
	EventBetReady       = "bet:ready"
	EventBalancesUpdate = "balances:update"
	EventStocksUpdate   = "stocks:update"
	EventAgentsUpdate   = "ais:update"
)

// Event is a state change pushed to observers. UserID is set for events addressed to a
// single user; empty means broadcast.
type Event struct {
	Type   string `json:"type"`
	UserID string `json:"user_id,omitempty"`
	Data   any    `json:"data"`
}

// Notifier fans events out to observers. Publish must not block.
type Notifier interface {
	Publish(Event)
}

// Persister is told after every mutation that src moved to a new version. Changed must
// not block; the persister reads the state back from src when it writes.
type Persister interface {
	Changed(src StateSource)
}

// StateSource hands out consistent copies of the ledger. Snapshot().Version is the version
// the copy was taken at.
type StateSource interface {
	Version() uint64
	Snapshot() Snapshot
}

type BetReady struct {
	BetID   string  `json:"bet_id"`
	Dice    [3]int  `json:"dice"`
	Result  Outcome `json:"result"`
	Balance int64   `json:"balance"`
}

type BalanceUpdate struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

type nopNotifier struct{}

func (nopNotifier) Publish(Event) {}

type nopPersister struct{}

func (nopPersister) Changed(StateSource) {}

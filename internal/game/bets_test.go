package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceBetLoseThenWin(t *testing.T) {
	h := newHarness(t, WithResolver(&scriptedDice{outcomes: []Outcome{OutcomeLose, OutcomeWin}}))
	u := h.register(t, "dana")
	ctx := context.Background()

	_, err := h.svc.PlaceBet(ctx, u.ID, 100_000, SideTai)
	require.NoError(t, err)
	me, _ := h.svc.Me(u.ID)
	require.Equal(t, int64(9_900_000), me.Balance)

	// A win nets +amount: the stake is debited and twice the stake credited.
	_, err = h.svc.PlaceBet(ctx, u.ID, 100_000, SideXiu)
	require.NoError(t, err)
	me, _ = h.svc.Me(u.ID)
	require.Equal(t, int64(10_000_000), me.Balance)
}

func TestPlaceBetPushForfeitsStake(t *testing.T) {
	h := newHarness(t, WithResolver(&scriptedDice{outcomes: []Outcome{OutcomePush}}))
	u := h.register(t, "erin")

	_, err := h.svc.PlaceBet(context.Background(), u.ID, 500_000, SideXiu)
	require.NoError(t, err)
	me, _ := h.svc.Me(u.ID)
	require.Equal(t, StartingBalance-500_000, me.Balance)
}

func TestPlaceBetValidation(t *testing.T) {
	h := newHarness(t)
	u := h.register(t, "frank")
	ctx := context.Background()

	for _, amount := range []int64{0, -20_000, 1, 30_000, 1_000_000} {
		_, err := h.svc.PlaceBet(ctx, u.ID, amount, SideTai)
		require.ErrorIs(t, err, ErrInvalidAmount, "amount %d", amount)
	}
	_, err := h.svc.PlaceBet(ctx, u.ID, 20_000, Side("big"))
	require.ErrorIs(t, err, ErrInvalidSide)
	_, err = h.svc.PlaceBet(ctx, "ghost", 20_000, SideTai)
	require.ErrorIs(t, err, ErrNotAuthenticated)

	me, _ := h.svc.Me(u.ID)
	require.Equal(t, StartingBalance, me.Balance)
}

func TestPlaceBetAllowsNegativeBalance(t *testing.T) {
	h := newHarness(t, WithResolver(&scriptedDice{outcomes: []Outcome{OutcomeLose}}))
	u := h.register(t, "gina")
	h.setBalance(t, u.ID, 10_000)

	_, err := h.svc.PlaceBet(context.Background(), u.ID, 20_000, SideTai)
	require.NoError(t, err)
	me, _ := h.svc.Me(u.ID)
	require.Equal(t, int64(-10_000), me.Balance)
}

func TestBetLifecycle(t *testing.T) {
	h := newHarness(t, WithResolver(&scriptedDice{outcomes: []Outcome{OutcomeWin}}))
	u := h.register(t, "hank")
	ctx := context.Background()

	ticket, err := h.svc.PlaceBet(ctx, u.ID, 200_000, SideTai)
	require.NoError(t, err)
	require.Equal(t, h.clock.Now().Add(30*time.Second), ticket.ReadyAt)

	rec, err := h.svc.Bet(u.ID, ticket.BetID)
	require.NoError(t, err)
	require.Equal(t, BetPending, rec.State)
	require.Equal(t, OutcomeWin, rec.Result)
	require.Equal(t, 12, rec.Sum)

	_, err = h.svc.Reveal(ctx, u.ID, ticket.BetID)
	require.ErrorIs(t, err, ErrBetNotReady)

	started := h.events.ofType(EventBetStarted)
	require.Len(t, started, 1)
	require.Equal(t, u.ID, started[0].UserID)

	before, _ := h.svc.Me(u.ID)
	h.svc.settle(ticket.BetID)
	h.svc.settle(ticket.BetID)

	ready := h.events.ofType(EventBetReady)
	require.Len(t, ready, 1)
	require.Equal(t, u.ID, ready[0].UserID)
	payload := ready[0].Data.(BetReady)
	require.Equal(t, rec.Dice, payload.Dice)
	require.Equal(t, OutcomeWin, payload.Result)
	require.Equal(t, before.Balance, payload.Balance)

	got, err := h.svc.Reveal(ctx, u.ID, ticket.BetID)
	require.NoError(t, err)
	require.Equal(t, BetRevealed, got.State)
	got, err = h.svc.Reveal(ctx, u.ID, ticket.BetID)
	require.NoError(t, err)
	require.Equal(t, BetRevealed, got.State)

	after, _ := h.svc.Me(u.ID)
	require.Equal(t, before.Balance, after.Balance)
}

func TestBetNotVisibleToOtherUsers(t *testing.T) {
	h := newHarness(t)
	owner := h.register(t, "owner")
	other := h.register(t, "other")

	ticket, err := h.svc.PlaceBet(context.Background(), owner.ID, 20_000, SideTai)
	require.NoError(t, err)

	_, err = h.svc.Bet(other.ID, ticket.BetID)
	require.ErrorIs(t, err, ErrBetNotFound)
	_, err = h.svc.Reveal(context.Background(), other.ID, ticket.BetID)
	require.ErrorIs(t, err, ErrBetNotFound)
	_, err = h.svc.Bet(owner.ID, "missing")
	require.ErrorIs(t, err, ErrBetNotFound)
}

func TestBetHistoryRecordsDice(t *testing.T) {
	h := newHarness(t, WithResolver(&scriptedDice{outcomes: []Outcome{OutcomeLose}}))
	u := h.register(t, "ivy")

	ticket, err := h.svc.PlaceBet(context.Background(), u.ID, 50_000, SideXiu)
	require.NoError(t, err)

	hist, err := h.svc.History(u.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, HistoryBet, hist[0].Type)
	require.Equal(t, ticket.BetID, hist[0].BetID)
	require.Equal(t, OutcomeLose, hist[0].Result)
	require.Equal(t, []int{4, 4, 4}, hist[0].Dice)
}

func TestConcurrentBetsSameUser(t *testing.T) {
	h := newHarness(t)
	u := h.register(t, "jack")
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	tickets := make([]BetTicket, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk, err := h.svc.PlaceBet(ctx, u.ID, 20_000, SideTai)
			assert.NoError(t, err)
			tickets[i] = tk
		}(i)
	}
	wg.Wait()

	want := StartingBalance
	for _, tk := range tickets {
		rec, err := h.svc.Bet(u.ID, tk.BetID)
		require.NoError(t, err)
		want -= rec.Amount
		if rec.Result == OutcomeWin {
			want += 2 * rec.Amount
		}
	}
	me, _ := h.svc.Me(u.ID)
	require.Equal(t, want, me.Balance)
}

func TestRunSettlesEachBetOnce(t *testing.T) {
	h := newHarness(t)
	h.svc.cfg.BetDelay = 0
	u := h.register(t, "kate")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.svc.Run(ctx) }()

	for i := 0; i < 10; i++ {
		_, err := h.svc.PlaceBet(ctx, u.ID, 20_000, SideTai)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return len(h.events.ofType(EventBetReady)) == 10 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	seen := map[string]bool{}
	for _, e := range h.events.ofType(EventBetReady) {
		id := e.Data.(BetReady).BetID
		require.False(t, seen[id], "bet %s settled twice", id)
		seen[id] = true
	}
}

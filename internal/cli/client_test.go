package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taixiu/internal/api"
	"taixiu/internal/auth"
	"taixiu/internal/config"
	"taixiu/internal/game"
	"taixiu/internal/notify"
)

func newTestAPI(t *testing.T) (*Client, *game.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := notify.NewHub(16, logger)
	svc := game.NewService(game.Settings{BetDelay: time.Minute, HistoryCapacity: 10}, game.NewEngine(rand.NewSource(3)), logger, game.WithNotifier(hub))
	svc.Restore(game.Snapshot{Stocks: []game.Stock{
		{Symbol: "LOW", Name: "LOW Corp", Price: 500, Supply: 100, Holders: map[string]int64{}},
	}})
	cfg := config.APIConfig{AdminToken: "adm", CORSOrigins: []string{"*"}}
	srv := api.New(cfg, logger, auth.NewTokens("secret", time.Hour), svc, hub)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL + "/"), svc
}

func TestClientRoundTrip(t *testing.T) {
	c, _ := newTestAPI(t)
	ctx := context.Background()

	session, err := c.Register(ctx, "player1", "hunter22")
	require.NoError(t, err)
	tok := session.AccessToken

	_, err = c.Register(ctx, "player1", "hunter22")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)
	require.Equal(t, game.ErrUsernameTaken.Error(), apiErr.Message)

	login, err := c.Login(ctx, "player1", "hunter22")
	require.NoError(t, err)
	require.Equal(t, session.User.ID, login.User.ID)

	me, err := c.Me(ctx, tok)
	require.NoError(t, err)
	require.Equal(t, game.StartingBalance, me.Balance)

	ticket, err := c.PlaceBet(ctx, tok, 10_000, game.SideXiu)
	require.NoError(t, err)
	st, err := c.Bet(ctx, tok, ticket.BetID)
	require.NoError(t, err)
	require.Equal(t, game.BetPending, st.State)
	require.Empty(t, st.Result)

	_, err = c.Reveal(ctx, tok, ticket.BetID)
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)

	stocks, err := c.ListStocks(ctx)
	require.NoError(t, err)
	require.Len(t, stocks, 1)

	bought, err := c.Buy(ctx, tok, "low", 30)
	require.NoError(t, err)
	require.Equal(t, int64(30), bought.Holdings["LOW"])
	_, err = c.Sell(ctx, tok, "LOW", 10)
	require.NoError(t, err)
	low, err := c.Stock(ctx, "LOW")
	require.NoError(t, err)
	require.Equal(t, int64(80), low.Supply)

	require.NoError(t, c.CreateDepositCode(ctx, "adm", "WELCOME", 100_000, 1))
	balance, err := c.Redeem(ctx, tok, "WELCOME")
	require.NoError(t, err)
	require.Greater(t, balance, int64(0))
	require.NoError(t, c.DisableDepositCode(ctx, "adm", "WELCOME"))

	err = c.CreateDepositCode(ctx, "wrong", "OTHER", 1, 1)
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)

	adjusted, err := c.AdjustStock(ctx, "adm", "LOW", game.ActionDown)
	require.NoError(t, err)
	require.Equal(t, int64(450), adjusted.Price)

	hist, err := c.History(ctx, tok)
	require.NoError(t, err)
	require.Len(t, hist, 4)

	agents, err := c.ListAgents(ctx)
	require.NoError(t, err)
	require.Empty(t, agents)
}

func TestClientWatch(t *testing.T) {
	c, svc := newTestAPI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := c.Register(ctx, "watcher", "hunter22")
	require.NoError(t, err)

	var seen []string
	errStop := errors.New("stop")
	err = c.Watch(ctx, session.AccessToken, func(e game.Event) error {
		seen = append(seen, e.Type)
		if e.Type == game.EventAgentsUpdate {
			_, err := svc.AdjustStock(ctx, "LOW", game.ActionUp)
			require.NoError(t, err)
		}
		if len(seen) == 4 {
			return errStop
		}
		return nil
	})
	require.ErrorIs(t, err, errStop)
	require.Equal(t, []string{
		game.EventBalancesUpdate, game.EventStocksUpdate, game.EventAgentsUpdate, game.EventStocksUpdate,
	}, seen)
}

func TestClientWatchUnauthorized(t *testing.T) {
	c, _ := newTestAPI(t)
	err := c.Watch(context.Background(), "bogus", func(game.Event) error { return nil })
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestSessionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	_, err := LoadSession(path)
	require.Error(t, err)

	s := Session{AccessToken: "tok", UserID: "u1", Username: "neo", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, SaveSession(path, s))
	got, err := LoadSession(path)
	require.NoError(t, err)
	require.Equal(t, s.UserID, got.UserID)
	require.Equal(t, s.AccessToken, got.AccessToken)

	require.NoError(t, SaveSession(path, Session{AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Minute)}))
	_, err = LoadSession(path)
	require.ErrorContains(t, err, "expired")

	require.NoError(t, ClearSession(path))
	require.NoError(t, ClearSession(path))

	p, err := SessionPath("  /tmp/custom.json ")
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.json", p)
}

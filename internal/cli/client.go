package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taixiu/internal/auth"
	"taixiu/internal/game"

	"github.com/gorilla/websocket"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Register(ctx context.Context, username, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"username": username,
		"password": password,
	}, &out, nil)
	return out, err
}

func (c *Client) Login(ctx context.Context, username, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"username": username,
		"password": password,
	}, &out, nil)
	return out, err
}

func (c *Client) Me(ctx context.Context, accessToken string) (game.UserView, error) {
	var out game.UserView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/me", accessToken, nil, &out, nil)
	return out, err
}

func (c *Client) History(ctx context.Context, accessToken string) ([]game.HistoryEntry, error) {
	var out struct {
		History []game.HistoryEntry `json:"history"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/history", accessToken, nil, &out, nil)
	return out.History, err
}

func (c *Client) PlaceBet(ctx context.Context, accessToken string, amount int64, side game.Side) (game.BetTicket, error) {
	var out game.BetTicket
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/bets", accessToken, map[string]any{
		"amount": amount,
		"side":   side,
	}, &out, nil)
	return out, err
}

// BetStatus is the bet as the server shows it. Dice, Sum and Result stay empty until the
// bet has settled.
type BetStatus struct {
	BetID    string        `json:"bet_id"`
	Amount   int64         `json:"amount"`
	Side     game.Side     `json:"side"`
	State    game.BetState `json:"state"`
	PlacedAt time.Time     `json:"ts"`
	ReadyAt  time.Time     `json:"ready_at"`
	Dice     [3]int        `json:"dice"`
	Sum      int           `json:"sum"`
	Result   game.Outcome  `json:"result"`
}

func (c *Client) Bet(ctx context.Context, accessToken, betID string) (BetStatus, error) {
	var out BetStatus
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/bets/"+url.PathEscape(betID), accessToken, nil, &out, nil)
	return out, err
}

func (c *Client) Reveal(ctx context.Context, accessToken, betID string) (game.BetReady, error) {
	var out game.BetReady
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/bets/"+url.PathEscape(betID)+"/reveal", accessToken, nil, &out, nil)
	return out, err
}

func (c *Client) ListStocks(ctx context.Context) ([]game.Stock, error) {
	var out struct {
		Stocks []game.Stock `json:"stocks"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stocks", "", nil, &out, nil)
	return out.Stocks, err
}

func (c *Client) Stock(ctx context.Context, symbol string) (game.Stock, error) {
	var out game.Stock
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stocks/"+url.PathEscape(symbol), "", nil, &out, nil)
	return out, err
}

func (c *Client) ListAgents(ctx context.Context) ([]game.Agent, error) {
	var out struct {
		Agents []game.Agent `json:"ais"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/agents", "", nil, &out, nil)
	return out.Agents, err
}

func (c *Client) Buy(ctx context.Context, accessToken, symbol string, qty int64) (game.TradeResult, error) {
	return c.trade(ctx, accessToken, symbol, "buy", qty)
}

func (c *Client) Sell(ctx context.Context, accessToken, symbol string, qty int64) (game.TradeResult, error) {
	return c.trade(ctx, accessToken, symbol, "sell", qty)
}

func (c *Client) trade(ctx context.Context, accessToken, symbol, side string, qty int64) (game.TradeResult, error) {
	var out game.TradeResult
	path := "/v1/stocks/" + url.PathEscape(symbol) + "/" + side
	err := c.jsonRequest(ctx, http.MethodPost, path, accessToken, map[string]any{"qty": qty}, &out, nil)
	return out, err
}

func (c *Client) Redeem(ctx context.Context, accessToken, code string) (int64, error) {
	var out struct {
		Balance int64 `json:"balance"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/deposits/redeem", accessToken, map[string]any{"code": code}, &out, nil)
	return out.Balance, err
}

func (c *Client) AdjustStock(ctx context.Context, adminToken, symbol string, action game.StockAction) (game.Stock, error) {
	var out game.Stock
	path := "/v1/admin/stocks/" + url.PathEscape(symbol) + "/" + url.PathEscape(string(action))
	err := c.jsonRequest(ctx, http.MethodPost, path, "", nil, &out, adminHeader(adminToken))
	return out, err
}

func (c *Client) CreateDepositCode(ctx context.Context, adminToken, code string, amount int64, days int) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/admin/deposit-codes", "", map[string]any{
		"code":   code,
		"amount": amount,
		"days":   days,
	}, nil, adminHeader(adminToken))
}

func (c *Client) DisableDepositCode(ctx context.Context, adminToken, code string) error {
	return c.jsonRequest(ctx, http.MethodDelete, "/v1/admin/deposit-codes/"+url.PathEscape(code), "", nil, nil, adminHeader(adminToken))
}

// Watch streams events from the websocket feed into fn until ctx ends, the server
// closes the socket or fn returns an error.
func (c *Client) Watch(ctx context.Context, accessToken string, fn func(game.Event) error) error {
	u, err := url.Parse(c.BaseURL + "/v1/ws")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return apiErrorFrom(resp)
		}
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var e game.Event
		if err := conn.ReadJSON(&e); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

func adminHeader(token string) http.Header {
	h := http.Header{}
	h.Set("X-Admin-Token", token)
	return h
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any, extra http.Header) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apiErrorFrom(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiErrorFrom(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

package api

import (
	"context"
	"net/http"
	"strings"

	"taixiu/internal/auth"
	"taixiu/internal/game"

	"github.com/go-chi/chi/v5"
)

type credentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=24"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type betRequest struct {
	Amount int64  `json:"amount" validate:"required"`
	Side   string `json:"side" validate:"required"`
}

type tradeRequest struct {
	Qty int64 `json:"qty" validate:"required"`
}

type redeemRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type createCodeRequest struct {
	Code   string `json:"code" validate:"required,max=64"`
	Amount int64  `json:"amount" validate:"required"`
	Days   int    `json:"days" validate:"gte=0"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if !s.decodeBody(w, r, &in) {
		return
	}
	username := strings.TrimSpace(in.Username)
	if err := game.ValidateUsername(username); err != nil {
		writeDomainError(w, err)
		return
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	user, err := s.game.RegisterUser(r.Context(), username, hash)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	session, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if !s.decodeBody(w, r, &in) {
		return
	}
	userID, hash, err := s.game.Credential(in.Username)
	if err != nil || !auth.CheckPassword(hash, in.Password) {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	user, err := s.game.Me(userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	session, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.Me(user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.game.History(user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": out})
}

func (s *Server) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in betRequest
	if !s.decodeBody(w, r, &in) {
		return
	}
	side, err := game.ParseSide(in.Side)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ticket, err := s.game.PlaceBet(r.Context(), user.UserID, in.Amount, side)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ticket)
}

func (s *Server) handleBet(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	rec, err := s.game.Bet(user.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, betView(rec))
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	rec, err := s.game.Reveal(r.Context(), user.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	me, err := s.game.Me(user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game.BetReady{BetID: rec.ID, Dice: rec.Dice, Result: rec.Result, Balance: me.Balance})
}

// betView hides the result until the wager has settled.
func betView(rec game.BetRecord) map[string]any {
	out := map[string]any{
		"bet_id":   rec.ID,
		"amount":   rec.Amount,
		"side":     rec.Side,
		"state":    rec.State,
		"ts":       rec.PlacedAt,
		"ready_at": rec.ReadyAt,
	}
	if rec.State == game.BetResolved || rec.State == game.BetRevealed {
		out["dice"] = rec.Dice
		out["sum"] = rec.Sum
		out["result"] = rec.Result
	}
	return out
}

func (s *Server) handleStocksList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stocks": s.game.ListStocks()})
}

func (s *Server) handleStockDetail(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Ledger().Stock(chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAgentsList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ais": s.game.ListAgents()})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, s.game.BuyStock)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, s.game.SellStock)
}

type tradeFunc func(ctx context.Context, userID, symbol string, qty int64) (game.TradeResult, error)

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request, trade tradeFunc) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in tradeRequest
	if !s.decodeBody(w, r, &in) {
		return
	}
	out, err := trade(r.Context(), user.UserID, chi.URLParam(r, "symbol"), in.Qty)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in redeemRequest
	if !s.decodeBody(w, r, &in) {
		return
	}
	balance, err := s.game.RedeemDeposit(r.Context(), user.UserID, in.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func (s *Server) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	action, err := game.ParseStockAction(chi.URLParam(r, "action"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.game.AdjustStock(r.Context(), chi.URLParam(r, "symbol"), action)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateDepositCode(w http.ResponseWriter, r *http.Request) {
	var in createCodeRequest
	if !s.decodeBody(w, r, &in) {
		return
	}
	if err := s.game.CreateDepositCode(r.Context(), in.Code, in.Amount, in.Days); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *Server) handleDisableDepositCode(w http.ResponseWriter, r *http.Request) {
	if err := s.game.DisableDepositCode(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

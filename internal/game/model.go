package game

import (
	"errors"
	"regexp"
	"strings"
)

const (
	StartingBalance = int64(10_000_000)

	MinPurchaseQty   = int64(30)
	BankruptPenalty  = int64(200_000_000)
	MaxDepositAmount = int64(200_000)

	DefaultHistoryCapacity = 200
)

// BetDenominations is the fixed set of allowed wager amounts.
var BetDenominations = []int64{20_000, 50_000, 100_000, 200_000, 500_000}

var (
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrInvalidAmount         = errors.New("invalid bet amount")
	ErrInvalidSide           = errors.New("side must be tai or xiu")
	ErrNoSuchStock           = errors.New("stock not found")
	ErrBelowMinimumQuantity  = errors.New("quantity below minimum of 30")
	ErrInvalidQuantity       = errors.New("quantity must be > 0")
	ErrInsufficientSupply    = errors.New("insufficient supply")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrAlreadyPurchased      = errors.New("already purchased this stock")
	ErrInsufficientHoldings  = errors.New("insufficient holdings")
	ErrInvalidOrDisabledCode = errors.New("invalid or disabled deposit code")
	ErrExpiredCode           = errors.New("deposit code expired")
	ErrDuplicateCode         = errors.New("deposit code already exists")
	ErrInvalidDepositAmount  = errors.New("deposit amount must be between 1 and 200000")
	ErrInvalidAdminAction    = errors.New("action must be up, down or bankrupt")
	ErrBetNotFound           = errors.New("bet not found")
	ErrBetNotReady           = errors.New("bet not ready yet")
	ErrUsernameTaken         = errors.New("username already exists")
	ErrInvalidUsername       = errors.New("username must be 3-24 letters, digits or underscores")
)

type Side string

const (
	SideTai Side = "tai"
	SideXiu Side = "xiu"
)

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideTai:
		return SideTai, nil
	case SideXiu:
		return SideXiu, nil
	default:
		return "", ErrInvalidSide
	}
}

// Outcome is the result of a wager from the player's point of view.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
	OutcomePush Outcome = "push"
)

type StockAction string

const (
	ActionUp       StockAction = "up"
	ActionDown     StockAction = "down"
	ActionBankrupt StockAction = "bankrupt"
)

func ParseStockAction(s string) (StockAction, error) {
	switch StockAction(strings.ToLower(strings.TrimSpace(s))) {
	case ActionUp:
		return ActionUp, nil
	case ActionDown:
		return ActionDown, nil
	case ActionBankrupt:
		return ActionBankrupt, nil
	default:
		return "", ErrInvalidAdminAction
	}
}

func ValidBetAmount(amount int64) bool {
	for _, d := range BetDenominations {
		if d == amount {
			return true
		}
	}
	return false
}

var usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_]{3,24}$`)

func ValidateUsername(username string) error {
	if !usernameRE.MatchString(strings.TrimSpace(username)) {
		return ErrInvalidUsername
	}
	return nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

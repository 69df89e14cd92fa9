package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	cl "taixiu/internal/cli"
	"taixiu/internal/config"
	"taixiu/internal/game"

	"github.com/spf13/cobra"
)

type app struct {
	apiBase     string
	sessionPath string
	adminToken  string
}

func main() {
	cfg := config.LoadCLIFromEnv()
	a := &app{apiBase: cfg.APIBaseURL, sessionPath: cfg.TokenPath, adminToken: cfg.AdminToken}

	root := &cobra.Command{
		Use:          "txctl",
		Short:        "Tai Xiu game client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.apiBase, "api", a.apiBase, "API base URL")
	root.PersistentFlags().StringVar(&a.sessionPath, "session", a.sessionPath, "session file (default ~/.taixiu/session.json)")

	root.AddCommand(
		a.newRegisterCmd(),
		a.newLoginCmd(),
		a.newLogoutCmd(),
		a.newMeCmd(),
		a.newHistoryCmd(),
		a.newBetCmd(),
		a.newStocksCmd(),
		a.newTradeCmd("buy"),
		a.newTradeCmd("sell"),
		a.newRedeemCmd(),
		a.newAgentsCmd(),
		a.newWatchCmd(),
		a.newAdminCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) client() *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(a.apiBase), "/"))
}

func (a *app) session() (cl.Session, error) {
	path, err := cl.SessionPath(a.sessionPath)
	if err != nil {
		return cl.Session{}, err
	}
	sess, err := cl.LoadSession(path)
	if err != nil {
		return cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	return sess, nil
}

func (a *app) credentials(args []string) (string, string, error) {
	var username string
	if len(args) > 0 {
		username = strings.TrimSpace(args[0])
	} else {
		u, err := promptRequired("Username")
		if err != nil {
			return "", "", err
		}
		username = u
	}
	password, err := promptPassword("Password")
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

func (a *app) saveSession(s cl.Session) error {
	path, err := cl.SessionPath(a.sessionPath)
	if err != nil {
		return err
	}
	return cl.SaveSession(path, s)
}

func (a *app) newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register [username]",
		Short: "Create an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password, err := a.credentials(args)
			if err != nil {
				return err
			}
			if err := game.ValidateUsername(username); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := a.client().Register(ctx, username, password)
			if err != nil {
				return err
			}
			if err := a.saveSession(cl.Session{
				AccessToken: session.AccessToken,
				UserID:      session.User.ID,
				Username:    session.User.Username,
				ExpiresAt:   time.Now().Add(time.Duration(session.ExpiresIn) * time.Second),
			}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Welcome %s. Starting balance %s.", session.User.Username, comma(game.StartingBalance)))
			return nil
		},
	}
}

func (a *app) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Login and store the session token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password, err := a.credentials(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := a.client().Login(ctx, username, password)
			if err != nil {
				return err
			}
			if err := a.saveSession(cl.Session{
				AccessToken: session.AccessToken,
				UserID:      session.User.ID,
				Username:    session.User.Username,
				ExpiresAt:   time.Now().Add(time.Duration(session.ExpiresIn) * time.Second),
			}); err != nil {
				return err
			}
			printSuccess("Login successful.")
			return nil
		},
	}
}

func (a *app) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cl.SessionPath(a.sessionPath)
			if err != nil {
				return err
			}
			if err := cl.ClearSession(path); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func (a *app) newMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show balance and holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			me, err := a.client().Me(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderMe(me)
			return nil
		},
	}
}

func (a *app) newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show your recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().History(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderHistory(out)
			return nil
		},
	}
}

func (a *app) newBetCmd() *cobra.Command {
	bet := &cobra.Command{
		Use:   "bet",
		Short: "Place and reveal tai/xiu bets",
	}

	var wait bool
	place := &cobra.Command{
		Use:   "place <amount> <tai|xiu>",
		Short: "Place a bet",
		Long:  "Place a bet. Allowed amounts: 20000, 50000, 100000, 200000, 500000.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			amount, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || !game.ValidBetAmount(amount) {
				return game.ErrInvalidAmount
			}
			side, err := game.ParseSide(args[1])
			if err != nil {
				return err
			}
			client := a.client()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			ticket, err := client.PlaceBet(ctx, sess.AccessToken, amount, side)
			cancel()
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Bet %s placed. Dice roll at %s.", ticket.BetID, ticket.ReadyAt.Local().Format("15:04:05")))
			if !wait {
				return nil
			}
			return revealWhenReady(cmd.Context(), client, sess.AccessToken, ticket)
		},
	}
	place.Flags().BoolVar(&wait, "wait", false, "wait for the dice and reveal")

	bet.AddCommand(place)
	bet.AddCommand(&cobra.Command{
		Use:   "status <bet_id>",
		Short: "Show a bet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			st, err := a.client().Bet(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			renderBetStatus(st)
			return nil
		},
	})
	bet.AddCommand(&cobra.Command{
		Use:   "reveal <bet_id>",
		Short: "Reveal a settled bet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := a.client().Reveal(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			renderBetReady(out)
			return nil
		},
	})
	return bet
}

func revealWhenReady(ctx context.Context, client *cl.Client, token string, ticket game.BetTicket) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(ticket.ReadyAt) + 250*time.Millisecond):
		}
		rctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		out, err := client.Reveal(rctx, token, ticket.BetID)
		cancel()
		var apiErr *cl.APIError
		if errors.As(err, &apiErr) && apiErr.Message == game.ErrBetNotReady.Error() {
			ticket.ReadyAt = time.Now().Add(time.Second)
			continue
		}
		if err != nil {
			return err
		}
		renderBetReady(out)
		return nil
	}
}

func (a *app) newStocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stocks [symbol]",
		Short: "List the board or show one stock",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if len(args) == 1 {
				st, err := a.client().Stock(ctx, strings.ToUpper(strings.TrimSpace(args[0])))
				if err != nil {
					return err
				}
				renderStockDetail(st)
				return nil
			}
			stocks, err := a.client().ListStocks(ctx)
			if err != nil {
				return err
			}
			renderStocks(stocks)
			return nil
		},
	}
}

func (a *app) newTradeCmd(verb string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <symbol> [qty]",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " shares",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			qty, err := int64FromArgOrPrompt(args, 1, "Quantity")
			if err != nil {
				return err
			}
			if verb == "buy" && qty < game.MinPurchaseQty {
				return game.ErrBelowMinimumQuantity
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := a.client()
			var out game.TradeResult
			if verb == "buy" {
				out, err = client.Buy(ctx, sess.AccessToken, symbol, qty)
			} else {
				out, err = client.Sell(ctx, sess.AccessToken, symbol, qty)
			}
			if err != nil {
				return err
			}
			past := "Bought"
			if verb == "sell" {
				past = "Sold"
			}
			renderTrade(past, symbol, qty, out)
			return nil
		},
	}
}

func (a *app) newRedeemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redeem <code>",
		Short: "Redeem a deposit code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			balance, err := a.client().Redeem(ctx, sess.AccessToken, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Code redeemed. Balance %s.", comma(balance)))
			return nil
		},
	}
}

func (a *app) newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "Show the AI players",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			agents, err := a.client().ListAgents(ctx)
			if err != nil {
				return err
			}
			renderAgents(agents)
			return nil
		},
	}
}

func (a *app) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream live game events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			printInfo("Watching events, Ctrl+C to stop.")
			return a.client().Watch(ctx, sess.AccessToken, func(e game.Event) error {
				renderEvent(e)
				return nil
			})
		},
	}
}

func (a *app) newAdminCmd() *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands (needs an admin token)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(a.adminToken) == "" {
				return errors.New("admin token required: set TAIXIU_ADMIN_TOKEN or --admin-token")
			}
			return nil
		},
	}
	admin.PersistentFlags().StringVar(&a.adminToken, "admin-token", a.adminToken, "admin token")

	admin.AddCommand(&cobra.Command{
		Use:   "stock <symbol> <up|down|bankrupt>",
		Short: "Move a stock price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := game.ParseStockAction(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			st, err := a.client().AdjustStock(ctx, a.adminToken, strings.ToUpper(args[0]), action)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("%s is now %s.", st.Symbol, comma(st.Price)))
			return nil
		},
	})

	codes := &cobra.Command{
		Use:   "code",
		Short: "Manage deposit codes",
	}
	var days int
	create := &cobra.Command{
		Use:   "create <code> <amount>",
		Short: "Create a one-time deposit code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := int64FromArgOrPrompt(args, 1, "Amount")
			if err != nil {
				return err
			}
			if amount > game.MaxDepositAmount {
				return game.ErrInvalidDepositAmount
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := a.client().CreateDepositCode(ctx, a.adminToken, args[0], amount, days); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Code %s worth %s created.", args[0], comma(amount)))
			return nil
		},
	}
	create.Flags().IntVar(&days, "days", 0, "days until the code expires (0 never)")
	codes.AddCommand(create)
	codes.AddCommand(&cobra.Command{
		Use:   "disable <code>",
		Short: "Disable a deposit code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := a.client().DisableDepositCode(ctx, a.adminToken, args[0]); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Code %s disabled.", args[0]))
			return nil
		},
	})
	admin.AddCommand(codes)
	return admin
}

func int64FromArgOrPrompt(args []string, idx int, label string) (int64, error) {
	if len(args) > idx {
		v, err := strconv.ParseInt(strings.TrimSpace(args[idx]), 10, 64)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("invalid %s", strings.ToLower(label))
		}
		return v, nil
	}
	return promptInt64(label, 1)
}

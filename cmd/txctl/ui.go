package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"taixiu/internal/cli"
	"taixiu/internal/game"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptPassword reads without echo when stdin is a terminal.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func renderMe(me game.UserView) {
	accent.Printf("\n== %s ==\n", me.Username)
	fmt.Printf("Balance: %s\n", colorizeMoney(me.Balance))
	if len(me.Stocks) == 0 {
		printInfo("No holdings yet.")
		fmt.Println()
		return
	}
	fmt.Printf("%-8s %10s\n", "SYMBOL", "QTY")
	for _, sym := range sortedKeys(me.Stocks) {
		fmt.Printf("%-8s %10d\n", sym, me.Stocks[sym])
	}
	fmt.Println()
}

func renderHistory(entries []game.HistoryEntry) {
	accent.Println("\n== HISTORY ==")
	if len(entries) == 0 {
		printInfo("Nothing yet.")
		return
	}
	for _, e := range entries {
		at := e.At.Local().Format("2006-01-02 15:04:05")
		switch e.Type {
		case game.HistoryBet:
			fmt.Printf("%s  bet   %-4s %12s  %v  %s\n", at, e.Side, comma(e.Amount), e.Dice, colorizeOutcome(e.Result))
		case game.HistoryStockBuy, game.HistoryStockSell:
			fmt.Printf("%s  %-5s %-6s x%-4d @ %s\n", at, strings.TrimPrefix(string(e.Type), "stock_"), e.Symbol, e.Qty, comma(e.Price))
		case game.HistoryDeposit:
			fmt.Printf("%s  code  %-12s %s\n", at, e.Code, colorizeMoney(e.Amount))
		default:
			fmt.Printf("%s  %s\n", at, e.Type)
		}
	}
	fmt.Println()
}

func renderStocks(stocks []game.Stock) {
	accent.Println("\n== STOCK MARKET ==")
	if len(stocks) == 0 {
		printInfo("No stocks found.")
		return
	}
	fmt.Printf("%-8s %-20s %16s %8s %12s\n", "SYMBOL", "NAME", "PRICE", "SUPPLY", "TREND")
	for _, s := range stocks {
		fmt.Printf("%-8s %-20s %16s %8d %12s\n", s.Symbol, truncate(s.Name, 20), comma(s.Price), s.Supply, colorizeDelta(trend(s)))
	}
	fmt.Println()
}

func renderStockDetail(s game.Stock) {
	accent.Printf("\n== %s (%s) ==\n", s.Symbol, s.Name)
	fmt.Printf("Price:  %s\n", comma(s.Price))
	fmt.Printf("Supply: %d\n", s.Supply)
	if len(s.History) > 1 {
		fmt.Printf("Trend:  %s\n", colorizeDelta(trend(s)))
	}
	if len(s.History) > 0 {
		fmt.Println()
		accent.Println("Recent Ticks")
		fmt.Printf("%-20s %16s\n", "TIME", "PRICE")
		start := len(s.History) - 8
		if start < 0 {
			start = 0
		}
		for i := len(s.History) - 1; i >= start; i-- {
			p := s.History[i]
			fmt.Printf("%-20s %16s\n", p.At.Local().Format("2006-01-02 15:04"), comma(p.Price))
		}
	}
	fmt.Println()
}

func renderAgents(agents []game.Agent) {
	accent.Println("\n== AI PLAYERS ==")
	if len(agents) == 0 {
		printInfo("No agents.")
		return
	}
	fmt.Printf("%-6s %-14s %18s  %s\n", "ID", "NAME", "BALANCE", "HOLDINGS")
	for _, a := range agents {
		var parts []string
		for _, sym := range sortedKeys(a.Stocks) {
			parts = append(parts, fmt.Sprintf("%s:%d", sym, a.Stocks[sym]))
		}
		fmt.Printf("%-6s %-14s %18s  %s\n", a.ID, truncate(a.Name, 14), comma(a.Balance), strings.Join(parts, " "))
	}
	fmt.Println()
}

func renderTrade(verb, symbol string, qty int64, out game.TradeResult) {
	printSuccess(fmt.Sprintf("%s %d %s.", verb, qty, symbol))
	fmt.Printf("Balance: %s\n", comma(out.Balance))
	fmt.Printf("Holding: %d %s\n", out.Holdings[symbol], symbol)
}

func renderBetStatus(st cli.BetStatus) {
	fmt.Printf("Bet %s: %s %s on %s\n", st.BetID, st.State, comma(st.Amount), st.Side)
	if st.Result != "" {
		fmt.Printf("Dice %v = %d  %s\n", st.Dice, st.Sum, colorizeOutcome(st.Result))
	} else {
		fmt.Printf("Ready at %s\n", st.ReadyAt.Local().Format("15:04:05"))
	}
}

func renderBetReady(r game.BetReady) {
	accent.Printf("Dice: %d %d %d\n", r.Dice[0], r.Dice[1], r.Dice[2])
	fmt.Printf("Result:  %s\n", colorizeOutcome(r.Result))
	fmt.Printf("Balance: %s\n", comma(r.Balance))
}

func renderEvent(e game.Event) {
	switch e.Type {
	case game.EventBetStarted:
		t, err := decodeInto[game.BetTicket](e.Data)
		if err == nil {
			fmt.Printf("[%s] %s ready at %s\n", e.Type, t.BetID, t.ReadyAt.Local().Format("15:04:05"))
			return
		}
	case game.EventBetReady:
		r, err := decodeInto[game.BetReady](e.Data)
		if err == nil {
			fmt.Printf("[%s] %s %v %s balance %s\n", e.Type, r.BetID, r.Dice, colorizeOutcome(r.Result), comma(r.Balance))
			return
		}
	case game.EventBalancesUpdate:
		b, err := decodeInto[game.BalanceUpdate](e.Data)
		if err == nil {
			fmt.Printf("[%s] %s %s\n", e.Type, b.UserID, comma(b.Balance))
			return
		}
	case game.EventStocksUpdate:
		stocks, err := decodeInto[[]game.Stock](e.Data)
		if err == nil {
			var parts []string
			for _, s := range stocks {
				parts = append(parts, s.Symbol+"="+comma(s.Price))
			}
			fmt.Printf("[%s] %s\n", e.Type, strings.Join(parts, " "))
			return
		}
	case game.EventAgentsUpdate:
		agents, err := decodeInto[[]game.Agent](e.Data)
		if err == nil {
			var parts []string
			for _, a := range agents {
				parts = append(parts, a.Name+"="+comma(a.Balance))
			}
			fmt.Printf("[%s] %s\n", e.Type, strings.Join(parts, " "))
			return
		}
	}
	fmt.Printf("[%s]\n", e.Type)
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func trend(s game.Stock) int64 {
	if len(s.History) < 2 {
		return 0
	}
	return s.History[len(s.History)-1].Price - s.History[0].Price
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func colorizeOutcome(o game.Outcome) string {
	switch o {
	case game.OutcomeWin:
		return success.Sprint("WIN")
	case game.OutcomeLose:
		return danger.Sprint("LOSE")
	default:
		return warn.Sprint(strings.ToUpper(string(o)))
	}
}

func colorizeMoney(v int64) string {
	if v < 0 {
		return danger.Sprint(comma(v))
	}
	return neutral.Sprint(comma(v))
}

func colorizeDelta(v int64) string {
	text := comma(v)
	switch {
	case v > 0:
		return success.Sprint("+" + text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

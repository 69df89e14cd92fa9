package game

import (
	"math/rand"
	"sync"
)

const (
	winWeight  = 39
	loseWeight = 51

	decomposeAttempts = 400
)

// Roll is a resolved wager: the player outcome, the sum it implies and the dice shown.
type Roll struct {
	Outcome  Outcome
	Target   int
	Dice     [3]int
	Sum      int
	Fallback bool
}

// Resolver fixes the result of a single wager.
type Resolver interface {
	Resolve(side Side) Roll
}

// Engine draws outcomes and dice. It is safe for concurrent use.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewEngine(src rand.Source) *Engine {
	return &Engine{rng: rand.New(src)}
}

func (e *Engine) Resolve(side Side) Roll {
	e.mu.Lock()
	defer e.mu.Unlock()

	outcome := outcomeFor(e.rng.Float64() * 100)
	target := targetSum(outcome, side, e.rng)
	dice, ok := decompose(target, e.rng)
	return Roll{
		Outcome:  outcome,
		Target:   target,
		Dice:     dice,
		Sum:      dice[0] + dice[1] + dice[2],
		Fallback: !ok,
	}
}

// Intn and Float64 expose the engine's source to tickers that need extra draws.
func (e *Engine) Intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}

func (e *Engine) Float64() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

func outcomeFor(r float64) Outcome {
	switch {
	case r < winWeight:
		return OutcomeWin
	case r < winWeight+loseWeight:
		return OutcomeLose
	default:
		return OutcomePush
	}
}

func targetSum(outcome Outcome, side Side, rng *rand.Rand) int {
	switch outcome {
	case OutcomeWin, OutcomeLose:
		high := (outcome == OutcomeWin) == (side == SideTai)
		if high {
			return 11 + rng.Intn(7)
		}
		return 4 + rng.Intn(7)
	default:
		if rng.Float64() < 0.5 {
			return 3
		}
		return 18
	}
}

func decompose(target int, rng *rand.Rand) ([3]int, bool) {
	for i := 0; i < decomposeAttempts; i++ {
		d1 := 1 + rng.Intn(6)
		d2 := 1 + rng.Intn(6)
		d3 := target - d1 - d2
		if d3 >= 1 && d3 <= 6 {
			return [3]int{d1, d2, d3}, true
		}
	}
	return [3]int{1 + rng.Intn(6), 1 + rng.Intn(6), 1 + rng.Intn(6)}, false
}

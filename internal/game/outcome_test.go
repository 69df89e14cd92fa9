package game

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutcomeFor(t *testing.T) {
	tests := []struct {
		r    float64
		want Outcome
	}{
		{r: 0, want: OutcomeWin},
		{r: 38.999, want: OutcomeWin},
		{r: 39, want: OutcomeLose},
		{r: 89.999, want: OutcomeLose},
		{r: 90, want: OutcomePush},
		{r: 99.999, want: OutcomePush},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, outcomeFor(tc.r), "r=%v", tc.r)
	}
}

func TestResolveDistributionConverges(t *testing.T) {
	e := NewEngine(rand.NewSource(7))
	const n = 200_000
	counts := map[Outcome]int{}
	for i := 0; i < n; i++ {
		side := SideTai
		if i%2 == 1 {
			side = SideXiu
		}
		counts[e.Resolve(side).Outcome]++
	}

	want := map[Outcome]float64{OutcomeWin: 0.39, OutcomeLose: 0.51, OutcomePush: 0.10}
	for outcome, p := range want {
		got := float64(counts[outcome]) / n
		// Five standard deviations of a binomial proportion.
		tol := 5 * math.Sqrt(p*(1-p)/n)
		require.InDelta(t, p, got, tol, "outcome %s", outcome)
	}
}

func TestResolveDiceMatchTarget(t *testing.T) {
	e := NewEngine(rand.NewSource(42))
	for i := 0; i < 20_000; i++ {
		side := SideTai
		if i%3 == 0 {
			side = SideXiu
		}
		roll := e.Resolve(side)
		for _, d := range roll.Dice {
			require.GreaterOrEqual(t, d, 1)
			require.LessOrEqual(t, d, 6)
		}
		require.Equal(t, roll.Dice[0]+roll.Dice[1]+roll.Dice[2], roll.Sum)

		switch roll.Outcome {
		case OutcomeWin, OutcomeLose:
			require.False(t, roll.Fallback, "sums 4..17 always decompose")
			require.Equal(t, roll.Target, roll.Sum)
			high := roll.Sum >= 11
			require.Equal(t, (roll.Outcome == OutcomeWin) == (side == SideTai), high,
				"outcome=%s side=%s sum=%d", roll.Outcome, side, roll.Sum)
		case OutcomePush:
			require.Contains(t, []int{3, 18}, roll.Target)
			if !roll.Fallback {
				require.Equal(t, roll.Target, roll.Sum)
			}
		}
	}
}

func TestTargetSumRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	seen := map[int]bool{}
	for i := 0; i < 5_000; i++ {
		s := targetSum(OutcomeWin, SideTai, rng)
		require.GreaterOrEqual(t, s, 11)
		require.LessOrEqual(t, s, 17)
		seen[s] = true

		s = targetSum(OutcomeWin, SideXiu, rng)
		require.GreaterOrEqual(t, s, 4)
		require.LessOrEqual(t, s, 10)

		s = targetSum(OutcomeLose, SideTai, rng)
		require.GreaterOrEqual(t, s, 4)
		require.LessOrEqual(t, s, 10)

		s = targetSum(OutcomeLose, SideXiu, rng)
		require.GreaterOrEqual(t, s, 11)
		require.LessOrEqual(t, s, 17)
	}
	require.Len(t, seen, 7)
}

func TestDecomposeExtremes(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	dice, ok := decompose(3, rng)
	if ok {
		require.Equal(t, [3]int{1, 1, 1}, dice)
	}
	dice, ok = decompose(18, rng)
	if ok {
		require.Equal(t, [3]int{6, 6, 6}, dice)
	}

	// Unreachable targets always take the fallback path.
	dice, ok = decompose(25, rng)
	require.False(t, ok)
	for _, d := range dice {
		require.GreaterOrEqual(t, d, 1)
		require.LessOrEqual(t, d, 6)
	}
}

func TestResolveDeterministicForSeed(t *testing.T) {
	a := NewEngine(rand.NewSource(99))
	b := NewEngine(rand.NewSource(99))
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Resolve(SideTai), b.Resolve(SideTai))
	}
}

package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateUsername(t *testing.T) {
	valid := []string{"alice", "Bob_42", "xiu_master"}
	for _, s := range valid {
		require.NoError(t, ValidateUsername(s), s)
	}

	invalid := []string{"ab", "has space", "way_too_long_for_a_username_really", "dash-name"}
	for _, s := range invalid {
		require.ErrorIs(t, ValidateUsername(s), ErrInvalidUsername, s)
	}
}

func TestValidBetAmount(t *testing.T) {
	tests := []struct {
		amount int64
		want   bool
	}{
		{amount: 20_000, want: true},
		{amount: 500_000, want: true},
		{amount: 0, want: false},
		{amount: 30_000, want: false},
		{amount: -20_000, want: false},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, ValidBetAmount(tc.amount), "amount=%d", tc.amount)
	}
}

func TestParseSide(t *testing.T) {
	side, err := ParseSide(" TAI ")
	require.NoError(t, err)
	require.Equal(t, SideTai, side)

	side, err = ParseSide("xiu")
	require.NoError(t, err)
	require.Equal(t, SideXiu, side)

	_, err = ParseSide("middle")
	require.ErrorIs(t, err, ErrInvalidSide)
}

func TestParseStockAction(t *testing.T) {
	for _, s := range []string{"up", "DOWN", "bankrupt"} {
		_, err := ParseStockAction(s)
		require.NoError(t, err, s)
	}
	_, err := ParseStockAction("split")
	require.ErrorIs(t, err, ErrInvalidAdminAction)
}

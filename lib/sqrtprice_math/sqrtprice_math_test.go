package sqrtprice_math

import (
	"testing"

	"github.com/ftchann/thermo-amm/lib/ammerrors"
	cons "github.com/ftchann/thermo-amm/lib/constants"

	ui "github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAmountDeltas(t *testing.T) {
	// price 1 -> price 4 (sqrt 1 -> 2) with L = 1e6: dx = L*(1/1 - 1/2), dy = L*(2-1).
	a := cons.Q64
	b := new(ui.Int).Lsh(cons.One, 65)
	l := ui.NewInt(1_000_000)

	amount0, err := GetAmount0Delta(a, b, l, false)
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), amount0.Uint64())

	amount1, err := GetAmount1Delta(b, a, l, true)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), amount1.Uint64())
}

func TestNextSqrtPriceFromInput(t *testing.T) {
	l := ui.NewInt(1_000_000)

	next, err := GetNextSqrtPriceFromInput(cons.Q64, l, ui.NewInt(1_000_000), false)
	require.NoError(t, err)
	require.Equal(t, new(ui.Int).Lsh(cons.One, 65), next)

	next, err = GetNextSqrtPriceFromInput(cons.Q64, l, ui.NewInt(1_000_000), true)
	require.NoError(t, err)
	require.Equal(t, new(ui.Int).Lsh(cons.One, 63), next)

	same, err := GetNextSqrtPriceFromInput(cons.Q64, l, ui.NewInt(0), true)
	require.NoError(t, err)
	require.Equal(t, cons.Q64, same)

	_, err = GetNextSqrtPriceFromInput(cons.Q64, ui.NewInt(0), ui.NewInt(1), true)
	require.ErrorIs(t, err, ammerrors.ErrDivisionByZero)
}

func TestNextSqrtPriceFromOutputExceedsReserves(t *testing.T) {
	l := ui.NewInt(1_000)
	_, err := GetNextSqrtPriceFromOutput(cons.Q64, l, ui.NewInt(1_000), true)
	require.ErrorIs(t, err, ammerrors.ErrUnderflow)
	_, err = GetNextSqrtPriceFromOutput(cons.Q64, l, ui.NewInt(1_000), false)
	require.ErrorIs(t, err, ammerrors.ErrUnderflow)
}

func TestPriceDecimal(t *testing.T) {
	require.Equal(t, "1", PriceDecimal(cons.Q64).String())
	require.Equal(t, "4", PriceDecimal(new(ui.Int).Lsh(cons.One, 65)).String())
	require.Equal(t, "0.25", PriceDecimal(new(ui.Int).Lsh(cons.One, 63)).String())

	p, err := GetPrice(new(ui.Int).Lsh(cons.One, 65))
	require.NoError(t, err)
	require.Equal(t, new(ui.Int).Lsh(cons.One, 66), p)
}

func TestSqrtPriceFromDecimal(t *testing.T) {
	for _, tc := range []struct {
		price string
		want  *ui.Int
	}{
		{"1", cons.Q64},
		{"4", new(ui.Int).Lsh(cons.One, 65)},
		{"0.25", new(ui.Int).Lsh(cons.One, 63)},
	} {
		got, err := SqrtPriceFromDecimal(decimal.RequireFromString(tc.price))
		require.NoError(t, err)
		require.Equal(t, tc.want, got, tc.price)
		require.Equal(t, tc.price, PriceDecimal(got).String())
	}

	_, err := SqrtPriceFromDecimal(decimal.Zero)
	require.ErrorIs(t, err, ammerrors.ErrInvalidAmount)
}

// Rounding up the input side never undercharges relative to rounding down.
func TestRoundingDirectionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lo := rapid.Uint64Range(1<<32, 1<<63).Draw(t, "lo")
		span := rapid.Uint64Range(1, 1<<40).Draw(t, "span")
		liq := rapid.Uint64Range(1, 1<<50).Draw(t, "liquidity")

		a := new(ui.Int).Lsh(ui.NewInt(lo), 1)
		b := new(ui.Int).Add(a, ui.NewInt(span))
		l := ui.NewInt(liq)

		for _, f := range []func(a, b, l *ui.Int, up bool) (*ui.Int, error){GetAmount0Delta, GetAmount1Delta} {
			up, err := f(a, b, l, true)
			if err != nil {
				t.Fatal(err)
			}
			down, err := f(a, b, l, false)
			if err != nil {
				t.Fatal(err)
			}
			if up.Cmp(down) < 0 || new(ui.Int).Sub(up, down).GtUint64(1) {
				t.Fatalf("rounding gap %s vs %s", up.Dec(), down.Dec())
			}
		}
	})
}

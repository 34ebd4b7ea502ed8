package position

import (
	"testing"

	"github.com/ftchann/thermo-amm/lib/ammerrors"

	cosmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
	"pgregory.net/rapid"
)

func TestFeeGrowthInside(t *testing.T) {
	global := uint128.From64(1_000)
	lower := uint128.From64(100)
	upper := uint128.From64(300)

	tests := []struct {
		name    string
		current int32
		want    uint64
	}{
		{name: "inside", current: 0, want: 600},
		{name: "below", current: -200, want: 0},
		{name: "above", current: 200, want: 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FeeGrowthInside(-100, 100, tt.current, global, lower, upper)
			require.Equal(t, uint128.From64(tt.want), got)
		})
	}
}

func TestFeeGrowthInsideSaturates(t *testing.T) {
	// outside values larger than global would wrap to a huge number
	got := FeeGrowthInside(-100, 100, 0, uint128.From64(10), uint128.From64(50), uint128.From64(50))
	require.True(t, got.IsZero())
}

func TestAccrueWrapsDelta(t *testing.T) {
	pos := NewPosition("alice", -60, 60)
	pos.Liquidity = uint128.From64(1 << 20)
	pos.FeeGrowthInside0LastX64 = uint128.Max.Sub64(1<<44 - 1) // 2^128 - 2^44

	// the accumulator wrapped past zero and now reads 2^44
	require.NoError(t, pos.Accrue(uint128.From64(1<<44), uint128.Zero))
	// delta = 2^45, owed = 2^20 * 2^45 >> 64 = 2
	require.Equal(t, uint64(2), pos.TokensOwed0)
	require.Equal(t, uint128.From64(1<<44), pos.FeeGrowthInside0LastX64)
}

func TestUpdateAndCollect(t *testing.T) {
	pos := NewPosition("bob", 0, 100)
	require.ErrorIs(t, pos.Update(cosmath.ZeroInt(), uint128.Zero, uint128.Zero), ammerrors.ErrInvalidAmount)

	require.NoError(t, pos.Update(cosmath.NewInt(1<<32), uint128.Zero, uint128.Zero))
	require.Equal(t, uint128.From64(1<<32), pos.Liquidity)

	growth := uint128.New(0, 3) // 3 tokens per unit of liquidity, Q64.64
	require.NoError(t, pos.Update(cosmath.NewInt(-(1 << 32)), growth, uint128.Zero))
	require.True(t, pos.Liquidity.IsZero())
	require.Equal(t, uint64(3<<32), pos.TokensOwed0)
	require.False(t, pos.IsEmpty())

	require.NoError(t, pos.Credit(10, 20))
	c0, c1 := pos.Collect(5, 100)
	require.Equal(t, uint64(5), c0)
	require.Equal(t, uint64(20), c1)
	c0, _ = pos.Collect(^uint64(0), 0)
	require.Equal(t, uint64(3<<32+5), c0)
	require.True(t, pos.IsEmpty())

	require.Error(t, pos.Update(cosmath.NewInt(-1), growth, uint128.Zero))
}

func TestAccrueOverflow(t *testing.T) {
	pos := NewPosition("carol", 0, 10)
	pos.Liquidity = uint128.Max
	err := pos.Accrue(uint128.Max, uint128.Zero)
	require.ErrorIs(t, err, ammerrors.ErrOverflow)
	require.True(t, pos.FeeGrowthInside0LastX64.IsZero(), "snapshot unchanged on failure")
}

func TestKey(t *testing.T) {
	a := NewKey("alice", -60, 60)
	require.Equal(t, a, NewKey("alice", -60, 60))
	require.NotEqual(t, a, NewKey("alice", -60, 120))
	require.NotEqual(t, a, NewKey("bob", -60, 60))
	require.Len(t, a.String(), 64)

	book := Book{}
	book.Put(NewPosition("alice", -60, 60))
	_, ok := book.Get("alice", -60, 60)
	require.True(t, ok)
	clone := book.Clone()
	clone[a].TokensOwed0 = 7
	require.Zero(t, book[a].TokensOwed0)
}

// Accruing in two hops owes at least as much as the sum of each hop, and
// never more than accruing once.
func TestAccrueSplitProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		liq := rapid.Uint64Range(0, 1<<40).Draw(t, "liquidity")
		a := rapid.Uint64().Draw(t, "a")
		b := rapid.Uint64().Draw(t, "b")

		once := &Info{Liquidity: uint128.From64(liq)}
		mid := uint128.From64(a)
		end := mid.AddWrap(uint128.From64(b))
		if err := once.Accrue(end, uint128.Zero); err != nil {
			t.Fatal(err)
		}
		twice := &Info{Liquidity: uint128.From64(liq)}
		if err := twice.Accrue(mid, uint128.Zero); err != nil {
			t.Fatal(err)
		}
		if err := twice.Accrue(end, uint128.Zero); err != nil {
			t.Fatal(err)
		}
		if twice.TokensOwed0 > once.TokensOwed0 || once.TokensOwed0-twice.TokensOwed0 > 1 {
			t.Fatalf("split accrual %d vs %d", twice.TokensOwed0, once.TokensOwed0)
		}
	})
}

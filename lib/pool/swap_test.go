package pool

import (
	"testing"

	"github.com/ftchann/thermo-amm/lib/ammerrors"
	"github.com/ftchann/thermo-amm/lib/conservation"
	cons "github.com/ftchann/thermo-amm/lib/constants"
	"github.com/ftchann/thermo-amm/lib/feemodel"

	cosmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"lukechampine.com/uint128"
	"pgregory.net/rapid"
)

var thermoWeights = conservation.Weights{Spot: 5000, Time: 2500, Leverage: 1500, Buffer: 1000}

func TestThermoUphillFee(t *testing.T) {
	p := newTestPool(t, testConfig(thermoWeights))
	_, err := p.Mint("lp", -1000, 1000, cosmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)

	res, err := p.Swap(swapDown(1_000_000_000))
	require.NoError(t, err)
	require.Equal(t, feemodel.Uphill, res.Thermo)
	require.NotZero(t, res.ThermoFee)
	require.Zero(t, res.RebateAmount)
	require.Equal(t, res.LPFee+res.ThermoFee, res.FeeAmount)
	require.Greater(t, res.TotalFeeBps, uint32(30))

	buffer0, buffer1 := p.Buffers()
	require.Equal(t, res.ThermoFee, buffer0)
	require.Zero(t, buffer1)

	snap := p.Ledger()
	require.Equal(t, int64(res.TickAfter)*cons.LnTickScaled/1000, snap.LnGS)
	ok, err := conservation.Verify(thermoWeights, snap)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestThermoDownhillRebate(t *testing.T) {
	tests := []struct {
		name       string
		buffer0    uint64
		wantRebate bool
	}{
		{name: "funded buffer", buffer0: 1_000_000_000_000, wantRebate: true},
		{name: "empty buffer truncates", buffer0: 0, wantRebate: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(thermoWeights)
			cfg.InitialBuffer0 = tt.buffer0
			p := newTestPool(t, cfg)
			_, err := p.Mint("lp", -1000, 1000, cosmath.NewInt(1_000_000_000_000))
			require.NoError(t, err)

			res, err := p.Swap(swapUp(1_000_000_000))
			require.NoError(t, err)
			require.Equal(t, feemodel.Downhill, res.Thermo)
			require.Zero(t, res.ThermoFee)
			require.Equal(t, tt.wantRebate, res.RebateAmount > 0)
			// kappa caps the rebate at 50 bps of the output
			require.LessOrEqual(t, res.RebateAmount, res.AmountOut*50/cons.BPS)

			buffer0, _ := p.Buffers()
			require.Equal(t, tt.buffer0-res.RebateAmount, buffer0)
		})
	}
}

func TestThermoFeeOnPartialFill(t *testing.T) {
	p := newTestPool(t, testConfig(thermoWeights))
	_, err := p.Mint("lp", -200, 100, cosmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)
	_, err = p.Mint("lp", -400, -200, cosmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)

	params := swapDown(100_000_000_000)
	params.MaxTicksCrossed = 0
	params.AllowPartialFill = true
	res, err := p.Quote(params)
	require.NoError(t, err)
	require.Equal(t, StatusLimitReached, res.Status)
	require.Equal(t, feemodel.Uphill, res.Thermo)
	require.NotZero(t, res.ThermoFee)

	// the fee and its cap follow the input the curve took, not the request
	curve := res.AmountIn - res.ThermoFee
	require.Less(t, res.AmountIn, params.AmountIn)
	require.LessOrEqual(t, res.ThermoFee*cons.BPS, curve*feemodel.DefaultMaxThermoFeeBps)
	require.GreaterOrEqual(t, uint64(res.TotalFeeBps)*curve, res.ThermoFee*cons.BPS)

	params.MaxTotalFeeBps = uint16(res.TotalFeeBps - 1)
	_, err = p.Quote(params)
	require.ErrorIs(t, err, ammerrors.ErrFeeCapExceeded)

	params.MaxTotalFeeBps = uint16(res.TotalFeeBps)
	committed, err := p.Swap(params)
	require.NoError(t, err)
	require.Equal(t, res, committed)
	buffer0, _ := p.Buffers()
	require.Equal(t, res.ThermoFee, buffer0)
	require.Equal(t, int32(-200), p.State().Tick)
}

func TestDomainMovePricedIntoNextSwap(t *testing.T) {
	tests := []struct {
		name    string
		point   string
		wantDir feemodel.Direction
	}{
		{name: "small time move lowers the fee", point: "1.001", wantDir: feemodel.Uphill},
		{name: "large time move flips the trade downhill", point: "1.05", wantDir: feemodel.Downhill},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newPool := func() *Pool {
				p := newTestPool(t, testConfig(thermoWeights))
				_, err := p.Mint("lp", -1000, 1000, cosmath.NewInt(1_000_000_000_000))
				require.NoError(t, err)
				return p
			}
			plain, moved := newPool(), newPool()
			require.NoError(t, moved.MoveDomain(conservation.Time, cosmath.LegacyMustNewDecFromStr(tt.point), 1_000))

			base, err := plain.Quote(swapDown(1_000_000_000))
			require.NoError(t, err)
			require.Equal(t, feemodel.Uphill, base.Thermo)

			res, err := moved.Swap(swapDown(1_000_000_000))
			require.NoError(t, err)
			require.Equal(t, tt.wantDir, res.Thermo)
			require.Less(t, res.ThermoFee, base.ThermoFee)

			// the move is priced once
			next, err := moved.Quote(swapDown(1_000_000_000))
			require.NoError(t, err)
			require.Equal(t, feemodel.Uphill, next.Thermo)
			require.NotZero(t, next.ThermoFee)
		})
	}
}

func TestJITLiquidity(t *testing.T) {
	newPool := func() *Pool {
		p := newTestPool(t, testConfig(flatWeights))
		_, err := p.Mint("lp", -1000, 1000, cosmath.NewInt(1_000_000_000_000))
		require.NoError(t, err)
		return p
	}
	plain, boosted := newPool(), newPool()

	params := swapUp(1_000_000)
	base, err := plain.Swap(params)
	require.NoError(t, err)

	params.JITLiquidity = uint128.From64(1_000_000_000_000)
	params.Slot = 1
	withJIT, err := boosted.Swap(params)
	require.NoError(t, err)

	require.GreaterOrEqual(t, withJIT.AmountOut, base.AmountOut)
	require.Less(t, withJIT.SqrtPriceAfter.Cmp(base.SqrtPriceAfter), 1)
	require.Equal(t, base.LPFee, withJIT.LPFee)
	require.Equal(t, plain.State().FeeGrowthGlobal1X64, boosted.State().FeeGrowthGlobal1X64,
		"jit liquidity does not dilute lp fee growth")
	require.Equal(t, plain.State().Liquidity, boosted.State().Liquidity)

	// per-slot cap is 1.5e12
	_, err = boosted.Swap(params)
	require.ErrorIs(t, err, ammerrors.ErrJITBudgetExceeded)
	params.Slot = 2
	_, err = boosted.Swap(params)
	require.NoError(t, err)

	params.JITLiquidity = uint128.From64(2_000_000_000_000)
	params.Slot = 3
	_, err = boosted.Swap(params)
	require.ErrorIs(t, err, ammerrors.ErrJITBudgetExceeded)
}

func TestJITOnlyFeesGoToBuffer(t *testing.T) {
	p := newTestPool(t, testConfig(flatWeights))
	_, err := p.Mint("lp", 100, 200, cosmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)

	params := swapUp(1_000)
	params.JITLiquidity = uint128.From64(1_000_000_000_000)
	res, err := p.Swap(params)
	require.NoError(t, err)
	require.NotZero(t, res.LPFee)

	_, buffer1 := p.Buffers()
	require.Equal(t, res.LPFee, buffer1)
	require.True(t, p.State().FeeGrowthGlobal1X64.IsZero())
}

func TestFeeAccrualSharedByRange(t *testing.T) {
	p := newTestPool(t, testConfig(flatWeights))
	liquidity := cosmath.NewInt(1_000_000_000_000)
	_, err := p.Mint("alice", -1000, 1000, liquidity)
	require.NoError(t, err)
	_, err = p.Mint("bob", -1000, 1000, liquidity)
	require.NoError(t, err)

	res, err := p.Swap(swapUp(1_000_000_000))
	require.NoError(t, err)

	var owed uint64
	for _, owner := range []string{"alice", "bob"} {
		upd, err := p.ModifyPosition(owner, -1000, 1000, cosmath.ZeroInt())
		require.NoError(t, err)
		require.Zero(t, upd.Amount0)
		require.InDelta(t, float64(res.LPFee)/2, float64(upd.Position.TokensOwed1), 2)
		owed += upd.Position.TokensOwed1
	}
	require.LessOrEqual(t, owed, res.LPFee)

	c0, c1, err := p.Collect("alice", -1000, 1000, ^uint64(0), ^uint64(0))
	require.NoError(t, err)
	require.Zero(t, c0)
	require.NotZero(t, c1)
	pos, ok := p.Position("alice", -1000, 1000)
	require.True(t, ok)
	require.Zero(t, pos.TokensOwed1)
}

func TestBurnCreditsOwed(t *testing.T) {
	p := newTestPool(t, testConfig(flatWeights))
	minted, err := p.Mint("lp", -100, 100, cosmath.NewInt(1_000_000_000))
	require.NoError(t, err)
	require.NotZero(t, minted.Amount0)
	require.NotZero(t, minted.Amount1)
	require.Equal(t, uint128.From64(1_000_000_000), p.State().Liquidity)

	burned, err := p.Burn("lp", -100, 100, cosmath.NewInt(1_000_000_000))
	require.NoError(t, err)
	// removal rounds down, addition rounds up
	require.LessOrEqual(t, burned.Amount0, minted.Amount0)
	require.GreaterOrEqual(t, burned.Amount0+1, minted.Amount0)
	require.Equal(t, burned.Amount0, burned.Position.TokensOwed0)
	require.True(t, p.State().Liquidity.IsZero())

	lower, err := p.Tick(-100)
	require.NoError(t, err)
	require.False(t, lower.Initialized())

	c0, c1, err := p.Collect("lp", -100, 100, ^uint64(0), ^uint64(0))
	require.NoError(t, err)
	require.Equal(t, burned.Amount0, c0)
	require.Equal(t, burned.Amount1, c1)
	_, ok := p.Position("lp", -100, 100)
	require.False(t, ok, "empty position removed")
}

func TestModifyPositionValidation(t *testing.T) {
	p := newTestPool(t, testConfig(flatWeights))
	tests := []struct {
		name         string
		lower, upper int32
		delta        cosmath.Int
		want         error
	}{
		{name: "inverted", lower: 100, upper: -100, delta: cosmath.NewInt(1), want: ammerrors.ErrInvalidTickRange},
		{name: "misaligned", lower: -105, upper: 100, delta: cosmath.NewInt(1), want: ammerrors.ErrTickMisaligned},
		{name: "out of bounds", lower: -443640, upper: 0, delta: cosmath.NewInt(1), want: ammerrors.ErrTickOutOfBounds},
		{name: "burn unknown", lower: -100, upper: 100, delta: cosmath.NewInt(-1), want: ammerrors.ErrPositionNotFound},
		{name: "poke unknown", lower: -100, upper: 100, delta: cosmath.ZeroInt(), want: ammerrors.ErrPositionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ModifyPosition("lp", tt.lower, tt.upper, tt.delta)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := p.Mint("lp", -100, 100, cosmath.NewInt(10))
	require.NoError(t, err)
	before := p.State()
	_, err = p.Burn("lp", -100, 100, cosmath.NewInt(11))
	require.Error(t, err)
	require.Equal(t, before, p.State())
	pos, ok := p.Position("lp", -100, 100)
	require.True(t, ok)
	require.Equal(t, uint128.From64(10), pos.Liquidity, "failed burn leaves the position untouched")
}

func TestReweightAndMoveDomain(t *testing.T) {
	p := newTestPool(t, testConfig(thermoWeights))
	require.NoError(t, p.MoveDomain(conservation.Time, cosmath.LegacyNewDec(2), 693_147))
	snap := p.Ledger()
	require.Equal(t, int64(693_147), snap.LnGT)
	require.Equal(t, int64(-2500*693_147/1000), snap.LnGTau)

	require.ErrorIs(t, p.MoveDomain(conservation.Spot, cosmath.LegacyOneDec(), 1), ammerrors.ErrInvalidDomain)
	require.ErrorIs(t, p.MoveDomain(conservation.Time, cosmath.LegacyZeroDec(), 1), ammerrors.ErrInvalidAmount)

	require.NoError(t, p.Reweight(conservation.Weights{Spot: 2500, Time: 2500, Leverage: 2500, Buffer: 2500}))
	res, err := conservation.Check(conservation.Weights{Spot: 2500, Time: 2500, Leverage: 2500, Buffer: 2500}, p.Ledger())
	require.NoError(t, err)
	require.True(t, res.Conserved)
}

func TestSwapInvariantsProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := testConfig(thermoWeights)
		cfg.InitialBuffer0 = 1_000_000_000_000
		cfg.InitialBuffer1 = 1_000_000_000_000
		p, err := NewPool(cfg, WithLogger(zap.NewNop()))
		if err != nil {
			rt.Fatal(err)
		}
		ranges := [][2]int32{{-1000, 1000}, {-200, 300}, {-50, 40}}
		for i, r := range ranges {
			l := cosmath.NewInt(int64(1_000_000_000_000 >> i))
			if _, err := p.Mint("lp", r[0], r[1], l); err != nil {
				rt.Fatal(err)
			}
		}

		n := rapid.IntRange(1, 25).Draw(rt, "swaps")
		for i := 0; i < n; i++ {
			params := swapUp(rapid.Uint64Range(0, 1_000_000_000).Draw(rt, "amount"))
			params.ZeroForOne = rapid.Bool().Draw(rt, "zeroForOne")
			res, err := p.Swap(params)
			if err != nil {
				rt.Fatalf("swap %d: %v", i, err)
			}
			if res.AmountIn > 0 && res.FeeAmount == 0 {
				rt.Fatalf("swap %d charged no fee on %d", i, res.AmountIn)
			}

			ok, err := conservation.Verify(thermoWeights, p.Ledger())
			if err != nil || !ok {
				rt.Fatalf("conservation broken after swap %d: %v", i, err)
			}

			var want uint64
			tick := p.State().Tick
			for j, r := range ranges {
				if r[0] <= tick && tick < r[1] {
					want += 1_000_000_000_000 >> j
				}
			}
			if got := p.State().Liquidity; got != uint128.From64(want) {
				rt.Fatalf("active liquidity %s at tick %d, want %d", got, tick, want)
			}
		}
	})
}

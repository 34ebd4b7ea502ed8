package pool

import (
	"testing"

	"github.com/ftchann/thermo-amm/lib/ammerrors"
	"github.com/ftchann/thermo-amm/lib/conservation"
	cons "github.com/ftchann/thermo-amm/lib/constants"
	"github.com/ftchann/thermo-amm/lib/feemodel"
	"github.com/ftchann/thermo-amm/lib/jit"
	"github.com/ftchann/thermo-amm/lib/metrics"
	"github.com/ftchann/thermo-amm/lib/tickmath"

	cosmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"lukechampine.com/uint128"
)

// spot weight zero keeps the thermodynamic term flat
var flatWeights = conservation.Weights{Spot: 0, Time: 4500, Leverage: 4500, Buffer: 1000}

func testConfig(weights conservation.Weights) Config {
	return Config{
		Token0:       "ETH",
		Token1:       "USDC",
		TickSpacing:  10,
		SqrtPriceX64: uint128.New(0, 1),
		Fees:         feemodel.DefaultConfig(30),
		Weights:      weights,
		JIT: jit.Budget{
			PerSwapCap: uint128.From64(1_000_000_000_000),
			PerSlotCap: uint128.From64(1_500_000_000_000),
		},
	}
}

func newTestPool(t *testing.T, cfg Config) *Pool {
	p, err := NewPool(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return p
}

func swapUp(amount uint64) SwapParams {
	return SwapParams{
		AmountIn:        amount,
		MaxTicksCrossed: 255,
		MaxTotalFeeBps:  cons.MaxTotalFeeBps,
		ZeroForOne:      false,
	}
}

func swapDown(amount uint64) SwapParams {
	p := swapUp(amount)
	p.ZeroForOne = true
	return p
}

func TestNewPoolValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{name: "spacing", mutate: func(c *Config) { c.TickSpacing = 0 }, want: ammerrors.ErrInvalidTickSpace},
		{name: "price", mutate: func(c *Config) { c.SqrtPriceX64 = uint128.From64(1) }, want: ammerrors.ErrSqrtPriceBounds},
		{name: "price above max", mutate: func(c *Config) { c.SqrtPriceX64 = tickmath.MaxSqrtPrice.Add64(1) }, want: ammerrors.ErrSqrtPriceBounds},
		{name: "weights", mutate: func(c *Config) { c.Weights.Buffer = 0 }, want: ammerrors.ErrInvalidWeights},
		{name: "fees", mutate: func(c *Config) { c.Fees.MinTotalFeeBps = 0 }, want: ammerrors.ErrInvalidFeeConfig},
		{name: "tokens", mutate: func(c *Config) { c.Token1 = c.Token0 }, want: ammerrors.ErrInvalidPoolConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(flatWeights)
			tt.mutate(&cfg)
			_, err := NewPool(cfg)
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, ammerrors.KindValidation, ammerrors.KindOf(err))
		})
	}
}

func TestSwapZeroAmountIsNoop(t *testing.T) {
	p := newTestPool(t, testConfig(flatWeights))
	before := p.State()

	res, err := p.Swap(swapUp(0))
	require.NoError(t, err)
	require.Zero(t, res.AmountOut)
	require.Zero(t, res.FeeAmount)
	require.Equal(t, StatusExhausted, res.Status)
	require.Equal(t, before, p.State())
	require.Equal(t, conservation.Snapshot{}, p.Ledger())
}

func TestSwapNoLiquidity(t *testing.T) {
	p := newTestPool(t, testConfig(flatWeights))
	res, err := p.Swap(swapUp(1_000))
	require.ErrorIs(t, err, ammerrors.ErrNoLiquidity)
	require.Equal(t, ammerrors.KindPolicyLimit, ammerrors.KindOf(err))
	require.Equal(t, StatusFailed, res.Status)
}

func mintCrossingBook(t *testing.T, p *Pool) {
	_, err := p.Mint("lp", -200, 100, cosmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)
	_, err = p.Mint("lp", 100, 300, cosmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)
}

func TestSwapCrossesOnlyInitializedTicks(t *testing.T) {
	p := newTestPool(t, testConfig(flatWeights))
	mintCrossingBook(t, p)

	small, err := p.Quote(swapUp(1_000_000_000))
	require.NoError(t, err)
	require.Zero(t, small.TicksCrossed)
	require.Less(t, small.TickAfter, int32(100))
	require.Equal(t, small.AmountIn, uint64(1_000_000_000))

	res, err := p.Swap(swapUp(10_000_000_000))
	require.NoError(t, err)
	require.Equal(t, StatusExhausted, res.Status)
	require.Equal(t, uint8(1), res.TicksCrossed, "ten spacing units lie between 0 and 100 but one tick is initialized")
	require.GreaterOrEqual(t, res.TickAfter, int32(100))
	require.Less(t, res.TickAfter, int32(300))
	require.Equal(t, uint64(10_000_000_000), res.AmountIn)
	require.Equal(t, res.LPFee, res.FeeAmount)
	require.Greater(t, res.PriceImpactBps, uint32(0))

	st := p.State()
	require.Equal(t, uint128.From64(1_000_000_000_000), st.Liquidity)
	require.Equal(t, res.TickAfter, st.Tick)
	require.False(t, st.FeeGrowthGlobal1X64.IsZero())
	require.True(t, st.FeeGrowthGlobal0X64.IsZero())

	// the crossed tick's outside growth was flipped to the global value at crossing time
	tick, err := p.Tick(100)
	require.NoError(t, err)
	require.False(t, tick.FeeGrowthOutside1X64.IsZero())
}

func TestSwapCrossingLimit(t *testing.T) {
	p := newTestPool(t, testConfig(flatWeights))
	mintCrossingBook(t, p)
	before := p.State()

	params := swapUp(10_000_000_000)
	params.MaxTicksCrossed = 0
	res, err := p.Swap(params)
	require.ErrorIs(t, err, ammerrors.ErrTickCrossingLimit)
	require.True(t, ammerrors.Recoverable(err))
	require.Equal(t, StatusLimitReached, res.Status)
	require.Less(t, res.AmountIn, params.AmountIn)
	require.Equal(t, before, p.State(), "nothing committed without partial fill")

	params.AllowPartialFill = true
	res, err = p.Swap(params)
	require.NoError(t, err)
	require.Equal(t, StatusLimitReached, res.Status)
	require.Zero(t, res.TicksCrossed)
	require.Equal(t, int32(99), p.State().Tick)
	sqrt100, err := tickmath.GetSqrtPriceAtTick(100)
	require.NoError(t, err)
	require.Equal(t, sqrt100, p.State().SqrtPriceX64)

	// the next swap crosses the boundary it rests on
	res, err = p.Swap(swapUp(1_000_000))
	require.NoError(t, err)
	require.Equal(t, uint8(1), res.TicksCrossed)
	require.GreaterOrEqual(t, p.State().Tick, int32(100))
}

func TestNewPoolAtPriceBounds(t *testing.T) {
	for _, tt := range []struct {
		sqrtPrice uint128.Uint128
		tick      int32
	}{
		{sqrtPrice: tickmath.MinSqrtPrice, tick: tickmath.MinTick},
		{sqrtPrice: tickmath.MaxSqrtPrice, tick: tickmath.MaxTick},
	} {
		cfg := testConfig(flatWeights)
		cfg.SqrtPriceX64 = tt.sqrtPrice
		p := newTestPool(t, cfg)
		require.Equal(t, tt.tick, p.State().Tick)
	}
}

func TestSwapTickArrayLoadLimit(t *testing.T) {
	cfg := testConfig(flatWeights)
	cfg.TickSpacing = 1
	p := newTestPool(t, cfg)
	_, err := p.Mint("lp", -5000, 5000, cosmath.NewInt(1_000_000_000_000))
	require.NoError(t, err)
	before := p.State()

	params := swapUp(1_000_000_000_000)
	res, err := p.Swap(params)
	require.ErrorIs(t, err, ammerrors.ErrTickArrayLoadLimit)
	require.True(t, ammerrors.Recoverable(err))
	require.Equal(t, StatusLimitReached, res.Status)
	require.Equal(t, before, p.State())

	params.AllowPartialFill = true
	res, err = p.Swap(params)
	require.NoError(t, err)
	require.Equal(t, StatusLimitReached, res.Status)
	require.Less(t, res.AmountIn, params.AmountIn)
	// ten arrays of 88 ticks from tick 0
	require.Equal(t, int32(cons.MaxTickArrayLoads*cons.TickArraySize-1), p.State().Tick)
}

func TestSwapPriceBound(t *testing.T) {
	cfg := testConfig(flatWeights)
	cfg.TickSpacing = 4
	start, err := tickmath.GetSqrtPriceAtTick(443_200)
	require.NoError(t, err)
	cfg.SqrtPriceX64 = start
	p := newTestPool(t, cfg)
	_, err = p.Mint("lp", 443_000, tickmath.MaxTick, cosmath.NewInt(1_000_000))
	require.NoError(t, err)
	before := p.State()

	params := swapUp(1_000_000_000_000_000)
	res, err := p.Swap(params)
	require.ErrorIs(t, err, ammerrors.ErrPriceBoundReached)
	require.True(t, ammerrors.Recoverable(err))
	require.Equal(t, StatusLimitReached, res.Status)
	require.Equal(t, before, p.State())

	params.AllowPartialFill = true
	res, err = p.Swap(params)
	require.NoError(t, err)
	require.Equal(t, StatusLimitReached, res.Status)
	require.Less(t, res.AmountIn, params.AmountIn)
	require.Equal(t, tickmath.MaxTick, p.State().Tick)
	require.Equal(t, tickmath.MaxSqrtPrice, p.State().SqrtPriceX64)
	require.True(t, p.State().Liquidity.IsZero())
}

func TestSwapGuards(t *testing.T) {
	p := newTestPool(t, testConfig(flatWeights))
	mintCrossingBook(t, p)
	before := p.State()

	params := swapDown(1_000_000)
	params.MinimumAmountOut = 1_000_000
	res, err := p.Swap(params)
	require.ErrorIs(t, err, ammerrors.ErrSlippage)
	require.Equal(t, StatusFailed, res.Status)
	require.NotZero(t, res.AmountOut, "the quote is still reported")

	params = swapDown(1_000_000)
	params.MaxTotalFeeBps = 10
	_, err = p.Swap(params)
	require.ErrorIs(t, err, ammerrors.ErrFeeCapExceeded)
	require.Equal(t, ammerrors.KindPolicyLimit, ammerrors.KindOf(err))

	require.Equal(t, before, p.State())
}

func TestQuoteDoesNotMutate(t *testing.T) {
	p := newTestPool(t, testConfig(flatWeights))
	mintCrossingBook(t, p)
	before := p.State()
	ledger := p.Ledger()

	q, err := p.Quote(swapUp(10_000_000_000))
	require.NoError(t, err)
	require.Equal(t, before, p.State())
	require.Equal(t, ledger, p.Ledger())

	res, err := p.Swap(swapUp(10_000_000_000))
	require.NoError(t, err)
	require.Equal(t, q, res)
}

func TestCriticalSection(t *testing.T) {
	p := newTestPool(t, testConfig(flatWeights))
	mintCrossingBook(t, p)

	err := p.WithCriticalSection(func() error {
		require.True(t, p.InCritical())
		require.ErrorIs(t, p.BeginCritical(), ammerrors.ErrReentrancy)
		_, err := p.Swap(swapUp(1_000))
		require.ErrorIs(t, err, ammerrors.ErrReentrancy)
		_, err = p.Mint("lp", -10, 10, cosmath.NewInt(1))
		require.ErrorIs(t, err, ammerrors.ErrReentrancy)
		_, _, err = p.Collect("lp", -200, 100, 1, 1)
		require.ErrorIs(t, err, ammerrors.ErrReentrancy)
		return nil
	})
	require.NoError(t, err)
	require.False(t, p.InCritical())

	_, err = p.Swap(swapUp(1_000))
	require.NoError(t, err)
}

func TestMetricsWired(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	p, err := NewPool(testConfig(flatWeights), WithMetrics(m))
	require.NoError(t, err)
	mintCrossingBook(t, p)

	_, err = p.Swap(swapUp(1_000_000))
	require.NoError(t, err)
	_, err = p.Swap(SwapParams{AmountIn: 1_000, MaxTotalFeeBps: 0})
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.SwapsTotal.WithLabelValues("exhausted")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SwapsTotal.WithLabelValues("failed")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.PositionUpdates.WithLabelValues("mint")))
}

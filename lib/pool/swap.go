package pool

import (
	"math"

	"github.com/ftchann/thermo-amm/lib/ammerrors"
	"github.com/ftchann/thermo-amm/lib/conservation"
	cons "github.com/ftchann/thermo-amm/lib/constants"
	"github.com/ftchann/thermo-amm/lib/feemodel"
	fm "github.com/ftchann/thermo-amm/lib/fullmath"
	"github.com/ftchann/thermo-amm/lib/jit"
	"github.com/ftchann/thermo-amm/lib/swapmath"
	td "github.com/ftchann/thermo-amm/lib/tickdata"
	"github.com/ftchann/thermo-amm/lib/tickmath"

	cosmath "cosmossdk.io/math"
	ui "github.com/holiman/uint256"
	"go.uber.org/zap"
	"lukechampine.com/uint128"
)

type Status int

const (
	StatusIdle Status = iota
	StatusStepping
	StatusExhausted
	StatusLimitReached
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStepping:
		return "stepping"
	case StatusExhausted:
		return "exhausted"
	case StatusLimitReached:
		return "limit_reached"
	default:
		return "failed"
	}
}

// SwapParams describes an exact-input swap. ZeroForOne sells token0 for token1.
type SwapParams struct {
	AmountIn         uint64
	MinimumAmountOut uint64
	MaxTicksCrossed  uint8
	MaxTotalFeeBps   uint16
	ZeroForOne       bool
	// AllowPartialFill commits a swap stopped by a crossing, array load or
	// price bound limit instead of failing it.
	AllowPartialFill bool
	JITLiquidity     uint128.Uint128
	Slot             uint64
}

type SwapResult struct {
	AmountIn       uint64
	AmountOut      uint64
	FeeAmount      uint64 // LPFee + ThermoFee, input token
	LPFee          uint64
	ThermoFee      uint64
	RebateAmount   uint64 // output token, paid from the buffer on top of AmountOut
	SqrtPriceAfter uint128.Uint128
	TickAfter      int32
	TicksCrossed   uint8
	PriceImpactBps uint32
	TotalFeeBps    uint32
	Thermo         feemodel.Direction
	Status         Status
}

type StepComputations struct {
	sqrtPriceStartX64 *ui.Int
	tickNext          int32
	initialized       bool
	sqrtPriceNextX64  *ui.Int
	feeBps            uint16
	step              swapmath.Step
}

type stateStruct struct {
	amountRemaining    *ui.Int
	amountOut          *ui.Int
	lpFee              *ui.Int
	unallocatedFee     *ui.Int // fee earned while only JIT liquidity was active
	sqrtPriceX64       *ui.Int
	tick               int32
	feeGrowthGlobalX64 uint128.Uint128
	liquidity          uint128.Uint128
	jitLiquidity       uint128.Uint128
	ticksCrossed       uint8
	arrayLoads         int
	maxStepFeeBps      uint16
}

type swapRun struct {
	state    stateStruct
	overlay  *td.Overlay
	status   Status
	limitErr error
}

type pendingSwap struct {
	overlay *td.Overlay
	state   State
	ledger  *conservation.Ledger
	jit     *jit.Tracker
	priced  feemodel.DomainPoint
	buffer0 uint64
	buffer1 uint64
}

// Swap executes an exact-input swap. On any error nothing is committed; the
// returned result still carries the computed quote where one exists.
func (p *Pool) Swap(params SwapParams) (SwapResult, error) {
	var res SwapResult
	err := p.WithCriticalSection(func() error {
		var (
			pending *pendingSwap
			err     error
		)
		res, pending, err = p.execute(params)
		if err != nil {
			return err
		}
		if pending != nil {
			p.commitSwap(pending)
		}
		return nil
	})
	if err != nil {
		if res.Status != StatusLimitReached {
			res.Status = StatusFailed
		}
		p.logger.Warn("swap rejected",
			zap.Uint64("amount_in", params.AmountIn),
			zap.Bool("zero_for_one", params.ZeroForOne),
			zap.Stringer("status", res.Status),
			zap.String("kind", ammerrors.KindOf(err).String()),
			zap.Error(err),
		)
		p.metrics.ObserveFailedSwap(res.Status.String())
		return res, err
	}

	if res.Status == StatusLimitReached {
		p.logger.Warn("swap partially filled",
			zap.Uint64("amount_in", res.AmountIn),
			zap.Uint64("requested", params.AmountIn),
		)
	}
	p.logger.Info("swap committed",
		zap.Uint64("amount_in", res.AmountIn),
		zap.Uint64("amount_out", res.AmountOut),
		zap.Uint64("lp_fee", res.LPFee),
		zap.Uint64("thermo_fee", res.ThermoFee),
		zap.Uint64("rebate", res.RebateAmount),
		zap.Int32("tick", res.TickAfter),
		zap.Uint8("ticks_crossed", res.TicksCrossed),
		zap.Uint32("total_fee_bps", res.TotalFeeBps),
	)
	p.metrics.ObserveSwap(res.Status.String(), res.LPFee, res.ThermoFee, res.RebateAmount, int(res.TicksCrossed))
	if params.AmountIn > 0 {
		p.observeLedger()
	}
	return res, nil
}

// Quote runs the swap engine without committing anything.
func (p *Pool) Quote(params SwapParams) (SwapResult, error) {
	res, _, err := p.execute(params)
	if err != nil && res.Status != StatusLimitReached {
		res.Status = StatusFailed
	}
	return res, err
}

func (p *Pool) commitSwap(s *pendingSwap) {
	s.overlay.Commit()
	p.state = s.state
	p.ledger = s.ledger
	p.jit = s.jit
	p.priced = s.priced
	p.buffer0, p.buffer1 = s.buffer0, s.buffer1
}

func (p *Pool) execute(params SwapParams) (SwapResult, *pendingSwap, error) {
	res := SwapResult{
		SqrtPriceAfter: p.state.SqrtPriceX64,
		TickAfter:      p.state.Tick,
		Status:         StatusIdle,
	}
	if params.AmountIn == 0 {
		res.Status = StatusExhausted
		return res, nil, nil
	}

	tracker := p.jit.Clone()
	if err := tracker.Reserve(params.Slot, params.JITLiquidity); err != nil {
		return res, nil, err
	}
	weights, err := p.ledger.Weights()
	if err != nil {
		return res, nil, err
	}

	res.Status = StatusStepping
	zeroForOne := params.ZeroForOne

	// The first pass measures how far the full input moves the spot domain.
	first, err := p.simulate(zeroForOne, params.AmountIn, params.MaxTicksCrossed, params.JITLiquidity)
	if err != nil {
		return res, nil, err
	}
	firstOut, err := fm.ToUint64(first.state.amountOut)
	if err != nil {
		return res, nil, err
	}
	firstRemaining, err := fm.ToUint64(first.state.amountRemaining)
	if err != nil {
		return res, nil, err
	}
	// a partial fill is priced on what the curve takes, not on the request
	traded := params.AmountIn - firstRemaining

	sqrt0 := fm.FromU128(p.state.SqrtPriceX64)
	price0 := feemodel.PriceFromSqrt(sqrt0)
	start, end := p.priced, p.domain
	start.S = price0
	end.S = feemodel.PriceFromSqrt(first.state.sqrtPriceX64)
	priceIn, priceOut := price0, cosmath.LegacyOneDec()
	if !zeroForOne {
		priceIn, priceOut = priceOut, priceIn
	}
	thermo, err := p.fees.Thermo(weights, start, end, traded, firstOut, priceIn, priceOut)
	if err != nil {
		return res, nil, err
	}

	final, runAmount := first, params.AmountIn
	if thermo.Fee > 0 {
		// Uphill: the thermodynamic fee is withheld before the curve.
		runAmount = params.AmountIn - thermo.Fee
		final, err = p.simulate(zeroForOne, runAmount, params.MaxTicksCrossed, params.JITLiquidity)
		if err != nil {
			return res, nil, err
		}
	}
	st := final.state

	remaining, err := fm.ToUint64(st.amountRemaining)
	if err != nil {
		return res, nil, err
	}
	amountOut, err := fm.ToUint64(st.amountOut)
	if err != nil {
		return res, nil, err
	}
	lpFee, err := fm.ToUint64(st.lpFee)
	if err != nil {
		return res, nil, err
	}
	unallocated, err := fm.ToUint64(st.unallocatedFee)
	if err != nil {
		return res, nil, err
	}
	sqrtAfter, err := fm.ToU128(st.sqrtPriceX64)
	if err != nil {
		return res, nil, err
	}

	bufferIn, bufferOut := p.buffer0, p.buffer1
	if !zeroForOne {
		bufferIn, bufferOut = bufferOut, bufferIn
	}
	rebate := feemodel.ClampRebate(thermo.Rebate, bufferOut)
	credit, err := fm.CheckedAddU64(thermo.Fee, unallocated)
	if err != nil {
		return res, nil, err
	}
	bufferIn, err = fm.CheckedAddU64(bufferIn, credit)
	if err != nil {
		return res, nil, err
	}
	bufferOut -= rebate

	thermoBps := new(ui.Int)
	if traded > 0 {
		thermoBps, err = fm.MulDivRoundingUp(ui.NewInt(thermo.Fee), ui.NewInt(cons.BPS), ui.NewInt(traded))
		if err != nil {
			return res, nil, err
		}
	}
	impact, err := priceImpactBps(sqrt0, st.sqrtPriceX64)
	if err != nil {
		return res, nil, err
	}

	res.AmountIn = params.AmountIn - remaining
	res.AmountOut = amountOut
	res.LPFee = lpFee
	res.ThermoFee = thermo.Fee
	res.FeeAmount = lpFee + thermo.Fee
	res.RebateAmount = rebate
	res.SqrtPriceAfter = sqrtAfter
	res.TickAfter = st.tick
	res.TicksCrossed = st.ticksCrossed
	res.PriceImpactBps = impact
	res.TotalFeeBps = uint32(st.maxStepFeeBps) + uint32(thermoBps.Uint64())
	res.Thermo = thermo.Direction
	res.Status = final.status

	ledger := p.ledger.Clone()
	spotGrowth := (int64(st.tick) - int64(p.state.Tick)) * cons.LnTickScaled / 1000
	if err := ledger.Accumulate(conservation.Spot, spotGrowth); err != nil {
		return res, nil, err
	}
	if _, err := ledger.Rebase(); err != nil {
		return res, nil, err
	}
	check, err := ledger.Verify()
	if err != nil {
		return res, nil, err
	}
	if !check.Conserved {
		return res, nil, ammerrors.ErrConservationViolated.Wrapf("residual %s after rebase", check.Residual)
	}

	if final.status == StatusLimitReached && !params.AllowPartialFill {
		return res, nil, final.limitErr
	}
	if amountOut < params.MinimumAmountOut {
		return res, nil, ammerrors.ErrSlippage.Wrapf("amount out %d, minimum %d", amountOut, params.MinimumAmountOut)
	}
	if res.TotalFeeBps > uint32(params.MaxTotalFeeBps) {
		return res, nil, ammerrors.ErrFeeCapExceeded.Wrapf("total fee %d bps, cap %d", res.TotalFeeBps, params.MaxTotalFeeBps)
	}

	state := p.state
	state.SqrtPriceX64 = sqrtAfter
	state.Tick = st.tick
	state.Liquidity = st.liquidity
	if zeroForOne {
		state.FeeGrowthGlobal0X64 = st.feeGrowthGlobalX64
	} else {
		state.FeeGrowthGlobal1X64 = st.feeGrowthGlobalX64
	}
	pending := &pendingSwap{
		overlay: final.overlay,
		state:   state,
		ledger:  ledger,
		jit:     tracker,
		priced:  end,
	}
	if zeroForOne {
		pending.buffer0, pending.buffer1 = bufferIn, bufferOut
	} else {
		pending.buffer0, pending.buffer1 = bufferOut, bufferIn
	}
	return res, pending, nil
}

// simulate steps the price through the tick book on a fork of it.
func (p *Pool) simulate(zeroForOne bool, amount uint64, maxTicksCrossed uint8, jitLiquidity uint128.Uint128) (*swapRun, error) {
	book, overlay := p.ticks.Fork()
	spacing := book.TickSpacing()

	state := stateStruct{
		amountRemaining: ui.NewInt(amount),
		amountOut:       new(ui.Int),
		lpFee:           new(ui.Int),
		unallocatedFee:  new(ui.Int),
		sqrtPriceX64:    fm.FromU128(p.state.SqrtPriceX64),
		tick:            p.state.Tick,
		liquidity:       p.state.Liquidity,
		jitLiquidity:    jitLiquidity,
		arrayLoads:      1,
	}
	if zeroForOne {
		state.feeGrowthGlobalX64 = p.state.FeeGrowthGlobal0X64
	} else {
		state.feeGrowthGlobalX64 = p.state.FeeGrowthGlobal1X64
	}
	sqrtPriceLimitX64 := fm.FromU128(tickmath.MaxSqrtPrice)
	if zeroForOne {
		sqrtPriceLimitX64 = fm.FromU128(tickmath.MinSqrtPrice)
	}

	run := &swapRun{overlay: overlay, status: StatusStepping}
	stop := func(err error) {
		run.status = StatusLimitReached
		run.limitErr = err
	}
	lastArray := td.ArrayIndex(tickmath.FloorToSpacing(state.tick, spacing), spacing)
	minTick := tickmath.CeilToSpacing(tickmath.MinTick, spacing)
	maxTick := tickmath.FloorToSpacing(tickmath.MaxTick, spacing)

	for !state.amountRemaining.IsZero() {
		if state.sqrtPriceX64.Eq(sqrtPriceLimitX64) {
			stop(ammerrors.ErrPriceBoundReached.Wrapf("sqrt price %s", state.sqrtPriceX64.Dec()))
			break
		}

		var step StepComputations
		var err error
		step.sqrtPriceStartX64 = state.sqrtPriceX64
		step.tickNext, step.initialized, err = book.NextInitializedTickInArray(state.tick, zeroForOne)
		if err != nil {
			return nil, err
		}
		if array := td.ArrayIndex(step.tickNext, spacing); array != lastArray {
			if state.arrayLoads >= cons.MaxTickArrayLoads {
				stop(ammerrors.ErrTickArrayLoadLimit.Wrapf("%d tick arrays loaded", state.arrayLoads))
				break
			}
			state.arrayLoads++
			lastArray = array
		}

		nextPrice, err := tickmath.GetSqrtPriceAtTick(step.tickNext)
		if err != nil {
			return nil, err
		}
		step.sqrtPriceNextX64 = fm.FromU128(nextPrice)

		target := step.sqrtPriceNextX64
		if zeroForOne {
			if target.Cmp(sqrtPriceLimitX64) < 0 {
				target = sqrtPriceLimitX64
			}
		} else {
			if target.Cmp(sqrtPriceLimitX64) > 0 {
				target = sqrtPriceLimitX64
			}
		}
		if target.Eq(state.sqrtPriceX64) && !step.initialized {
			if step.tickNext == minTick || step.tickNext == maxTick {
				stop(ammerrors.ErrPriceBoundReached.Wrapf("tick %d", step.tickNext))
				break
			}
			// already on an empty boundary, step past it
			if zeroForOne {
				state.tick = step.tickNext - 1
			} else {
				state.tick = step.tickNext
			}
			continue
		}

		active, err := fm.CheckedAdd(state.liquidity, state.jitLiquidity)
		if err != nil {
			return nil, err
		}
		if active.IsZero() && !step.initialized {
			run.status = StatusFailed
			return run, ammerrors.ErrNoLiquidity.Wrapf("no initialized tick in array %d", lastArray)
		}
		activeX := fm.FromU128(active)

		// Price the step at the base fee first to learn how far it reaches,
		// then again at the fee its impact tier calls for.
		probe, err := swapmath.ComputeSwapStep(state.sqrtPriceX64, target, activeX, state.amountRemaining, uint32(p.fees.BaseFeeBps))
		if err != nil {
			return nil, err
		}
		moved, err := ticksMoved(state.tick, probe.SqrtPriceNext, step)
		if err != nil {
			return nil, err
		}
		step.feeBps = p.fees.TotalFeeBps(moved)
		step.step, err = swapmath.ComputeSwapStep(state.sqrtPriceX64, target, activeX, state.amountRemaining, uint32(step.feeBps))
		if err != nil {
			return nil, err
		}
		state.maxStepFeeBps = max(state.maxStepFeeBps, step.feeBps)

		state.sqrtPriceX64 = step.step.SqrtPriceNext
		state.amountRemaining.Sub(state.amountRemaining, new(ui.Int).Add(step.step.AmountIn, step.step.FeeAmount))
		state.amountOut.Add(state.amountOut, step.step.AmountOut)
		state.lpFee.Add(state.lpFee, step.step.FeeAmount)

		if !state.liquidity.IsZero() {
			growth, err := fm.MulDiv(step.step.FeeAmount, cons.Q64, fm.FromU128(state.liquidity))
			if err != nil {
				return nil, err
			}
			// accumulators are modular, keep the low 128 bits
			state.feeGrowthGlobalX64 = fm.WrappingAdd(state.feeGrowthGlobalX64, uint128.New(growth[0], growth[1]))
		} else {
			state.unallocatedFee.Add(state.unallocatedFee, step.step.FeeAmount)
		}

		if state.sqrtPriceX64.Eq(step.sqrtPriceNextX64) {
			if step.initialized {
				if state.amountRemaining.IsZero() {
					state.tick = restingTick(step.tickNext, zeroForOne)
					break
				}
				if state.ticksCrossed >= maxTicksCrossed {
					state.tick = restingTick(step.tickNext, zeroForOne)
					stop(ammerrors.ErrTickCrossingLimit.Wrapf("%d ticks crossed", state.ticksCrossed))
					break
				}
				var feeGrowthGlobal0X64, feeGrowthGlobal1X64 uint128.Uint128
				if zeroForOne {
					feeGrowthGlobal0X64 = state.feeGrowthGlobalX64
					feeGrowthGlobal1X64 = p.state.FeeGrowthGlobal1X64
				} else {
					feeGrowthGlobal0X64 = p.state.FeeGrowthGlobal0X64
					feeGrowthGlobal1X64 = state.feeGrowthGlobalX64
				}
				liquidityDelta, err := book.CrossTick(step.tickNext, zeroForOne, feeGrowthGlobal0X64, feeGrowthGlobal1X64)
				if err != nil {
					return nil, err
				}
				state.liquidity, err = fm.AddDelta(state.liquidity, liquidityDelta)
				if err != nil {
					return nil, ammerrors.ErrLiquidityInconsistent.Wrapf("crossing tick %d: %v", step.tickNext, err)
				}
				state.ticksCrossed++
				state.jitLiquidity = uint128.Zero
				p.logger.Debug("tick crossed",
					zap.Int32("tick", step.tickNext),
					zap.Bool("zero_for_one", zeroForOne),
					zap.Stringer("liquidity", state.liquidity),
				)
			}
			if zeroForOne {
				state.tick = max(step.tickNext-1, tickmath.MinTick)
			} else {
				state.tick = step.tickNext
			}
		} else if !state.sqrtPriceX64.Eq(step.sqrtPriceStartX64) {
			price, err := fm.ToU128(state.sqrtPriceX64)
			if err != nil {
				return nil, err
			}
			state.tick, err = tickmath.GetTickAtSqrtPrice(price)
			if err != nil {
				return nil, err
			}
		}
	}

	if run.status == StatusStepping {
		run.status = StatusExhausted
	}
	run.state = state
	return run, nil
}

// restingTick is the current tick for a price sitting on an initialized
// boundary that was not crossed.
func restingTick(boundary int32, zeroForOne bool) int32 {
	if zeroForOne {
		return boundary
	}
	return boundary - 1
}

func ticksMoved(from int32, sqrtPriceX64 *ui.Int, step StepComputations) (uint32, error) {
	to := step.tickNext
	if !sqrtPriceX64.Eq(step.sqrtPriceNextX64) {
		price, err := fm.ToU128(sqrtPriceX64)
		if err != nil {
			return 0, err
		}
		to, err = tickmath.GetTickAtSqrtPrice(price)
		if err != nil {
			return 0, err
		}
	}
	d := int64(to) - int64(from)
	if d < 0 {
		d = -d
	}
	return uint32(d), nil
}

func priceImpactBps(sqrtBefore, sqrtAfter *ui.Int) (uint32, error) {
	before := new(ui.Int).Mul(sqrtBefore, sqrtBefore)
	after := new(ui.Int).Mul(sqrtAfter, sqrtAfter)
	diff := new(ui.Int)
	if after.Gt(before) {
		diff.Sub(after, before)
	} else {
		diff.Sub(before, after)
	}
	impact, err := fm.MulDiv(diff, ui.NewInt(cons.BPS), before)
	if err != nil {
		return 0, err
	}
	if !impact.IsUint64() || impact.Uint64() > math.MaxUint32 {
		return math.MaxUint32, nil
	}
	return uint32(impact.Uint64()), nil
}

package pool

import (
	"github.com/ftchann/thermo-amm/lib/ammerrors"
	fm "github.com/ftchann/thermo-amm/lib/fullmath"
	"github.com/ftchann/thermo-amm/lib/position"
	sqrtmath "github.com/ftchann/thermo-amm/lib/sqrtprice_math"
	"github.com/ftchann/thermo-amm/lib/tickmath"

	cosmath "cosmossdk.io/math"
	ui "github.com/holiman/uint256"
	"go.uber.org/zap"
)

// PositionUpdate reports the token amounts a liquidity change requires
// (adding) or releases into tokens owed (removing).
type PositionUpdate struct {
	Amount0  uint64
	Amount1  uint64
	Position position.Info
}

func (p *Pool) checkTicks(tickLower, tickUpper int32) error {
	if tickLower >= tickUpper {
		return ammerrors.ErrInvalidTickRange.Wrapf("lower %d >= upper %d", tickLower, tickUpper)
	}
	if tickLower < tickmath.MinTick || tickUpper > tickmath.MaxTick {
		return ammerrors.ErrTickOutOfBounds.Wrapf("[%d, %d]", tickLower, tickUpper)
	}
	spacing := p.ticks.TickSpacing()
	if !tickmath.IsAligned(tickLower, spacing) || !tickmath.IsAligned(tickUpper, spacing) {
		return ammerrors.ErrTickMisaligned.Wrapf("[%d, %d] with spacing %d", tickLower, tickUpper, spacing)
	}
	return nil
}

// Mint adds liquidity to the owner's position in [tickLower, tickUpper).
func (p *Pool) Mint(owner string, tickLower, tickUpper int32, liquidity cosmath.Int) (PositionUpdate, error) {
	if !liquidity.IsPositive() {
		return PositionUpdate{}, ammerrors.ErrInvalidAmount.Wrapf("mint liquidity %s", liquidity)
	}
	return p.ModifyPosition(owner, tickLower, tickUpper, liquidity)
}

// Burn removes liquidity; the released tokens are credited to tokens owed.
func (p *Pool) Burn(owner string, tickLower, tickUpper int32, liquidity cosmath.Int) (PositionUpdate, error) {
	if !liquidity.IsPositive() {
		return PositionUpdate{}, ammerrors.ErrInvalidAmount.Wrapf("burn liquidity %s", liquidity)
	}
	return p.ModifyPosition(owner, tickLower, tickUpper, liquidity.Neg())
}

// ModifyPosition applies a signed liquidity delta to a position. A zero delta
// only accrues fees. Either every effect is applied or none is.
func (p *Pool) ModifyPosition(owner string, tickLower, tickUpper int32, liquidityDelta cosmath.Int) (PositionUpdate, error) {
	var upd PositionUpdate
	err := p.WithCriticalSection(func() error {
		var err error
		upd, err = p.modifyPosition(owner, tickLower, tickUpper, liquidityDelta)
		return err
	})
	kind := "poke"
	switch {
	case liquidityDelta.IsPositive():
		kind = "mint"
	case liquidityDelta.IsNegative():
		kind = "burn"
	}
	if err != nil {
		p.logger.Warn("position update rejected",
			zap.String("owner", owner),
			zap.Int32("tick_lower", tickLower),
			zap.Int32("tick_upper", tickUpper),
			zap.Stringer("liquidity_delta", liquidityDelta),
			zap.Error(err),
		)
		return PositionUpdate{}, err
	}
	p.logger.Info("position updated",
		zap.String("kind", kind),
		zap.String("owner", owner),
		zap.Int32("tick_lower", tickLower),
		zap.Int32("tick_upper", tickUpper),
		zap.Uint64("amount0", upd.Amount0),
		zap.Uint64("amount1", upd.Amount1),
	)
	p.metrics.ObservePositionUpdate(kind)
	return upd, nil
}

func (p *Pool) modifyPosition(owner string, tickLower, tickUpper int32, liquidityDelta cosmath.Int) (PositionUpdate, error) {
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return PositionUpdate{}, err
	}
	if err := fm.CheckI128(liquidityDelta); err != nil {
		return PositionUpdate{}, err
	}

	existing, ok := p.positions.Get(owner, tickLower, tickUpper)
	if !ok && !liquidityDelta.IsPositive() {
		return PositionUpdate{}, ammerrors.ErrPositionNotFound.Wrapf("%s [%d, %d]", owner, tickLower, tickUpper)
	}
	var pos *position.Info
	if ok {
		pos = existing.Clone()
	} else {
		pos = position.NewPosition(owner, tickLower, tickUpper)
	}

	book, overlay := p.ticks.Fork()
	state := p.state

	if !liquidityDelta.IsZero() {
		if _, err := book.UpdateTick(tickLower, state.Tick, liquidityDelta, state.FeeGrowthGlobal0X64, state.FeeGrowthGlobal1X64, false); err != nil {
			return PositionUpdate{}, err
		}
		if _, err := book.UpdateTick(tickUpper, state.Tick, liquidityDelta, state.FeeGrowthGlobal0X64, state.FeeGrowthGlobal1X64, true); err != nil {
			return PositionUpdate{}, err
		}
	}

	lower, err := book.GetTick(tickLower)
	if err != nil {
		return PositionUpdate{}, err
	}
	upper, err := book.GetTick(tickUpper)
	if err != nil {
		return PositionUpdate{}, err
	}
	inside0 := position.FeeGrowthInside(tickLower, tickUpper, state.Tick, state.FeeGrowthGlobal0X64, lower.FeeGrowthOutside0X64, upper.FeeGrowthOutside0X64)
	inside1 := position.FeeGrowthInside(tickLower, tickUpper, state.Tick, state.FeeGrowthGlobal1X64, lower.FeeGrowthOutside1X64, upper.FeeGrowthOutside1X64)
	if err := pos.Update(liquidityDelta, inside0, inside1); err != nil {
		return PositionUpdate{}, err
	}

	amount0, amount1, err := p.amountsForDelta(tickLower, tickUpper, liquidityDelta)
	if err != nil {
		return PositionUpdate{}, err
	}
	if state.Tick >= tickLower && state.Tick < tickUpper {
		state.Liquidity, err = fm.AddDelta(state.Liquidity, liquidityDelta)
		if err != nil {
			return PositionUpdate{}, err
		}
	}
	if liquidityDelta.IsNegative() {
		if err := pos.Credit(amount0, amount1); err != nil {
			return PositionUpdate{}, err
		}
	}

	overlay.Commit()
	p.state = state
	if pos.IsEmpty() {
		p.positions.Delete(pos.Key())
	} else {
		p.positions.Put(pos)
	}
	return PositionUpdate{Amount0: amount0, Amount1: amount1, Position: *pos}, nil
}

// amountsForDelta rounds up when liquidity is added and down when removed.
func (p *Pool) amountsForDelta(tickLower, tickUpper int32, liquidityDelta cosmath.Int) (uint64, uint64, error) {
	if liquidityDelta.IsZero() {
		return 0, 0, nil
	}
	abs, err := fm.AbsU128(liquidityDelta)
	if err != nil {
		return 0, 0, err
	}
	roundUp := liquidityDelta.IsPositive()
	liquidity := fm.FromU128(abs)

	lowerPrice, err := tickmath.GetSqrtPriceAtTick(tickLower)
	if err != nil {
		return 0, 0, err
	}
	upperPrice, err := tickmath.GetSqrtPriceAtTick(tickUpper)
	if err != nil {
		return 0, 0, err
	}
	sqrtLower, sqrtUpper := fm.FromU128(lowerPrice), fm.FromU128(upperPrice)
	current := fm.FromU128(p.state.SqrtPriceX64)

	amount0, amount1 := new(ui.Int), new(ui.Int)
	switch {
	case p.state.Tick < tickLower:
		amount0, err = sqrtmath.GetAmount0Delta(sqrtLower, sqrtUpper, liquidity, roundUp)
	case p.state.Tick < tickUpper:
		amount0, err = sqrtmath.GetAmount0Delta(current, sqrtUpper, liquidity, roundUp)
		if err == nil {
			amount1, err = sqrtmath.GetAmount1Delta(sqrtLower, current, liquidity, roundUp)
		}
	default:
		amount1, err = sqrtmath.GetAmount1Delta(sqrtLower, sqrtUpper, liquidity, roundUp)
	}
	if err != nil {
		return 0, 0, err
	}
	a0, err := fm.ToUint64(amount0)
	if err != nil {
		return 0, 0, err
	}
	a1, err := fm.ToUint64(amount1)
	if err != nil {
		return 0, 0, err
	}
	return a0, a1, nil
}

// Collect pays out up to the requested owed amounts and drops the position
// once it is empty.
func (p *Pool) Collect(owner string, tickLower, tickUpper int32, amount0Requested, amount1Requested uint64) (uint64, uint64, error) {
	var amount0, amount1 uint64
	err := p.WithCriticalSection(func() error {
		existing, ok := p.positions.Get(owner, tickLower, tickUpper)
		if !ok {
			return ammerrors.ErrPositionNotFound.Wrapf("%s [%d, %d]", owner, tickLower, tickUpper)
		}
		pos := existing.Clone()
		amount0, amount1 = pos.Collect(amount0Requested, amount1Requested)
		if pos.IsEmpty() {
			p.positions.Delete(pos.Key())
		} else {
			p.positions.Put(pos)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	p.logger.Info("fees collected",
		zap.String("owner", owner),
		zap.Uint64("amount0", amount0),
		zap.Uint64("amount1", amount1),
	)
	p.metrics.ObservePositionUpdate("collect")
	return amount0, amount1, nil
}

package tickdata

import (
	"github.com/ftchann/thermo-amm/lib/ammerrors"
	cons "github.com/ftchann/thermo-amm/lib/constants"
	fm "github.com/ftchann/thermo-amm/lib/fullmath"
	"github.com/ftchann/thermo-amm/lib/tickmath"

	cosmath "cosmossdk.io/math"
	"lukechampine.com/uint128"
)

type Tick struct {
	LiquidityNet         cosmath.Int
	LiquidityGross       uint128.Uint128
	FeeGrowthOutside0X64 uint128.Uint128
	FeeGrowthOutside1X64 uint128.Uint128
}

func EmptyTick() Tick {
	return Tick{LiquidityNet: cosmath.ZeroInt()}
}

func (t Tick) Initialized() bool {
	return !t.LiquidityGross.IsZero()
}

// TickStore is the storage backend of a TickBook. Only aligned indices are
// passed in.
type TickStore interface {
	GetTick(index int32) (Tick, bool)
	SetTick(index int32, tick Tick)
}

// TickData is the tick book of one pool.
type TickData struct {
	store               TickStore
	tickSpacing         int32
	maxLiquidityPerTick uint128.Uint128
}

func NewTickData(store TickStore, tickSpacing int32) (*TickData, error) {
	if tickSpacing <= 0 || tickSpacing > tickmath.MaxTick {
		return nil, ammerrors.ErrInvalidTickSpace.Wrapf("tick spacing %d", tickSpacing)
	}
	return &TickData{
		store:               store,
		tickSpacing:         tickSpacing,
		maxLiquidityPerTick: MaxLiquidityPerTick(tickSpacing),
	}, nil
}

// MaxLiquidityPerTick spreads the u128 range evenly across every aligned tick.
func MaxLiquidityPerTick(tickSpacing int32) uint128.Uint128 {
	minTick := tickmath.CeilToSpacing(tickmath.MinTick, tickSpacing)
	maxTick := tickmath.FloorToSpacing(tickmath.MaxTick, tickSpacing)
	numTicks := uint64((maxTick-minTick)/tickSpacing) + 1
	return uint128.Max.Div64(numTicks)
}

func (t *TickData) TickSpacing() int32 {
	return t.tickSpacing
}

func (t *TickData) MaxLiquidity() uint128.Uint128 {
	return t.maxLiquidityPerTick
}

// WithStore returns a book with the same parameters over another store.
func (t *TickData) WithStore(store TickStore) *TickData {
	return &TickData{
		store:               store,
		tickSpacing:         t.tickSpacing,
		maxLiquidityPerTick: t.maxLiquidityPerTick,
	}
}

// Fork returns a book whose writes are buffered until the overlay commits.
func (t *TickData) Fork() (*TickData, *Overlay) {
	overlay := NewOverlay(t.store)
	return t.WithStore(overlay), overlay
}

func (t *TickData) checkIndex(index int32) error {
	if index < tickmath.MinTick || index > tickmath.MaxTick {
		return ammerrors.ErrTickOutOfBounds.Wrapf("tick %d", index)
	}
	if !tickmath.IsAligned(index, t.tickSpacing) {
		return ammerrors.ErrTickMisaligned.Wrapf("tick %d with spacing %d", index, t.tickSpacing)
	}
	return nil
}

// GetTick returns the stored tick, or an empty one if it was never initialized.
func (t *TickData) GetTick(index int32) (Tick, error) {
	if err := t.checkIndex(index); err != nil {
		return Tick{}, err
	}
	tick, ok := t.store.GetTick(index)
	if !ok {
		return EmptyTick(), nil
	}
	return tick, nil
}

func (t *TickData) FeeGrowthOutside(index int32) (uint128.Uint128, uint128.Uint128, error) {
	tick, err := t.GetTick(index)
	if err != nil {
		return uint128.Zero, uint128.Zero, err
	}
	return tick.FeeGrowthOutside0X64, tick.FeeGrowthOutside1X64, nil
}

// UpdateTick applies a position's liquidity delta to one of its boundary
// ticks and reports whether the tick flipped between initialized and not.
func (t *TickData) UpdateTick(
	index, currentTick int32,
	liquidityDelta cosmath.Int,
	feeGrowthGlobal0X64, feeGrowthGlobal1X64 uint128.Uint128,
	upper bool,
) (bool, error) {
	tick, err := t.GetTick(index)
	if err != nil {
		return false, err
	}

	grossBefore := tick.LiquidityGross
	grossAfter, err := fm.AddDelta(grossBefore, liquidityDelta)
	if err != nil {
		return false, err
	}
	if grossAfter.Cmp(t.maxLiquidityPerTick) > 0 {
		return false, ammerrors.ErrMaxLiquidityPerTick.Wrapf("tick %d gross %s", index, grossAfter)
	}
	flipped := grossAfter.IsZero() != grossBefore.IsZero()

	if grossBefore.IsZero() && index <= currentTick {
		// by convention, all growth before a tick was initialized happened below it
		tick.FeeGrowthOutside0X64 = feeGrowthGlobal0X64
		tick.FeeGrowthOutside1X64 = feeGrowthGlobal1X64
	}

	var net cosmath.Int
	if upper {
		net, err = fm.CheckedAddI128(tick.LiquidityNet, liquidityDelta.Neg())
	} else {
		net, err = fm.CheckedAddI128(tick.LiquidityNet, liquidityDelta)
	}
	if err != nil {
		return false, err
	}

	if grossAfter.IsZero() {
		if !net.IsZero() {
			return false, ammerrors.ErrLiquidityInconsistent.Wrapf("tick %d net %s with zero gross", index, net)
		}
		t.store.SetTick(index, EmptyTick())
		return flipped, nil
	}

	tick.LiquidityGross = grossAfter
	tick.LiquidityNet = net
	t.store.SetTick(index, tick)
	return flipped, nil
}

// FlipFeeGrowthOutside sets the tick's outside accumulators to global - outside.
func (t *TickData) FlipFeeGrowthOutside(index int32, feeGrowthGlobal0X64, feeGrowthGlobal1X64 uint128.Uint128) error {
	tick, err := t.GetTick(index)
	if err != nil {
		return err
	}
	// wrapping: the accumulators are modular, only differences are meaningful
	tick.FeeGrowthOutside0X64 = fm.WrappingSub(feeGrowthGlobal0X64, tick.FeeGrowthOutside0X64)
	tick.FeeGrowthOutside1X64 = fm.WrappingSub(feeGrowthGlobal1X64, tick.FeeGrowthOutside1X64)
	if tick.Initialized() {
		t.store.SetTick(index, tick)
	}
	return nil
}

// CrossTick flips the tick's outside fee growth and returns the change to
// apply to active liquidity when the price crosses it in the given direction.
func (t *TickData) CrossTick(index int32, zeroForOne bool, feeGrowthGlobal0X64, feeGrowthGlobal1X64 uint128.Uint128) (cosmath.Int, error) {
	if err := t.FlipFeeGrowthOutside(index, feeGrowthGlobal0X64, feeGrowthGlobal1X64); err != nil {
		return cosmath.Int{}, err
	}
	tick, err := t.GetTick(index)
	if err != nil {
		return cosmath.Int{}, err
	}
	if zeroForOne {
		return tick.LiquidityNet.Neg(), nil
	}
	return tick.LiquidityNet, nil
}

// ArrayIndex returns the id of the tick array holding tick.
func ArrayIndex(tick, tickSpacing int32) int32 {
	span := tickSpacing * cons.TickArraySize
	q := tick / span
	if tick%span != 0 && tick < 0 {
		q--
	}
	return q
}

func arrayBounds(arrayIndex, tickSpacing int32) (int32, int32) {
	start := arrayIndex * tickSpacing * cons.TickArraySize
	return start, start + (cons.TickArraySize-1)*tickSpacing
}

// NextInitializedTickInArray finds the next initialized tick at or below tick
// (lte) or above it, without leaving the tick array of the starting point.
// When none is found it returns the array boundary, clamped to the tick range.
func (t *TickData) NextInitializedTickInArray(tick int32, lte bool) (int32, bool, error) {
	spacing := t.tickSpacing
	minTick := tickmath.CeilToSpacing(tickmath.MinTick, spacing)
	maxTick := tickmath.FloorToSpacing(tickmath.MaxTick, spacing)

	if lte {
		start := tickmath.FloorToSpacing(tick, spacing)
		if start > maxTick {
			start = maxTick
		}
		lo, _ := arrayBounds(ArrayIndex(start, spacing), spacing)
		if lo < minTick {
			lo = minTick
		}
		for i := start; i >= lo; i -= spacing {
			if tk, ok := t.store.GetTick(i); ok && tk.Initialized() {
				return i, true, nil
			}
		}
		return lo, false, nil
	}

	start := tickmath.FloorToSpacing(tick, spacing) + spacing
	if start < minTick {
		start = minTick
	}
	_, hi := arrayBounds(ArrayIndex(start, spacing), spacing)
	if hi > maxTick {
		hi = maxTick
	}
	for i := start; i <= hi; i += spacing {
		if tk, ok := t.store.GetTick(i); ok && tk.Initialized() {
			return i, true, nil
		}
	}
	return hi, false, nil
}

package tickmath

import (
	"github.com/ftchann/thermo-amm/lib/ammerrors"
	cons "github.com/ftchann/thermo-amm/lib/constants"

	ui "github.com/holiman/uint256"
	"lukechampine.com/uint128"
)

const (
	MinTick    int32 = -443636  // The minimum tick whose Q64.64 sqrt price fits 128 bits.
	MaxTick    int32 = -MinTick // The maximum tick whose Q64.64 sqrt price fits 128 bits.
	TotalTicks       = int(MaxTick) - int(MinTick) + 1
)

var (
	MinSqrtPrice = uint128.From64(4295048016) // The sqrt price at MinTick.
	// The sqrt price at MaxTick.
	MaxSqrtPrice, _ = uint128.FromString("79226673521066979257578248091")
)

// sqrt(1.0001)^-(2^i) in Q64.64 for i in 1..18; bit 0 is the initial ratio.
var ratioLadder = [...]uint64{
	18444899583751176192,
	18443055278223355904,
	18439367220385607680,
	18431993317065453568,
	18417254355718170624,
	18387811781193609216,
	18329067761203558400,
	18212142134806163456,
	17980523815641700352,
	17526086738831433728,
	16651378430235570176,
	15030750278694412288,
	12247334978884435968,
	8131365268886854656,
	3584323654725218816,
	696457651848324352,
	26294789957507116,
	37481735321082,
}

const oddTickRatio uint64 = 18445821805675395072

// GetSqrtPriceAtTick returns sqrt(1.0001)^tick as a Q64.64 value.
func GetSqrtPriceAtTick(tick int32) (uint128.Uint128, error) {
	if tick < MinTick || tick > MaxTick {
		return uint128.Zero, ammerrors.ErrTickOutOfBounds.Wrapf("tick %d", tick)
	}
	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	var ratio *ui.Int
	if absTick&0x1 != 0 {
		ratio = ui.NewInt(oddTickRatio)
	} else {
		ratio = new(ui.Int).Set(cons.Q64)
	}
	for i, mulBy := range ratioLadder {
		if absTick&(1<<(i+1)) != 0 {
			ratio = mulShift(ratio, mulBy)
		}
	}
	if tick > 0 {
		ratio = new(ui.Int).Div(cons.MaxUint128, ratio)
	}
	return uint128.New(ratio[0], ratio[1]), nil
}

// GetTickAtSqrtPrice returns the greatest tick whose sqrt price is <= sqrtPrice.
func GetTickAtSqrtPrice(sqrtPrice uint128.Uint128) (int32, error) {
	if sqrtPrice.Cmp(MinSqrtPrice) < 0 || sqrtPrice.Cmp(MaxSqrtPrice) > 0 {
		return 0, ammerrors.ErrSqrtPriceBounds.Wrapf("sqrt price %s", sqrtPrice)
	}
	l, r := MinTick, MaxTick
	for l < r {
		// Ticks never overflow int32, so the midpoint is safe.
		mid := l + (r-l+1)/2
		p, err := GetSqrtPriceAtTick(mid)
		if err != nil {
			return 0, err
		}
		if p.Cmp(sqrtPrice) > 0 {
			r = mid - 1
		} else {
			l = mid
		}
	}
	return l, nil
}

func IsAligned(tick, spacing int32) bool {
	return spacing > 0 && tick%spacing == 0
}

// FloorToSpacing rounds tick down to a multiple of spacing.
func FloorToSpacing(tick, spacing int32) int32 {
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}

// CeilToSpacing rounds tick up to a multiple of spacing.
func CeilToSpacing(tick, spacing int32) int32 {
	f := FloorToSpacing(tick, spacing)
	if f == tick {
		return f
	}
	return f + spacing
}

// RoundToSpacing rounds tick to the nearest multiple of spacing, halves away from the floor.
func RoundToSpacing(tick, spacing int32) int32 {
	f := FloorToSpacing(tick, spacing)
	if tick-f >= (spacing+1)/2 {
		return f + spacing
	}
	return f
}

// Clamp bounds an aligned tick to the aligned range of the pool.
func Clamp(tick, spacing int32) int32 {
	lo, hi := CeilToSpacing(MinTick, spacing), FloorToSpacing(MaxTick, spacing)
	if tick < lo {
		return lo
	}
	if tick > hi {
		return hi
	}
	return tick
}

func mulShift(val *ui.Int, mulBy uint64) *ui.Int {
	return new(ui.Int).Rsh(new(ui.Int).Mul(val, ui.NewInt(mulBy)), 64)
}

package feemodel

import (
	"math/big"

	"github.com/ftchann/thermo-amm/lib/ammerrors"
	"github.com/ftchann/thermo-amm/lib/conservation"
	cons "github.com/ftchann/thermo-amm/lib/constants"

	cosmath "cosmossdk.io/math"
	ui "github.com/holiman/uint256"
)

type Direction int

const (
	Flat Direction = iota
	Uphill
	Downhill
)

func (d Direction) String() string {
	switch d {
	case Uphill:
		return "uphill"
	case Downhill:
		return "downhill"
	default:
		return "flat"
	}
}

// DomainPoint is the position of the pool along the spot, time and leverage axes.
type DomainPoint struct {
	S cosmath.LegacyDec
	T cosmath.LegacyDec
	L cosmath.LegacyDec
}

func UnitPoint() DomainPoint {
	return DomainPoint{S: cosmath.LegacyOneDec(), T: cosmath.LegacyOneDec(), L: cosmath.LegacyOneDec()}
}

// PriceFromSqrt converts a Q64.64 sqrt price into a decimal price.
func PriceFromSqrt(sqrtPriceX64 *ui.Int) cosmath.LegacyDec {
	sq := new(big.Int).Mul(sqrtPriceX64.ToBig(), sqrtPriceX64.ToBig())
	sq.Mul(sq, new(big.Int).Exp(big.NewInt(10), big.NewInt(cosmath.LegacyPrecision), nil))
	sq.Rsh(sq, 128)
	return cosmath.LegacyNewDecFromBigIntWithPrec(sq, cosmath.LegacyPrecision)
}

// Gradient returns the spot, time and leverage weights normalized to sum to 1.
func Gradient(w conservation.Weights) [3]cosmath.LegacyDec {
	total := uint64(w.Spot) + uint64(w.Time) + uint64(w.Leverage)
	if total == 0 {
		return [3]cosmath.LegacyDec{cosmath.LegacyZeroDec(), cosmath.LegacyZeroDec(), cosmath.LegacyZeroDec()}
	}
	d := cosmath.LegacyNewDec(int64(total))
	return [3]cosmath.LegacyDec{
		cosmath.LegacyNewDec(int64(w.Spot)).Quo(d),
		cosmath.LegacyNewDec(int64(w.Time)).Quo(d),
		cosmath.LegacyNewDec(int64(w.Leverage)).Quo(d),
	}
}

func floorDivisor(x cosmath.LegacyDec) cosmath.LegacyDec {
	if x.LT(cosmath.LegacySmallestDec()) {
		return cosmath.LegacySmallestDec()
	}
	return x
}

// Dot is the linearized ∇V·Δx with ∇V ≈ -ŵ/x evaluated at start.
func Dot(w conservation.Weights, start, end DomainPoint) cosmath.LegacyDec {
	g := Gradient(w)
	dot := cosmath.LegacyZeroDec()
	for i, pair := range [3][2]cosmath.LegacyDec{{start.S, end.S}, {start.T, end.T}, {start.L, end.L}} {
		if g[i].IsZero() {
			continue
		}
		delta := pair[1].Sub(pair[0])
		dot = dot.Sub(g[i].Mul(delta).Quo(floorDivisor(pair[0])))
	}
	return dot
}

// Work scales |dot| by the trade size valued at the input token's price.
func Work(w conservation.Weights, start, end DomainPoint, amountIn uint64, priceIn cosmath.LegacyDec) (cosmath.LegacyDec, cosmath.LegacyDec) {
	dot := Dot(w, start, end)
	work := dot.Abs().MulInt(cosmath.NewIntFromUint64(amountIn)).Mul(priceIn)
	return dot, work
}

type ThermoOutcome struct {
	Direction Direction
	Dot       cosmath.LegacyDec
	Work      cosmath.LegacyDec
	Fee       uint64 // input token, withheld before the curve
	Rebate    uint64 // output token, before the buffer clamp
}

// Thermo prices the work a trade does against the domain potential. Uphill
// trades pay work/Πin in the input token, capped at MaxThermoFeeBps of the
// input. Downhill trades receive min(work/Πout, κ·amountOut) in the output token.
func (c Config) Thermo(
	w conservation.Weights,
	start, end DomainPoint,
	amountIn, amountOut uint64,
	priceIn, priceOut cosmath.LegacyDec,
) (ThermoOutcome, error) {
	if err := w.Validate(); err != nil {
		return ThermoOutcome{}, err
	}
	dot, work := Work(w, start, end, amountIn, priceIn)
	out := ThermoOutcome{Dot: dot, Work: work}

	switch {
	case dot.IsPositive():
		out.Direction = Uphill
		fee := work.QuoRoundUp(floorDivisor(priceIn)).Ceil().TruncateInt()
		limit := cosmath.NewIntFromUint64(amountIn).MulRaw(int64(c.MaxThermoFeeBps)).QuoRaw(cons.BPS)
		fee = cosmath.MinInt(fee, limit)
		if !fee.IsUint64() {
			return ThermoOutcome{}, ammerrors.ErrOverflow.Wrapf("thermo fee %s", fee)
		}
		out.Fee = fee.Uint64()
	case dot.IsNegative():
		out.Direction = Downhill
		rebate := work.QuoTruncate(floorDivisor(priceOut)).TruncateInt()
		clamp := cosmath.NewIntFromUint64(amountOut).MulRaw(int64(c.RebateClampBps)).QuoRaw(cons.BPS)
		rebate = cosmath.MinInt(rebate, clamp)
		if !rebate.IsUint64() {
			return ThermoOutcome{}, ammerrors.ErrOverflow.Wrapf("rebate %s", rebate)
		}
		out.Rebate = rebate.Uint64()
	default:
		out.Direction = Flat
	}
	return out, nil
}

// ClampRebate truncates a rebate to what the buffer holds.
func ClampRebate(rebate, buffer uint64) uint64 {
	return min(rebate, buffer)
}

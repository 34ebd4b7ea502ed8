package fullmath

import (
	"github.com/ftchann/thermo-amm/lib/ammerrors"

	ui "github.com/holiman/uint256"
	"lukechampine.com/uint128"
)

// ToU128 narrows a 256-bit value into a stored 128-bit word.
func ToU128(x *ui.Int) (uint128.Uint128, error) {
	if x[2] != 0 || x[3] != 0 {
		return uint128.Zero, ammerrors.ErrOverflow.Wrapf("%s does not fit u128", x.Dec())
	}
	return uint128.New(x[0], x[1]), nil
}

func FromU128(v uint128.Uint128) *ui.Int {
	return &ui.Int{v.Lo, v.Hi, 0, 0}
}

func CheckedAdd(a, b uint128.Uint128) (uint128.Uint128, error) {
	sum := a.AddWrap(b)
	if sum.Cmp(a) < 0 {
		return uint128.Zero, ammerrors.ErrOverflow.Wrapf("u128 add %s + %s", a, b)
	}
	return sum, nil
}

func CheckedSub(a, b uint128.Uint128) (uint128.Uint128, error) {
	if a.Cmp(b) < 0 {
		return uint128.Zero, ammerrors.ErrUnderflow.Wrapf("u128 sub %s - %s", a, b)
	}
	return a.SubWrap(b), nil
}

func CheckedMul(a, b uint128.Uint128) (uint128.Uint128, error) {
	return ToU128(new(ui.Int).Mul(FromU128(a), FromU128(b)))
}

// SaturatingSub clamps at zero. Fee-growth-inside derivation uses it: a
// negative difference there is an accounting error, not a wrap.
func SaturatingSub(a, b uint128.Uint128) uint128.Uint128 {
	if a.Cmp(b) <= 0 {
		return uint128.Zero
	}
	return a.SubWrap(b)
}

// WrappingSub is subtraction modulo 2^128. Fee-growth deltas use it because
// the accumulators may wrap over a pool's lifetime.
func WrappingSub(a, b uint128.Uint128) uint128.Uint128 {
	return a.SubWrap(b)
}

// WrappingAdd is the accumulator side of WrappingSub.
func WrappingAdd(a, b uint128.Uint128) uint128.Uint128 {
	return a.AddWrap(b)
}

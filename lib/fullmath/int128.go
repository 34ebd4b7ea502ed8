package fullmath

import (
	"math/big"

	"github.com/ftchann/thermo-amm/lib/ammerrors"

	cosmath "cosmossdk.io/math"
	"lukechampine.com/uint128"
)

var (
	MaxI128 = cosmath.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1)))
	MinI128 = cosmath.NewIntFromBigInt(new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127)))
)

// CheckI128 fails when x falls outside the signed 128-bit range.
func CheckI128(x cosmath.Int) error {
	if x.GT(MaxI128) || x.LT(MinI128) {
		return ammerrors.ErrOverflow.Wrapf("%s does not fit i128", x)
	}
	return nil
}

func I128FromU128(v uint128.Uint128) (cosmath.Int, error) {
	x := cosmath.NewIntFromBigInt(v.Big())
	if err := CheckI128(x); err != nil {
		return cosmath.Int{}, err
	}
	return x, nil
}

// AbsU128 returns |x| as an unsigned word.
func AbsU128(x cosmath.Int) (uint128.Uint128, error) {
	abs := x.Abs().BigInt()
	if abs.BitLen() > 128 {
		return uint128.Zero, ammerrors.ErrOverflow.Wrapf("|%s| does not fit u128", x)
	}
	return uint128.FromBig(abs), nil
}

// AddDelta applies a signed liquidity delta to an unsigned liquidity value.
func AddDelta(liquidity uint128.Uint128, delta cosmath.Int) (uint128.Uint128, error) {
	if err := CheckI128(delta); err != nil {
		return uint128.Zero, err
	}
	abs, err := AbsU128(delta)
	if err != nil {
		return uint128.Zero, err
	}
	if delta.IsNegative() {
		return CheckedSub(liquidity, abs)
	}
	return CheckedAdd(liquidity, abs)
}

// CheckedAddI128 adds two signed values and keeps the result in i128 range.
func CheckedAddI128(a, b cosmath.Int) (cosmath.Int, error) {
	sum := a.Add(b)
	if err := CheckI128(sum); err != nil {
		return cosmath.Int{}, err
	}
	return sum, nil
}

package fullmath

import (
	"github.com/ftchann/thermo-amm/lib/ammerrors"
	cons "github.com/ftchann/thermo-amm/lib/constants"

	ui "github.com/holiman/uint256"
)

func MulDivRoundingUp(a, b, denominator *ui.Int) (*ui.Int, error) {
	result, err := MulDiv(a, b, denominator)
	if err != nil {
		return nil, err
	}
	rem := new(ui.Int).MulMod(a, b, denominator)
	if !rem.IsZero() {
		if result.Eq(ui.NewInt(0).SetAllOne()) {
			return nil, ammerrors.ErrOverflow.Wrap("mulDivRoundingUp")
		}
		result.Add(result, cons.One)
	}
	return result, nil
}

func MulDiv(a, b, denominator *ui.Int) (*ui.Int, error) {
	if denominator.IsZero() {
		return nil, ammerrors.ErrDivisionByZero.Wrap("mulDiv")
	}
	result, overflow := new(ui.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		return nil, ammerrors.ErrOverflow.Wrap("mulDiv")
	}
	return result, nil
}

// DivRoundingUp returns ceil(a / b).
func DivRoundingUp(a, b *ui.Int) (*ui.Int, error) {
	if b.IsZero() {
		return nil, ammerrors.ErrDivisionByZero.Wrap("divRoundingUp")
	}
	q, r := new(ui.Int), new(ui.Int)
	q.DivMod(a, b, r)
	if !r.IsZero() {
		q.Add(q, cons.One)
	}
	return q, nil
}

// FloorDivisor returns d, or one when d is zero. Used where a zero divisor
// means "no scale" rather than an error.
func FloorDivisor(d *ui.Int) *ui.Int {
	if d.IsZero() {
		return new(ui.Int).SetOne()
	}
	return d
}

// Sqrt returns floor(sqrt(x)).
func Sqrt(x *ui.Int) *ui.Int {
	return new(ui.Int).Sqrt(x)
}

// ToUint64 narrows x, failing if it does not fit 64 bits.
func ToUint64(x *ui.Int) (uint64, error) {
	if !x.IsUint64() {
		return 0, ammerrors.ErrOverflow.Wrapf("%s does not fit u64", x.Dec())
	}
	return x.Uint64(), nil
}

func CheckedAddU64(a, b uint64) (uint64, error) {
	if a > ^uint64(0)-b {
		return 0, ammerrors.ErrOverflow.Wrapf("u64 add %d + %d", a, b)
	}
	return a + b, nil
}

func CheckedSubU64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ammerrors.ErrUnderflow.Wrapf("u64 sub %d - %d", a, b)
	}
	return a - b, nil
}

func SaturatingSubU64(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func CheckedAddI64(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ammerrors.ErrOverflow.Wrapf("i64 add %d + %d", a, b)
	}
	return sum, nil
}

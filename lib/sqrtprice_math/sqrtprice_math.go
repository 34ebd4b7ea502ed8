package sqrtprice_math

import (
	"math/big"

	"github.com/ftchann/thermo-amm/lib/ammerrors"
	cons "github.com/ftchann/thermo-amm/lib/constants"
	fm "github.com/ftchann/thermo-amm/lib/fullmath"

	ui "github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// GetPrice returns sqrtPrice^2 as a Q64.64 value, truncated.
func GetPrice(sqrtPriceX64 *ui.Int) (*ui.Int, error) {
	return fm.MulDiv(sqrtPriceX64, sqrtPriceX64, cons.Q64)
}

// PriceDecimal renders the token1-per-token0 price carried by a Q64.64 sqrt price.
func PriceDecimal(sqrtPriceX64 *ui.Int) decimal.Decimal {
	sq := new(big.Int).Mul(sqrtPriceX64.ToBig(), sqrtPriceX64.ToBig())
	return decimal.NewFromBigInt(sq, 0).DivRound(decimal.NewFromBigInt(cons.Q128.ToBig(), 0), 18)
}

// SqrtPriceFromDecimal is the inverse of PriceDecimal: floor(sqrt(price * 2^128)).
func SqrtPriceFromDecimal(price decimal.Decimal) (*ui.Int, error) {
	if !price.IsPositive() {
		return nil, ammerrors.ErrInvalidAmount.Wrapf("price %s", price)
	}
	scaled := price.Mul(decimal.NewFromBigInt(cons.Q128.ToBig(), 0)).BigInt()
	root, overflow := ui.FromBig(new(big.Int).Sqrt(scaled))
	if overflow {
		return nil, ammerrors.ErrOverflow.Wrapf("sqrt price of %s", price)
	}
	return root, nil
}

func GetAmount0Delta(sqrtRatioAX64, sqrtRatioBX64, liquidity *ui.Int, roundUp bool) (*ui.Int, error) {
	if sqrtRatioAX64.Cmp(sqrtRatioBX64) > 0 {
		sqrtRatioAX64, sqrtRatioBX64 = sqrtRatioBX64, sqrtRatioAX64
	}
	if sqrtRatioAX64.IsZero() {
		return nil, ammerrors.ErrDivisionByZero.Wrap("amount0 delta at zero sqrt price")
	}

	numerator1 := new(ui.Int).Lsh(liquidity, 64)
	numerator2 := new(ui.Int).Sub(sqrtRatioBX64, sqrtRatioAX64)

	if roundUp {
		inner, err := fm.MulDivRoundingUp(numerator1, numerator2, sqrtRatioBX64)
		if err != nil {
			return nil, err
		}
		return fm.DivRoundingUp(inner, sqrtRatioAX64)
	}

	res, err := fm.MulDiv(numerator1, numerator2, sqrtRatioBX64)
	if err != nil {
		return nil, err
	}
	return res.Div(res, sqrtRatioAX64), nil
}

func GetAmount1Delta(sqrtRatioAX64, sqrtRatioBX64, liquidity *ui.Int, roundUp bool) (*ui.Int, error) {
	if sqrtRatioAX64.Cmp(sqrtRatioBX64) > 0 {
		sqrtRatioAX64, sqrtRatioBX64 = sqrtRatioBX64, sqrtRatioAX64
	}

	ratioDiff := new(ui.Int).Sub(sqrtRatioBX64, sqrtRatioAX64)
	if roundUp {
		return fm.MulDivRoundingUp(liquidity, ratioDiff, cons.Q64)
	}
	return fm.MulDiv(liquidity, ratioDiff, cons.Q64)
}

// GetNextSqrtPriceFromInput moves the price by an input amount. zeroForOne
// pushes the price down.
func GetNextSqrtPriceFromInput(sqrtPX64, liquidity, amountIn *ui.Int, zeroForOne bool) (*ui.Int, error) {
	if sqrtPX64.IsZero() || liquidity.IsZero() {
		return nil, ammerrors.ErrDivisionByZero.Wrap("next sqrt price needs non-zero price and liquidity")
	}
	if zeroForOne {
		return getNextSqrtPriceFromAmount0RoundingUp(sqrtPX64, liquidity, amountIn, true)
	}
	return getNextSqrtPriceFromAmount1RoundingDown(sqrtPX64, liquidity, amountIn, true)
}

func GetNextSqrtPriceFromOutput(sqrtPX64, liquidity, amountOut *ui.Int, zeroForOne bool) (*ui.Int, error) {
	if sqrtPX64.IsZero() || liquidity.IsZero() {
		return nil, ammerrors.ErrDivisionByZero.Wrap("next sqrt price needs non-zero price and liquidity")
	}
	if zeroForOne {
		return getNextSqrtPriceFromAmount1RoundingDown(sqrtPX64, liquidity, amountOut, false)
	}
	return getNextSqrtPriceFromAmount0RoundingUp(sqrtPX64, liquidity, amountOut, false)
}

func getNextSqrtPriceFromAmount0RoundingUp(sqrtPX64, liquidity, amount *ui.Int, add bool) (*ui.Int, error) {
	if amount.IsZero() {
		return sqrtPX64.Clone(), nil
	}

	numerator1 := new(ui.Int).Lsh(liquidity, 64)
	product, overflow := new(ui.Int).MulOverflow(amount, sqrtPX64)
	if overflow {
		return nil, ammerrors.ErrOverflow.Wrap("amount * sqrt price")
	}

	var denominator *ui.Int
	if add {
		denominator, overflow = new(ui.Int).AddOverflow(numerator1, product)
		if overflow {
			return nil, ammerrors.ErrOverflow.Wrap("next sqrt price denominator")
		}
	} else {
		if numerator1.Cmp(product) <= 0 {
			return nil, ammerrors.ErrUnderflow.Wrap("output exceeds reserves at current price")
		}
		denominator = new(ui.Int).Sub(numerator1, product)
	}
	next, err := fm.MulDivRoundingUp(numerator1, sqrtPX64, denominator)
	if err != nil {
		return nil, err
	}
	return checkPrice(next)
}

func getNextSqrtPriceFromAmount1RoundingDown(sqrtPX64, liquidity, amount *ui.Int, add bool) (*ui.Int, error) {
	if add {
		quotient, err := fm.MulDiv(amount, cons.Q64, liquidity)
		if err != nil {
			return nil, err
		}
		return checkPrice(new(ui.Int).Add(sqrtPX64, quotient))
	}

	quotient, err := fm.MulDivRoundingUp(amount, cons.Q64, liquidity)
	if err != nil {
		return nil, err
	}
	if sqrtPX64.Cmp(quotient) <= 0 {
		return nil, ammerrors.ErrUnderflow.Wrap("output exceeds reserves at current price")
	}
	return new(ui.Int).Sub(sqrtPX64, quotient), nil
}

func checkPrice(p *ui.Int) (*ui.Int, error) {
	if p.Cmp(cons.MaxUint128) > 0 {
		return nil, ammerrors.ErrOverflow.Wrapf("sqrt price %s exceeds 128 bits", p.Dec())
	}
	return p, nil
}

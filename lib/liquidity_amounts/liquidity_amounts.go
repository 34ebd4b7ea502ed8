package liquidity_amounts

import (
	"github.com/ftchann/thermo-amm/lib/ammerrors"
	cons "github.com/ftchann/thermo-amm/lib/constants"
	"github.com/ftchann/thermo-amm/lib/fullmath"
	sqrtmath "github.com/ftchann/thermo-amm/lib/sqrtprice_math"

	ui "github.com/holiman/uint256"
)

func GetLiquidityForAmount0(sqrtRatioAX64, sqrtRatioBX64, amount0 *ui.Int) (*ui.Int, error) {
	if sqrtRatioAX64.Cmp(sqrtRatioBX64) > 0 {
		sqrtRatioAX64, sqrtRatioBX64 = sqrtRatioBX64, sqrtRatioAX64
	}
	if sqrtRatioAX64.Eq(sqrtRatioBX64) {
		return nil, ammerrors.ErrInvalidTickRange.Wrap("empty price range")
	}
	intermediate, err := fullmath.MulDiv(sqrtRatioAX64, sqrtRatioBX64, cons.Q64)
	if err != nil {
		return nil, err
	}
	return fullmath.MulDiv(amount0, intermediate, new(ui.Int).Sub(sqrtRatioBX64, sqrtRatioAX64))
}

func GetLiquidityForAmount1(sqrtRatioAX64, sqrtRatioBX64, amount1 *ui.Int) (*ui.Int, error) {
	if sqrtRatioAX64.Cmp(sqrtRatioBX64) > 0 {
		sqrtRatioAX64, sqrtRatioBX64 = sqrtRatioBX64, sqrtRatioAX64
	}
	if sqrtRatioAX64.Eq(sqrtRatioBX64) {
		return nil, ammerrors.ErrInvalidTickRange.Wrap("empty price range")
	}
	return fullmath.MulDiv(amount1, cons.Q64, new(ui.Int).Sub(sqrtRatioBX64, sqrtRatioAX64))
}

// GetLiquidityForAmounts returns the largest liquidity that the two amounts
// can back in [sqrtRatioA, sqrtRatioB] at the current price.
func GetLiquidityForAmounts(sqrtRatioX64, sqrtRatioAX64, sqrtRatioBX64, amount0, amount1 *ui.Int) (*ui.Int, error) {
	if sqrtRatioAX64.Cmp(sqrtRatioBX64) > 0 {
		sqrtRatioAX64, sqrtRatioBX64 = sqrtRatioBX64, sqrtRatioAX64
	}
	if sqrtRatioX64.Cmp(sqrtRatioAX64) <= 0 {
		return GetLiquidityForAmount0(sqrtRatioAX64, sqrtRatioBX64, amount0)
	}
	if sqrtRatioX64.Cmp(sqrtRatioBX64) >= 0 {
		return GetLiquidityForAmount1(sqrtRatioAX64, sqrtRatioBX64, amount1)
	}
	liquidity0, err := GetLiquidityForAmount0(sqrtRatioX64, sqrtRatioBX64, amount0)
	if err != nil {
		return nil, err
	}
	liquidity1, err := GetLiquidityForAmount1(sqrtRatioAX64, sqrtRatioX64, amount1)
	if err != nil {
		return nil, err
	}
	if liquidity0.Cmp(liquidity1) < 0 {
		return liquidity0, nil
	}
	return liquidity1, nil
}

// GetAmountsForLiquidity returns the token amounts liquidity represents in
// [sqrtRatioA, sqrtRatioB] at the current price.
func GetAmountsForLiquidity(sqrtRatioX64, sqrtRatioAX64, sqrtRatioBX64, liquidity *ui.Int, roundUp bool) (amount0, amount1 *ui.Int, err error) {
	if sqrtRatioAX64.Cmp(sqrtRatioBX64) > 0 {
		sqrtRatioAX64, sqrtRatioBX64 = sqrtRatioBX64, sqrtRatioAX64
	}
	amount0, amount1 = new(ui.Int), new(ui.Int)
	switch {
	case sqrtRatioX64.Cmp(sqrtRatioAX64) <= 0:
		amount0, err = sqrtmath.GetAmount0Delta(sqrtRatioAX64, sqrtRatioBX64, liquidity, roundUp)
	case sqrtRatioX64.Cmp(sqrtRatioBX64) < 0:
		amount0, err = sqrtmath.GetAmount0Delta(sqrtRatioX64, sqrtRatioBX64, liquidity, roundUp)
		if err == nil {
			amount1, err = sqrtmath.GetAmount1Delta(sqrtRatioAX64, sqrtRatioX64, liquidity, roundUp)
		}
	default:
		amount1, err = sqrtmath.GetAmount1Delta(sqrtRatioAX64, sqrtRatioBX64, liquidity, roundUp)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

package swapmath

import (
	"github.com/ftchann/thermo-amm/lib/ammerrors"
	cons "github.com/ftchann/thermo-amm/lib/constants"
	fm "github.com/ftchann/thermo-amm/lib/fullmath"
	sqrtmath "github.com/ftchann/thermo-amm/lib/sqrtprice_math"

	ui "github.com/holiman/uint256"
)

var MaxFee = ui.NewInt(cons.BPS)

type Step struct {
	SqrtPriceNext *ui.Int
	AmountIn      *ui.Int
	AmountOut     *ui.Int
	FeeAmount     *ui.Int
}

// ReachedTarget reports whether the step ended exactly on its target price.
func (s Step) ReachedTarget(target *ui.Int) bool {
	return s.SqrtPriceNext.Eq(target)
}

// ComputeSwapStep consumes up to amountRemaining of input between the current
// and target price. The fee is taken off the input before the curve and is
// rounded up, so a non-zero input at a non-zero fee always pays at least 1.
func ComputeSwapStep(sqrtRatioCurrentX64, sqrtRatioTargetX64, liquidity, amountRemaining *ui.Int, feeBps uint32) (Step, error) {
	if feeBps >= cons.BPS {
		return Step{}, ammerrors.ErrInvalidFeeConfig.Wrapf("step fee %d bps", feeBps)
	}
	zeroForOne := sqrtRatioCurrentX64.Cmp(sqrtRatioTargetX64) >= 0
	fee := ui.NewInt(uint64(feeBps))

	var (
		step = Step{}
		err  error
	)

	amountRemainingLessFee, err := fm.MulDiv(amountRemaining, new(ui.Int).Sub(MaxFee, fee), MaxFee)
	if err != nil {
		return Step{}, err
	}
	if zeroForOne {
		step.AmountIn, err = sqrtmath.GetAmount0Delta(sqrtRatioTargetX64, sqrtRatioCurrentX64, liquidity, true)
	} else {
		step.AmountIn, err = sqrtmath.GetAmount1Delta(sqrtRatioCurrentX64, sqrtRatioTargetX64, liquidity, true)
	}
	if err != nil {
		return Step{}, err
	}
	if amountRemainingLessFee.Cmp(step.AmountIn) >= 0 {
		step.SqrtPriceNext = sqrtRatioTargetX64.Clone()
	} else {
		step.SqrtPriceNext, err = sqrtmath.GetNextSqrtPriceFromInput(sqrtRatioCurrentX64, liquidity, amountRemainingLessFee, zeroForOne)
		if err != nil {
			return Step{}, err
		}
	}

	max := step.SqrtPriceNext.Eq(sqrtRatioTargetX64)

	if zeroForOne {
		if !max {
			step.AmountIn, err = sqrtmath.GetAmount0Delta(step.SqrtPriceNext, sqrtRatioCurrentX64, liquidity, true)
			if err != nil {
				return Step{}, err
			}
		}
		step.AmountOut, err = sqrtmath.GetAmount1Delta(step.SqrtPriceNext, sqrtRatioCurrentX64, liquidity, false)
	} else {
		if !max {
			step.AmountIn, err = sqrtmath.GetAmount1Delta(sqrtRatioCurrentX64, step.SqrtPriceNext, liquidity, true)
			if err != nil {
				return Step{}, err
			}
		}
		step.AmountOut, err = sqrtmath.GetAmount0Delta(sqrtRatioCurrentX64, step.SqrtPriceNext, liquidity, false)
	}
	if err != nil {
		return Step{}, err
	}

	if !max {
		// we didn't reach the target, so take the remainder of the maximum input as fee
		step.FeeAmount = new(ui.Int).Sub(amountRemaining, step.AmountIn)
	} else {
		step.FeeAmount, err = fm.MulDivRoundingUp(step.AmountIn, fee, new(ui.Int).Sub(MaxFee, fee))
		if err != nil {
			return Step{}, err
		}
	}
	return step, nil
}

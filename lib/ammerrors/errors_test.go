package ammerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{err: nil, want: KindUnknown},
		{err: errors.New("plain"), want: KindUnknown},
		{err: ErrInvalidTickRange, want: KindValidation},
		{err: ErrOverflow.Wrap("mul"), want: KindArithmetic},
		{err: fmt.Errorf("pool: %w", ErrConservationViolated.Wrapf("residual %d", 20_000)), want: KindStateInconsistency},
		{err: fmt.Errorf("swap: %w", ErrSlippage), want: KindPolicyLimit},
		{err: ErrNoLiquidity.Wrapf("array %d", 3), want: KindPolicyLimit},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
}

func TestRecoverable(t *testing.T) {
	require.True(t, Recoverable(ErrTickCrossingLimit.Wrap("budget")))
	require.True(t, Recoverable(ErrPriceBoundReached))
	require.False(t, Recoverable(ErrReentrancy))
	require.False(t, Recoverable(ErrInvalidAmount))
	require.Equal(t, "policy_limit", KindOf(ErrJITBudgetExceeded).String())
}

// Package ammerrors holds the sentinel errors of the AMM core, registered in
// one codespace per failure class so callers can tell a bad parameter from a
// broken invariant without string matching.
package ammerrors

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

const (
	CodespaceValidation = "amm/validation"
	CodespaceArithmetic = "amm/arithmetic"
	CodespaceState      = "amm/state"
	CodespacePolicy     = "amm/policy"
)

// Validation: malformed or out-of-range parameters, rejected before mutation.
var (
	ErrInvalidTickRange  = errorsmod.Register(CodespaceValidation, 2, "invalid tick range")
	ErrTickOutOfBounds   = errorsmod.Register(CodespaceValidation, 3, "tick out of bounds")
	ErrSqrtPriceBounds   = errorsmod.Register(CodespaceValidation, 4, "sqrt price out of bounds")
	ErrInvalidWeights    = errorsmod.Register(CodespaceValidation, 5, "domain weights must sum to 10000 bps")
	ErrInvalidFeeConfig  = errorsmod.Register(CodespaceValidation, 6, "invalid fee configuration")
	ErrInvalidAmount     = errorsmod.Register(CodespaceValidation, 7, "invalid amount")
	ErrInvalidTickSpace  = errorsmod.Register(CodespaceValidation, 8, "invalid tick spacing")
	ErrPositionNotFound  = errorsmod.Register(CodespaceValidation, 9, "position not found")
	ErrInvalidDomain     = errorsmod.Register(CodespaceValidation, 10, "invalid domain")
	ErrInvalidPoolConfig = errorsmod.Register(CodespaceValidation, 11, "invalid pool configuration")
)

// Arithmetic: overflow, underflow and division by zero.
var (
	ErrOverflow       = errorsmod.Register(CodespaceArithmetic, 2, "arithmetic overflow")
	ErrUnderflow      = errorsmod.Register(CodespaceArithmetic, 3, "arithmetic underflow")
	ErrDivisionByZero = errorsmod.Register(CodespaceArithmetic, 4, "division by zero")
)

// StateInconsistency: configuration or caller bugs, never transient.
var (
	ErrTickMisaligned        = errorsmod.Register(CodespaceState, 2, "tick not aligned to tick spacing")
	ErrConservationViolated  = errorsmod.Register(CodespaceState, 3, "domain conservation identity violated")
	ErrLiquidityInconsistent = errorsmod.Register(CodespaceState, 4, "liquidity bookkeeping inconsistent")
	ErrReentrancy            = errorsmod.Register(CodespaceState, 5, "critical section already active")
)

// PolicyLimit: expected, recoverable by retrying with adjusted parameters.
var (
	ErrSlippage            = errorsmod.Register(CodespacePolicy, 2, "amount out below minimum")
	ErrFeeCapExceeded      = errorsmod.Register(CodespacePolicy, 3, "total fee exceeds caller cap")
	ErrTickCrossingLimit   = errorsmod.Register(CodespacePolicy, 4, "tick crossing budget exhausted")
	ErrTickArrayLoadLimit  = errorsmod.Register(CodespacePolicy, 5, "tick array load budget exhausted")
	ErrJITBudgetExceeded   = errorsmod.Register(CodespacePolicy, 6, "jit liquidity budget exceeded")
	ErrMaxLiquidityPerTick = errorsmod.Register(CodespacePolicy, 7, "liquidity per tick exceeds maximum")
	ErrPriceBoundReached   = errorsmod.Register(CodespacePolicy, 8, "sqrt price bound reached with input left")
	ErrNoLiquidity         = errorsmod.Register(CodespacePolicy, 9, "no liquidity")
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindArithmetic
	KindStateInconsistency
	KindPolicyLimit
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindArithmetic:
		return "arithmetic"
	case KindStateInconsistency:
		return "state_inconsistency"
	case KindPolicyLimit:
		return "policy_limit"
	default:
		return "unknown"
	}
}

// KindOf classifies err by the codespace of the sentinel it wraps.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var sentinel *errorsmod.Error
	if !errors.As(err, &sentinel) {
		return KindUnknown
	}
	switch sentinel.Codespace() {
	case CodespaceValidation:
		return KindValidation
	case CodespaceArithmetic:
		return KindArithmetic
	case CodespaceState:
		return KindStateInconsistency
	case CodespacePolicy:
		return KindPolicyLimit
	default:
		return KindUnknown
	}
}

// Recoverable reports whether a caller may retry with adjusted parameters.
func Recoverable(err error) bool {
	return KindOf(err) == KindPolicyLimit
}

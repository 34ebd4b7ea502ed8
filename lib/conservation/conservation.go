// Package conservation keeps the four pricing domains (spot, time, leverage
// and the buffer) balanced: the bps-weighted sum of their scaled log growth
// factors must stay at zero, and the buffer domain is the free variable that
// absorbs whatever drift the other three accumulate.
package conservation

import (
	"fmt"

	"github.com/ftchann/thermo-amm/lib/ammerrors"
	cons "github.com/ftchann/thermo-amm/lib/constants"

	cosmath "cosmossdk.io/math"
)

// Tolerance is one scaled log unit expressed in bps-weighted terms.
const Tolerance = cons.BPS

type Domain int

const (
	Spot Domain = iota
	Time
	Leverage
	Buffer
)

func (d Domain) String() string {
	switch d {
	case Spot:
		return "spot"
	case Time:
		return "time"
	case Leverage:
		return "leverage"
	case Buffer:
		return "buffer"
	default:
		return fmt.Sprintf("domain(%d)", int(d))
	}
}

func ParseDomain(s string) (Domain, error) {
	for _, d := range []Domain{Spot, Time, Leverage, Buffer} {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, ammerrors.ErrInvalidDomain.Wrapf("%q", s)
}

type Weights struct {
	Spot     uint16 `json:"spot" mapstructure:"spot"`
	Time     uint16 `json:"time" mapstructure:"time"`
	Leverage uint16 `json:"leverage" mapstructure:"leverage"`
	Buffer   uint16 `json:"buffer" mapstructure:"buffer"`
}

func (w Weights) Sum() uint32 {
	return uint32(w.Spot) + uint32(w.Time) + uint32(w.Leverage) + uint32(w.Buffer)
}

func (w Weights) Validate() error {
	if sum := w.Sum(); sum != cons.BPS {
		return ammerrors.ErrInvalidWeights.Wrapf("got %d", sum)
	}
	return nil
}

func (w Weights) Of(d Domain) uint16 {
	switch d {
	case Spot:
		return w.Spot
	case Time:
		return w.Time
	case Leverage:
		return w.Leverage
	default:
		return w.Buffer
	}
}

// Snapshot holds log growth factors scaled by 1e6. LnGTau is written only by
// the buffer adjustment.
type Snapshot struct {
	LnGS   int64 `json:"ln_g_s"`
	LnGT   int64 `json:"ln_g_t"`
	LnGL   int64 `json:"ln_g_l"`
	LnGTau int64 `json:"ln_g_tau"`
}

func term(w uint16, ln int64) cosmath.Int {
	return cosmath.NewInt(int64(w)).Mul(cosmath.NewInt(ln))
}

// partialSum is the weighted sum over the three rate-driven domains.
func partialSum(w Weights, s Snapshot) cosmath.Int {
	return term(w.Spot, s.LnGS).Add(term(w.Time, s.LnGT)).Add(term(w.Leverage, s.LnGL))
}

// Residual returns Σ wᵢ·ln gᵢ over all four domains.
func Residual(w Weights, s Snapshot) cosmath.Int {
	return partialSum(w, s).Add(term(w.Buffer, s.LnGTau))
}

// Verify reports whether the snapshot conserves within Tolerance. Weights
// that do not sum to 10000 bps are a configuration error, not drift.
func Verify(w Weights, s Snapshot) (bool, error) {
	if err := w.Validate(); err != nil {
		return false, err
	}
	return Residual(w, s).Abs().LTE(cosmath.NewInt(Tolerance)), nil
}

// ComputeBufferAdjustment solves the identity for ln_g_tau, truncating toward zero.
func ComputeBufferAdjustment(w Weights, s Snapshot) (int64, error) {
	if err := w.Validate(); err != nil {
		return 0, err
	}
	if w.Buffer == 0 {
		return 0, ammerrors.ErrDivisionByZero.Wrap("buffer weight is zero")
	}
	lnTau := partialSum(w, s).Neg().Quo(cosmath.NewInt(int64(w.Buffer)))
	if !lnTau.IsInt64() {
		return 0, ammerrors.ErrOverflow.Wrapf("ln_g_tau %s", lnTau)
	}
	return lnTau.Int64(), nil
}

type CheckResult struct {
	Conserved      bool   `json:"conserved"`
	Residual       string `json:"residual"`
	RequiredLnGTau int64  `json:"required_ln_g_tau"`
}

// Check verifies the snapshot and, on failure, reports the ln_g_tau that
// would restore conservation.
func Check(w Weights, s Snapshot) (CheckResult, error) {
	ok, err := Verify(w, s)
	if err != nil {
		return CheckResult{}, err
	}
	res := CheckResult{
		Conserved:      ok,
		Residual:       Residual(w, s).String(),
		RequiredLnGTau: s.LnGTau,
	}
	if ok {
		return res, nil
	}
	res.RequiredLnGTau, err = ComputeBufferAdjustment(w, s)
	if err != nil {
		return CheckResult{}, err
	}
	return res, nil
}

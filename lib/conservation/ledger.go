package conservation

import (
	"github.com/ftchann/thermo-amm/lib/ammerrors"
	fm "github.com/ftchann/thermo-amm/lib/fullmath"
)

// Ledger is the per-pool conservation state.
type Ledger struct {
	weights  Weights
	snapshot Snapshot
}

func NewLedger(w Weights) (*Ledger, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if w.Buffer == 0 {
		return nil, ammerrors.ErrInvalidWeights.Wrap("buffer weight must be non-zero")
	}
	return &Ledger{weights: w}, nil
}

func (l *Ledger) Clone() *Ledger {
	c := *l
	return &c
}

// Weights is the validated read path for the domain weights.
func (l *Ledger) Weights() (Weights, error) {
	if err := l.weights.Validate(); err != nil {
		return Weights{}, err
	}
	return l.weights, nil
}

func (l *Ledger) Snapshot() Snapshot {
	return l.snapshot
}

// Accumulate adds delta to a rate-driven domain's log growth. The buffer
// domain cannot be written this way.
func (l *Ledger) Accumulate(d Domain, delta int64) error {
	var field *int64
	switch d {
	case Spot:
		field = &l.snapshot.LnGS
	case Time:
		field = &l.snapshot.LnGT
	case Leverage:
		field = &l.snapshot.LnGL
	case Buffer:
		return ammerrors.ErrInvalidDomain.Wrap("buffer log growth is derived")
	default:
		return ammerrors.ErrInvalidDomain.Wrapf("%s", d)
	}
	next, err := fm.CheckedAddI64(*field, delta)
	if err != nil {
		return err
	}
	*field = next
	return nil
}

// Rebase recomputes ln_g_tau so the identity holds again.
func (l *Ledger) Rebase() (int64, error) {
	lnTau, err := ComputeBufferAdjustment(l.weights, l.snapshot)
	if err != nil {
		return 0, err
	}
	l.snapshot.LnGTau = lnTau
	return lnTau, nil
}

// Reweight replaces the weights and rebases under them. The ledger is left
// untouched on error.
func (l *Ledger) Reweight(w Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	if w.Buffer == 0 {
		return ammerrors.ErrInvalidWeights.Wrap("buffer weight must be non-zero")
	}
	next := Ledger{weights: w, snapshot: l.snapshot}
	if _, err := next.Rebase(); err != nil {
		return err
	}
	*l = next
	return nil
}

// Verify checks the ledger's current state.
func (l *Ledger) Verify() (CheckResult, error) {
	return Check(l.weights, l.snapshot)
}

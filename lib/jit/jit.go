// Package jit bounds the just-in-time liquidity a swap may carry. JIT
// liquidity only joins the active range for the first tick interval of a swap
// and earns no share of the LP fee.
package jit

import (
	"github.com/ftchann/thermo-amm/lib/ammerrors"
	fm "github.com/ftchann/thermo-amm/lib/fullmath"

	"lukechampine.com/uint128"
)

type Budget struct {
	PerSwapCap uint128.Uint128
	PerSlotCap uint128.Uint128
}

// Tracker accounts JIT liquidity reserved within the current slot.
type Tracker struct {
	budget Budget
	slot   uint64
	used   uint128.Uint128
}

func NewTracker(budget Budget) *Tracker {
	return &Tracker{budget: budget}
}

func (t *Tracker) Budget() Budget {
	return t.budget
}

func (t *Tracker) Clone() *Tracker {
	c := *t
	return &c
}

// Used returns the liquidity reserved in slot so far.
func (t *Tracker) Used(slot uint64) uint128.Uint128 {
	if slot != t.slot {
		return uint128.Zero
	}
	return t.used
}

// Reserve books amount against both caps. A new slot resets the slot total.
func (t *Tracker) Reserve(slot uint64, amount uint128.Uint128) error {
	if amount.IsZero() {
		return nil
	}
	if amount.Cmp(t.budget.PerSwapCap) > 0 {
		return ammerrors.ErrJITBudgetExceeded.Wrapf("%s above per-swap cap %s", amount, t.budget.PerSwapCap)
	}
	used := t.Used(slot)
	next, err := fm.CheckedAdd(used, amount)
	if err != nil || next.Cmp(t.budget.PerSlotCap) > 0 {
		return ammerrors.ErrJITBudgetExceeded.Wrapf("slot %d would reach %s, cap %s", slot, next, t.budget.PerSlotCap)
	}
	t.slot = slot
	t.used = next
	return nil
}

package strategy

import (
	"github.com/ftchann/thermo-amm/lib/ammerrors"
	"github.com/ftchann/thermo-amm/lib/pool"
	"github.com/ftchann/thermo-amm/lib/tickmath"
)

// IntervalAroundPriceStrategy [pc-a, pc+a]
// Where pc is the current price

type IntervalAroundPriceStrategy struct {
	book
	IntervalWidth int32 // a in ticks
}

func NewIntervalAroundPriceStrategy(amount0, amount1 uint64, p *pool.Pool, intervalWidth int32) *IntervalAroundPriceStrategy {
	return &IntervalAroundPriceStrategy{
		book:          book{Amount0: amount0, Amount1: amount1, Pool: p},
		IntervalWidth: intervalWidth,
	}
}

func (s *IntervalAroundPriceStrategy) Name() string {
	return "interval"
}

// Range returns the aligned interval around the current tick, at least one
// spacing wide.
func (s *IntervalAroundPriceStrategy) Range() (int32, int32, error) {
	spacing := s.Pool.TickSpacing()
	tick := s.Pool.State().Tick
	tickLower := tickmath.Clamp(tickmath.RoundToSpacing(tick-s.IntervalWidth, spacing), spacing)
	tickUpper := tickmath.Clamp(tickmath.RoundToSpacing(tick+s.IntervalWidth, spacing), spacing)
	if tickLower == tickUpper {
		if tickUpper+spacing <= tickmath.MaxTick {
			tickUpper += spacing
		} else {
			tickLower -= spacing
		}
	}
	if tickLower >= tickUpper {
		return 0, 0, ammerrors.ErrInvalidTickRange.Wrapf("interval [%d, %d]", tickLower, tickUpper)
	}
	return tickLower, tickUpper, nil
}

func (s *IntervalAroundPriceStrategy) Init() error {
	tickLower, tickUpper, err := s.Range()
	if err != nil {
		return err
	}
	return s.mint(tickLower, tickUpper)
}

// Rebalance burns every time, there is no gas to save.
func (s *IntervalAroundPriceStrategy) Rebalance() error {
	if err := s.withdraw(); err != nil {
		return err
	}
	return s.Init()
}

func (s *IntervalAroundPriceStrategy) BurnAll() (uint64, uint64, error) {
	if err := s.withdraw(); err != nil {
		return 0, 0, err
	}
	return s.Amount0, s.Amount1, nil
}

func (s *IntervalAroundPriceStrategy) GetAmounts() (uint64, uint64, error) {
	return s.amounts()
}

package strategy

import "github.com/ftchann/thermo-amm/lib/pool"

// NoProvisionStrategy holds its tokens and never provides liquidity. It is
// the baseline the other strategies are measured against.
type NoProvisionStrategy struct {
	book
}

func NewNoProvisionStrategy(amount0, amount1 uint64, p *pool.Pool) *NoProvisionStrategy {
	return &NoProvisionStrategy{book: book{Amount0: amount0, Amount1: amount1, Pool: p}}
}

func (s *NoProvisionStrategy) Name() string {
	return "none"
}

func (s *NoProvisionStrategy) Init() error {
	return nil
}

func (s *NoProvisionStrategy) Rebalance() error {
	return nil
}

func (s *NoProvisionStrategy) BurnAll() (uint64, uint64, error) {
	return s.Amount0, s.Amount1, nil
}

func (s *NoProvisionStrategy) GetAmounts() (uint64, uint64, error) {
	return s.Amount0, s.Amount1, nil
}

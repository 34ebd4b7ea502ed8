package strategy

import (
	"github.com/ftchann/thermo-amm/lib/ammerrors"
	fm "github.com/ftchann/thermo-amm/lib/fullmath"
	la "github.com/ftchann/thermo-amm/lib/liquidity_amounts"
	"github.com/ftchann/thermo-amm/lib/pool"
	"github.com/ftchann/thermo-amm/lib/tickmath"

	cosmath "cosmossdk.io/math"
	ui "github.com/holiman/uint256"
)

// Owner is the position owner every strategy mints under.
const Owner = "strategy"

type Position struct {
	liquidity cosmath.Int
	tickLower int32
	tickUpper int32
}

type Strategy interface {
	Name() string
	Init() error
	Rebalance() error
	BurnAll() (uint64, uint64, error)
	// GetAmounts values idle balances plus open positions at the current price.
	GetAmounts() (uint64, uint64, error)
}

// book holds the idle balances and open positions of a strategy.
type book struct {
	Amount0   uint64
	Amount1   uint64
	Pool      *pool.Pool
	Positions []Position
}

func (b *book) mint(tickLower, tickUpper int32) error {
	lower, err := tickmath.GetSqrtPriceAtTick(tickLower)
	if err != nil {
		return err
	}
	upper, err := tickmath.GetSqrtPriceAtTick(tickUpper)
	if err != nil {
		return err
	}
	current := fm.FromU128(b.Pool.State().SqrtPriceX64)
	// the amounts round up by less than two units each
	budget0, budget1 := fm.SaturatingSubU64(b.Amount0, 2), fm.SaturatingSubU64(b.Amount1, 2)
	liquidity, err := la.GetLiquidityForAmounts(current, fm.FromU128(lower), fm.FromU128(upper), ui.NewInt(budget0), ui.NewInt(budget1))
	if err != nil {
		return err
	}
	need0, need1, err := la.GetAmountsForLiquidity(current, fm.FromU128(lower), fm.FromU128(upper), liquidity, true)
	if err != nil {
		return err
	}
	if need0.CmpUint64(b.Amount0) > 0 || need1.CmpUint64(b.Amount1) > 0 {
		return ammerrors.ErrInvalidAmount.Wrapf("mint needs %s token0 and %s token1, holding %d and %d", need0.Dec(), need1.Dec(), b.Amount0, b.Amount1)
	}
	if liquidity.IsZero() {
		return nil
	}
	l128, err := fm.ToU128(liquidity)
	if err != nil {
		return err
	}
	delta, err := fm.I128FromU128(l128)
	if err != nil {
		return err
	}

	upd, err := b.Pool.Mint(Owner, tickLower, tickUpper, delta)
	if err != nil {
		return err
	}
	b.Positions = append(b.Positions, Position{liquidity: delta, tickLower: tickLower, tickUpper: tickUpper})
	rest0, err := fm.CheckedSubU64(b.Amount0, upd.Amount0)
	if err != nil {
		return ammerrors.ErrInvalidAmount.Wrapf("mint needs %d token0, holding %d", upd.Amount0, b.Amount0)
	}
	rest1, err := fm.CheckedSubU64(b.Amount1, upd.Amount1)
	if err != nil {
		return ammerrors.ErrInvalidAmount.Wrapf("mint needs %d token1, holding %d", upd.Amount1, b.Amount1)
	}
	b.Amount0, b.Amount1 = rest0, rest1
	return nil
}

// withdraw burns every open position and collects principal and fees.
func (b *book) withdraw() error {
	for _, position := range b.Positions {
		if _, err := b.Pool.Burn(Owner, position.tickLower, position.tickUpper, position.liquidity); err != nil {
			return err
		}
		amount0, amount1, err := b.Pool.Collect(Owner, position.tickLower, position.tickUpper, ^uint64(0), ^uint64(0))
		if err != nil {
			return err
		}
		if b.Amount0, err = fm.CheckedAddU64(b.Amount0, amount0); err != nil {
			return err
		}
		if b.Amount1, err = fm.CheckedAddU64(b.Amount1, amount1); err != nil {
			return err
		}
	}
	b.Positions = b.Positions[:0]
	return nil
}

func (b *book) amounts() (uint64, uint64, error) {
	amount0, amount1 := ui.NewInt(b.Amount0), ui.NewInt(b.Amount1)
	current := fm.FromU128(b.Pool.State().SqrtPriceX64)
	for _, position := range b.Positions {
		lower, err := tickmath.GetSqrtPriceAtTick(position.tickLower)
		if err != nil {
			return 0, 0, err
		}
		upper, err := tickmath.GetSqrtPriceAtTick(position.tickUpper)
		if err != nil {
			return 0, 0, err
		}
		l := ui.MustFromBig(position.liquidity.BigInt())
		a0, a1, err := la.GetAmountsForLiquidity(current, fm.FromU128(lower), fm.FromU128(upper), l, false)
		if err != nil {
			return 0, 0, err
		}
		amount0.Add(amount0, a0)
		amount1.Add(amount1, a1)
		if info, ok := b.Pool.Position(Owner, position.tickLower, position.tickUpper); ok {
			amount0.Add(amount0, ui.NewInt(info.TokensOwed0))
			amount1.Add(amount1, ui.NewInt(info.TokensOwed1))
		}
	}
	a0, err := fm.ToUint64(amount0)
	if err != nil {
		return 0, 0, err
	}
	a1, err := fm.ToUint64(amount1)
	if err != nil {
		return 0, 0, err
	}
	return a0, a1, nil
}

// New builds a strategy by its configured name.
func New(name string, amount0, amount1 uint64, p *pool.Pool, intervalWidth int32) (Strategy, error) {
	switch name {
	case "interval":
		return NewIntervalAroundPriceStrategy(amount0, amount1, p, intervalWidth), nil
	case "none", "":
		return NewNoProvisionStrategy(amount0, amount1, p), nil
	default:
		return nil, ammerrors.ErrInvalidPoolConfig.Wrapf("unknown strategy %q", name)
	}
}

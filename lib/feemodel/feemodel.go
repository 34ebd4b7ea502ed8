// Package feemodel prices a swap. The LP fee is a base fee plus a price
// impact surcharge read from a step table, clamped to protocol bounds. On top
// of it a thermodynamic term charges trades that push the domains uphill and
// rebates trades that move them downhill.
package feemodel

import (
	"sort"

	"github.com/ftchann/thermo-amm/lib/ammerrors"
	cons "github.com/ftchann/thermo-amm/lib/constants"
	fm "github.com/ftchann/thermo-amm/lib/fullmath"

	ui "github.com/holiman/uint256"
)

const (
	DefaultRebateClampBps  = 50
	DefaultMaxThermoFeeBps = 300
)

// ImpactTier charges Bps once a step moves at least MinTicks ticks.
type ImpactTier struct {
	MinTicks uint32 `json:"min_ticks" mapstructure:"min_ticks"`
	Bps      uint16 `json:"bps" mapstructure:"bps"`
}

// DefaultImpactTable is 1 bps per 10 ticks up to 100, coarser to 2000, flat above.
func DefaultImpactTable() []ImpactTier {
	table := make([]ImpactTier, 0, 17)
	for i := uint32(0); i < 10; i++ {
		table = append(table, ImpactTier{MinTicks: i * 10, Bps: uint16(i)})
	}
	return append(table,
		ImpactTier{MinTicks: 100, Bps: 10},
		ImpactTier{MinTicks: 250, Bps: 15},
		ImpactTier{MinTicks: 500, Bps: 20},
		ImpactTier{MinTicks: 750, Bps: 25},
		ImpactTier{MinTicks: 1000, Bps: 35},
		ImpactTier{MinTicks: 1500, Bps: 50},
		ImpactTier{MinTicks: 2000, Bps: 75},
	)
}

type Config struct {
	BaseFeeBps      uint16       `json:"base_fee_bps" mapstructure:"base_fee_bps"`
	MinTotalFeeBps  uint16       `json:"min_total_fee_bps" mapstructure:"min_total_fee_bps"`
	MaxTotalFeeBps  uint16       `json:"max_total_fee_bps" mapstructure:"max_total_fee_bps"`
	ImpactTable     []ImpactTier `json:"impact_table" mapstructure:"impact_table"`
	RebateClampBps  uint16       `json:"rebate_clamp_bps" mapstructure:"rebate_clamp_bps"`
	MaxThermoFeeBps uint16       `json:"max_thermo_fee_bps" mapstructure:"max_thermo_fee_bps"`
}

func DefaultConfig(baseFeeBps uint16) Config {
	return Config{
		BaseFeeBps:      baseFeeBps,
		MinTotalFeeBps:  cons.MinTotalFeeBps,
		MaxTotalFeeBps:  cons.MaxTotalFeeBps,
		ImpactTable:     DefaultImpactTable(),
		RebateClampBps:  DefaultRebateClampBps,
		MaxThermoFeeBps: DefaultMaxThermoFeeBps,
	}
}

func (c Config) Validate() error {
	if c.MinTotalFeeBps == 0 || c.MinTotalFeeBps > c.MaxTotalFeeBps {
		return ammerrors.ErrInvalidFeeConfig.Wrapf("total fee bounds [%d, %d]", c.MinTotalFeeBps, c.MaxTotalFeeBps)
	}
	if c.MaxTotalFeeBps >= cons.BPS {
		return ammerrors.ErrInvalidFeeConfig.Wrapf("max total fee %d bps", c.MaxTotalFeeBps)
	}
	if c.BaseFeeBps > c.MaxTotalFeeBps {
		return ammerrors.ErrInvalidFeeConfig.Wrapf("base fee %d above max %d", c.BaseFeeBps, c.MaxTotalFeeBps)
	}
	if c.RebateClampBps > cons.BPS || c.MaxThermoFeeBps > cons.BPS {
		return ammerrors.ErrInvalidFeeConfig.Wrap("thermodynamic clamps above 10000 bps")
	}
	if len(c.ImpactTable) == 0 || c.ImpactTable[0].MinTicks != 0 {
		return ammerrors.ErrInvalidFeeConfig.Wrap("impact table must start at 0 ticks")
	}
	for i := 1; i < len(c.ImpactTable); i++ {
		prev, cur := c.ImpactTable[i-1], c.ImpactTable[i]
		if cur.MinTicks <= prev.MinTicks || cur.Bps < prev.Bps {
			return ammerrors.ErrInvalidFeeConfig.Wrapf("impact table not monotonic at tier %d", i)
		}
	}
	return nil
}

// ImpactFeeBps looks up the surcharge for a step that moved ticksMoved ticks.
func (c Config) ImpactFeeBps(ticksMoved uint32) uint16 {
	i := sort.Search(len(c.ImpactTable), func(i int) bool {
		return c.ImpactTable[i].MinTicks > ticksMoved
	})
	if i == 0 {
		return 0
	}
	return c.ImpactTable[i-1].Bps
}

func (c Config) Clamp(bps uint32) uint16 {
	if bps < uint32(c.MinTotalFeeBps) {
		return c.MinTotalFeeBps
	}
	if bps > uint32(c.MaxTotalFeeBps) {
		return c.MaxTotalFeeBps
	}
	return uint16(bps)
}

// TotalFeeBps is clamp(base + impact).
func (c Config) TotalFeeBps(ticksMoved uint32) uint16 {
	return c.Clamp(uint32(c.BaseFeeBps) + uint32(c.ImpactFeeBps(ticksMoved)))
}

// FeeAmount charges bps of amount, rounded up.
func FeeAmount(amount uint64, bps uint16) (uint64, error) {
	fee, err := fm.MulDivRoundingUp(ui.NewInt(amount), ui.NewInt(uint64(bps)), ui.NewInt(cons.BPS))
	if err != nil {
		return 0, err
	}
	return fm.ToUint64(fee)
}

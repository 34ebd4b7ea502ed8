package constants

import (
	ui "github.com/holiman/uint256"
	"lukechampine.com/uint128"
)

const (
	// BPS is the basis point denominator used by every fee and weight field.
	BPS = 10_000
	// LogScale is the fixed-point scale of log-growth values (ln units x 1e6).
	LogScale = 1_000_000
	// LnTickScaled is ln(1.0001) * 1e6 * 1000, truncated.
	LnTickScaled = 99_995

	TickArraySize     = 88
	MaxTickArrayLoads = 10

	MinTotalFeeBps = 1
	MaxTotalFeeBps = 1_000
)

var (
	Zero = new(ui.Int)
	One  = new(ui.Int).SetOne()
	// used in Q64.64 fixed point math
	Q64  = new(ui.Int).Lsh(One, 64)
	Q128 = new(ui.Int).Lsh(One, 128)

	MaxUint64  = new(ui.Int).SetUint64(^uint64(0))
	MaxUint128 = new(ui.Int).Sub(Q128, One)

	U128Zero = uint128.Zero
	U128Max  = uint128.Max
)

// FeeTierSpacing maps the conventional base fee tiers (bps) to tick spacing.
var FeeTierSpacing = map[uint16]int32{
	1:   1,
	5:   10,
	30:  60,
	100: 200,
}

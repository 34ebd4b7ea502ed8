package position

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/ftchann/thermo-amm/lib/ammerrors"
	fm "github.com/ftchann/thermo-amm/lib/fullmath"

	cosmath "cosmossdk.io/math"
	ui "github.com/holiman/uint256"
	"github.com/zeebo/blake3"
	"lukechampine.com/uint128"
)

type Key [32]byte

// NewKey derives a position id from the owner and its tick range.
func NewKey(owner string, tickLower, tickUpper int32) Key {
	buf := make([]byte, 0, len(owner)+8)
	buf = append(buf, owner...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(tickLower))
	buf = binary.BigEndian.AppendUint32(buf, uint32(tickUpper))
	return blake3.Sum256(buf)
}

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

type Info struct {
	Owner                   string
	TickLower               int32
	TickUpper               int32
	Liquidity               uint128.Uint128
	FeeGrowthInside0LastX64 uint128.Uint128
	FeeGrowthInside1LastX64 uint128.Uint128
	TokensOwed0             uint64
	TokensOwed1             uint64
}

func NewPosition(owner string, tickLower, tickUpper int32) *Info {
	return &Info{
		Owner:     owner,
		TickLower: tickLower,
		TickUpper: tickUpper,
	}
}

func (i *Info) Key() Key {
	return NewKey(i.Owner, i.TickLower, i.TickUpper)
}

func (i *Info) Clone() *Info {
	c := *i
	return &c
}

// IsEmpty reports whether the position holds neither liquidity nor owed tokens.
func (i *Info) IsEmpty() bool {
	return i.Liquidity.IsZero() && i.TokensOwed0 == 0 && i.TokensOwed1 == 0
}

// FeeGrowthInside derives the fee growth inside [tickLower, tickUpper) from
// the global accumulator and the two boundary ticks' outside accumulators.
//
// Saturating: the outside values are structural, a negative difference
// means broken bookkeeping and must not turn into a huge wrapped value.
func FeeGrowthInside(tickLower, tickUpper, tickCurrent int32, feeGrowthGlobal, lowerOutside, upperOutside uint128.Uint128) uint128.Uint128 {
	switch {
	case tickCurrent < tickLower:
		return fm.SaturatingSub(lowerOutside, upperOutside)
	case tickCurrent >= tickUpper:
		return fm.SaturatingSub(upperOutside, lowerOutside)
	default:
		return fm.SaturatingSub(fm.SaturatingSub(feeGrowthGlobal, lowerOutside), upperOutside)
	}
}

// Accrue credits the fees earned since the last snapshot and moves the
// snapshot forward.
func (i *Info) Accrue(feeGrowthInside0X64, feeGrowthInside1X64 uint128.Uint128) error {
	// Wrapping: accumulators may wrap over the pool's lifetime and the delta
	// stays correct modulo 2^128.
	owed0, err := owed(i.Liquidity, fm.WrappingSub(feeGrowthInside0X64, i.FeeGrowthInside0LastX64))
	if err != nil {
		return err
	}
	owed1, err := owed(i.Liquidity, fm.WrappingSub(feeGrowthInside1X64, i.FeeGrowthInside1LastX64))
	if err != nil {
		return err
	}
	tokensOwed0, err := fm.CheckedAddU64(i.TokensOwed0, owed0)
	if err != nil {
		return err
	}
	tokensOwed1, err := fm.CheckedAddU64(i.TokensOwed1, owed1)
	if err != nil {
		return err
	}

	i.FeeGrowthInside0LastX64 = feeGrowthInside0X64
	i.FeeGrowthInside1LastX64 = feeGrowthInside1X64
	i.TokensOwed0 = tokensOwed0
	i.TokensOwed1 = tokensOwed1
	return nil
}

func owed(liquidity, delta uint128.Uint128) (uint64, error) {
	product := new(ui.Int).Mul(fm.FromU128(liquidity), fm.FromU128(delta))
	return fm.ToUint64(product.Rsh(product, 64))
}

// Update accrues fees and then applies the liquidity delta. A zero delta on
// an empty position is rejected.
func (i *Info) Update(liquidityDelta cosmath.Int, feeGrowthInside0X64, feeGrowthInside1X64 uint128.Uint128) error {
	if liquidityDelta.IsZero() && i.Liquidity.IsZero() {
		return ammerrors.ErrInvalidAmount.Wrap("poke on a position without liquidity")
	}
	liquidityNext, err := fm.AddDelta(i.Liquidity, liquidityDelta)
	if err != nil {
		return err
	}
	if err := i.Accrue(feeGrowthInside0X64, feeGrowthInside1X64); err != nil {
		return err
	}
	i.Liquidity = liquidityNext
	return nil
}

// Credit adds principal returned by a liquidity removal to the owed amounts.
func (i *Info) Credit(amount0, amount1 uint64) error {
	tokensOwed0, err := fm.CheckedAddU64(i.TokensOwed0, amount0)
	if err != nil {
		return err
	}
	tokensOwed1, err := fm.CheckedAddU64(i.TokensOwed1, amount1)
	if err != nil {
		return err
	}
	i.TokensOwed0, i.TokensOwed1 = tokensOwed0, tokensOwed1
	return nil
}

// Collect pays out up to the requested amounts of owed tokens.
func (i *Info) Collect(amount0Requested, amount1Requested uint64) (uint64, uint64) {
	amount0 := min(amount0Requested, i.TokensOwed0)
	amount1 := min(amount1Requested, i.TokensOwed1)
	i.TokensOwed0 -= amount0
	i.TokensOwed1 -= amount1
	return amount0, amount1
}

package transaction

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ftchann/thermo-amm/lib/conservation"

	cosmath "cosmossdk.io/math"
	"github.com/sugawarayuuta/sonnet"
	"lukechampine.com/uint128"
)

type Type string

const (
	Swap     Type = "swap"
	Mint     Type = "mint"
	Burn     Type = "burn"
	Collect  Type = "collect"
	Reweight Type = "reweight"
	Domain   Type = "domain"
)

// TransactionInput is one scenario entry as it appears on disk. Amounts are
// decimal strings so u128 values survive the round trip.
type TransactionInput struct {
	Type       Type                  `json:"type"`
	ID         string                `json:"id,omitempty"`
	Timestamp  int64                 `json:"timestamp"`
	Owner      string                `json:"owner,omitempty"`
	TickLower  int32                 `json:"tickLower,omitempty"`
	TickUpper  int32                 `json:"tickUpper,omitempty"`
	Liquidity  string                `json:"liquidity,omitempty"`
	Amount0    string                `json:"amount0,omitempty"`
	Amount1    string                `json:"amount1,omitempty"`
	AmountIn   string                `json:"amountIn,omitempty"`
	MinOut     string                `json:"minOut,omitempty"`
	ZeroForOne bool                  `json:"zeroForOne,omitempty"`
	MaxTicks   *uint8                `json:"maxTicks,omitempty"`
	MaxFeeBps  *uint16               `json:"maxFeeBps,omitempty"`
	Partial    bool                  `json:"partial,omitempty"`
	JIT        string                `json:"jit,omitempty"`
	Slot       uint64                `json:"slot,omitempty"`
	Weights    *conservation.Weights `json:"weights,omitempty"`
	Domain     string                `json:"domain,omitempty"`
	Point      string                `json:"point,omitempty"`
	LnGrowth   int64                 `json:"lnGrowth,omitempty"`
}

type Transaction struct {
	Type      Type
	ID        string
	Timestamp int64

	Owner     string
	TickLower int32
	TickUpper int32
	Liquidity cosmath.Int
	Amount0   uint64
	Amount1   uint64

	AmountIn         uint64
	MinimumAmountOut uint64
	ZeroForOne       bool
	MaxTicksCrossed  uint8
	MaxTotalFeeBps   uint16
	AllowPartialFill bool
	JITLiquidity     uint128.Uint128
	Slot             uint64

	Weights  conservation.Weights
	Domain   conservation.Domain
	Point    cosmath.LegacyDec
	LnGrowth int64
}

// Load reads a JSON array of scenario entries.
func Load(path string) ([]Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Decode(data)
}

func Decode(data []byte) ([]Transaction, error) {
	var inputs []TransactionInput
	if err := sonnet.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	out := make([]Transaction, 0, len(inputs))
	for i, in := range inputs {
		t, err := in.Parse()
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, in.Type, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (in TransactionInput) Parse() (Transaction, error) {
	t := Transaction{
		Type:      in.Type,
		ID:        in.ID,
		Timestamp: in.Timestamp,
		Owner:     in.Owner,
		TickLower: in.TickLower,
		TickUpper: in.TickUpper,
	}
	var err error
	switch in.Type {
	case Swap:
		if t.AmountIn, err = parseU64(in.AmountIn, 0); err != nil {
			return t, fmt.Errorf("amountIn: %w", err)
		}
		if t.MinimumAmountOut, err = parseU64(in.MinOut, 0); err != nil {
			return t, fmt.Errorf("minOut: %w", err)
		}
		t.ZeroForOne = in.ZeroForOne
		t.MaxTicksCrossed = ^uint8(0)
		if in.MaxTicks != nil {
			t.MaxTicksCrossed = *in.MaxTicks
		}
		t.MaxTotalFeeBps = ^uint16(0)
		if in.MaxFeeBps != nil {
			t.MaxTotalFeeBps = *in.MaxFeeBps
		}
		t.AllowPartialFill = in.Partial
		if in.JIT != "" {
			if t.JITLiquidity, err = uint128.FromString(in.JIT); err != nil {
				return t, fmt.Errorf("jit: %w", err)
			}
		}
		t.Slot = in.Slot
	case Mint, Burn:
		liquidity, ok := cosmath.NewIntFromString(in.Liquidity)
		if !ok || !liquidity.IsPositive() {
			return t, fmt.Errorf("liquidity %q must be a positive integer", in.Liquidity)
		}
		t.Liquidity = liquidity
	case Collect:
		// empty amounts collect everything owed
		if t.Amount0, err = parseU64(in.Amount0, ^uint64(0)); err != nil {
			return t, fmt.Errorf("amount0: %w", err)
		}
		if t.Amount1, err = parseU64(in.Amount1, ^uint64(0)); err != nil {
			return t, fmt.Errorf("amount1: %w", err)
		}
	case Reweight:
		if in.Weights == nil {
			return t, fmt.Errorf("weights missing")
		}
		t.Weights = *in.Weights
	case Domain:
		if t.Domain, err = conservation.ParseDomain(in.Domain); err != nil {
			return t, err
		}
		if t.Point, err = cosmath.LegacyNewDecFromStr(in.Point); err != nil {
			return t, fmt.Errorf("point: %w", err)
		}
		t.LnGrowth = in.LnGrowth
	default:
		return t, fmt.Errorf("unknown type %q", in.Type)
	}
	return t, nil
}

func parseU64(s string, def uint64) (uint64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	in := TransactionInput{
		Type:      t.Type,
		ID:        t.ID,
		Timestamp: t.Timestamp,
	}
	switch t.Type {
	case Swap:
		maxTicks, maxFee := t.MaxTicksCrossed, t.MaxTotalFeeBps
		in.AmountIn = strconv.FormatUint(t.AmountIn, 10)
		in.MinOut = strconv.FormatUint(t.MinimumAmountOut, 10)
		in.ZeroForOne = t.ZeroForOne
		in.MaxTicks = &maxTicks
		in.MaxFeeBps = &maxFee
		in.Partial = t.AllowPartialFill
		in.JIT = t.JITLiquidity.String()
		in.Slot = t.Slot
	case Mint, Burn:
		in.Owner, in.TickLower, in.TickUpper = t.Owner, t.TickLower, t.TickUpper
		in.Liquidity = t.Liquidity.String()
	case Collect:
		in.Owner, in.TickLower, in.TickUpper = t.Owner, t.TickLower, t.TickUpper
		in.Amount0 = strconv.FormatUint(t.Amount0, 10)
		in.Amount1 = strconv.FormatUint(t.Amount1, 10)
	case Reweight:
		w := t.Weights
		in.Weights = &w
	case Domain:
		in.Domain = t.Domain.String()
		in.Point = t.Point.String()
		in.LnGrowth = t.LnGrowth
	default:
		return nil, fmt.Errorf("unknown type %q", t.Type)
	}
	return sonnet.Marshal(&in)
}

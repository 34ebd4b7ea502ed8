package executor

import (
	"context"
	"fmt"
	"math"

	"github.com/ftchann/thermo-amm/lib/ammerrors"
	"github.com/ftchann/thermo-amm/lib/conservation"
	"github.com/ftchann/thermo-amm/lib/pool"
	"github.com/ftchann/thermo-amm/lib/prices"
	"github.com/ftchann/thermo-amm/lib/result"
	strat "github.com/ftchann/thermo-amm/lib/strategy"
	ent "github.com/ftchann/thermo-amm/lib/transaction"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Execution struct {
	Pool           *pool.Pool
	Strategy       strat.Strategy
	UpdateInterval int64
	Prices         *prices.Window
	Transactions   []ent.Transaction
	Records        []result.Record
	Snapshots      []result.Snapshot

	rebalances int
	failed     int
	logger     *zap.Logger
}

func CreateExecution(p *pool.Pool, strategy strat.Strategy, updateInterval int64, priceWindow int, transactions []ent.Transaction, logger *zap.Logger) *Execution {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Execution{
		Pool:           p,
		Strategy:       strategy,
		UpdateInterval: updateInterval,
		Prices:         prices.NewWindow(priceWindow),
		Transactions:   transactions,
		Records:        make([]result.Record, 0, len(transactions)),
		logger:         logger,
	}
}

// Run replays every transaction against the pool. Pool errors are recorded
// per operation; strategy errors abort the run.
func (e *Execution) Run(ctx context.Context) (result.Summary, error) {
	started := false
	var nextUpdate int64 = math.MaxInt64

	for i, trans := range e.Transactions {
		if err := ctx.Err(); err != nil {
			return result.Summary{}, err
		}

		// Start Strategy
		if !started && e.Strategy != nil {
			if err := e.Strategy.Init(); err != nil {
				return result.Summary{}, fmt.Errorf("init strategy %s: %w", e.Strategy.Name(), err)
			}
			if err := e.snapshot(trans.Timestamp); err != nil {
				return result.Summary{}, err
			}
			if e.UpdateInterval > 0 {
				nextUpdate = trans.Timestamp + e.UpdateInterval
			}
			started = true
		}

		// Rebalance
		if e.Strategy != nil && trans.Timestamp >= nextUpdate {
			if err := e.Strategy.Rebalance(); err != nil {
				return result.Summary{}, fmt.Errorf("rebalance at %d: %w", trans.Timestamp, err)
			}
			e.rebalances++
			for nextUpdate <= trans.Timestamp {
				nextUpdate += e.UpdateInterval
			}
			if err := e.snapshot(trans.Timestamp); err != nil {
				return result.Summary{}, err
			}
		}

		rec := e.Apply(i, trans)
		if rec.Error != "" {
			e.failed++
		}
		e.Records = append(e.Records, rec)
		e.Prices.Add(e.Pool.Price())
	}

	if e.Strategy != nil && started {
		if _, _, err := e.Strategy.BurnAll(); err != nil {
			return result.Summary{}, fmt.Errorf("burn all: %w", err)
		}
		last := int64(0)
		if n := len(e.Transactions); n > 0 {
			last = e.Transactions[n-1].Timestamp
		}
		if err := e.snapshot(last); err != nil {
			return result.Summary{}, err
		}
	}
	return e.summary()
}

// Apply executes one transaction and reports its outcome and the pool state after it.
func (e *Execution) Apply(index int, trans ent.Transaction) result.Record {
	rec := result.Record{
		Index:     index,
		ID:        trans.ID,
		Timestamp: trans.Timestamp,
		Type:      string(trans.Type),
		Status:    "ok",
	}

	var err error
	switch trans.Type {
	case ent.Swap:
		var res pool.SwapResult
		res, err = e.Pool.Swap(pool.SwapParams{
			AmountIn:         trans.AmountIn,
			MinimumAmountOut: trans.MinimumAmountOut,
			MaxTicksCrossed:  trans.MaxTicksCrossed,
			MaxTotalFeeBps:   trans.MaxTotalFeeBps,
			ZeroForOne:       trans.ZeroForOne,
			AllowPartialFill: trans.AllowPartialFill,
			JITLiquidity:     trans.JITLiquidity,
			Slot:             trans.Slot,
		})
		rec.Status = res.Status.String()
		rec.AmountIn = res.AmountIn
		rec.AmountOut = res.AmountOut
		rec.LPFee = res.LPFee
		rec.ThermoFee = res.ThermoFee
		rec.Rebate = res.RebateAmount
		rec.TicksCrossed = res.TicksCrossed
		rec.TotalFeeBps = res.TotalFeeBps
	case ent.Mint:
		var upd pool.PositionUpdate
		upd, err = e.Pool.Mint(trans.Owner, trans.TickLower, trans.TickUpper, trans.Liquidity)
		rec.Amount0, rec.Amount1 = upd.Amount0, upd.Amount1
	case ent.Burn:
		var upd pool.PositionUpdate
		upd, err = e.Pool.Burn(trans.Owner, trans.TickLower, trans.TickUpper, trans.Liquidity)
		rec.Amount0, rec.Amount1 = upd.Amount0, upd.Amount1
	case ent.Collect:
		rec.Amount0, rec.Amount1, err = e.Pool.Collect(trans.Owner, trans.TickLower, trans.TickUpper, trans.Amount0, trans.Amount1)
	case ent.Reweight:
		err = e.Pool.Reweight(trans.Weights)
	case ent.Domain:
		err = e.Pool.MoveDomain(trans.Domain, trans.Point, trans.LnGrowth)
	default:
		err = ammerrors.ErrInvalidAmount.Wrapf("unknown transaction type %q", trans.Type)
	}
	if err != nil {
		if trans.Type != ent.Swap {
			rec.Status = "failed"
		}
		rec.Error = err.Error()
		rec.ErrorKind = ammerrors.KindOf(err).String()
		e.logger.Debug("transaction failed",
			zap.Int("index", index),
			zap.String("type", string(trans.Type)),
			zap.Error(err),
		)
	}

	state := e.Pool.State()
	buffer0, buffer1 := e.Pool.Buffers()
	rec.Tick = state.Tick
	rec.Price = e.Pool.Price().String()
	rec.Liquidity = state.Liquidity.String()
	rec.Buffer0, rec.Buffer1 = buffer0, buffer1
	if weights, werr := e.Pool.Weights(); werr == nil {
		rec.Residual = conservation.Residual(weights, e.Pool.Ledger()).String()
	}
	return rec
}

func (e *Execution) snapshot(timestamp int64) error {
	amount0, amount1, err := e.Strategy.GetAmounts()
	if err != nil {
		return fmt.Errorf("value strategy: %w", err)
	}
	price := e.Pool.Price()
	e.Snapshots = append(e.Snapshots, result.Snapshot{
		Timestamp: timestamp,
		Amount0:   amount0,
		Amount1:   amount1,
		Value:     Value(amount0, amount1, price).String(),
		Price:     price.String(),
	})
	return nil
}

func (e *Execution) summary() (result.Summary, error) {
	weights, err := e.Pool.Weights()
	if err != nil {
		return result.Summary{}, err
	}
	check, err := conservation.Check(weights, e.Pool.Ledger())
	if err != nil {
		return result.Summary{}, err
	}
	sum := result.Summary{
		Operations:      len(e.Records),
		Failed:          e.failed,
		Rebalances:      e.rebalances,
		PriceAverage:    e.Prices.Average().String(),
		PriceVolatility: e.Prices.Volatility().String(),
		Conserved:       check.Conserved,
		Snapshots:       e.Snapshots,
	}
	if n := len(e.Snapshots); n > 0 {
		sum.StartValue = e.Snapshots[0].Value
		sum.EndValue = e.Snapshots[n-1].Value
	}
	return sum, nil
}

// Value prices holdings in token1.
func Value(amount0, amount1 uint64, price decimal.Decimal) decimal.Decimal {
	return decimal.NewFromUint64(amount0).Mul(price).Add(decimal.NewFromUint64(amount1))
}

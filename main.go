package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ftchann/thermo-amm/lib/ammerrors"
	"github.com/ftchann/thermo-amm/lib/config"
	"github.com/ftchann/thermo-amm/lib/conservation"
	"github.com/ftchann/thermo-amm/lib/executor"
	"github.com/ftchann/thermo-amm/lib/metrics"
	ppool "github.com/ftchann/thermo-amm/lib/pool"
	"github.com/ftchann/thermo-amm/lib/result"
	strat "github.com/ftchann/thermo-amm/lib/strategy"
	ent "github.com/ftchann/thermo-amm/lib/transaction"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "thermoamm",
		Short:        "Concentrated liquidity AMM simulator with thermodynamic fees",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a scenario against a fresh pool",
		RunE:  runSimulate,
	}
	addPoolFlags(simulateCmd.Flags())
	simulateCmd.Flags().String("scenario", "./data/scenario.json", "scenario JSON path")
	simulateCmd.Flags().String("out", "./data/results.jsonl", "output results JSONL")
	simulateCmd.Flags().String("strategy", "none", "lp strategy (none, interval)")
	simulateCmd.Flags().Int32("strategy-width", 640, "interval half width in ticks")
	simulateCmd.Flags().Uint64("strategy-amount0", 0, "strategy start balance of token0")
	simulateCmd.Flags().Uint64("strategy-amount1", 0, "strategy start balance of token1")
	simulateCmd.Flags().Int64("rebalance-interval", 86_400, "seconds between strategy rebalances")
	simulateCmd.Flags().Int("price-window", 24, "price samples kept for average and volatility")
	simulateCmd.Flags().String("metrics-file", "", "write prometheus text metrics here after the run")
	root.AddCommand(simulateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote an exact-input swap without committing it",
		RunE:  runQuote,
	}
	addPoolFlags(quoteCmd.Flags())
	quoteCmd.Flags().String("scenario", "", "scenario replayed before quoting")
	quoteCmd.Flags().Uint64("amount-in", 0, "input amount")
	quoteCmd.Flags().Bool("zero-for-one", false, "sell token0 for token1")
	quoteCmd.Flags().Uint8("max-ticks", 255, "initialized ticks the swap may cross")
	quoteCmd.Flags().Bool("partial", false, "allow a partial fill")
	quoteCmd.Flags().Uint16("max-fee-bps", 65_535, "reject the swap above this total fee")
	root.AddCommand(quoteCmd)

	conservationCmd := &cobra.Command{
		Use:   "conservation",
		Short: "Check the domain conservation identity for a set of log growths",
		RunE:  runConservation,
	}
	conservationCmd.Flags().Uint16("spot", 4000, "spot weight (bps)")
	conservationCmd.Flags().Uint16("time", 2500, "time weight (bps)")
	conservationCmd.Flags().Uint16("leverage", 2500, "leverage weight (bps)")
	conservationCmd.Flags().Uint16("buffer", 1000, "buffer weight (bps)")
	conservationCmd.Flags().Int64("ln-s", 0, "spot log growth (x1e6)")
	conservationCmd.Flags().Int64("ln-t", 0, "time log growth (x1e6)")
	conservationCmd.Flags().Int64("ln-l", 0, "leverage log growth (x1e6)")
	conservationCmd.Flags().Int64("ln-tau", 0, "buffer log growth (x1e6)")
	root.AddCommand(conservationCmd)

	return root
}

func addPoolFlags(fs *pflag.FlagSet) {
	fs.String("token0", "ETH", "token0 symbol")
	fs.String("token1", "USDC", "token1 symbol")
	fs.Int32("tick-spacing", 64, "tick spacing")
	fs.String("price", "1", "initial token1-per-token0 price")
	fs.Uint16("base-fee-bps", 30, "base lp fee (bps)")
	fs.String("jit-per-swap-cap", "0", "jit liquidity cap per swap")
	fs.String("jit-per-slot-cap", "0", "jit liquidity cap per slot")
	fs.Uint64("buffer0", 0, "initial token0 buffer")
	fs.Uint64("buffer1", 0, "initial token1 buffer")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func load(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := load(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	transactions, err := ent.Load(cfg.Scenario)
	if err != nil {
		return err
	}
	poolCfg, err := cfg.PoolConfig()
	if err != nil {
		return err
	}
	registry := prometheus.NewRegistry()
	pool, err := ppool.NewPool(poolCfg, ppool.WithLogger(logger), ppool.WithMetrics(metrics.New(registry)))
	if err != nil {
		return err
	}
	strategy, err := strat.New(cfg.Strategy, cfg.StrategyAmount0, cfg.StrategyAmount1, pool, cfg.StrategyWidth)
	if err != nil {
		return err
	}

	logger.Info("simulation start",
		zap.String("scenario", cfg.Scenario),
		zap.Int("transactions", len(transactions)),
		zap.String("strategy", strategy.Name()),
		zap.Stringer("price", pool.Price()),
		zap.String("out", cfg.Out),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	execution := executor.CreateExecution(pool, strategy, cfg.RebalanceInterval, cfg.PriceWindow, transactions, logger)
	summary, err := execution.Run(ctx)
	if err != nil {
		return err
	}

	if err := os.Remove(cfg.Out); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reset output: %w", err)
	}
	writer := result.NewJsonlWriter(cfg.Out)
	lines := make([]any, 0, len(execution.Records)+1)
	for _, rec := range execution.Records {
		lines = append(lines, rec)
	}
	lines = append(lines, summary)
	if err := writer.Write(lines...); err != nil {
		return err
	}
	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	logger.Info("simulation done",
		zap.Int("operations", summary.Operations),
		zap.Int("failed", summary.Failed),
		zap.Int("rebalances", summary.Rebalances),
		zap.String("end_value", summary.EndValue),
		zap.Bool("conserved", summary.Conserved),
	)
	return nil
}

type quoteOutput struct {
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	AmountIn       uint64 `json:"amount_in"`
	AmountOut      uint64 `json:"amount_out"`
	LPFee          uint64 `json:"lp_fee"`
	ThermoFee      uint64 `json:"thermo_fee"`
	Rebate         uint64 `json:"rebate"`
	Thermo         string `json:"thermo"`
	TickAfter      int32  `json:"tick_after"`
	SqrtPriceAfter string `json:"sqrt_price_after"`
	TicksCrossed   uint8  `json:"ticks_crossed"`
	PriceImpactBps uint32 `json:"price_impact_bps"`
	TotalFeeBps    uint32 `json:"total_fee_bps"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := load(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	poolCfg, err := cfg.PoolConfig()
	if err != nil {
		return err
	}
	pool, err := ppool.NewPool(poolCfg, ppool.WithLogger(logger))
	if err != nil {
		return err
	}
	if scenario, _ := cmd.Flags().GetString("scenario"); scenario != "" {
		transactions, err := ent.Load(scenario)
		if err != nil {
			return err
		}
		execution := executor.CreateExecution(pool, nil, 0, 2, transactions, logger)
		if _, err := execution.Run(cmd.Context()); err != nil {
			return err
		}
	}

	amountIn, _ := cmd.Flags().GetUint64("amount-in")
	zeroForOne, _ := cmd.Flags().GetBool("zero-for-one")
	maxTicks, _ := cmd.Flags().GetUint8("max-ticks")
	partial, _ := cmd.Flags().GetBool("partial")
	maxFeeBps, _ := cmd.Flags().GetUint16("max-fee-bps")
	res, err := pool.Quote(ppool.SwapParams{
		AmountIn:         amountIn,
		MaxTicksCrossed:  maxTicks,
		MaxTotalFeeBps:   maxFeeBps,
		ZeroForOne:       zeroForOne,
		AllowPartialFill: partial,
	})
	out := quoteOutput{
		Status:         res.Status.String(),
		AmountIn:       res.AmountIn,
		AmountOut:      res.AmountOut,
		LPFee:          res.LPFee,
		ThermoFee:      res.ThermoFee,
		Rebate:         res.RebateAmount,
		Thermo:         res.Thermo.String(),
		TickAfter:      res.TickAfter,
		SqrtPriceAfter: res.SqrtPriceAfter.String(),
		TicksCrossed:   res.TicksCrossed,
		PriceImpactBps: res.PriceImpactBps,
		TotalFeeBps:    res.TotalFeeBps,
	}
	if err != nil {
		out.Error = err.Error()
		if !ammerrors.Recoverable(err) {
			logger.Warn("quote failed", zap.Error(err))
		}
	}
	return printJSON(cmd, out)
}

func runConservation(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	var w conservation.Weights
	var s conservation.Snapshot
	w.Spot, _ = flags.GetUint16("spot")
	w.Time, _ = flags.GetUint16("time")
	w.Leverage, _ = flags.GetUint16("leverage")
	w.Buffer, _ = flags.GetUint16("buffer")
	s.LnGS, _ = flags.GetInt64("ln-s")
	s.LnGT, _ = flags.GetInt64("ln-t")
	s.LnGL, _ = flags.GetInt64("ln-l")
	s.LnGTau, _ = flags.GetInt64("ln-tau")

	res, err := conservation.Check(w, s)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := sonnet.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

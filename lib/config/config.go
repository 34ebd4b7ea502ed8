package config

import (
	"fmt"
	"strings"

	"github.com/ftchann/thermo-amm/lib/conservation"
	"github.com/ftchann/thermo-amm/lib/feemodel"
	fm "github.com/ftchann/thermo-amm/lib/fullmath"
	"github.com/ftchann/thermo-amm/lib/jit"
	"github.com/ftchann/thermo-amm/lib/pool"
	sqrtmath "github.com/ftchann/thermo-amm/lib/sqrtprice_math"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"lukechampine.com/uint128"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Token0         string
	Token1         string
	TickSpacing    int32
	Price          string
	Fees           feemodel.Config
	Weights        conservation.Weights
	JITPerSwapCap  string
	JITPerSlotCap  string
	InitialBuffer0 uint64
	InitialBuffer1 uint64

	Scenario          string
	Out               string
	Strategy          string
	StrategyWidth     int32
	StrategyAmount0   uint64
	StrategyAmount1   uint64
	RebalanceInterval int64
	PriceWindow       int

	MetricsFile string
	LogLevel    string
}

func defaultWeights() conservation.Weights {
	return conservation.Weights{Spot: 4000, Time: 2500, Leverage: 2500, Buffer: 1000}
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("THERMOAMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("token0", "ETH")
	v.SetDefault("token1", "USDC")
	v.SetDefault("tick-spacing", 64)
	v.SetDefault("price", "1")
	v.SetDefault("base-fee-bps", 30)
	v.SetDefault("jit-per-swap-cap", "0")
	v.SetDefault("jit-per-slot-cap", "0")
	v.SetDefault("scenario", "./data/scenario.json")
	v.SetDefault("out", "./data/results.jsonl")
	v.SetDefault("strategy", "none")
	v.SetDefault("strategy-width", 640)
	v.SetDefault("rebalance-interval", 86_400)
	v.SetDefault("price-window", 24)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Token0:            v.GetString("token0"),
		Token1:            v.GetString("token1"),
		TickSpacing:       v.GetInt32("tick-spacing"),
		Price:             v.GetString("price"),
		Fees:              feemodel.DefaultConfig(uint16(v.GetUint("base-fee-bps"))),
		Weights:           defaultWeights(),
		JITPerSwapCap:     v.GetString("jit-per-swap-cap"),
		JITPerSlotCap:     v.GetString("jit-per-slot-cap"),
		InitialBuffer0:    v.GetUint64("buffer0"),
		InitialBuffer1:    v.GetUint64("buffer1"),
		Scenario:          v.GetString("scenario"),
		Out:               v.GetString("out"),
		Strategy:          v.GetString("strategy"),
		StrategyWidth:     v.GetInt32("strategy-width"),
		StrategyAmount0:   v.GetUint64("strategy-amount0"),
		StrategyAmount1:   v.GetUint64("strategy-amount1"),
		RebalanceInterval: v.GetInt64("rebalance-interval"),
		PriceWindow:       v.GetInt("price-window"),
		MetricsFile:       v.GetString("metrics-file"),
		LogLevel:          v.GetString("log-level"),
	}

	// nested sections only override the keys they set
	if v.IsSet("fees") {
		if err := v.UnmarshalKey("fees", &cfg.Fees); err != nil {
			return Config{}, fmt.Errorf("decode fees: %w", err)
		}
		if flags != nil && flags.Changed("base-fee-bps") {
			cfg.Fees.BaseFeeBps = uint16(v.GetUint("base-fee-bps"))
		}
	}
	if v.IsSet("weights") {
		if err := v.UnmarshalKey("weights", &cfg.Weights); err != nil {
			return Config{}, fmt.Errorf("decode weights: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks the fields the pool does not validate itself.
func (c Config) Validate() error {
	if c.TickSpacing <= 0 {
		return fmt.Errorf("tick-spacing must be positive, got %d", c.TickSpacing)
	}
	if c.StrategyWidth < 0 {
		return fmt.Errorf("strategy-width must not be negative, got %d", c.StrategyWidth)
	}
	if c.RebalanceInterval <= 0 {
		return fmt.Errorf("rebalance-interval must be positive, got %d", c.RebalanceInterval)
	}
	if c.PriceWindow < 2 {
		return fmt.Errorf("price-window needs at least 2 samples, got %d", c.PriceWindow)
	}
	switch c.Strategy {
	case "none", "interval":
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	if _, err := c.PoolConfig(); err != nil {
		return err
	}
	return nil
}

// PoolConfig converts the loaded values into a pool configuration.
func (c Config) PoolConfig() (pool.Config, error) {
	price, err := decimal.NewFromString(c.Price)
	if err != nil {
		return pool.Config{}, fmt.Errorf("parse price %q: %w", c.Price, err)
	}
	sqrtPrice, err := sqrtmath.SqrtPriceFromDecimal(price)
	if err != nil {
		return pool.Config{}, err
	}
	sqrtPriceX64, err := fm.ToU128(sqrtPrice)
	if err != nil {
		return pool.Config{}, err
	}
	perSwap, err := parseU128(c.JITPerSwapCap)
	if err != nil {
		return pool.Config{}, fmt.Errorf("jit-per-swap-cap: %w", err)
	}
	perSlot, err := parseU128(c.JITPerSlotCap)
	if err != nil {
		return pool.Config{}, fmt.Errorf("jit-per-slot-cap: %w", err)
	}

	cfg := pool.Config{
		Token0:         c.Token0,
		Token1:         c.Token1,
		TickSpacing:    c.TickSpacing,
		SqrtPriceX64:   sqrtPriceX64,
		Fees:           c.Fees,
		Weights:        c.Weights,
		JIT:            jit.Budget{PerSwapCap: perSwap, PerSlotCap: perSlot},
		InitialBuffer0: c.InitialBuffer0,
		InitialBuffer1: c.InitialBuffer1,
	}
	return cfg, cfg.Validate()
}

func parseU128(s string) (uint128.Uint128, error) {
	if strings.TrimSpace(s) == "" {
		return uint128.Zero, nil
	}
	return uint128.FromString(strings.TrimSpace(s))
}

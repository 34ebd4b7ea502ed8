package pool

import (
	"github.com/ftchann/thermo-amm/lib/ammerrors"
	"github.com/ftchann/thermo-amm/lib/conservation"
	"github.com/ftchann/thermo-amm/lib/feemodel"
	fm "github.com/ftchann/thermo-amm/lib/fullmath"
	"github.com/ftchann/thermo-amm/lib/jit"
	"github.com/ftchann/thermo-amm/lib/metrics"
	"github.com/ftchann/thermo-amm/lib/position"
	sqrtmath "github.com/ftchann/thermo-amm/lib/sqrtprice_math"
	td "github.com/ftchann/thermo-amm/lib/tickdata"
	"github.com/ftchann/thermo-amm/lib/tickmath"

	cosmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"lukechampine.com/uint128"
)

type Config struct {
	Token0         string
	Token1         string
	TickSpacing    int32
	SqrtPriceX64   uint128.Uint128
	Fees           feemodel.Config
	Weights        conservation.Weights
	JIT            jit.Budget
	InitialBuffer0 uint64
	InitialBuffer1 uint64
}

func (c Config) Validate() error {
	if c.TickSpacing <= 0 {
		return ammerrors.ErrInvalidTickSpace.Wrapf("tick spacing %d", c.TickSpacing)
	}
	if c.SqrtPriceX64.Cmp(tickmath.MinSqrtPrice) < 0 || c.SqrtPriceX64.Cmp(tickmath.MaxSqrtPrice) > 0 {
		return ammerrors.ErrSqrtPriceBounds.Wrapf("initial sqrt price %s", c.SqrtPriceX64)
	}
	if err := c.Fees.Validate(); err != nil {
		return err
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.Token0 == "" || c.Token1 == "" || c.Token0 == c.Token1 {
		return ammerrors.ErrInvalidPoolConfig.Wrapf("tokens %q/%q", c.Token0, c.Token1)
	}
	return nil
}

// State is the slot the swap engine mutates once per step.
type State struct {
	SqrtPriceX64        uint128.Uint128
	Tick                int32
	Liquidity           uint128.Uint128
	FeeGrowthGlobal0X64 uint128.Uint128
	FeeGrowthGlobal1X64 uint128.Uint128
}

type Pool struct {
	Token0 string
	Token1 string

	state     State
	ticks     *td.TickData
	positions position.Book
	ledger    *conservation.Ledger
	fees      feemodel.Config
	jit       *jit.Tracker
	buffer0   uint64
	buffer1   uint64
	domain    feemodel.DomainPoint
	priced    feemodel.DomainPoint // domain as of the last committed swap

	critical bool

	logger  *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*Pool)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}

func NewPool(cfg Config, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tick, err := tickmath.GetTickAtSqrtPrice(cfg.SqrtPriceX64)
	if err != nil {
		return nil, err
	}
	ticks, err := td.NewTickData(td.NewArenaStore(cfg.TickSpacing), cfg.TickSpacing)
	if err != nil {
		return nil, err
	}
	ledger, err := conservation.NewLedger(cfg.Weights)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		Token0: cfg.Token0,
		Token1: cfg.Token1,
		state: State{
			SqrtPriceX64: cfg.SqrtPriceX64,
			Tick:         tick,
		},
		ticks:     ticks,
		positions: position.Book{},
		ledger:    ledger,
		fees:      cfg.Fees,
		jit:       jit.NewTracker(cfg.JIT),
		buffer0:   cfg.InitialBuffer0,
		buffer1:   cfg.InitialBuffer1,
		domain:    feemodel.UnitPoint(),
		priced:    feemodel.UnitPoint(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("pool", p.Token0+"/"+p.Token1))
	return p, nil
}

func (p *Pool) State() State {
	return p.state
}

func (p *Pool) TickSpacing() int32 {
	return p.ticks.TickSpacing()
}

func (p *Pool) Tick(index int32) (td.Tick, error) {
	return p.ticks.GetTick(index)
}

func (p *Pool) Fees() feemodel.Config {
	return p.fees
}

// Buffers returns the conservation buffer balances of token0 and token1.
func (p *Pool) Buffers() (uint64, uint64) {
	return p.buffer0, p.buffer1
}

func (p *Pool) Ledger() conservation.Snapshot {
	return p.ledger.Snapshot()
}

func (p *Pool) Weights() (conservation.Weights, error) {
	return p.ledger.Weights()
}

func (p *Pool) Position(owner string, tickLower, tickUpper int32) (position.Info, bool) {
	pos, ok := p.positions.Get(owner, tickLower, tickUpper)
	if !ok {
		return position.Info{}, false
	}
	return *pos, true
}

func (p *Pool) Positions() []*position.Info {
	return p.positions.Clone().Sorted()
}

// Price is the token1-per-token0 price.
func (p *Pool) Price() decimal.Decimal {
	return sqrtmath.PriceDecimal(fm.FromU128(p.state.SqrtPriceX64))
}

// Reweight replaces the domain weights and rebases the buffer domain.
func (p *Pool) Reweight(w conservation.Weights) error {
	if p.critical {
		return ammerrors.ErrReentrancy.Wrap("reweight")
	}
	if err := p.ledger.Reweight(w); err != nil {
		return err
	}
	p.observeLedger()
	p.logger.Info("domain weights updated",
		zap.Uint16("spot", w.Spot),
		zap.Uint16("time", w.Time),
		zap.Uint16("leverage", w.Leverage),
		zap.Uint16("buffer", w.Buffer),
	)
	return nil
}

// MoveDomain shifts the time or leverage position of the pool and records the
// log growth the move implies, in scaled units. Spot moves only through swaps.
// The next committed swap is priced on the move together with its own spot
// displacement.
func (p *Pool) MoveDomain(d conservation.Domain, point cosmath.LegacyDec, lnGrowthDelta int64) error {
	if p.critical {
		return ammerrors.ErrReentrancy.Wrap("domain move")
	}
	if !point.IsPositive() {
		return ammerrors.ErrInvalidAmount.Wrapf("%s position %s", d, point)
	}
	ledger := p.ledger.Clone()
	switch d {
	case conservation.Time, conservation.Leverage:
		if err := ledger.Accumulate(d, lnGrowthDelta); err != nil {
			return err
		}
	default:
		return ammerrors.ErrInvalidDomain.Wrapf("%s cannot be moved directly", d)
	}
	if _, err := ledger.Rebase(); err != nil {
		return err
	}
	if d == conservation.Time {
		p.domain.T = point
	} else {
		p.domain.L = point
	}
	p.ledger = ledger
	p.observeLedger()
	return nil
}

func (p *Pool) observeLedger() {
	res, err := p.ledger.Verify()
	if err != nil {
		p.logger.Warn("conservation check failed", zap.Error(err))
		return
	}
	if !res.Conserved {
		p.logger.Warn("conservation drift", zap.String("residual", res.Residual))
	}
	if r, err := decimal.NewFromString(res.Residual); err == nil {
		p.metrics.SetResidual(r.InexactFloat64())
	}
}

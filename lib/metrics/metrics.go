package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "thermoamm"
	subsystem = "pool"
)

// Metrics holds the Prometheus collectors of one simulated pool. A nil
// *Metrics records nothing.
type Metrics struct {
	SwapsTotal           *prometheus.CounterVec
	FeesTotal            *prometheus.CounterVec
	RebatesTotal         prometheus.Counter
	TicksCrossed         prometheus.Histogram
	ConservationResidual prometheus.Gauge
	PositionUpdates      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SwapsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "swaps_total",
				Help:      "Swaps by final status",
			},
			[]string{"status"},
		),
		FeesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fees_total",
				Help:      "Fees charged in input-token base units",
			},
			[]string{"kind"},
		),
		RebatesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rebates_total",
				Help:      "Rebates paid from the buffer in output-token base units",
			},
		),
		TicksCrossed: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ticks_crossed",
				Help:      "Initialized ticks crossed per committed swap",
				Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 255},
			},
		),
		ConservationResidual: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "conservation_residual",
				Help:      "Weighted log growth residual after the last rebase",
			},
		),
		PositionUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "position_updates_total",
				Help:      "Position updates by kind",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) ObserveSwap(status string, lpFee, thermoFee, rebate uint64, ticksCrossed int) {
	if m == nil {
		return
	}
	m.SwapsTotal.WithLabelValues(status).Inc()
	m.FeesTotal.WithLabelValues("lp").Add(float64(lpFee))
	m.FeesTotal.WithLabelValues("thermo").Add(float64(thermoFee))
	m.RebatesTotal.Add(float64(rebate))
	m.TicksCrossed.Observe(float64(ticksCrossed))
}

func (m *Metrics) ObserveFailedSwap(status string) {
	if m == nil {
		return
	}
	m.SwapsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) SetResidual(residual float64) {
	if m == nil {
		return
	}
	m.ConservationResidual.Set(residual)
}

func (m *Metrics) ObservePositionUpdate(kind string) {
	if m == nil {
		return
	}
	m.PositionUpdates.WithLabelValues(kind).Inc()
}

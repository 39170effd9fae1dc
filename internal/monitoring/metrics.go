package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// Sink receives telemetry from the trading core. Implementations must not
// block; the core calls them while holding the portfolio lock.
type Sink interface {
	TradeExecuted(symbol string, action types.Action, price, quantity float64)
	OperationRejected(operation string, kind boterrors.ErrorKind)
	InternalFault(operation string)
	EquityUpdated(value, drawdown float64, openPositions int)
	SignalProcessed(symbol string, accepted bool)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) TradeExecuted(string, types.Action, float64, float64) {}
func (NopSink) OperationRejected(string, boterrors.ErrorKind)        {}
func (NopSink) InternalFault(string)                                 {}
func (NopSink) EquityUpdated(float64, float64, int)                  {}
func (NopSink) SignalProcessed(string, bool)                         {}

// Recorder exports core telemetry as Prometheus metrics.
type Recorder struct {
	tradesTotal    *prometheus.CounterVec
	tradeNotional  *prometheus.HistogramVec
	rejections     *prometheus.CounterVec
	faultsTotal    *prometheus.CounterVec
	signalsTotal   *prometheus.CounterVec
	portfolioValue prometheus.Gauge
	drawdown       prometheus.Gauge
	openPositions  prometheus.Gauge
}

// NewRecorder creates the metric set and registers it on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		tradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pump_short_trades_total",
				Help: "Total number of fills executed",
			},
			[]string{"symbol", "action"},
		),
		tradeNotional: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pump_short_trade_notional",
				Help:    "Distribution of fill notionals",
				Buckets: prometheus.ExponentialBuckets(10, 2, 12),
			},
			[]string{"symbol"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pump_short_rejections_total",
				Help: "Operations rejected by validation or risk limits",
			},
			[]string{"operation", "kind"},
		),
		faultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pump_short_internal_faults_total",
				Help: "Unexpected faults recovered at an operation boundary",
			},
			[]string{"operation"},
		),
		signalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pump_short_signals_total",
				Help: "Entry signals processed by the executor",
			},
			[]string{"symbol", "outcome"},
		),
		portfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pump_short_portfolio_value",
			Help: "Latest marked portfolio value",
		}),
		drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pump_short_max_drawdown_ratio",
			Help: "Maximum drawdown observed so far",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pump_short_open_positions",
			Help: "Number of active positions",
		}),
	}

	collectors := []prometheus.Collector{
		r.tradesTotal, r.tradeNotional, r.rejections, r.faultsTotal,
		r.signalsTotal, r.portfolioValue, r.drawdown, r.openPositions,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) TradeExecuted(symbol string, action types.Action, price, quantity float64) {
	r.tradesTotal.WithLabelValues(symbol, string(action)).Inc()
	r.tradeNotional.WithLabelValues(symbol).Observe(price * quantity)
}

func (r *Recorder) OperationRejected(operation string, kind boterrors.ErrorKind) {
	r.rejections.WithLabelValues(operation, string(kind)).Inc()
}

func (r *Recorder) InternalFault(operation string) {
	r.faultsTotal.WithLabelValues(operation).Inc()
}

func (r *Recorder) EquityUpdated(value, drawdown float64, openPositions int) {
	r.portfolioValue.Set(value)
	r.drawdown.Set(drawdown)
	r.openPositions.Set(float64(openPositions))
}

func (r *Recorder) SignalProcessed(symbol string, accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "executed"
	}
	r.signalsTotal.WithLabelValues(symbol, outcome).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

type multiSink []Sink

// Multi fans telemetry out to every sink in order.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) TradeExecuted(symbol string, action types.Action, price, quantity float64) {
	for _, s := range m {
		s.TradeExecuted(symbol, action, price, quantity)
	}
}

func (m multiSink) OperationRejected(operation string, kind boterrors.ErrorKind) {
	for _, s := range m {
		s.OperationRejected(operation, kind)
	}
}

func (m multiSink) InternalFault(operation string) {
	for _, s := range m {
		s.InternalFault(operation)
	}
}

func (m multiSink) EquityUpdated(value, drawdown float64, openPositions int) {
	for _, s := range m {
		s.EquityUpdated(value, drawdown, openPositions)
	}
}

func (m multiSink) SignalProcessed(symbol string, accepted bool) {
	for _, s := range m {
		s.SignalProcessed(symbol, accepted)
	}
}

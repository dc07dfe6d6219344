package observ

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_decisions_total",
			Help: "Signal decisions by terminal status",
		},
		[]string{"status"},
	)

	blocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_blocks_total",
			Help: "Blocked intents by gate reason",
		},
		[]string{"reason"},
	)

	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegate_orders_total",
			Help: "Routed orders by canonical status and algo",
		},
		[]string{"status", "algo"},
	)

	brokerRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradegate_broker_retries_total",
			Help: "Broker call retries after transient failures",
		},
	)

	equityGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradegate_equity_usd",
			Help: "Current account equity snapshot",
		},
	)

	exposureGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradegate_exposure_usd",
			Help: "Gross portfolio exposure",
		},
	)

	drawdownGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradegate_drawdown_pct",
			Help: "Drawdown from peak equity, 0..1",
		},
	)

	consecutiveLosersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradegate_consecutive_losers",
			Help: "Current consecutive losing-trade streak",
		},
	)

	decisionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tradegate_decision_latency_seconds",
			Help:    "End-to-end signal decision latency",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		decisionsTotal, blocksTotal, ordersTotal, brokerRetriesTotal,
		equityGauge, exposureGauge, drawdownGauge, consecutiveLosersGauge,
		decisionLatency,
	)
}

func IncDecision(status string) { decisionsTotal.WithLabelValues(status).Inc() }

func IncBlock(reason string) { blocksTotal.WithLabelValues(reason).Inc() }

func IncOrder(status, algo string) { ordersTotal.WithLabelValues(status, algo).Inc() }

func IncBrokerRetry() { brokerRetriesTotal.Inc() }

func SetEquity(v float64) { equityGauge.Set(v) }

func SetExposure(v float64) { exposureGauge.Set(v) }

func SetDrawdown(v float64) { drawdownGauge.Set(v) }

func SetConsecutiveLosers(n int) { consecutiveLosersGauge.Set(float64(n)) }

func ObserveDecision(d time.Duration) { decisionLatency.Observe(d.Seconds()) }

// Handler serves the Prometheus text exposition format.
func Handler() http.Handler { return promhttp.Handler() }

// Package metrics exposes Prometheus instrumentation for the engine:
//
//	breakout_scans_total                    – instrument scans performed
//	breakout_signals_total                  – breakout signals detected
//	breakout_admission_rejects_total{reason}– admissions rejected, by reason
//	breakout_orders_total{side,outcome}     – market orders, by side and outcome
//	breakout_open_positions                 – currently monitored positions
//	breakout_quote_spent_usdt               – total quote currency spent
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Scans = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "breakout_scans_total",
		Help: "Instrument scans performed",
	})

	Signals = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "breakout_signals_total",
		Help: "Breakout signals detected",
	})

	AdmissionRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_admission_rejects_total",
			Help: "Admissions rejected by the eligibility gate or risk limiter",
		},
		[]string{"reason"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_orders_total",
			Help: "Market orders submitted",
		},
		[]string{"side", "outcome"}, // outcome: filled|failed
	)

	OpenPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "breakout_open_positions",
		Help: "Currently monitored open positions",
	})

	QuoteSpent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "breakout_quote_spent_usdt",
		Help: "Total quote currency spent across active runs",
	})
)

func init() {
	prometheus.MustRegister(
		Scans,
		Signals,
		AdmissionRejects,
		Orders,
		OpenPositions,
		QuoteSpent,
	)
}

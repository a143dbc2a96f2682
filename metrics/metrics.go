// Package metrics exposes ledger and engine activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the portfolio metrics on its own registry, so several
// engines (or tests) never collide on the global one. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	reg *prometheus.Registry

	Cash          prometheus.Gauge
	Equity        prometheus.Gauge
	Heat          prometheus.Gauge
	OpenPositions prometheus.Gauge

	Trades     *prometheus.CounterVec
	Rejections *prometheus.CounterVec

	StepDuration prometheus.Histogram
}

// Options configures New.
type Options struct {
	// Runtime adds the Go and process collectors.
	Runtime bool
}

func New(opts Options) *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),

		Cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_cash",
			Help: "Uninvested cash",
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_equity",
			Help: "Cash plus marked value of open positions",
		}),
		Heat: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_heat",
			Help: "Fraction of portfolio value at risk if every stop is hit",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_open_positions",
			Help: "Number of open positions",
		}),

		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_trades_total",
			Help: "Trades recorded by action and exit reason",
		}, []string{"action", "reason"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_rejections_total",
			Help: "Entry candidates rejected by violation code",
		}, []string{"code"}),

		StepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portfolio_step_duration_seconds",
			Help:    "Duration of one engine step",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}

	r.reg.MustRegister(
		r.Cash, r.Equity, r.Heat, r.OpenPositions,
		r.Trades, r.Rejections, r.StepDuration,
	)
	if opts.Runtime {
		r.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Registry returns the registry the metrics live on.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Book is the portfolio state published after each step.
type Book struct {
	Cash          float64
	Equity        float64
	Heat          float64
	OpenPositions int
}

func (r *Recorder) ObserveBook(b Book) {
	if r == nil {
		return
	}
	r.Cash.Set(b.Cash)
	r.Equity.Set(b.Equity)
	r.Heat.Set(b.Heat)
	r.OpenPositions.Set(float64(b.OpenPositions))
}

// Trade counts one trade leg. Entries have an empty reason.
func (r *Recorder) Trade(action, reason string) {
	if r == nil {
		return
	}
	r.Trades.WithLabelValues(action, reason).Inc()
}

func (r *Recorder) Rejected(code string) {
	if r == nil {
		return
	}
	r.Rejections.WithLabelValues(code).Inc()
}

func (r *Recorder) ObserveStep(d time.Duration) {
	if r == nil {
		return
	}
	r.StepDuration.Observe(d.Seconds())
}

// metrics/metrics.go
// Package metrics exposes the bot's Prometheus collectors:
//
//	captain_grid_phase                   current equity phase
//	captain_grid_balance_usdt            last validated settled balance
//	captain_grid_price                   last observed price
//	captain_grid_paused                  1 while trading is paused
//	captain_grid_consecutive_errors      failed cycles in a row
//	captain_grid_cycles_total{result}    cycles by result (ok|error)
//	captain_grid_trips_total{reason}     pauses by reason
//	captain_grid_resumes_total{mode}     resumes (stable|forced)
//	captain_grid_orders_total{outcome}   ladder orders (placed|suppressed|failed)
//	captain_grid_levels_total{outcome}   ladder levels (forced|skipped)
//	captain_grid_rebalances_total        ladder replacements
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "captain_grid"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	phase             prometheus.Gauge
	balance           prometheus.Gauge
	price             prometheus.Gauge
	paused            prometheus.Gauge
	consecutiveErrors prometheus.Gauge
	cycles            *prometheus.CounterVec
	trips             *prometheus.CounterVec
	resumes           *prometheus.CounterVec
	orders            *prometheus.CounterVec
	levels            *prometheus.CounterVec
	rebalances        prometheus.Counter
}

// New creates and registers all collectors, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "phase",
			Help: "Current equity phase.",
		}),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "balance_usdt",
			Help: "Last validated settled balance in USDT.",
		}),
		price: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "price",
			Help: "Last observed instrument price.",
		}),
		paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "paused",
			Help: "1 while trading is paused, 0 while active.",
		}),
		consecutiveErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "consecutive_errors",
			Help: "Number of failed cycles in a row.",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Control cycles by result.",
		}, []string{"result"}),
		trips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "trips_total",
			Help: "Trading pauses by reason.",
		}, []string{"reason"}),
		resumes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "resumes_total",
			Help: "Trading resumes by mode.",
		}, []string{"mode"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_total",
			Help: "Ladder orders by outcome.",
		}, []string{"outcome"}),
		levels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "levels_total",
			Help: "Ladder levels by planner outcome.",
		}, []string{"outcome"}),
		rebalances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rebalances_total",
			Help: "Ladder replacements.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.phase, m.balance, m.price, m.paused, m.consecutiveErrors,
		m.cycles, m.trips, m.resumes, m.orders, m.levels, m.rebalances,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// All setters accept a nil receiver so callers can run without metrics.

func (m *Metrics) SetPhase(phase int) {
	if m != nil {
		m.phase.Set(float64(phase))
	}
}

func (m *Metrics) SetBalance(balance float64) {
	if m != nil {
		m.balance.Set(balance)
	}
}

func (m *Metrics) SetPrice(price float64) {
	if m != nil {
		m.price.Set(price)
	}
}

func (m *Metrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
	} else {
		m.paused.Set(0)
	}
}

func (m *Metrics) SetConsecutiveErrors(n int) {
	if m != nil {
		m.consecutiveErrors.Set(float64(n))
	}
}

// ObserveCycle counts a finished cycle.
func (m *Metrics) ObserveCycle(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.cycles.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTrip(reason string) {
	if m != nil {
		m.trips.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ObserveResume(forced bool) {
	if m == nil {
		return
	}
	mode := "stable"
	if forced {
		mode = "forced"
	}
	m.resumes.WithLabelValues(mode).Inc()
}

// ObservePlacement records one ladder replacement.
func (m *Metrics) ObservePlacement(placed, suppressed, failed, forced, skipped int) {
	if m == nil {
		return
	}
	m.rebalances.Inc()
	m.orders.WithLabelValues("placed").Add(float64(placed))
	m.orders.WithLabelValues("suppressed").Add(float64(suppressed))
	m.orders.WithLabelValues("failed").Add(float64(failed))
	m.levels.WithLabelValues("forced").Add(float64(forced))
	m.levels.WithLabelValues("skipped").Add(float64(skipped))
}

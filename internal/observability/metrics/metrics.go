package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the labels stamped on every metric.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics exposes application-level instruments for the reservation
// ledger and the live-sale pipeline.
type Metrics struct {
	reservationsOpened    *prometheus.CounterVec
	reservationsCommitted prometheus.Counter
	reservationsReleased  prometheus.Counter
	claimsStaged          *prometheus.CounterVec
	itemsFinalized        prometheus.Counter
	finalizeFailures      prometheus.Counter
}

func New(cfg Config) *Metrics {
	return NewWithRegisterer(cfg, prometheus.DefaultRegisterer)
}

func NewWithRegisterer(cfg Config, registerer prometheus.Registerer) *Metrics {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "streamcart"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	reservationsOpened := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "streamcart_reservations_opened_total",
		Help:        "Reservations opened by source type.",
		ConstLabels: constLabels,
	}, []string{"source_type"})
	reservationsCommitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "streamcart_reservations_committed_total",
		Help:        "Reservations committed (held stock turned into sold stock).",
		ConstLabels: constLabels,
	})
	reservationsReleased := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "streamcart_reservations_released_total",
		Help:        "Reservations released (held stock freed).",
		ConstLabels: constLabels,
	})
	claimsStaged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "streamcart_live_claims_staged_total",
		Help:        "Viewer claims staged during live broadcasts by item source.",
		ConstLabels: constLabels,
	}, []string{"source_type"})
	itemsFinalized := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "streamcart_live_items_finalized_total",
		Help:        "Staged line items migrated into durable orders.",
		ConstLabels: constLabels,
	})
	finalizeFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "streamcart_live_finalize_failures_total",
		Help:        "Finalization batches rolled back.",
		ConstLabels: constLabels,
	})

	if registerer != nil {
		registerer.MustRegister(
			reservationsOpened,
			reservationsCommitted,
			reservationsReleased,
			claimsStaged,
			itemsFinalized,
			finalizeFailures,
		)
	}

	return &Metrics{
		reservationsOpened:    reservationsOpened,
		reservationsCommitted: reservationsCommitted,
		reservationsReleased:  reservationsReleased,
		claimsStaged:          claimsStaged,
		itemsFinalized:        itemsFinalized,
		finalizeFailures:      finalizeFailures,
	}
}

func (m *Metrics) ReservationOpened(sourceType string) {
	if m == nil {
		return
	}
	m.reservationsOpened.WithLabelValues(sourceType).Inc()
}

func (m *Metrics) ReservationsCommitted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reservationsCommitted.Add(float64(n))
}

func (m *Metrics) ReservationsReleased(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reservationsReleased.Add(float64(n))
}

func (m *Metrics) ClaimStaged(sourceType string) {
	if m == nil {
		return
	}
	m.claimsStaged.WithLabelValues(sourceType).Inc()
}

func (m *Metrics) ItemsFinalized(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.itemsFinalized.Add(float64(n))
}

func (m *Metrics) FinalizeFailed() {
	if m == nil {
		return
	}
	m.finalizeFailures.Inc()
}

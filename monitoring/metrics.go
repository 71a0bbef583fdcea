package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	holdOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hold_operations_total",
			Help: "Hold lifecycle operations by result",
		},
		[]string{"operation", "tier_id", "result"},
	)

	checkoutOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_outcomes_total",
			Help: "Completed checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	checkInOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_outcomes_total",
			Help: "Ticket scan attempts by result",
		},
		[]string{"result"},
	)

	tierAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tier_available_tickets",
			Help: "Current available count per price tier",
		},
		[]string{"tier_id"},
	)

	paymentCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_call_duration_seconds",
			Help:    "Duration of calls to the payment provider",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"provider", "call"},
	)
)

// AvailabilityReader is the slice of the inventory ledger the monitor needs.
type AvailabilityReader interface {
	Snapshot(ctx context.Context, tierID string) (int64, error)
}

type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// Watch refreshes the per-tier availability gauges until ctx is cancelled.
// Snapshot reads may be briefly stale; the gauges are display-only.
func (m *Monitor) Watch(ctx context.Context, ledger AvailabilityReader, tierIDs []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, tierID := range tierIDs {
				available, err := ledger.Snapshot(ctx, tierID)
				if err != nil {
					continue
				}
				tierAvailable.WithLabelValues(tierID).Set(float64(available))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) TrackHoldOperation(operation, tierID, result string) {
	holdOperations.WithLabelValues(operation, tierID, result).Inc()
}

func (m *Monitor) TrackCheckout(outcome string) {
	checkoutOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Monitor) TrackCheckIn(result string) {
	checkInOutcomes.WithLabelValues(result).Inc()
}

func (m *Monitor) TrackPaymentCall(provider, call string, duration time.Duration) {
	paymentCallDuration.WithLabelValues(provider, call).Observe(duration.Seconds())
}

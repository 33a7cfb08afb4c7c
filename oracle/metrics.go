package oracle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the oracle simulator.
type Metrics struct {
	// Oracles that hold indexes after registration
	Registered prometheus.Gauge

	// Request events by result: handled, duplicate, unassigned, failed
	Requests *prometheus.CounterVec

	// Final outcome of each oracle response by outcome and status code
	Responses *prometheus.CounterVec

	// Terminal rejections by contract error code
	Rejections *prometheus.CounterVec

	// Every submission attempt, retries included
	Attempts prometheus.Counter

	SubmitLatency prometheus.Histogram
}

// NewMetrics creates the simulator metrics on reg. A nil reg registers nothing, which
// lets several simulators coexist in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registered: f.NewGauge(prometheus.GaugeOpts{
			Name: "flightsurety_oracle_registered",
			Help: "Number of simulated oracles registered on the ledger",
		}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsurety_oracle_requests_total",
			Help: "Oracle request events consumed by result",
		}, []string{"result"}),
		Responses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsurety_oracle_responses_total",
			Help: "Oracle responses by final outcome and reported status",
		}, []string{"outcome", "status"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flightsurety_oracle_rejections_total",
			Help: "Responses refused by the contract, by error code",
		}, []string{"code"}),
		Attempts: f.NewCounter(prometheus.CounterOpts{
			Name: "flightsurety_oracle_submit_attempts_total",
			Help: "Submission attempts including retries",
		}),
		SubmitLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "flightsurety_oracle_submit_duration_seconds",
			Help:    "Duration of a single response submission",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) setRegistered(n int) {
	if m != nil {
		m.Registered.Set(float64(n))
	}
}

func (m *Metrics) incRequest(result string) {
	if m != nil {
		m.Requests.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) incResponse(outcome, status string) {
	if m != nil {
		m.Responses.WithLabelValues(outcome, status).Inc()
	}
}

func (m *Metrics) incRejection(code string) {
	if m != nil {
		m.Rejections.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) observeAttempt(d time.Duration) {
	if m != nil {
		m.Attempts.Inc()
		m.SubmitLatency.Observe(d.Seconds())
	}
}

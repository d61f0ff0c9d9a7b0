package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the domain counters. A nil *Metrics records nothing.
type Metrics struct {
	sweepOutcomes    *prometheus.CounterVec
	projectClaims    prometheus.Counter
	milestonePayouts *prometheus.CounterVec
	pointsCredited   *prometheus.CounterVec
	uploadsSubmitted *prometheus.CounterVec
}

// NewMetrics builds the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sweepOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ecoenzim",
				Subsystem: "sweeper",
				Name:      "projects_total",
				Help:      "Expired projects processed by the sweeper, by outcome.",
			},
			[]string{"outcome"},
		),
		projectClaims: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ecoenzim",
				Subsystem: "projects",
				Name:      "claims_total",
				Help:      "Successful project claims.",
			},
		),
		milestonePayouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ecoenzim",
				Subsystem: "rewards",
				Name:      "milestone_payouts_total",
				Help:      "Milestone rewards paid out, by reward code.",
			},
			[]string{"code"},
		),
		pointsCredited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ecoenzim",
				Subsystem: "ledger",
				Name:      "points_credited_total",
				Help:      "Points credited to user balances, by source.",
			},
			[]string{"source"},
		),
		uploadsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ecoenzim",
				Subsystem: "uploads",
				Name:      "submitted_total",
				Help:      "Evidence uploads accepted, by kind.",
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.sweepOutcomes, m.projectClaims, m.milestonePayouts, m.pointsCredited, m.uploadsSubmitted)
	}
	return m
}

func (m *Metrics) sweepOutcome(outcome string) {
	if m == nil {
		return
	}
	m.sweepOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) projectClaimed() {
	if m == nil {
		return
	}
	m.projectClaims.Inc()
}

func (m *Metrics) milestonePaid(code string) {
	if m == nil {
		return
	}
	m.milestonePayouts.WithLabelValues(code).Inc()
}

func (m *Metrics) pointsAdded(source string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.pointsCredited.WithLabelValues(source).Add(float64(amount))
}

func (m *Metrics) uploadSubmitted(kind string) {
	if m == nil {
		return
	}
	m.uploadsSubmitted.WithLabelValues(kind).Inc()
}

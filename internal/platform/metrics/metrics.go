package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the voting engine.
type Metrics struct {
	VotesCast            prometheus.Counter
	VotesRejected        *prometheus.CounterVec
	VotesInvalidated     prometheus.Counter
	LifecycleTransitions *prometheus.CounterVec
	CastDuration         prometheus.Histogram
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		VotesCast: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agora_votes_cast_total",
			Help: "Total number of ballots recorded.",
		}),
		VotesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_votes_rejected_total",
			Help: "Total number of rejected vote attempts by reason code.",
		}, []string{"reason"}),
		VotesInvalidated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agora_votes_invalidated_total",
			Help: "Total number of administratively invalidated votes.",
		}),
		LifecycleTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_election_transitions_total",
			Help: "Total number of election lifecycle transitions by kind.",
		}, []string{"kind"}),
		CastDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "agora_vote_cast_duration_seconds",
			Help:    "Latency of the vote-cast transaction.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

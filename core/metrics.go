package core

import "github.com/prometheus/client_golang/prometheus"

// Diagnostic counters. These exist purely for external observability (§7:
// parse errors are "counted in a diagnostic metric") — they never influence
// consensus-relevant control flow and a scrape failure can never affect
// block processing.
var (
	envelopesParsed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crvm",
		Name:      "envelopes_total",
		Help:      "Envelopes observed during block connection, by outcome.",
	}, []string{"outcome"})

	dispatchedOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crvm",
		Name:      "dispatched_total",
		Help:      "Envelopes successfully dispatched to a subsystem handler, by op type.",
	}, []string{"op"})

	votesSlashed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "crvm",
		Name:      "votes_slashed_total",
		Help:      "Bonded votes transitioned to slashed.",
	})

	storeCorruption = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "crvm",
		Name:      "store_corruption_total",
		Help:      "Reads that failed deserialization or index-consistency checks and were treated as absent.",
	})
)

func init() {
	prometheus.MustRegister(envelopesParsed, dispatchedOps, votesSlashed, storeCorruption)
}

const (
	outcomeAccepted = "accepted"
	outcomeInert    = "inert"
	outcomeMalformed = "malformed"
	outcomeUnderbonded = "underbonded"
)

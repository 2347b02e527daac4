package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	corpusEngine = "corpus_engine"

	providerCallsTotal    = "provider_calls_total"
	providerBackoffsTotal = "provider_backoffs_total"
	recordsDeletedTotal   = "records_deleted_total"
	jobPhase              = "job_phase"

	// Labels
	kindLabel       = "kind"
	outcomeLabel    = "outcome"
	reasonLabel     = "reason"
	collectionLabel = "collection"
	phaseLabel      = "phase"
)

/**
* Metrics definition
**/
var providerCallsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: corpusEngine,
		Name:      providerCallsTotal,
		Help:      "number of keyword-data provider calls by kind and outcome",
	},
	[]string{kindLabel, outcomeLabel},
)

var providerBackoffsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: corpusEngine,
		Name:      providerBackoffsTotal,
		Help:      "number of backoff sleeps taken by the rate-limited executor",
	},
	[]string{kindLabel, reasonLabel},
)

var recordsDeletedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: corpusEngine,
		Name:      recordsDeletedTotal,
		Help:      "number of records deleted by the bulk deletion engine",
	},
	[]string{collectionLabel},
)

var jobPhaseMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: corpusEngine,
		Name:      jobPhase,
		Help:      "1 for the phase the current reset-rebuild job is in, 0 otherwise",
	},
	[]string{phaseLabel},
)

func IncreaseProviderCall(kind, outcome string) {
	providerCallsTotalMetric.With(prometheus.Labels{
		kindLabel:    kind,
		outcomeLabel: outcome,
	}).Inc()
}

func IncreaseProviderBackoff(kind, reason string) {
	providerBackoffsTotalMetric.With(prometheus.Labels{
		kindLabel:   kind,
		reasonLabel: reason,
	}).Inc()
}

func AddRecordsDeleted(collection string, n int) {
	recordsDeletedTotalMetric.With(prometheus.Labels{
		collectionLabel: collection,
	}).Add(float64(n))
}

func SetJobPhase(phase string, phases []string) {
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1.0
		}
		jobPhaseMetric.With(prometheus.Labels{phaseLabel: p}).Set(v)
	}
}

func RegisterMetrics() {
	prometheus.MustRegister(providerCallsTotalMetric)
	prometheus.MustRegister(providerBackoffsTotalMetric)
	prometheus.MustRegister(recordsDeletedTotalMetric)
	prometheus.MustRegister(jobPhaseMetric)
}

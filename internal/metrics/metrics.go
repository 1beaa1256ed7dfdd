// Package metrics provides Prometheus metrics for docstore components.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// documentWritesTotal counts store writes.
	// Labels:
	//   - op: put, merge, delete
	//   - outcome: ok, conflict, gone, not_found, error
	documentWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_document_writes_total",
			Help: "Total number of document writes by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	// mergeSkippedTotal counts candidate bodies left out of a merge.
	// Labels:
	//   - reason: missing_id, id_mismatch, unhashable
	mergeSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_merge_skipped_total",
			Help: "Total number of candidate bodies skipped during merges",
		},
		[]string{"reason"},
	)

	// documentConflicts observes the standing conflict count after each write.
	documentConflicts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docstore_document_conflicts",
			Help:    "Number of standing conflicts on a document after a write",
			Buckets: []float64{0, 1, 2, 5, 10, 50},
		},
	)

	// readRepairsTotal counts replica repairs.
	// Labels:
	//   - outcome: repaired, failed, skipped
	readRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_read_repairs_total",
			Help: "Total number of replica read repairs by outcome",
		},
		[]string{"outcome"},
	)

	// rpcRequestsTotal counts Documents service calls.
	// Labels:
	//   - method: Get, Put, Merge, Delete
	//   - status: response status string
	rpcRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_rpc_requests_total",
			Help: "Total number of Documents RPCs by method and status",
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(documentWritesTotal)
	prometheus.MustRegister(mergeSkippedTotal)
	prometheus.MustRegister(documentConflicts)
	prometheus.MustRegister(readRepairsTotal)
	prometheus.MustRegister(rpcRequestsTotal)
}

// RecordWrite records a store write.
func RecordWrite(op, outcome string) {
	documentWritesTotal.WithLabelValues(op, outcome).Inc()
}

// RecordSkipped records a candidate skipped by a merge.
func RecordSkipped(reason string) {
	mergeSkippedTotal.WithLabelValues(reason).Inc()
}

// ObserveConflicts records the conflict count of a document after a write.
func ObserveConflicts(n int) {
	documentConflicts.Observe(float64(n))
}

// RecordReadRepair records the outcome of repairing one replica.
func RecordReadRepair(outcome string) {
	readRepairsTotal.WithLabelValues(outcome).Inc()
}

// RecordRequest records a Documents RPC.
func RecordRequest(method, status string) {
	rpcRequestsTotal.WithLabelValues(method, status).Inc()
}

package repair

import (
	"fmt"

	"docstore/internal/document"
)

// ReconcileResult represents the result of reconciling replica copies.
type ReconcileResult struct {
	// Winner is the merged document, carrying any conflicts and history in
	// "_meta". It is nil when no replica had the document.
	Winner document.Body

	// Stale maps replica identifier to the body it returned, for replicas
	// whose copy differs from Winner. Replicas that lacked the document map
	// to nil.
	Stale map[string]document.Body

	// Skipped lists copies the merge refused, such as bodies for another id.
	Skipped []document.Skipped
}

// Reconcile merges the bodies returned by replicas for one document.
// replicaIDs should correspond 1:1 with bodies; a nil body means the replica
// does not have the document.
func Reconcile(bodies []document.Body, replicaIDs []string, opts ...document.Option) ReconcileResult {
	result := ReconcileResult{Stale: make(map[string]document.Body)}
	if len(bodies) == 0 {
		return result
	}

	if len(replicaIDs) != len(bodies) {
		replicaIDs = make([]string, len(bodies))
		for i := range replicaIDs {
			replicaIDs[i] = fmt.Sprintf("replica-%d", i)
		}
	}

	acc := document.NewAccumulator(opts...)
	found := false
	for _, body := range bodies {
		if body == nil {
			continue
		}
		if acc.Add(body, false) {
			found = true
		}
	}
	result.Skipped = acc.Skipped()
	if !found {
		return result
	}

	result.Winner = acc.Finalize()
	for i, body := range bodies {
		if !sameState(body, result.Winner) {
			result.Stale[replicaIDs[i]] = body
		}
	}
	return result
}

// sameState reports whether a replica copy already matches the winner.
func sameState(body, winner document.Body) bool {
	if body == nil {
		return false
	}
	got, ok := body.Rev()
	want, _ := winner.Rev()
	if !ok || !got.Equal(want) {
		return false
	}
	return document.NewRecord(body).ConflictCount() == document.NewRecord(winner).ConflictCount()
}

// HasConflict returns true if the winner carries standing conflicts.
func (r *ReconcileResult) HasConflict() bool {
	return r.Winner != nil && document.NewRecord(r.Winner).ConflictCount() > 0
}

// IsNotFound returns true if no replica had a live copy of the document.
func (r *ReconcileResult) IsNotFound() bool {
	return r.Winner == nil || r.Winner.Deleted()
}

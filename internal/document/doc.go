// Package document implements the merge engine for replicated document
// bodies. An Accumulator combines any number of candidate bodies (local,
// replicated, previously recorded conflicts and history) into one winner with
// explicit conflicts and a bounded revision history. Record wraps a single
// logical document and exposes validate, merge and optimistic update on top of
// it.
//
// Nothing in this package is safe for concurrent use; callers serialize
// operations per document identity.
package document

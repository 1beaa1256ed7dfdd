// Package revision provides deterministic revision identifiers for documents.
// A revision pairs an update count with a truncated content hash, giving every
// document body an order-independent fingerprint and a totally ordered version
// that replicas can compare to detect causality and convergence.
package revision

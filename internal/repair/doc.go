// Package repair reconciles the copies of one document returned by several
// replicas. It merges them through the revision merge engine into a single
// winner and identifies replicas holding a different revision, which are then
// brought up to date by asynchronous read repair.
package repair

// Package quorum fans a request out to a set of peer replicas and checks
// that enough of them answered. Nodes use it to collect peer copies before
// reconciling a document and to push writes to their peers.
package quorum

// Package storage provides the local document storage interface and its
// in-memory implementation. Each document is held as a document.Record, so
// every write goes through the revision merge rules: optimistic updates are
// refused when they would add conflicts, replicated bodies are always merged.
package storage

package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"docstore/internal/document"
	"docstore/internal/metrics"
	"docstore/internal/revision"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when a write would create a new conflict.
	ErrConflict = errors.New("document update conflict")
	// ErrGone is returned when writing to a globally deleted document.
	ErrGone = errors.New("document globally deleted")
)

// stripes is the number of per-identity write locks.
const stripes = 64

// Store defines the interface for document storage.
type Store interface {
	// Get returns a copy of the current body, or nil if the document was
	// never written. Tombstones are returned as bodies.
	Get(id string) document.Body
	// Put applies an optimistic write. A body without "_id" is assigned a
	// fresh identity. Returns the stored body.
	Put(body document.Body) (document.Body, error)
	// Merge folds a replicated body, including its "_meta", into the
	// document unconditionally. Returns the stored body.
	Merge(body document.Body) (document.Body, error)
	// Delete writes a tombstone over revision rev ("" means the current
	// one). global marks the document permanently deleted.
	Delete(id, rev string, global bool) (document.Body, error)
	// IDs lists the stored document identities in ascending order.
	IDs() []string
}

// InMemoryStore is an in-memory implementation of Store.
// It's thread-safe; writes to one identity are serialized.
type InMemoryStore struct {
	mu    sync.RWMutex
	data  map[string]*document.Record
	locks [stripes]sync.Mutex
	opts  []document.Option
}

// NewInMemoryStore creates a new in-memory store. opts are applied to every
// document record it creates.
func NewInMemoryStore(opts ...document.Option) *InMemoryStore {
	return &InMemoryStore{
		data: make(map[string]*document.Record),
		opts: opts,
	}
}

func (s *InMemoryStore) lock(id string) *sync.Mutex {
	return &s.locks[xxhash.Sum64String(id)%stripes]
}

func (s *InMemoryStore) record(id string) *document.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[id]
}

func (s *InMemoryStore) recordOrNew(id string) *document.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok {
		rec = document.NewRecord(nil, s.opts...)
		s.data[id] = rec
	}
	return rec
}

// Get retrieves a document by id.
func (s *InMemoryStore) Get(id string) document.Body {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	rec := s.record(id)
	if rec == nil || rec.IsEmpty() {
		return nil
	}
	return rec.Body()
}

// Put stores body as a new revision of its document.
func (s *InMemoryStore) Put(body document.Body) (document.Body, error) {
	if body == nil {
		metrics.RecordWrite("put", "error")
		return nil, fmt.Errorf("put: %w", document.ErrNotObject)
	}
	if _, err := revision.Digest(body); err != nil {
		metrics.RecordWrite("put", "error")
		return nil, fmt.Errorf("put: %w", err)
	}

	id := body.ID()
	if id == "" {
		body = body.Clone()
		id = document.NewRecord(nil, s.opts...).ID()
		body[document.KeyID] = id
	}

	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	rec := s.recordOrNew(id)
	if rec.GloballyDeleted() {
		metrics.RecordWrite("put", "gone")
		return nil, fmt.Errorf("put %s: %w", id, ErrGone)
	}
	if !rec.Update(body) {
		metrics.RecordWrite("put", "conflict")
		return nil, fmt.Errorf("put %s: %w", id, ErrConflict)
	}
	s.observe("put", rec)
	return rec.Body(), nil
}

// Merge folds a replicated body into its document.
func (s *InMemoryStore) Merge(body document.Body) (document.Body, error) {
	id := body.ID()
	if id == "" {
		metrics.RecordWrite("merge", "error")
		return nil, fmt.Errorf("merge: missing %s", document.KeyID)
	}
	if _, err := revision.Digest(body); err != nil {
		metrics.RecordWrite("merge", "error")
		return nil, fmt.Errorf("merge %s: %w", id, err)
	}

	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	rec := s.recordOrNew(id)
	rec.Merge(body)
	s.observe("merge", rec)
	return rec.Body(), nil
}

// Delete writes a tombstone for id.
func (s *InMemoryStore) Delete(id, rev string, global bool) (document.Body, error) {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	rec := s.record(id)
	if rec == nil || rec.IsEmpty() {
		metrics.RecordWrite("delete", "not_found")
		return nil, fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	if rec.GloballyDeleted() {
		metrics.RecordWrite("delete", "gone")
		return nil, fmt.Errorf("delete %s: %w", id, ErrGone)
	}

	current, _ := rec.Rev()
	if rev != "" && !revision.Parse(rev).Equal(current) {
		metrics.RecordWrite("delete", "conflict")
		return nil, fmt.Errorf("delete %s at %s (current %s): %w", id, rev, current, ErrConflict)
	}

	tombstone := document.Body{
		document.KeyID:      id,
		document.KeyRev:     current.String(),
		document.KeyDeleted: global,
	}
	if !rec.Update(tombstone) {
		metrics.RecordWrite("delete", "conflict")
		return nil, fmt.Errorf("delete %s: %w", id, ErrConflict)
	}
	// a body without content keys hashes like its own tombstone
	if !rec.Deleted() {
		metrics.RecordWrite("delete", "conflict")
		return nil, fmt.Errorf("delete %s: tombstone matches current content: %w", id, ErrConflict)
	}
	s.observe("delete", rec)
	return rec.Body(), nil
}

// IDs lists stored document identities.
func (s *InMemoryStore) IDs() []string {
	s.mu.RLock()
	records := make(map[string]*document.Record, len(s.data))
	for id, rec := range s.data {
		records[id] = rec
	}
	s.mu.RUnlock()

	// writers hold the id lock before s.mu, so records are checked after
	// releasing it
	ids := make([]string, 0, len(records))
	for id, rec := range records {
		l := s.lock(id)
		l.Lock()
		empty := rec.IsEmpty()
		l.Unlock()
		if !empty {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *InMemoryStore) observe(op string, rec *document.Record) {
	for _, skipped := range rec.Skipped() {
		metrics.RecordSkipped(string(skipped.Reason))
	}
	metrics.RecordWrite(op, "ok")
	metrics.ObserveConflicts(rec.ConflictCount())
}

package document

import (
	"fmt"

	"docstore/internal/revision"
)

// Record owns the current body of one logical document.
type Record struct {
	body    Body
	empty   bool
	opts    options
	skipped []Skipped
}

// NewRecord wraps body. A nil body yields an empty record whose first write
// initializes it.
func NewRecord(body Body, opts ...Option) *Record {
	r := &Record{body: body, opts: buildOptions(opts)}
	if body == nil {
		r.body = Body{}
		r.empty = true
	}
	return r
}

// NewRecordFrom builds a record from a Body, a map, JSON text or nil. Any other
// input, or JSON that is not an object, fails with ErrNotObject.
func NewRecordFrom(v any, opts ...Option) (*Record, error) {
	body, err := AsBody(v)
	if err != nil {
		return nil, err
	}
	return NewRecord(body, opts...), nil
}

// ID returns the document identity. When the body has none, a new identifier
// is generated and stored in the body; this is the only accessor with a side
// effect.
func (r *Record) ID() string {
	id := r.body.ID()
	if id == "" {
		id = r.opts.newID()
		r.body[KeyID] = id
	}
	return id
}

// Rev returns the current revision, and false if none was ever assigned.
func (r *Record) Rev() (revision.ID, bool) {
	return r.body.Rev()
}

// IsEmpty reports whether the record has not been written yet.
func (r *Record) IsEmpty() bool {
	return r.empty
}

// Deleted reports whether the current body is a tombstone.
func (r *Record) Deleted() bool {
	return r.body.Deleted()
}

// GloballyDeleted reports whether the current body is a terminal tombstone.
func (r *Record) GloballyDeleted() bool {
	return r.body.GloballyDeleted()
}

// ConflictCount returns the number of standing conflicts.
func (r *Record) ConflictCount() int {
	return conflictCount(r.body)
}

// Conflicts returns copies of the conflicting bodies.
func (r *Record) Conflicts() []Body {
	conflicts := metaConflicts(r.body.meta())
	for i := range conflicts {
		conflicts[i] = conflicts[i].Clone()
	}
	return conflicts
}

// History returns the superseded revisions, oldest first.
func (r *Record) History() []revision.ID {
	return metaHistory(r.body.meta())
}

// Body returns a deep copy of the current body.
func (r *Record) Body() Body {
	return r.body.Clone()
}

// Skipped returns the candidates the last operation refused to merge.
func (r *Record) Skipped() []Skipped {
	return append([]Skipped(nil), r.skipped...)
}

// Validate assigns an identity if needed and runs the body through a
// single-input merge, recomputing its revision and normalizing "_meta".
func (r *Record) Validate() error {
	id := r.ID()

	acc := r.newAccumulator()
	acc.Add(r.body, false)
	r.skipped = acc.Skipped()
	for _, s := range r.skipped {
		if s.Err != nil {
			return fmt.Errorf("validate document %s: %w", id, s.Err)
		}
	}

	r.body = acc.Finalize()
	r.empty = false
	return nil
}

// Merge unconditionally merges other into the record. It reports whether the
// record had content before the merge.
func (r *Record) Merge(other Body) bool {
	hadContent := !r.empty

	acc := r.newAccumulator()
	if hadContent {
		acc.Add(r.body, false)
	}
	acc.Add(other, false)

	r.body = acc.Finalize()
	r.skipped = acc.Skipped()
	r.empty = false
	return hadContent
}

// Update merges other as an optimistic write. Only the content of other is
// considered; its "_meta" is ignored. If the merge would raise the number of
// conflicts the record is left untouched and Update returns false.
//
// On an empty record a body without "_id" is skipped (see Skipped) and the
// record becomes an id-less tombstone; Update still returns true. Callers that
// need an identity set "_id" first, as storage does.
func (r *Record) Update(other Body) bool {
	acc := r.newAccumulator()

	if r.empty {
		acc.Add(other, true)
		r.body = acc.Finalize()
		r.skipped = acc.Skipped()
		r.empty = false
		return true
	}

	original := r.ConflictCount()
	acc.Add(r.body, false)
	acc.Add(other, true)
	merged := acc.Finalize()
	r.skipped = acc.Skipped()

	if n := conflictCount(merged); n > original {
		r.opts.logger.Debug("update rejected: would add conflicts",
			"doc_id", r.body.ID(), "conflicts", original, "after_merge", n)
		return false
	}

	r.body = merged
	return true
}

func (r *Record) newAccumulator() *Accumulator {
	return &Accumulator{
		opts:       r.opts,
		liveHashes: make(map[string]uint64),
		history:    make(map[string]revision.ID),
	}
}

func conflictCount(body Body) int {
	return len(asList(body.meta()[KeyConflicts]))
}

package document

import (
	"sort"

	"docstore/internal/revision"
)

// SkipReason explains why a candidate body was left out of a merge.
type SkipReason string

const (
	// SkipReasonMissingID marks a body without an "_id".
	SkipReasonMissingID SkipReason = "missing_id"
	// SkipReasonIDMismatch marks a body belonging to another document.
	SkipReasonIDMismatch SkipReason = "id_mismatch"
	// SkipReasonUnhashable marks a body whose content could not be hashed.
	SkipReasonUnhashable SkipReason = "unhashable"
)

// Skipped describes a candidate that an Accumulator refused to merge.
type Skipped struct {
	ID     string
	Rev    string
	Reason SkipReason
	Err    error
}

type candidate struct {
	body Body
	rev  revision.ID
}

// Accumulator collects candidate bodies for one document and finalizes them
// into a single winner. It is single-use: create one per merge.
type Accumulator struct {
	opts options
	id   string

	live       []candidate
	liveHashes map[string]uint64 // hash -> highest update count seen
	history    map[string]revision.ID

	maxUpdateCount  uint64
	lastRev         revision.ID
	hasLastRev      bool
	lastHistorySize int

	skipped []Skipped
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator(opts ...Option) *Accumulator {
	return &Accumulator{
		opts:       buildOptions(opts),
		liveHashes: make(map[string]uint64),
		history:    make(map[string]revision.ID),
	}
}

// ID returns the identity the accumulator merges for, or "" before any body
// with an "_id" was added.
func (a *Accumulator) ID() string {
	return a.id
}

// MaxUpdateCount returns the highest update count seen among live candidates
// and history entries.
func (a *Accumulator) MaxUpdateCount() uint64 {
	return a.maxUpdateCount
}

// Skipped returns the candidates rejected so far.
func (a *Accumulator) Skipped() []Skipped {
	return append([]Skipped(nil), a.skipped...)
}

// Add feeds a candidate body. The caller's map is not modified. Metadata
// carried in "_meta" (history and conflicts) is folded in unless ignoreMeta
// is set; conflicts are added as leaves with their own metadata ignored.
// Add reports whether the body was accepted.
func (a *Accumulator) Add(body Body, ignoreMeta bool) bool {
	if a.id == "" {
		a.id = body.ID()
	}

	doc, meta := body.withoutMeta()
	rev, ok := a.addRevision(doc)
	if !ok || ignoreMeta || meta == nil {
		return ok
	}

	for _, h := range metaHistory(meta) {
		a.addHistory(h)
	}
	for _, conflict := range metaConflicts(meta) {
		a.Add(conflict, true)
	}

	if !a.hasLastRev {
		a.lastRev = rev
		a.hasLastRev = true
		a.lastHistorySize = len(asList(meta[KeyHistory]))
	}
	return true
}

func (a *Accumulator) addRevision(doc Body) (revision.ID, bool) {
	id := doc.ID()
	if id == "" {
		a.skip(doc, SkipReasonMissingID, nil)
		return revision.ID{}, false
	}
	if id != a.id {
		a.skip(doc, SkipReasonIDMismatch, nil)
		return revision.ID{}, false
	}

	rev, replaced, err := revision.Compute(doc)
	if err != nil {
		a.skip(doc, SkipReasonUnhashable, err)
		return revision.ID{}, false
	}
	if !replaced.IsZero() {
		a.addHistory(replaced)
	}

	if seen, ok := a.liveHashes[rev.Hash]; !ok || seen < rev.UpdateCount {
		a.live = append(a.live, candidate{body: doc, rev: rev})
		a.liveHashes[rev.Hash] = rev.UpdateCount
		if a.maxUpdateCount < rev.UpdateCount {
			a.maxUpdateCount = rev.UpdateCount
		}
	}
	return rev, true
}

func (a *Accumulator) addHistory(rev revision.ID) {
	a.history[rev.String()] = rev
	if a.maxUpdateCount < rev.UpdateCount {
		a.maxUpdateCount = rev.UpdateCount
	}
}

func (a *Accumulator) skip(doc Body, reason SkipReason, err error) {
	s := Skipped{ID: doc.ID(), Reason: reason, Err: err}
	if rev, ok := doc.Rev(); ok {
		s.Rev = rev.String()
	}
	a.skipped = append(a.skipped, s)

	attrs := []any{"doc_id", s.ID, "expected_id", a.id, "rev", s.Rev, "reason", string(reason)}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	a.opts.logger.Warn("merge ignoring document", attrs...)
}

// Finalize picks the winner among the accumulated candidates and returns it
// with "_meta" populated from the remaining conflicts and the history.
func (a *Accumulator) Finalize() Body {
	survivors := make([]candidate, 0, len(a.live))
	for _, c := range a.live {
		// the same content was rewritten later under a higher update count
		if a.liveHashes[c.rev.Hash] != c.rev.UpdateCount {
			a.addHistory(c.rev)
			continue
		}
		if _, superseded := a.history[c.rev.String()]; superseded {
			continue
		}
		survivors = append(survivors, c)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return revision.Compare(survivors[i].rev, survivors[j].rev) < 0
	})

	var winner candidate
	if n := len(survivors); n > 0 {
		winner = survivors[n-1]
		survivors = survivors[:n-1]
	} else {
		winner = a.tombstone()
	}

	conflicts := make([]any, 0, len(survivors))
	for _, c := range survivors {
		if !c.body.Deleted() {
			conflicts = append(conflicts, map[string]any(c.body))
		}
	}

	history := make([]revision.ID, 0, len(a.history)+1)
	for _, rev := range a.history {
		history = append(history, rev)
	}
	revision.Sort(history)

	// every visible change must show up as a new revision
	if a.hasLastRev && len(history) != a.lastHistorySize && winner.rev.Equal(a.lastRev) {
		history = append(history, winner.rev)
		winner.rev.UpdateCount++
		winner.body[KeyRev] = winner.rev.String()
	}

	if limit := a.opts.maxHistory; len(history) > limit {
		history = history[len(history)-limit:]
	}

	if len(history) > 0 || len(conflicts) > 0 {
		meta := make(map[string]any, 2)
		if len(history) > 0 {
			entries := make([]any, len(history))
			for i, rev := range history {
				entries[i] = rev.String()
			}
			meta[KeyHistory] = entries
		}
		if len(conflicts) > 0 {
			meta[KeyConflicts] = conflicts
		}
		winner.body[KeyMeta] = meta
	}

	return winner.body
}

// tombstone synthesizes a deleted winner when no candidate survived.
func (a *Accumulator) tombstone() candidate {
	body := Body{KeyDeleted: true}
	if a.id != "" {
		body[KeyID] = a.id
	}
	// a flat body always hashes
	rev, _, _ := revision.Compute(body)
	return candidate{body: body, rev: rev}
}

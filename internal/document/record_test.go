package document

import (
	"errors"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docstore/internal/revision"
)

func TestRecord_EmptyGeneratesID(t *testing.T) {
	rec := NewRecord(nil)
	id := rec.ID()
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, rec.ID(), "identity is stable once assigned")
}

func TestRecord_InjectedIDGenerator(t *testing.T) {
	rec := NewRecord(Body{"x": 1}, WithIDGenerator(func() string { return "fixed" }))
	assert.Equal(t, "fixed", rec.ID())
	assert.Equal(t, "fixed", rec.Body().ID())
}

func TestNewRecordFrom(t *testing.T) {
	rec, err := NewRecordFrom(`{"_id":"doc","n":1.5}`)
	require.NoError(t, err)
	assert.Equal(t, "doc", rec.ID())
	assert.Equal(t, 1.5, rec.Body()["n"])

	rec, err = NewRecordFrom(nil)
	require.NoError(t, err)
	assert.True(t, rec.IsEmpty())

	for _, input := range []any{`[1,2]`, `"text"`, 42, []int{1}} {
		_, err := NewRecordFrom(input)
		assert.True(t, errors.Is(err, ErrNotObject), "input %v", input)
	}

	_, err = NewRecordFrom(`{not json`)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotObject))
}

func TestRecord_InitializingUpdate(t *testing.T) {
	rec := NewRecord(nil)
	require.True(t, rec.Update(Body{"_id": "docid", "exists": true}))

	rev, ok := rec.Rev()
	require.True(t, ok)
	assert.Equal(t, uint64(1), rev.UpdateCount)
	assert.NotEmpty(t, rev.Hash)
	assert.NotEqual(t, revision.EmptyHash, rev.Hash)

	body := rec.Body()
	assert.Equal(t, "docid", body.ID())
	assert.Equal(t, true, body["exists"])
	assert.NotContains(t, body, "_meta")
	assert.False(t, rec.IsEmpty())
}

func TestRecord_InitializingUpdateWithoutID(t *testing.T) {
	rec := NewRecord(nil)
	require.True(t, rec.Update(Body{"exists": true}))

	assert.False(t, rec.IsEmpty())
	assert.True(t, rec.GloballyDeleted())
	assert.Empty(t, rec.Body().ID())
	require.Len(t, rec.Skipped(), 1)
	assert.Equal(t, SkipReasonMissingID, rec.Skipped()[0].Reason)
}

func TestRecord_ReplayedUpdateIsNoop(t *testing.T) {
	rec := NewRecord(nil)
	require.True(t, rec.Update(Body{"_id": "docid", "exists": true}))
	before, _ := rec.Rev()

	require.True(t, rec.Update(Body{"_id": "docid", "exists": true}))
	after, _ := rec.Rev()

	assert.Equal(t, before, after)
	assert.Empty(t, rec.History())
	assert.Nil(t, rec.Conflicts())
	assert.Equal(t, 0, rec.ConflictCount())
}

func TestRecord_ReplayedMergeIsNoop(t *testing.T) {
	rec := NewRecord(nil)
	assert.False(t, rec.Merge(Body{"_id": "docid", "exists": true}))
	assert.True(t, rec.Merge(Body{"_id": "docid", "exists": true}))

	assert.Empty(t, rec.History())
	assert.NotContains(t, rec.Body(), "_meta")
}

func TestRecord_SuccessorMerge(t *testing.T) {
	docA := Body{"_id": "doc", "a": true}
	revA := mustCompute(t, docA)

	docB := Body{"_id": "doc", "b": true, "_rev": revA.String()}
	revB := mustCompute(t, docB.Clone())

	rec := NewRecord(docA)
	assert.True(t, rec.Merge(docB))

	body := rec.Body()
	assert.NotContains(t, body, "a")
	assert.Equal(t, true, body["b"])
	assert.Equal(t, revB.String(), body["_rev"])
	assert.Equal(t, map[string]any{"history": []any{revA.String()}}, body["_meta"])
	assert.Nil(t, rec.Conflicts())
}

func TestRecord_DivergentUpdateRejected(t *testing.T) {
	rec := NewRecord(nil)
	require.True(t, rec.Update(Body{"_id": "doc", "v": 0}))
	base, _ := rec.Rev()

	require.True(t, rec.Update(Body{"_id": "doc", "_rev": base.String(), "v": 1}))
	committed := rec.Body()
	require.Equal(t, []revision.ID{base}, rec.History())

	// second writer started from the same base
	assert.False(t, rec.Update(Body{"_id": "doc", "_rev": base.String(), "v": 2}))
	assert.Equal(t, 0, rec.ConflictCount())
	assert.Equal(t, committed, rec.Body(), "a rejected update leaves the record untouched")

	// a write without any revision is a new branch as well
	assert.False(t, rec.Update(Body{"_id": "doc", "v": 3}))
	assert.Equal(t, committed, rec.Body())
}

func TestRecord_UpdateIgnoresIncomingMeta(t *testing.T) {
	rec := NewRecord(nil)
	require.True(t, rec.Update(Body{"_id": "doc", "v": 0}))
	base, _ := rec.Rev()

	ok := rec.Update(Body{
		"_id":  "doc",
		"_rev": base.String(),
		"v":    1,
		"_meta": map[string]any{
			"conflicts": []any{map[string]any{"_id": "doc", "v": 99}},
			"history":   []any{"40-abcdef0123"},
		},
	})
	require.True(t, ok)
	assert.Equal(t, 0, rec.ConflictCount())
	assert.Equal(t, []revision.ID{base}, rec.History())
}

func TestRecord_MergeKeepsConflicts(t *testing.T) {
	rec := NewRecord(nil)
	require.True(t, rec.Update(Body{"_id": "doc", "v": 0}))
	base, _ := rec.Rev()
	require.True(t, rec.Update(Body{"_id": "doc", "_rev": base.String(), "v": 1}))

	assert.True(t, rec.Merge(Body{"_id": "doc", "_rev": base.String(), "v": 2}))
	require.Equal(t, 1, rec.ConflictCount())

	// the losing branch is visible, the winner is the larger revision
	winner, _ := rec.Rev()
	loser, ok := rec.Conflicts()[0].Rev()
	require.True(t, ok)
	assert.Equal(t, winner.UpdateCount, loser.UpdateCount)
	assert.Equal(t, 1, revision.Compare(winner, loser))

	// building on the winner keeps the conflict count stable
	assert.True(t, rec.Update(Body{"_id": "doc", "_rev": winner.String(), "v": "resolved"}))
	assert.Equal(t, 1, rec.ConflictCount())
	assert.Equal(t, "resolved", rec.Body()["v"])
}

func TestRecord_MergeImportsConflictsFromMeta(t *testing.T) {
	rec := NewRecord(nil)
	require.True(t, rec.Update(Body{"_id": "doc", "v": 0}))
	base, _ := rec.Rev()
	require.True(t, rec.Update(Body{"_id": "doc", "_rev": base.String(), "v": 1}))
	current, _ := rec.Rev()

	rec.Merge(Body{
		"_id":   "doc",
		"_rev":  current.String(),
		"v":     1,
		"_meta": map[string]any{"conflicts": []any{map[string]any{"_id": "doc", "v": 99}}},
	})

	require.Equal(t, 1, rec.ConflictCount())
	assert.Equal(t, 99, rec.Conflicts()[0]["v"])
	after, _ := rec.Rev()
	assert.Equal(t, current, after)
}

func TestRecord_ForeignMergeSkipped(t *testing.T) {
	rec := NewRecord(nil)
	require.True(t, rec.Update(Body{"_id": "a", "v": 1}))
	before := rec.Body()

	rec.Merge(Body{"_id": "b", "v": 2})
	assert.Equal(t, before, rec.Body())
	require.Len(t, rec.Skipped(), 1)
	assert.Equal(t, SkipReasonIDMismatch, rec.Skipped()[0].Reason)
}

func TestRecord_Validate(t *testing.T) {
	rec := NewRecord(Body{"x": 1, "_meta": map[string]any{}}, WithIDGenerator(func() string { return "gen" }))
	require.NoError(t, rec.Validate())

	rev, ok := rec.Rev()
	require.True(t, ok)
	assert.Equal(t, uint64(1), rev.UpdateCount)
	assert.Equal(t, "gen", rec.ID())
	assert.NotContains(t, rec.Body(), "_meta", "empty metadata is normalized away")

	require.NoError(t, rec.Validate())
	again, _ := rec.Rev()
	assert.Equal(t, rev, again)
}

func TestRecord_ValidateEmptyThenMerge(t *testing.T) {
	rec := NewRecord(nil, WithIDGenerator(func() string { return "doc" }))
	require.NoError(t, rec.Validate())
	assert.False(t, rec.IsEmpty())
	assert.True(t, rec.Merge(Body{"_id": "doc", "v": 1}))
}

func TestRecord_ValidateTooDeep(t *testing.T) {
	rec := NewRecord(Body{"_id": "doc", "deep": nestedValue(revision.MaxDepth + 2)})
	err := rec.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, revision.ErrTooDeep)
	_, ok := rec.Rev()
	assert.False(t, ok)
}

func TestRecord_Tombstones(t *testing.T) {
	local := NewRecord(nil)
	require.True(t, local.Update(Body{"_id": "doc", "v": 1}))
	assert.False(t, local.Deleted())

	rev, _ := local.Rev()
	require.True(t, local.Update(Body{"_id": "doc", "_rev": rev.String(), "_deleted": false}))
	assert.True(t, local.Deleted())
	assert.False(t, local.GloballyDeleted())

	global := NewRecord(nil)
	require.True(t, global.Update(Body{"_id": "doc", "v": 1}))
	rev, _ = global.Rev()
	require.True(t, global.Update(Body{"_id": "doc", "_rev": rev.String(), "_deleted": true}))
	assert.True(t, global.Deleted())
	assert.True(t, global.GloballyDeleted())
	assert.Equal(t, []revision.ID{rev}, global.History())
}

func TestRecord_HistoryBounded(t *testing.T) {
	rec := NewRecord(nil)
	require.True(t, rec.Update(Body{"_id": "doc", "v": 0}))

	const updates = MaxHistorySize + 5
	for i := 1; i <= updates; i++ {
		rev, _ := rec.Rev()
		require.True(t, rec.Update(Body{"_id": "doc", "_rev": rev.String(), "v": i}), "update %d", i)
	}

	rev, _ := rec.Rev()
	assert.Equal(t, uint64(updates+1), rev.UpdateCount)

	history := rec.History()
	require.Len(t, history, MaxHistorySize)
	assert.Equal(t, uint64(6), history[0].UpdateCount, "oldest entries are dropped first")
	assert.Equal(t, uint64(updates), history[len(history)-1].UpdateCount)
}

func TestRecord_BodyIsACopy(t *testing.T) {
	rec := NewRecord(nil)
	require.True(t, rec.Update(Body{"_id": "doc", "nested": map[string]any{"k": "v"}}))

	body := rec.Body()
	body["nested"].(map[string]any)["k"] = "changed"
	body["extra"] = strconv.Itoa(1)

	fresh := rec.Body()
	assert.Equal(t, "v", fresh["nested"].(map[string]any)["k"])
	assert.NotContains(t, fresh, "extra")
}

package revision

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_Zero(t *testing.T) {
	var rev ID
	assert.Equal(t, uint64(0), rev.UpdateCount)
	assert.Equal(t, "0-0000000000", rev.String())
	assert.True(t, rev.IsZero())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCount uint64
		wantHash  string
	}{
		{"valid", "2-abc", 2, "abc"},
		{"full hash", "17-0123456789", 17, "0123456789"},
		{"long hash truncated", "3-0123456789abcdef", 3, "0123456789"},
		{"count only", "4", 4, EmptyHash},
		{"empty", "", 0, EmptyHash},
		{"garbage", "not-a-rev", 0, EmptyHash},
		{"negative", "-1-abc", 0, EmptyHash},
		{"overflow", "99999999999999999999999-abc", 0, EmptyHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rev := Parse(tt.input)
			assert.Equal(t, tt.wantCount, rev.UpdateCount)
			assert.Equal(t, tt.wantHash, rev.Hash)
		})
	}
}

func TestNew(t *testing.T) {
	rev := New(3, "def")
	assert.Equal(t, "3-def", rev.String())

	rev = New(5, "")
	assert.Equal(t, "5-0000000000", rev.String())
}

func TestAdvance_NewHash(t *testing.T) {
	next, replaced, advanced := Parse("5-def").Advance("123")
	require.True(t, advanced)
	assert.Equal(t, "6-123", next.String())
	assert.Equal(t, "5-def", replaced.String())
}

func TestAdvance_SameHash(t *testing.T) {
	next, replaced, advanced := Parse("5-def").Advance("def")
	assert.False(t, advanced)
	assert.Equal(t, "5-def", next.String())
	assert.True(t, replaced.IsZero())
}

func TestAdvance_FromZero(t *testing.T) {
	next, replaced, advanced := ID{}.Advance("abcdef0123456789")
	require.True(t, advanced)
	assert.Equal(t, "1-abcdef0123", next.String())
	assert.True(t, replaced.IsZero(), "first revision has no predecessor")
}

func TestFromValue(t *testing.T) {
	assert.Equal(t, "2-abc", FromValue("2-abc").String())
	assert.Equal(t, "2-abc", FromValue(New(2, "abc")).String())
	assert.Equal(t, "7-abc", FromValue(map[string]any{"_rev": "7-abc"}).String())
	assert.True(t, FromValue(42).IsZero())
	assert.True(t, FromValue(nil).IsZero())
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(Parse("1-zzz"), Parse("2-aaa")))
	assert.Equal(t, 1, Compare(Parse("10-aaa"), Parse("9-zzz")))
	assert.Equal(t, -1, Compare(Parse("3-abc"), Parse("3-abd")))
	assert.Equal(t, 0, Compare(Parse("3-abc"), New(3, "abc")))
}

func TestSort_NumericNotLexicographic(t *testing.T) {
	revs := []ID{Parse("10-a"), Parse("9-a"), Parse("2-b"), Parse("2-a")}
	Sort(revs)

	got := make([]string, len(revs))
	for i, r := range revs {
		got[i] = r.String()
	}
	assert.Equal(t, []string{"2-a", "2-b", "9-a", "10-a"}, got)
}

func TestSortValues(t *testing.T) {
	revs := SortValues([]any{"3-c", New(1, "a"), map[string]any{"_rev": "2-b"}})
	require.Len(t, revs, 3)
	assert.Equal(t, "1-a", revs[0].String())
	assert.Equal(t, "2-b", revs[1].String())
	assert.Equal(t, "3-c", revs[2].String())
}

func TestUniq(t *testing.T) {
	var revs []ID
	for _, s := range []string{"10-def", "2-345", "2-345", "10-abc", "1-abc"} {
		revs = append(revs, Parse(s))
	}

	data, err := json.Marshal(Uniq(revs))
	require.NoError(t, err)
	assert.JSONEq(t, `["1-abc","2-345","10-abc","10-def"]`, string(data))
}

func TestID_TextRoundTrip(t *testing.T) {
	var rev ID
	require.NoError(t, json.Unmarshal([]byte(`"12-cafebabe00"`), &rev))
	assert.Equal(t, New(12, "cafebabe00"), rev)

	data, err := json.Marshal(rev)
	require.NoError(t, err)
	assert.Equal(t, `"12-cafebabe00"`, string(data))
}

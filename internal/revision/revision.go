package revision

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	// HashLength is the number of hex characters kept from the content digest.
	HashLength = 10
	// EmptyHash stands in for a revision that has not been hashed yet.
	EmptyHash = "0000000000"
)

var revPattern = regexp.MustCompile(`^(\d+)(?:-(.+))?$`)

// ID identifies one version of a document body.
// The zero value is the uninitialized revision "0-0000000000".
type ID struct {
	UpdateCount uint64
	Hash        string
}

// New creates a revision from an update count and a hash.
// The hash is truncated to HashLength; an empty hash becomes EmptyHash.
func New(updateCount uint64, hash string) ID {
	return ID{UpdateCount: updateCount, Hash: sanitize(hash)}
}

// Parse reads the "<updateCount>-<hash>" form. Input that does not match
// degrades to the zero revision rather than failing.
func Parse(s string) ID {
	m := revPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ID{Hash: EmptyHash}
	}
	count, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return ID{Hash: EmptyHash}
	}
	return New(count, m[2])
}

// FromValue coerces a revision-like value: an ID, a revision string, or a
// document body carrying "_rev". Anything else yields the zero revision.
func FromValue(v any) ID {
	switch val := v.(type) {
	case ID:
		return New(val.UpdateCount, val.Hash)
	case *ID:
		if val == nil {
			return ID{Hash: EmptyHash}
		}
		return New(val.UpdateCount, val.Hash)
	case string:
		return Parse(val)
	case fmt.Stringer:
		return Parse(val.String())
	case map[string]any:
		return FromValue(val["_rev"])
	default:
		return ID{Hash: EmptyHash}
	}
}

// String returns the wire form "<updateCount>-<hash>".
func (id ID) String() string {
	return strconv.FormatUint(id.UpdateCount, 10) + "-" + sanitize(id.Hash)
}

// IsZero reports whether the revision was never assigned content.
func (id ID) IsZero() bool {
	return id.UpdateCount == 0 && (id.Hash == "" || id.Hash == EmptyHash)
}

// Equal compares update count and hash.
func (id ID) Equal(other ID) bool {
	return Compare(id, other) == 0
}

// Advance applies a freshly computed hash on top of id. When the hash is
// unchanged the revision is reused and advanced is false. Otherwise the update
// count is bumped and the previous revision is returned as replaced, unless id
// was never initialized, in which case there is no predecessor to report.
func (id ID) Advance(hash string) (next ID, replaced ID, advanced bool) {
	hash = sanitize(hash)
	cur := New(id.UpdateCount, id.Hash)
	if cur.Hash == hash {
		return cur, ID{}, false
	}
	if !cur.IsZero() {
		replaced = cur
	}
	return ID{UpdateCount: cur.UpdateCount + 1, Hash: hash}, replaced, true
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Malformed text decodes
// to the zero revision.
func (id *ID) UnmarshalText(text []byte) error {
	*id = Parse(string(text))
	return nil
}

// Compare orders revisions by update count, then by hash bytewise.
// It returns -1, 0 or 1.
func Compare(a, b ID) int {
	switch {
	case a.UpdateCount < b.UpdateCount:
		return -1
	case a.UpdateCount > b.UpdateCount:
		return 1
	}
	return strings.Compare(sanitize(a.Hash), sanitize(b.Hash))
}

// Sort orders revisions ascending in place.
func Sort(revs []ID) {
	sort.SliceStable(revs, func(i, j int) bool {
		return Compare(revs[i], revs[j]) < 0
	})
}

// SortValues coerces revision-like values through FromValue and returns them
// sorted ascending.
func SortValues(values []any) []ID {
	revs := make([]ID, 0, len(values))
	for _, v := range values {
		revs = append(revs, FromValue(v))
	}
	Sort(revs)
	return revs
}

// Uniq returns the distinct revisions of revs in ascending order.
func Uniq(revs []ID) []ID {
	byCount := make(map[uint64]map[string]ID)
	for _, rev := range revs {
		rev = New(rev.UpdateCount, rev.Hash)
		hashes, ok := byCount[rev.UpdateCount]
		if !ok {
			hashes = make(map[string]ID)
			byCount[rev.UpdateCount] = hashes
		}
		hashes[rev.Hash] = rev
	}

	counts := make([]uint64, 0, len(byCount))
	for count := range byCount {
		counts = append(counts, count)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i] < counts[j] })

	result := make([]ID, 0, len(revs))
	for _, count := range counts {
		hashes := make([]string, 0, len(byCount[count]))
		for h := range byCount[count] {
			hashes = append(hashes, h)
		}
		sort.Strings(hashes)
		for _, h := range hashes {
			result = append(result, byCount[count][h])
		}
	}
	return result
}

func sanitize(hash string) string {
	if hash == "" {
		return EmptyHash
	}
	if len(hash) > HashLength {
		return hash[:HashLength]
	}
	return hash
}

package petri

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Marking is an immutable assignment of token counts to places. The
// normalization invariant holds throughout the package: the backing map
// never stores a place with a zero or negative count; a missing key
// means zero tokens. Every mutating operation returns a new
// value; callers never observe partial updates.
type Marking struct {
	counts map[string]int
}

// NewMarking builds a normalized Marking from a place->count map. Zero
// and negative entries are dropped per the normalization invariant.
func NewMarking(counts map[string]int) Marking {
	m := Marking{counts: make(map[string]int, len(counts))}
	for p, c := range counts {
		if c > 0 {
			m.counts[p] = c
		}
	}
	return m
}

// EmptyMarking is the zero-token marking.
func EmptyMarking() Marking { return Marking{} }

// Get returns the token count at place id (0 if absent).
func (m Marking) Get(place string) int { return m.counts[place] }

// NonZeroPlaces returns the place ids holding at least one token, sorted.
func (m Marking) NonZeroPlaces() []string {
	out := make([]string, 0, len(m.counts))
	for p := range m.counts {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len is the number of places holding a positive token count.
func (m Marking) Len() int { return len(m.counts) }

// Equal reports whether two markings are equal under the normalization
// invariant.
func (m Marking) Equal(other Marking) bool {
	if len(m.counts) != len(other.counts) {
		return false
	}
	for p, c := range m.counts {
		if other.counts[p] != c {
			return false
		}
	}
	return true
}

// Hash returns a content-addressed digest suitable for use as a hash-set
// key, using a sha256-based content-addressed hash.
func (m Marking) Hash() string {
	keys := m.NonZeroPlaces()
	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%d;", k, m.counts[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// String renders a deterministic, human-readable form for diagnostics
// and trace output, e.g. "{A_pre:1, B_post:2}".
func (m Marking) String() string {
	keys := m.NonZeroPlaces()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, m.counts[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Total sums the token counts across all places.
func (m Marking) Total() int {
	total := 0
	for _, c := range m.counts {
		total += c
	}
	return total
}

func (m Marking) clone() Marking {
	next := Marking{counts: make(map[string]int, len(m.counts))}
	for p, c := range m.counts {
		next.counts[p] = c
	}
	return next
}

func (m *Marking) add(place string, delta int) {
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[place] += delta
}

func (m *Marking) sub(place string, delta int) {
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[place] -= delta
}

func (m *Marking) normalize() {
	for p, c := range m.counts {
		if c <= 0 {
			delete(m.counts, p)
		}
	}
}

// MarshalJSON renders m as its normalized place->count map, since
// Marking's backing field is unexported and would otherwise serialize
// as an empty object wherever a Result value carrying markings (trace
// events, counter-examples) is marshaled by a caller.
func (m Marking) MarshalJSON() ([]byte, error) {
	if m.counts == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.counts)
}

// UnmarshalJSON parses m from a place->count map, normalizing away any
// zero or negative entries.
func (m *Marking) UnmarshalJSON(data []byte) error {
	var counts map[string]int
	if err := json.Unmarshal(data, &counts); err != nil {
		return err
	}
	*m = NewMarking(counts)
	return nil
}

// With returns a copy of m with place set to count (count<=0 removes it).
func (m Marking) With(place string, count int) Marking {
	next := m.clone()
	if count <= 0 {
		delete(next.counts, place)
	} else {
		next.counts[place] = count
	}
	return next
}

package scrub

import (
	"sort"
	"strings"
)

// IDSet is the set of target identifiers for a run. The set is fixed at run
// start and never grows; membership tests are O(1).
type IDSet map[string]struct{}

// NewIDSet builds an IDSet from the given tokens. Tokens are trimmed of
// surrounding whitespace and empty tokens are dropped.
func NewIDSet(ids ...string) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id is a member of the set.
func (s IDSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the identifiers in lexicographic order.
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

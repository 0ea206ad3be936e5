package scrub

import "sort"

// Ledger accumulates which identifiers were detected in which databases
// across a run. Every identifier from the input set is present from the
// start, so identifiers never seen anywhere still appear in the final
// report with empty detection sets.
//
// Ledger is not safe for concurrent use.
type Ledger struct {
	found map[string]map[string]struct{}
}

// NewLedger returns a ledger pre-seeded with an empty detection set for
// every identifier in ids.
func NewLedger(ids IDSet) *Ledger {
	found := make(map[string]map[string]struct{}, len(ids))
	for id := range ids {
		found[id] = make(map[string]struct{})
	}
	return &Ledger{found: found}
}

// Record notes that id was detected in database db. It returns true only
// the first time this (id, db) pair is recorded; repeat detections are
// absorbed silently. Identifiers outside the seeded set are ignored.
func (l *Ledger) Record(id, db string) bool {
	dbs, ok := l.found[id]
	if !ok {
		return false
	}
	if _, seen := dbs[db]; seen {
		return false
	}
	dbs[db] = struct{}{}
	return true
}

// Found reports whether id was detected in database db.
func (l *Ledger) Found(id, db string) bool {
	_, ok := l.found[id][db]
	return ok
}

// Seen reports whether id has been detected in any database so far. The
// false-to-true transition happens exactly once per identifier across the
// whole run, which is what first-detection notifications key on.
func (l *Ledger) Seen(id string) bool {
	return len(l.found[id]) > 0
}

// Databases returns the sorted list of databases id was detected in.
func (l *Ledger) Databases(id string) []string {
	dbs := make([]string, 0, len(l.found[id]))
	for db := range l.found[id] {
		dbs = append(dbs, db)
	}
	sort.Strings(dbs)
	return dbs
}

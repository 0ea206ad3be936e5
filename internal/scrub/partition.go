package scrub

import (
	"sort"
	"strings"
)

// RootDatabase is the database assigned to objects that sit directly under
// the source prefix with no subfolder of their own.
const RootDatabase = "__root__"

// Partition groups object keys by database subfolder, with exclusion filters
// applied. It distinguishes "the source prefix was empty" from "every key was
// excluded": compare TotalKeys against RemainingKeys.
type Partition struct {
	byDB  map[string][]string
	total int
	kept  int
}

// PartitionKeys groups every non-directory key under srcPrefix by its first
// path segment. A database whose name contains any exclusion substring as a
// case-sensitive literal is dropped entirely, all of its keys with it.
// Key order within a database follows the input order.
func PartitionKeys(keys []string, srcPrefix string, excludes []string) *Partition {
	p := &Partition{byDB: make(map[string][]string)}
	for _, key := range keys {
		if strings.HasSuffix(key, "/") {
			// Directory placeholder, not an object.
			continue
		}
		p.total++
		db := DatabaseOf(key, srcPrefix)
		if excludedDatabase(db, excludes) {
			continue
		}
		p.kept++
		p.byDB[db] = append(p.byDB[db], key)
	}
	return p
}

// DatabaseOf maps an object key to its database name: the first path segment
// after the source prefix, or RootDatabase when the key has no subfolder.
func DatabaseOf(key, srcPrefix string) string {
	rel := strings.TrimPrefix(key, srcPrefix)
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		return rel[:i]
	}
	return RootDatabase
}

// excludedDatabase reports whether db contains any exclusion substring.
func excludedDatabase(db string, excludes []string) bool {
	for _, sub := range excludes {
		if sub != "" && strings.Contains(db, sub) {
			return true
		}
	}
	return false
}

// Databases returns the surviving database names in lexicographic order.
func (p *Partition) Databases() []string {
	dbs := make([]string, 0, len(p.byDB))
	for db := range p.byDB {
		dbs = append(dbs, db)
	}
	sort.Strings(dbs)
	return dbs
}

// Keys returns the keys assigned to db, in input order.
func (p *Partition) Keys(db string) []string {
	return p.byDB[db]
}

// TotalKeys returns the number of non-directory keys seen before exclusion.
// Zero means no objects ever existed under the source prefix.
func (p *Partition) TotalKeys() int {
	return p.total
}

// RemainingKeys returns the number of keys kept after exclusion.
func (p *Partition) RemainingKeys() int {
	return p.kept
}

package scrub

import (
	"fmt"
	"io"
	"strings"
)

const (
	markFound   = "✓"
	markMissing = "✗"

	ansiBlue  = "\033[94m"
	ansiRed   = "\033[91m"
	ansiReset = "\033[0m"
)

// Report is the final identifier-by-database detection table. Rows are the
// requested identifiers and columns the databases seen during the run, both
// in sorted order.
type Report struct {
	ids   []string
	dbs   []string
	cells map[string]map[string]bool
}

// BuildReport assembles a report from the ledger for the given identifiers
// and databases.
func BuildReport(ledger *Ledger, ids IDSet, databases []string) *Report {
	r := &Report{
		ids:   ids.Sorted(),
		dbs:   append([]string(nil), databases...),
		cells: make(map[string]map[string]bool, len(ids)),
	}
	for _, id := range r.ids {
		row := make(map[string]bool, len(r.dbs))
		for _, db := range r.dbs {
			row[db] = ledger.Found(id, db)
		}
		r.cells[id] = row
	}
	return r
}

// Identifiers returns the report's row labels in order.
func (r *Report) Identifiers() []string { return r.ids }

// Databases returns the report's column labels in order.
func (r *Report) Databases() []string { return r.dbs }

// Found reports whether id was detected in database db.
func (r *Report) Found(id, db string) bool { return r.cells[id][db] }

// WriteTable renders the report as a fixed-width text table. When color is
// true the found/missing marks carry ANSI color codes.
func (r *Report) WriteTable(w io.Writer, color bool) error {
	idW := len("ID")
	for _, id := range r.ids {
		if len(id) > idW {
			idW = len(id)
		}
	}
	idW += 2

	dbWs := make([]int, len(r.dbs))
	for i, db := range r.dbs {
		dbWs[i] = max(len(db), 1) + 2
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s", idW, "ID")
	for i, db := range r.dbs {
		fmt.Fprintf(&b, "%-*s", dbWs[i], db)
	}
	b.WriteByte('\n')

	for _, id := range r.ids {
		fmt.Fprintf(&b, "%-*s", idW, id)
		for i, db := range r.dbs {
			b.WriteString(cell(r.cells[id][db], dbWs[i], color))
		}
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// cell centers a single-rune mark in a column of width w. ANSI escapes are
// applied after padding so they do not skew the alignment.
func cell(found bool, w int, color bool) string {
	mark := markMissing
	tint := ansiRed
	if found {
		mark = markFound
		tint = ansiBlue
	}
	left := (w - 1) / 2
	right := w - 1 - left
	padded := strings.Repeat(" ", left) + mark + strings.Repeat(" ", right)
	if !color {
		return padded
	}
	return strings.Replace(padded, mark, tint+mark+ansiReset, 1)
}

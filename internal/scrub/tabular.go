package scrub

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// FilterRecords streams CSV rows from r to w, dropping every data row in
// which at least one field exactly equals a target identifier. The first row
// is the header: it is always written through and never tested against the
// identifier set. Retained rows keep their input order, and ragged rows pass
// through without column-count validation.
//
// onMatch is invoked once per matching field, so a row carrying the same or
// different identifiers in several fields counts as several detections.
// Empty input produces empty output and zero removals. The returned count is
// the number of rows removed, which makes the filter idempotent: running it
// over its own output removes nothing.
func FilterRecords(r io.Reader, w io.Writer, ids IDSet, onMatch func(id string)) (removed int, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read tabular header: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("write tabular header: %w", err)
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return removed, fmt.Errorf("read tabular row: %w", err)
		}

		matched := false
		for _, field := range row {
			if ids.Contains(field) {
				matched = true
				if onMatch != nil {
					onMatch(field)
				}
			}
		}
		if matched {
			removed++
			continue
		}

		if err := cw.Write(row); err != nil {
			return removed, fmt.Errorf("write tabular row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return removed, fmt.Errorf("flush tabular output: %w", err)
	}
	return removed, nil
}

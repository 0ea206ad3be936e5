package scrub

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

const (
	// ManifestName is the exact base name of the manifest file inside a bundle.
	ManifestName = "SOURMASH-MANIFEST.csv"

	// fingerprintColumn is the manifest column carrying the content
	// fingerprint; matched case-insensitively.
	fingerprintColumn = "md5"

	// nameColumn is the manifest column carrying the record name.
	nameColumn = "name"
)

// ManifestRecord is one entry of a bundle manifest: a free-form name and the
// content fingerprint of the member it describes.
type ManifestRecord struct {
	Name        string
	Fingerprint string
}

// Key returns the comparison key of the record: the first whitespace-delimited
// token of its name field. Records with an empty name have an empty key, which
// never matches an identifier.
func (r ManifestRecord) Key() string {
	fields := strings.Fields(r.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Manifest is the parsed index of a bundle.
type Manifest struct {
	Records []ManifestRecord
}

// ParseManifest reads a bundle manifest. The first line is a free-form
// comment and is skipped; the remaining lines are CSV with a field-name
// header row. The fingerprint column is located by case-insensitive match
// against "md5"; records without one are kept with an empty fingerprint.
//
// Errors:
//   - ErrManifestHeader: the manifest is empty, so no comment line exists to skip
//   - ErrNoFingerprint: no fingerprint column is present (a manifest with no
//     field-name header row at all counts as missing the column)
func ParseManifest(r io.Reader) (*Manifest, error) {
	br := bufio.NewReader(r)

	line, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("skip manifest comment line: %w", err)
	}
	if line == "" {
		return nil, ErrManifestHeader
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoFingerprint
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest field header: %w", err)
	}

	fpIdx := -1
	nameIdx := -1
	for i, col := range header {
		if fpIdx < 0 && strings.EqualFold(col, fingerprintColumn) {
			fpIdx = i
		}
		if nameIdx < 0 && col == nameColumn {
			nameIdx = i
		}
	}
	if fpIdx < 0 {
		return nil, ErrNoFingerprint
	}

	m := &Manifest{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest record: %w", err)
		}
		m.Records = append(m.Records, ManifestRecord{
			Name:        fieldAt(row, nameIdx),
			Fingerprint: fieldAt(row, fpIdx),
		})
	}
	return m, nil
}

func fieldAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// FingerprintsFor returns the fingerprint values of records whose key is a
// member of ids. onMatch is invoked once per matching record with the matched
// identifier; records with an empty fingerprint still count as detections but
// contribute nothing to the returned set.
func (m *Manifest) FingerprintsFor(ids IDSet, onMatch func(id string)) map[string]struct{} {
	fingerprints := make(map[string]struct{})
	for _, rec := range m.Records {
		key := rec.Key()
		if key == "" || !ids.Contains(key) {
			continue
		}
		if onMatch != nil {
			onMatch(key)
		}
		if rec.Fingerprint != "" {
			fingerprints[rec.Fingerprint] = struct{}{}
		}
	}
	return fingerprints
}

// MemberKey returns the fingerprint key an archive member correlates to: its
// base name truncated at the first dot. Sourmash bundles store signatures as
// "signatures/<md5>.sig.gz", so the key of such a member is its md5 value.
// The correlation is a pure naming convention; member content is never read.
func MemberKey(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}

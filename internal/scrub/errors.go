package scrub

import "errors"

// Sentinel errors for object-local failure modes. Each one is recoverable:
// the run skips the object and continues with the next.
var (
	// ErrBadArchive indicates that an archive could not be read
	ErrBadArchive = errors.New("scrub: unreadable archive")

	// ErrNoManifest indicates that no manifest file exists in the archive tree
	ErrNoManifest = errors.New("scrub: manifest not found in archive")

	// ErrManifestHeader indicates that the manifest's comment header line could not be skipped
	ErrManifestHeader = errors.New("scrub: manifest missing comment header")

	// ErrNoFingerprint indicates that the manifest lacks the fingerprint column
	ErrNoFingerprint = errors.New("scrub: manifest missing fingerprint column")
)

package cli

import (
	"fmt"
	"path"

	"github.com/lhsnam/s3-db-modifier/internal/storage"
)

// stageNotice prints a one-line notice as each object enters a pipeline
// stage.
type stageNotice struct{}

func (stageNotice) Step(stage, key string) {
	fmt.Printf("  %-9s %s\n", stage, path.Base(key))
}

// transferNotice summarizes a single S3 transfer when it finishes.
type transferNotice struct {
	key   string
	total int64
	seen  int64
}

func newTransferNotice(key string, size int64) storage.ProgressTracker {
	return &transferNotice{key: key, total: size}
}

func (t *transferNotice) Update(bytesTransferred, totalBytes int64) {
	t.seen = bytesTransferred
	if totalBytes > 0 {
		t.total = totalBytes
	}
}

func (t *transferNotice) Complete() {
	n := t.seen
	if t.total > n {
		n = t.total
	}
	fmt.Printf("  %-9s %s (%s)\n", "done", path.Base(t.key), fmtBytes(n))
}

func (t *transferNotice) Error(err error) {
	fmt.Printf("  %-9s %s: %v\n", "stalled", path.Base(t.key), err)
}

// fmtBytes renders a byte count with a binary unit suffix.
func fmtBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

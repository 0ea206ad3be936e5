package scrub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
)

// Status is the per-object outcome of a run.
type Status int

const (
	// StatusProcessed means the object was transformed and uploaded.
	StatusProcessed Status = iota
	// StatusSkipped means the object was left alone for a recoverable,
	// object-local reason (unsupported type, transfer failure, bad data).
	StatusSkipped
	// StatusFailed means an unexpected local error interrupted the object.
	StatusFailed
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusProcessed:
		return "processed"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Kind classifies an object by the transform that applies to it.
type Kind int

const (
	// KindUnsupported marks objects no transform applies to.
	KindUnsupported Kind = iota
	// KindTabular marks CSV objects filtered row by row.
	KindTabular
	// KindBundle marks ZIP objects filtered through their manifest.
	KindBundle
)

// Stages an object moves through, reported to the StepTracker.
const (
	StageDownload  = "download"
	StageTransform = "transform"
	StageExtract   = "extract"
	StageManifest  = "manifest"
	StageRebuild   = "rebuild"
	StageUpload    = "upload"
)

// StepTracker receives a callback as each object enters a stage. Useful for
// progress display; a nil tracker is valid and reports nothing.
type StepTracker interface {
	Step(stage, key string)
}

// DetectionHook is invoked the first time an identifier is detected anywhere
// in the run, with the database and object key the detection came from.
// Later detections of the same identifier, in any database, stay silent;
// the ledger still records them all.
type DetectionHook func(id, database, key string)

// Outcome is the tagged result of one object.
type Outcome struct {
	Key        string
	Database   string
	Kind       Kind
	Status     Status
	Stage      string
	Reason     string
	Err        error
	Detections int
	Removed    int
	Size       int64
}

// Summary aggregates a full run.
type Summary struct {
	Outcomes      []Outcome
	Report        *Report
	Databases     []string
	TotalKeys     int
	RemainingKeys int
	Processed     int
	Skipped       int
	Failed        int
}

// SourceEmpty reports whether the listing returned no objects at all.
func (s *Summary) SourceEmpty() bool { return s.TotalKeys == 0 }

// AllExcluded reports whether objects existed but every database was
// excluded. It derives from the partition counts, not from the outcome
// list, so a run cut short before its first object does not read as
// fully excluded.
func (s *Summary) AllExcluded() bool {
	return s.TotalKeys > 0 && s.RemainingKeys == 0
}

// Store is the object storage surface the runner needs.
type Store interface {
	ListAllKeys(ctx context.Context, bucket, prefix string) ([]string, error)
	HeadSize(ctx context.Context, bucket, key string) (int64, error)
	DownloadFile(ctx context.Context, bucket, key, path string) error
	UploadFile(ctx context.Context, bucket, key, path string) error
}

// RunSpec describes one scrubbing run.
type RunSpec struct {
	// Bucket holds both the source and destination trees.
	Bucket string
	// SrcPrefix is the tree to read, with a trailing slash.
	SrcPrefix string
	// DstPrefix is the tree to write, with a trailing slash. Source keys
	// map to destination keys by prefix substitution.
	DstPrefix string
	// IDs are the identifiers to remove.
	IDs IDSet
	// ExcludeDBs are substrings; any database whose name contains one is
	// skipped entirely.
	ExcludeDBs []string
	// WorkDir is the local scratch root. A fresh run directory is created
	// beneath it and removed afterwards.
	WorkDir string
}

// Runner drives a scrubbing run over a Store.
type Runner struct {
	store     Store
	fs        fs.Filesystem
	log       *slog.Logger
	tracker   StepTracker
	detection DetectionHook
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithFilesystem sets the local filesystem used for scratch files.
func WithFilesystem(fsys fs.Filesystem) RunnerOption {
	return func(r *Runner) { r.fs = fsys }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// WithStepTracker sets the per-stage progress callback.
func WithStepTracker(t StepTracker) RunnerOption {
	return func(r *Runner) { r.tracker = t }
}

// WithDetectionHook sets the first-detection notification callback.
func WithDetectionHook(h DetectionHook) RunnerOption {
	return func(r *Runner) { r.detection = h }
}

// NewRunner builds a runner over the given store.
func NewRunner(store Store, opts ...RunnerOption) *Runner {
	r := &Runner{store: store}
	for _, opt := range opts {
		opt(r)
	}
	if r.fs == nil {
		r.fs = billy.NewOSFS("/")
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// Run lists the source tree, partitions it into databases, transforms every
// remaining object, and returns the aggregated summary. Object failures
// never abort the run; each object carries its own outcome. The only early
// exits are listing failure and context cancellation, and cancellation
// still returns the summary for the objects finished so far.
func (r *Runner) Run(ctx context.Context, spec RunSpec) (*Summary, error) {
	keys, err := r.store.ListAllKeys(ctx, spec.Bucket, spec.SrcPrefix)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", spec.Bucket, spec.SrcPrefix, err)
	}

	part := PartitionKeys(keys, spec.SrcPrefix, spec.ExcludeDBs)
	summary := &Summary{
		TotalKeys:     part.TotalKeys(),
		RemainingKeys: part.RemainingKeys(),
	}
	ledger := NewLedger(spec.IDs)

	runDir := filepath.Join(spec.WorkDir, "run-"+uuid.NewString())
	if err := r.fs.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer r.removeTree(runDir)

	databases := part.Databases()
	for _, db := range databases {
		for i, key := range part.Keys(db) {
			if err := ctx.Err(); err != nil {
				r.finalize(summary, ledger, spec.IDs, databases)
				return summary, err
			}
			objDir := filepath.Join(runDir, fmt.Sprintf("%s-%d", sanitize(db), i))
			out := r.processObject(ctx, spec, db, key, objDir, ledger)
			summary.Outcomes = append(summary.Outcomes, out)
			switch out.Status {
			case StatusProcessed:
				summary.Processed++
			case StatusSkipped:
				summary.Skipped++
				r.log.Warn("object skipped",
					"key", key, "stage", out.Stage, "reason", out.Reason)
			case StatusFailed:
				summary.Failed++
				r.log.Error("object failed",
					"key", key, "stage", out.Stage, "error", out.Err)
			}
		}
	}

	r.finalize(summary, ledger, spec.IDs, databases)
	return summary, nil
}

func (r *Runner) finalize(s *Summary, ledger *Ledger, ids IDSet, dbs []string) {
	s.Databases = dbs
	s.Report = BuildReport(ledger, ids, dbs)
}

// processObject runs the full pipeline for one key. The scratch directory
// is removed before returning regardless of outcome, and detections already
// recorded stay recorded even when a later stage fails.
func (r *Runner) processObject(
	ctx context.Context,
	spec RunSpec,
	db, key, objDir string,
	ledger *Ledger,
) Outcome {
	out := Outcome{Key: key, Database: db, Size: -1, Kind: kindOf(key)}
	if out.Kind == KindUnsupported {
		out.Status = StatusSkipped
		out.Reason = "unsupported object type"
		return out
	}

	if size, err := r.store.HeadSize(ctx, spec.Bucket, key); err == nil {
		out.Size = size
	}

	if err := r.fs.MkdirAll(objDir, 0o755); err != nil {
		out.Status = StatusFailed
		out.Err = err
		return out
	}
	defer r.removeTree(objDir)

	onMatch := func(id string) {
		out.Detections++
		// The notification fires once per identifier across the whole run,
		// not once per database, so check Seen before recording.
		first := !ledger.Seen(id)
		if ledger.Record(id, db) && first && r.detection != nil {
			r.detection(id, db, key)
		}
	}

	var artifact string
	var err error
	switch out.Kind {
	case KindTabular:
		artifact, err = r.transformTabular(ctx, spec, key, objDir, onMatch, &out)
	case KindBundle:
		artifact, err = r.transformBundle(ctx, spec, key, objDir, onMatch, &out)
	}
	if err != nil {
		classifyOutcome(&out, err)
		return out
	}

	dstKey := spec.DstPrefix + strings.TrimPrefix(key, spec.SrcPrefix)
	r.step(StageUpload, key)
	if err := r.store.UploadFile(ctx, spec.Bucket, dstKey, artifact); err != nil {
		out.Stage = StageUpload
		classifyOutcome(&out, err)
		return out
	}

	out.Status = StatusProcessed
	r.log.Info("object processed",
		"key", key, "dst", dstKey, "removed", out.Removed)
	return out
}

// transformTabular downloads a CSV, filters matching rows, and returns the
// cleaned file path.
func (r *Runner) transformTabular(
	ctx context.Context,
	spec RunSpec,
	key, objDir string,
	onMatch func(string),
	out *Outcome,
) (string, error) {
	src := filepath.Join(objDir, "orig.csv")
	out.Stage = StageDownload
	r.step(StageDownload, key)
	if err := r.store.DownloadFile(ctx, spec.Bucket, key, src); err != nil {
		return "", err
	}

	out.Stage = StageTransform
	r.step(StageTransform, key)
	in, err := r.fs.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	cleaned := filepath.Join(objDir, "cleaned.csv")
	w, err := r.fs.Create(cleaned)
	if err != nil {
		return "", err
	}

	removed, err := FilterRecords(in, w, spec.IDs, onMatch)
	if err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	out.Removed = removed
	return cleaned, nil
}

// transformBundle downloads a ZIP, correlates its manifest against the
// identifier set, and rebuilds the archive without the matching members.
func (r *Runner) transformBundle(
	ctx context.Context,
	spec RunSpec,
	key, objDir string,
	onMatch func(string),
	out *Outcome,
) (string, error) {
	src := filepath.Join(objDir, "orig.zip")
	out.Stage = StageDownload
	r.step(StageDownload, key)
	if err := r.store.DownloadFile(ctx, spec.Bucket, key, src); err != nil {
		return "", err
	}

	extracted := filepath.Join(objDir, "extracted")
	out.Stage = StageExtract
	r.step(StageExtract, key)
	if err := ExtractBundle(r.fs, src, extracted); err != nil {
		return "", err
	}

	out.Stage = StageManifest
	r.step(StageManifest, key)
	manifestPath, err := FindManifest(r.fs, extracted)
	if err != nil {
		return "", err
	}
	mf, err := r.fs.Open(manifestPath)
	if err != nil {
		return "", err
	}
	manifest, err := ParseManifest(mf)
	closeErr := mf.Close()
	if err != nil {
		return "", err
	}
	if closeErr != nil {
		return "", closeErr
	}

	exclude := manifest.FingerprintsFor(spec.IDs, onMatch)

	rebuilt := filepath.Join(objDir, "rebuilt.zip")
	out.Stage = StageRebuild
	r.step(StageRebuild, key)
	_, removed, err := RebuildBundle(r.fs, extracted, exclude, rebuilt)
	if err != nil {
		return "", err
	}
	out.Removed = removed
	return rebuilt, nil
}

// classifyOutcome tags an outcome from the error that stopped it. Bad data
// and transfer failures are skips; anything else is a local failure.
func classifyOutcome(out *Outcome, err error) {
	out.Err = err
	switch {
	case errors.Is(err, ErrBadArchive):
		out.Status = StatusSkipped
		out.Reason = "corrupt or unreadable archive"
	case errors.Is(err, ErrNoManifest):
		out.Status = StatusSkipped
		out.Reason = "archive carries no manifest"
	case errors.Is(err, ErrManifestHeader):
		out.Status = StatusSkipped
		out.Reason = "manifest missing header"
	case errors.Is(err, ErrNoFingerprint):
		out.Status = StatusSkipped
		out.Reason = "manifest missing fingerprint column"
	case out.Stage == StageDownload || out.Stage == StageUpload:
		out.Status = StatusSkipped
		out.Reason = "transfer failed"
	default:
		out.Status = StatusFailed
	}
}

func (r *Runner) step(stage, key string) {
	if r.tracker != nil {
		r.tracker.Step(stage, key)
	}
}

// kindOf maps a key to its transform by extension.
func kindOf(key string) Kind {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".csv":
		return KindTabular
	case ".zip":
		return KindBundle
	default:
		return KindUnsupported
	}
}

// sanitize makes a database name safe as a directory component.
func sanitize(db string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return c
		case c == '-' || c == '_' || c == '.':
			return c
		default:
			return '_'
		}
	}, db)
}

// removeTree best-effort deletes a directory tree: files first, then the
// directories deepest-first. Billy filesystems have no recursive remove.
func (r *Runner) removeTree(root string) {
	var dirs []string
	_ = r.fs.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		_ = r.fs.Remove(path)
		return nil
	})
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, d := range dirs {
		_ = r.fs.Remove(d)
	}
}

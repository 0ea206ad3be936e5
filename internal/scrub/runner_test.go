package scrub

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore serves objects from memory and records uploads.
type fakeStore struct {
	fsys    fs.Filesystem
	objects map[string][]byte
	uploads map[string][]byte
	listErr error
}

func newFakeStore(fsys fs.Filesystem) *fakeStore {
	return &fakeStore{
		fsys:    fsys,
		objects: make(map[string][]byte),
		uploads: make(map[string][]byte),
	}
}

func (f *fakeStore) ListAllKeys(_ context.Context, _, prefix string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeStore) HeadSize(_ context.Context, _, key string) (int64, error) {
	data, ok := f.objects[key]
	if !ok {
		return 0, fmt.Errorf("no such key %q", key)
	}
	return int64(len(data)), nil
}

func (f *fakeStore) DownloadFile(_ context.Context, _, key, path string) error {
	data, ok := f.objects[key]
	if !ok {
		return fmt.Errorf("no such key %q", key)
	}
	if err := f.fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.fsys.WriteFile(path, data, 0o644)
}

func (f *fakeStore) UploadFile(_ context.Context, _, key, path string) error {
	data, err := f.fsys.ReadFile(path)
	if err != nil {
		return err
	}
	f.uploads[key] = data
	return nil
}

func zipBytes(t *testing.T, members map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(members[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestRunnerRun(t *testing.T) {
	const (
		bucket = "refs-bucket"
		src    = "refs/k21/"
		dst    = "out/k21/"
	)

	seed := func(t *testing.T) (*fakeStore, fs.Filesystem) {
		t.Helper()
		fsys := billy.NewInMemoryFS()
		store := newFakeStore(fsys)
		store.objects[src+"dbA/index.csv"] = []byte(
			"id,desc\nX1,target\nZ9,keeper\n")
		store.objects[src+"dbA/bundle.zip"] = zipBytes(t, map[string]string{
			ManifestName: "# SOURMASH-MANIFEST-VERSION: 1.0\n" +
				"internal_location,md5,name\n" +
				"signatures/abc123.sig.gz,abc123,X1 organism\n" +
				"signatures/def456.sig.gz,def456,Z9 organism\n",
			"signatures/abc123.sig.gz": "sig-a",
			"signatures/def456.sig.gz": "sig-d",
		})
		store.objects[src+"dbB/index.csv"] = []byte(
			"id,desc\nY1,other target\n")
		store.objects[src+"dbB/broken.zip"] = []byte("not a zip at all")
		store.objects[src+"dbB/notes.txt"] = []byte("free text")
		return store, fsys
	}

	spec := RunSpec{
		Bucket:    bucket,
		SrcPrefix: src,
		DstPrefix: dst,
		IDs:       NewIDSet("X1", "Y1", "W0"),
		WorkDir:   "/work",
	}

	t.Run("scrubs every object and never aborts on a bad one", func(t *testing.T) {
		store, fsys := seed(t)

		var detections []string
		r := NewRunner(store,
			WithFilesystem(fsys),
			WithDetectionHook(func(id, db, key string) {
				detections = append(detections, id+"@"+db)
				assert.NotEmpty(t, key)
			}))

		summary, err := r.Run(context.Background(), spec)
		require.NoError(t, err)

		assert.Equal(t, 5, summary.TotalKeys)
		assert.Equal(t, 3, summary.Processed)
		assert.Equal(t, 2, summary.Skipped)
		assert.Equal(t, 0, summary.Failed)
		assert.Len(t, summary.Outcomes, 5)

		// Uploads land under the destination prefix with original layout.
		cleaned, ok := store.uploads[dst+"dbA/index.csv"]
		require.True(t, ok)
		assert.Equal(t, "id,desc\nZ9,keeper\n", string(cleaned))

		cleanedB, ok := store.uploads[dst+"dbB/index.csv"]
		require.True(t, ok)
		assert.Equal(t, "id,desc\n", string(cleanedB))

		// The rebuilt bundle drops the detected signature, keeps the rest,
		// and carries the manifest through verbatim.
		rebuilt, ok := store.uploads[dst+"dbA/bundle.zip"]
		require.True(t, ok)
		zr, err := zip.NewReader(bytes.NewReader(rebuilt), int64(len(rebuilt)))
		require.NoError(t, err)
		var names []string
		for _, zf := range zr.File {
			names = append(names, zf.Name)
		}
		sort.Strings(names)
		assert.Equal(t, []string{ManifestName, "signatures/def456.sig.gz"}, names)

		// Nothing else was uploaded.
		assert.Len(t, store.uploads, 3)

		// Detection notifications fire once per identifier for the whole
		// run, even though X1 matches in both dbA objects.
		sort.Strings(detections)
		assert.Equal(t, []string{"X1@dbA", "Y1@dbB"}, detections)

		// Final table: union of detections per database.
		require.NotNil(t, summary.Report)
		assert.True(t, summary.Report.Found("X1", "dbA"))
		assert.False(t, summary.Report.Found("X1", "dbB"))
		assert.True(t, summary.Report.Found("Y1", "dbB"))
		assert.False(t, summary.Report.Found("W0", "dbA"))

		// Scratch space is gone.
		exists, err := fsys.Exists("/work")
		require.NoError(t, err)
		if exists {
			entries, err := fsys.ReadDir("/work")
			require.NoError(t, err)
			assert.Empty(t, entries)
		}
	})

	t.Run("skip outcomes carry stage and reason", func(t *testing.T) {
		store, fsys := seed(t)
		r := NewRunner(store, WithFilesystem(fsys))

		summary, err := r.Run(context.Background(), spec)
		require.NoError(t, err)

		byKey := make(map[string]Outcome, len(summary.Outcomes))
		for _, out := range summary.Outcomes {
			byKey[out.Key] = out
		}

		broken := byKey[src+"dbB/broken.zip"]
		assert.Equal(t, StatusSkipped, broken.Status)
		assert.Equal(t, StageExtract, broken.Stage)
		assert.ErrorIs(t, broken.Err, ErrBadArchive)

		notes := byKey[src+"dbB/notes.txt"]
		assert.Equal(t, StatusSkipped, notes.Status)
		assert.Equal(t, KindUnsupported, notes.Kind)
		assert.Equal(t, "unsupported object type", notes.Reason)

		processed := byKey[src+"dbA/index.csv"]
		assert.Equal(t, StatusProcessed, processed.Status)
		assert.Equal(t, 1, processed.Removed)
		assert.Equal(t, int64(len(store.objects[src+"dbA/index.csv"])), processed.Size)
	})

	t.Run("identifier in two databases notifies once, ledger keeps both", func(t *testing.T) {
		fsys := billy.NewInMemoryFS()
		store := newFakeStore(fsys)
		store.objects[src+"dbA/index.csv"] = []byte("id,desc\nX1,here\n")
		store.objects[src+"dbB/index.csv"] = []byte("id,desc\nX1,here too\n")

		var notified []string
		r := NewRunner(store,
			WithFilesystem(fsys),
			WithDetectionHook(func(id, db, _ string) {
				notified = append(notified, id+"@"+db)
			}))

		summary, err := r.Run(context.Background(), spec)
		require.NoError(t, err)

		assert.Equal(t, []string{"X1@dbA"}, notified)
		assert.True(t, summary.Report.Found("X1", "dbA"))
		assert.True(t, summary.Report.Found("X1", "dbB"))
	})

	t.Run("empty source", func(t *testing.T) {
		fsys := billy.NewInMemoryFS()
		r := NewRunner(newFakeStore(fsys), WithFilesystem(fsys))

		summary, err := r.Run(context.Background(), spec)
		require.NoError(t, err)

		assert.True(t, summary.SourceEmpty())
		assert.False(t, summary.AllExcluded())
		assert.Empty(t, summary.Outcomes)
	})

	t.Run("everything excluded", func(t *testing.T) {
		store, fsys := seed(t)
		r := NewRunner(store, WithFilesystem(fsys))

		excluded := spec
		excluded.ExcludeDBs = []string{"db"}
		summary, err := r.Run(context.Background(), excluded)
		require.NoError(t, err)

		assert.False(t, summary.SourceEmpty())
		assert.True(t, summary.AllExcluded())
		assert.Empty(t, store.uploads)
	})

	t.Run("listing failure aborts the run", func(t *testing.T) {
		fsys := billy.NewInMemoryFS()
		store := newFakeStore(fsys)
		store.listErr = fmt.Errorf("listing denied")
		r := NewRunner(store, WithFilesystem(fsys))

		_, err := r.Run(context.Background(), spec)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing denied")
	})

	t.Run("cancellation returns the partial summary", func(t *testing.T) {
		store, fsys := seed(t)
		r := NewRunner(store, WithFilesystem(fsys))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		summary, err := r.Run(ctx, spec)

		require.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, summary)
		assert.Empty(t, summary.Outcomes)
		assert.NotNil(t, summary.Report)
		// A cut-short run with no outcomes is neither empty nor excluded.
		assert.False(t, summary.SourceEmpty())
		assert.False(t, summary.AllExcluded())
	})
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		key  string
		want Kind
	}{
		{key: "refs/dbA/index.csv", want: KindTabular},
		{key: "refs/dbA/INDEX.CSV", want: KindTabular},
		{key: "refs/dbA/bundle.zip", want: KindBundle},
		{key: "refs/dbA/notes.txt", want: KindUnsupported},
		{key: "refs/dbA/noext", want: KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, kindOf(tt.key))
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "processed", StatusProcessed.String())
	assert.Equal(t, "skipped", StatusSkipped.String())
	assert.Equal(t, "failed", StatusFailed.String())
}

package scrub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/klauspost/compress/flate"
)

// ExtractBundle extracts a ZIP archive at archivePath into destDir, both on
// the given filesystem. Member paths are preserved relative to destDir;
// directory entries are skipped and re-created implicitly. An archive that
// cannot be opened, or that carries an unsafe member path, fails with
// ErrBadArchive.
func ExtractBundle(fsys fs.Filesystem, archivePath, destDir string) error {
	info, err := fsys.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}
	f, err := fsys.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadArchive, err)
	}

	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		rel := filepath.FromSlash(zf.Name)
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("%w: unsafe member path %q", ErrBadArchive, zf.Name)
		}
		if err := extractMember(fsys, zf, filepath.Join(destDir, rel)); err != nil {
			return err
		}
	}
	return nil
}

func extractMember(fsys fs.Filesystem, zf *zip.File, dst string) error {
	if dir := filepath.Dir(dst); dir != "" && dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create member directory: %w", err)
		}
	}

	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("%w: open member %q: %v", ErrBadArchive, zf.Name, err)
	}
	defer rc.Close()

	out, err := fsys.Create(dst)
	if err != nil {
		return fmt.Errorf("create member file: %w", err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: extract member %q: %v", ErrBadArchive, zf.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close member file: %w", err)
	}
	return nil
}

// FindManifest walks the extracted tree under root and returns the path of
// the first file whose base name equals ManifestName. The walk is lexical,
// so duplicate manifests resolve deterministically to the first match.
// Returns ErrNoManifest when no manifest exists anywhere in the tree.
func FindManifest(fsys fs.Filesystem, root string) (string, error) {
	var found string
	err := fsys.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if found == "" && !info.IsDir() && info.Name() == ManifestName {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk extracted tree: %w", err)
	}
	if found == "" {
		return "", ErrNoManifest
	}
	return found, nil
}

// RebuildBundle writes every file under root into a new deflate-compressed
// ZIP at outPath, excluding files whose MemberKey appears in exclude. Member
// paths are stored relative to root with forward slashes; member order
// follows the lexical walk and is not significant. Returns the number of
// members kept and excluded.
func RebuildBundle(
	fsys fs.Filesystem,
	root string,
	exclude map[string]struct{},
	outPath string,
) (kept, removed int, err error) {
	out, err := fsys.Create(outPath)
	if err != nil {
		return 0, 0, fmt.Errorf("create rebuilt archive: %w", err)
	}

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})

	walkErr := fsys.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if _, drop := exclude[MemberKey(path)]; drop {
			removed++
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativize member %q: %w", path, err)
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("add member %q: %w", rel, err)
		}
		in, err := fsys.Open(path)
		if err != nil {
			return fmt.Errorf("open member %q: %w", path, err)
		}
		_, copyErr := io.Copy(w, in)
		closeErr := in.Close()
		if copyErr != nil {
			return fmt.Errorf("compress member %q: %w", rel, copyErr)
		}
		if closeErr != nil {
			return fmt.Errorf("close member %q: %w", path, closeErr)
		}
		kept++
		return nil
	})
	if walkErr != nil {
		_ = zw.Close()
		_ = out.Close()
		return kept, removed, fmt.Errorf("rebuild archive: %w", walkErr)
	}

	if err := zw.Close(); err != nil {
		_ = out.Close()
		return kept, removed, fmt.Errorf("finalize rebuilt archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return kept, removed, fmt.Errorf("close rebuilt archive: %w", err)
	}
	return kept, removed, nil
}

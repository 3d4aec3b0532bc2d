package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/worldkeep/worldkeep/internal/backup"
)

// ErrSourceNotFound is returned when the source folder does not exist or is
// not a directory. It is fatal to the whole run: without an artifact no
// target can be serviced.
var ErrSourceNotFound = errors.New("source folder not found")

// ErrArchiveCreation wraps any I/O failure during compression.
var ErrArchiveCreation = errors.New("archive creation failed")

// Artifact is the compressed output of one backup cycle, owned by the
// orchestrator until every enabled target has consumed it or failed to.
type Artifact struct {
	Name      string
	Path      string
	Size      int64
	CreatedAt time.Time
}

// Open returns a fresh reader over the artifact bytes.
func (a *Artifact) Open() (io.ReadCloser, error) {
	return os.Open(a.Path)
}

// Remove deletes the scratch file backing the artifact.
func (a *Artifact) Remove() error {
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Archiver compresses a source directory into a timestamped zip in a
// scratch directory.
type Archiver struct {
	ScratchDir string

	// Now is the clock used for artifact timestamps, overridable in tests.
	Now func() time.Time
}

// New creates an Archiver writing into scratchDir. An empty scratchDir
// falls back to the OS temp directory.
func New(scratchDir string) *Archiver {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Archiver{ScratchDir: scratchDir, Now: time.Now}
}

// Create compresses the full recursive contents of sourceDir into a single
// zip named {basename(sourceDir)}_{YYYYMMDD_HHMMSS}.zip. The archive is
// written under a partial name and renamed once complete, so a crashed run
// never leaves a file that looks like a finished artifact.
func (a *Archiver) Create(sourceDir string) (*Artifact, error) {
	info, err := os.Stat(sourceDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceDir)
	}

	createdAt := a.Now().UTC().Truncate(time.Second)
	name := backup.FormatName(filepath.Base(filepath.Clean(sourceDir)), createdAt)

	if err := os.MkdirAll(a.ScratchDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create scratch dir: %v", ErrArchiveCreation, err)
	}

	finalPath := filepath.Join(a.ScratchDir, name)
	partialPath := finalPath + ".partial"

	if err := a.compress(sourceDir, partialPath); err != nil {
		_ = os.Remove(partialPath)
		return nil, fmt.Errorf("%w: %v", ErrArchiveCreation, err)
	}

	// Size is taken before the rename: once the final name exists, Create
	// always returns a handle for it, so the caller's cleanup can never
	// miss a finished archive.
	stat, err := os.Stat(partialPath)
	if err != nil {
		_ = os.Remove(partialPath)
		return nil, fmt.Errorf("%w: %v", ErrArchiveCreation, err)
	}
	if err := os.Rename(partialPath, finalPath); err != nil {
		_ = os.Remove(partialPath)
		return nil, fmt.Errorf("%w: %v", ErrArchiveCreation, err)
	}

	return &Artifact{
		Name:      name,
		Path:      finalPath,
		Size:      stat.Size(),
		CreatedAt: createdAt,
	}, nil
}

func (a *Archiver) compress(sourceDir, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		// Zip entries always use forward slashes, directories end in one.
		entry := filepath.ToSlash(rel)
		if d.IsDir() {
			if _, err := zw.Create(entry + "/"); err != nil {
				return err
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		w, err := zw.Create(entry)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return fmt.Errorf("compress %s: %w", sourceDir, err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", dest, err)
	}
	return out.Close()
}

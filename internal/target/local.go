package target

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/worldkeep/worldkeep/internal/archive"
	"github.com/worldkeep/worldkeep/internal/backup"
)

// Local stores backups in a directory on the local filesystem.
type Local struct {
	id     string
	dir    string
	base   string
	policy backup.RetentionPolicy
}

// NewLocal creates a local target rooted at dir. base is the source folder
// base name used by the naming scheme; files in dir that do not match it
// are ignored and never deleted.
func NewLocal(id, dir, base string, policy backup.RetentionPolicy) *Local {
	return &Local{id: id, dir: dir, base: base, policy: policy}
}

func (l *Local) ID() string                     { return l.id }
func (l *Local) Policy() backup.RetentionPolicy { return l.policy }
func (l *Local) Close() error                   { return nil }

// Store copies the artifact into the target directory. The copy goes to a
// temporary name first and is renamed once complete, so a concurrent lister
// never sees a half-written backup.
func (l *Local) Store(ctx context.Context, a *archive.Artifact) (backup.StoredBackup, error) {
	if err := ctx.Err(); err != nil {
		return backup.StoredBackup{}, opErr(l.id, "store", err)
	}
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return backup.StoredBackup{}, opErr(l.id, "store", fmt.Errorf("create backup folder: %w", err))
	}

	src, err := a.Open()
	if err != nil {
		return backup.StoredBackup{}, opErr(l.id, "store", fmt.Errorf("open artifact: %w", err))
	}
	defer src.Close()

	finalPath := filepath.Join(l.dir, a.Name)
	tmpPath := filepath.Join(l.dir, "."+a.Name+".tmp")

	dst, err := os.Create(tmpPath)
	if err != nil {
		return backup.StoredBackup{}, opErr(l.id, "store", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmpPath)
		return backup.StoredBackup{}, opErr(l.id, "store", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return backup.StoredBackup{}, opErr(l.id, "store", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return backup.StoredBackup{}, opErr(l.id, "store", err)
	}

	return backup.StoredBackup{Name: a.Name, CreatedAt: a.CreatedAt, Size: a.Size}, nil
}

// List enumerates backups in the target directory, deriving each creation
// timestamp from the file name.
func (l *Local) List(ctx context.Context) ([]backup.StoredBackup, error) {
	if err := ctx.Err(); err != nil {
		return nil, opErr(l.id, "list", err)
	}
	// A missing directory is a listing failure, not an empty target, so
	// retention never runs against a mistakenly empty view.
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, opErr(l.id, "list", err)
	}

	var backups []backup.StoredBackup
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		ts, ok := backup.ParseName(l.base, entry.Name())
		if !ok {
			continue
		}
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		backups = append(backups, backup.StoredBackup{Name: entry.Name(), CreatedAt: ts, Size: size})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].CreatedAt.Before(backups[j].CreatedAt)
		}
		return backups[i].Name < backups[j].Name
	})
	return backups, nil
}

// Prune deletes each victim, recording failures per victim.
func (l *Local) Prune(ctx context.Context, victims []backup.StoredBackup) PruneResult {
	var result PruneResult
	for _, v := range victims {
		if err := ctx.Err(); err != nil {
			result.Failed = append(result.Failed, PruneFailure{Name: v.Name, Err: err})
			continue
		}
		if err := os.Remove(filepath.Join(l.dir, v.Name)); err != nil {
			result.Failed = append(result.Failed, PruneFailure{Name: v.Name, Err: err})
			continue
		}
		result.Deleted = append(result.Deleted, v.Name)
	}
	return result
}

// Package target abstracts backup destinations behind a three-operation
// contract: store an artifact, list the backups at rest, prune victims.
// Local directories and remote FTP folders implement the same contract and
// are selected at configuration-load time.
package target

import (
	"context"
	"errors"
	"fmt"

	"github.com/worldkeep/worldkeep/internal/archive"
	"github.com/worldkeep/worldkeep/internal/backup"
)

// Sentinel errors for transport-level failure categories. They are wrapped
// inside OpError so callers can both identify the target and match the
// category with errors.Is.
var (
	// ErrConnection covers unreachable hosts, refused connections and
	// timeouts.
	ErrConnection = errors.New("connection failed")

	// ErrAuth covers rejected credentials, distinct from ErrConnection.
	ErrAuth = errors.New("authentication failed")
)

// OpError is a target-scoped failure: which target, which operation, what
// underlying cause. It never aborts sibling targets.
type OpError struct {
	Target string
	Op     string
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("target %s: %s: %v", e.Target, e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// PruneFailure records one victim that could not be deleted.
type PruneFailure struct {
	Name string
	Err  error
}

// PruneResult reports the per-victim outcome of a prune. A failed deletion
// of one backup never blocks deletion of the others.
type PruneResult struct {
	Deleted []string
	Failed  []PruneFailure
}

// Target is a backup destination with its own retention policy. List always
// re-queries the destination; there is no cached inventory. Close releases
// any connection held for the current cycle.
type Target interface {
	ID() string
	Store(ctx context.Context, a *archive.Artifact) (backup.StoredBackup, error)
	List(ctx context.Context) ([]backup.StoredBackup, error)
	Prune(ctx context.Context, victims []backup.StoredBackup) PruneResult
	Policy() backup.RetentionPolicy
	Close() error
}

func opErr(target, op string, err error) *OpError {
	return &OpError{Target: target, Op: op, Err: err}
}

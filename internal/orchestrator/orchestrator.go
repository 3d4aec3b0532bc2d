// Package orchestrator runs one backup cycle: archive the source once, then
// fan the artifact out to every enabled target, rotating each target's old
// backups according to its own policy. Target failures are isolated; one
// flaky destination never corrupts another's state or aborts the run.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/worldkeep/worldkeep/internal/archive"
	"github.com/worldkeep/worldkeep/internal/backup"
	"github.com/worldkeep/worldkeep/internal/retention"
	"github.com/worldkeep/worldkeep/internal/target"
)

// Outcome classifies how one target fared during a cycle.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeStoreFailed  Outcome = "store_failed"
	OutcomeListFailed   Outcome = "list_failed"
	OutcomePartialPrune Outcome = "partial_prune"
)

// TargetResult is the per-target record of one cycle.
type TargetResult struct {
	TargetID      string
	Outcome       Outcome
	Stored        backup.StoredBackup
	Err           error
	Pruned        []string
	PruneFailures []target.PruneFailure
}

// Summary reports one full cycle: the artifact produced and every target's
// outcome, in configuration order.
type Summary struct {
	Artifact string
	Size     int64
	Results  []TargetResult
}

// AllStoresFailed reports whether every attempted target failed to store
// the artifact. Together with an archiver error it is the only condition
// that makes a run fail as a whole; partial target failure is a degraded
// but successful run.
func (s *Summary) AllStoresFailed() bool {
	if len(s.Results) == 0 {
		return false
	}
	for _, r := range s.Results {
		if r.Outcome != OutcomeStoreFailed {
			return false
		}
	}
	return true
}

// Orchestrator owns the artifact for the duration of one cycle.
type Orchestrator struct {
	archiver *archive.Archiver
	targets  []target.Target
	logger   *slog.Logger
}

// New creates an orchestrator over the given targets. Target order is
// configuration order; it is stable but carries no semantics since targets
// are independent.
func New(archiver *archive.Archiver, targets []target.Target, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{archiver: archiver, targets: targets, logger: logger}
}

// Run executes one backup cycle over sourceDir. It returns an error only
// for the two whole-run-fatal conditions: the archiver failed (no target is
// touched), or every target failed to store. A summary is returned whenever
// distribution was attempted, even on total store failure.
func (o *Orchestrator) Run(ctx context.Context, sourceDir string) (*Summary, error) {
	o.logger.Info("compressing source", "source", sourceDir)
	artifact, err := o.archiver.Create(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if err := artifact.Remove(); err != nil {
			o.logger.Warn("failed to remove scratch artifact", "path", artifact.Path, "error", err)
		}
	}()
	o.logger.Info("archive created", "name", artifact.Name, "bytes", artifact.Size)

	summary := &Summary{Artifact: artifact.Name, Size: artifact.Size}
	for _, t := range o.targets {
		summary.Results = append(summary.Results, o.distribute(ctx, t, artifact))
	}

	if summary.AllStoresFailed() {
		return summary, fmt.Errorf("all %d targets failed to store %s", len(summary.Results), artifact.Name)
	}
	return summary, nil
}

// distribute runs store, list, victim selection and prune against a single
// target. Every error is caught here and recorded in the result; nothing
// propagates to sibling targets.
func (o *Orchestrator) distribute(ctx context.Context, t target.Target, artifact *archive.Artifact) TargetResult {
	result := TargetResult{TargetID: t.ID()}
	logger := o.logger.With("target", t.ID())
	defer func() {
		if err := t.Close(); err != nil {
			logger.Warn("failed to close target", "error", err)
		}
	}()

	stored, err := t.Store(ctx, artifact)
	if err != nil {
		logger.Error("store failed", "error", err)
		result.Outcome = OutcomeStoreFailed
		result.Err = err
		return result
	}
	result.Stored = stored
	logger.Info("backup stored", "name", stored.Name)

	if t.Policy().Unlimited() {
		result.Outcome = OutcomeSuccess
		return result
	}

	// A failed listing aborts this target's retention step entirely; running
	// retention against a partial view could prune the wrong backups. The
	// store still counts as a success.
	backups, err := t.List(ctx)
	if err != nil {
		logger.Error("list failed, skipping retention", "error", err)
		result.Outcome = OutcomeListFailed
		result.Err = err
		return result
	}

	victims := retention.SelectVictims(backups, t.Policy().MaxBackups)
	if len(victims) == 0 {
		result.Outcome = OutcomeSuccess
		return result
	}

	prune := t.Prune(ctx, victims)
	result.Pruned = prune.Deleted
	result.PruneFailures = prune.Failed
	for _, name := range prune.Deleted {
		logger.Info("rotated old backup", "name", name)
	}
	for _, failure := range prune.Failed {
		logger.Warn("failed to delete old backup", "name", failure.Name, "error", failure.Err)
	}

	if len(prune.Failed) > 0 {
		result.Outcome = OutcomePartialPrune
		return result
	}
	result.Outcome = OutcomeSuccess
	return result
}

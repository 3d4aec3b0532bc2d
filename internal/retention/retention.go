// Package retention decides which stored backups a target must delete to
// respect its maximum-count policy. It performs no I/O; callers list the
// target, pass the result here, and prune whatever comes back.
package retention

import (
	"sort"

	"github.com/worldkeep/worldkeep/internal/backup"
)

// SelectVictims returns the oldest backups that must be deleted so that at
// most maxBackups remain. maxBackups <= 0 means unlimited retention and
// never selects anything.
//
// Ordering is by creation timestamp ascending, falling back to the full name
// for backups created within the same second, so the order is total and the
// result deterministic for a given input set.
func SelectVictims(backups []backup.StoredBackup, maxBackups int) []backup.StoredBackup {
	if maxBackups <= 0 || len(backups) <= maxBackups {
		return nil
	}

	sorted := make([]backup.StoredBackup, len(backups))
	copy(sorted, backups)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].Name < sorted[j].Name
	})

	return sorted[:len(sorted)-maxBackups]
}

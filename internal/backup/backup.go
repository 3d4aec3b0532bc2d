package backup

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayout is the sortable UTC layout embedded in every backup name.
// For a fixed base name, lexicographic order of names equals chronological
// order of creation.
const timestampLayout = "20060102_150405"

// Extension is the archive extension shared by the archiver and all targets.
const Extension = ".zip"

// StoredBackup is a backup as it exists at rest on a target. Name is the
// target-relative identifier and the only trusted record of creation time;
// filesystem mtimes are never consulted because FTP servers do not preserve
// them reliably.
type StoredBackup struct {
	Name      string
	CreatedAt time.Time
	Size      int64
}

// RetentionPolicy is the per-target rotation configuration. MaxBackups <= 0
// means unlimited retention; the value always comes from explicit
// configuration, never from a silent default.
type RetentionPolicy struct {
	MaxBackups int
}

// Unlimited reports whether the policy never selects victims.
func (p RetentionPolicy) Unlimited() bool {
	return p.MaxBackups <= 0
}

// FormatName builds the backup file name for an archive of the given source
// base created at ts: {base}_{YYYYMMDD_HHMMSS}.zip (timestamp in UTC).
func FormatName(base string, ts time.Time) string {
	return fmt.Sprintf("%s_%s%s", base, ts.UTC().Format(timestampLayout), Extension)
}

// ParseName extracts the creation timestamp from a backup name produced by
// FormatName for the same base. It returns false for any name that does not
// match the pattern, so targets can skip foreign files during listing.
func ParseName(base, name string) (time.Time, bool) {
	prefix := base + "_"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, Extension) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), Extension)
	ts, err := time.ParseInLocation(timestampLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

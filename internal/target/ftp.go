package target

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/worldkeep/worldkeep/internal/archive"
	"github.com/worldkeep/worldkeep/internal/backup"
)

// FTPConfig locates a remote FTP destination.
type FTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Folder   string
	Timeout  time.Duration
}

// ftpConn is the slice of the FTP client used by the target. The real
// implementation is *ftp.ServerConn; tests substitute a mock through the
// dial field.
type ftpConn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	MakeDir(path string) error
	Stor(path string, r io.Reader) error
	NameList(path string) ([]string, error)
	Delete(path string) error
	Rename(from, to string) error
	Quit() error
}

// FTP stores backups in a folder on a remote FTP server. One connection is
// dialed lazily per cycle and reused across operations until Close.
type FTP struct {
	id     string
	cfg    FTPConfig
	base   string
	policy backup.RetentionPolicy

	dial func(ctx context.Context) (ftpConn, error)
	conn ftpConn
}

// NewFTP creates an FTP target. base is the source folder base name used by
// the naming scheme.
func NewFTP(id string, cfg FTPConfig, base string, policy backup.RetentionPolicy) *FTP {
	t := &FTP{id: id, cfg: cfg, base: base, policy: policy}
	t.dial = t.dialServer
	return t
}

func (f *FTP) ID() string                     { return f.id }
func (f *FTP) Policy() backup.RetentionPolicy { return f.policy }

func (f *FTP) dialServer(ctx context.Context) (ftpConn, error) {
	addr := fmt.Sprintf("%s:%d", f.cfg.Host, f.cfg.Port)
	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(f.cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, addr, err)
	}
	return conn, nil
}

// connect dials and logs in on first use, then selects the remote folder,
// creating it when missing. A rejected login is reported as ErrAuth,
// distinct from an unreachable host.
func (f *FTP) connect(ctx context.Context) (ftpConn, error) {
	if f.conn != nil {
		return f.conn, nil
	}
	conn, err := f.dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.Login(f.cfg.User, f.cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("%w: login as %s: %v", ErrAuth, f.cfg.User, err)
	}
	if err := conn.ChangeDir(f.cfg.Folder); err != nil {
		if err := conn.MakeDir(f.cfg.Folder); err != nil {
			_ = conn.Quit()
			return nil, fmt.Errorf("create remote folder %s: %w", f.cfg.Folder, err)
		}
		if err := conn.ChangeDir(f.cfg.Folder); err != nil {
			_ = conn.Quit()
			return nil, fmt.Errorf("select remote folder %s: %w", f.cfg.Folder, err)
		}
	}
	f.conn = conn
	return conn, nil
}

// Store uploads the artifact under a partial name and renames it once the
// transfer completes, so a partial upload never shows up in a listing as a
// finished backup.
func (f *FTP) Store(ctx context.Context, a *archive.Artifact) (backup.StoredBackup, error) {
	conn, err := f.connect(ctx)
	if err != nil {
		return backup.StoredBackup{}, opErr(f.id, "store", err)
	}

	src, err := a.Open()
	if err != nil {
		return backup.StoredBackup{}, opErr(f.id, "store", fmt.Errorf("open artifact: %w", err))
	}
	defer src.Close()

	partial := a.Name + ".partial"
	if err := conn.Stor(partial, src); err != nil {
		_ = conn.Delete(partial)
		return backup.StoredBackup{}, opErr(f.id, "store", fmt.Errorf("upload %s: %w", a.Name, err))
	}
	if err := conn.Rename(partial, a.Name); err != nil {
		_ = conn.Delete(partial)
		return backup.StoredBackup{}, opErr(f.id, "store", fmt.Errorf("finalize %s: %w", a.Name, err))
	}

	return backup.StoredBackup{Name: a.Name, CreatedAt: a.CreatedAt, Size: a.Size}, nil
}

// List retrieves the remote directory listing and keeps entries matching
// the naming scheme. A transport failure is reported as an error, never as
// an empty listing, so retention is skipped rather than run on a false view.
func (f *FTP) List(ctx context.Context) ([]backup.StoredBackup, error) {
	conn, err := f.connect(ctx)
	if err != nil {
		return nil, opErr(f.id, "list", err)
	}

	names, err := conn.NameList("")
	if err != nil {
		return nil, opErr(f.id, "list", err)
	}

	var backups []backup.StoredBackup
	for _, name := range names {
		ts, ok := backup.ParseName(f.base, name)
		if !ok {
			continue
		}
		backups = append(backups, backup.StoredBackup{Name: name, CreatedAt: ts})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].CreatedAt.Before(backups[j].CreatedAt)
		}
		return backups[i].Name < backups[j].Name
	})
	return backups, nil
}

// Prune deletes each victim on the server, recording failures per victim.
func (f *FTP) Prune(ctx context.Context, victims []backup.StoredBackup) PruneResult {
	var result PruneResult

	conn, err := f.connect(ctx)
	if err != nil {
		for _, v := range victims {
			result.Failed = append(result.Failed, PruneFailure{Name: v.Name, Err: err})
		}
		return result
	}

	for _, v := range victims {
		if err := conn.Delete(v.Name); err != nil {
			result.Failed = append(result.Failed, PruneFailure{Name: v.Name, Err: err})
			continue
		}
		result.Deleted = append(result.Deleted, v.Name)
	}
	return result
}

// Close quits the connection held for the current cycle, if any.
func (f *FTP) Close() error {
	if f.conn == nil {
		return nil
	}
	conn := f.conn
	f.conn = nil
	return conn.Quit()
}

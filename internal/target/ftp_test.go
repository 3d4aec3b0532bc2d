package target

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/worldkeep/worldkeep/internal/backup"
)

// mockConn stands in for the FTP wire.
type mockConn struct {
	mock.Mock
}

func (m *mockConn) Login(user, password string) error {
	return m.Called(user, password).Error(0)
}
func (m *mockConn) ChangeDir(path string) error {
	return m.Called(path).Error(0)
}
func (m *mockConn) MakeDir(path string) error {
	return m.Called(path).Error(0)
}
func (m *mockConn) Stor(path string, r io.Reader) error {
	return m.Called(path, r).Error(0)
}
func (m *mockConn) NameList(path string) ([]string, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
func (m *mockConn) Delete(path string) error {
	return m.Called(path).Error(0)
}
func (m *mockConn) Rename(from, to string) error {
	return m.Called(from, to).Error(0)
}
func (m *mockConn) Quit() error {
	return m.Called().Error(0)
}

func newMockedFTP(conn ftpConn, dialErr error) *FTP {
	t := NewFTP("ftp", FTPConfig{
		Host: "backup.example.com", Port: 21,
		User: "mc", Password: "hunter2",
		Folder: "/backups",
	}, "world", backup.RetentionPolicy{MaxBackups: 5})
	t.dial = func(ctx context.Context) (ftpConn, error) {
		if dialErr != nil {
			return nil, dialErr
		}
		return conn, nil
	}
	return t
}

func TestFTP_Store(t *testing.T) {
	ts := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	a := makeArtifact(t, backup.FormatName("world", ts), ts)

	conn := &mockConn{}
	conn.On("Login", "mc", "hunter2").Return(nil)
	conn.On("ChangeDir", "/backups").Return(nil)
	conn.On("Stor", a.Name+".partial", mock.Anything).Return(nil)
	conn.On("Rename", a.Name+".partial", a.Name).Return(nil)
	conn.On("Quit").Return(nil)

	f := newMockedFTP(conn, nil)
	stored, err := f.Store(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, a.Name, stored.Name)
	assert.Equal(t, ts, stored.CreatedAt)

	require.NoError(t, f.Close())
	conn.AssertExpectations(t)
}

func TestFTP_StoreCreatesRemoteFolder(t *testing.T) {
	ts := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	a := makeArtifact(t, backup.FormatName("world", ts), ts)

	conn := &mockConn{}
	conn.On("Login", "mc", "hunter2").Return(nil)
	conn.On("ChangeDir", "/backups").Return(errors.New("550 no such directory")).Once()
	conn.On("MakeDir", "/backups").Return(nil)
	conn.On("ChangeDir", "/backups").Return(nil).Once()
	conn.On("Stor", a.Name+".partial", mock.Anything).Return(nil)
	conn.On("Rename", a.Name+".partial", a.Name).Return(nil)

	f := newMockedFTP(conn, nil)
	_, err := f.Store(context.Background(), a)
	require.NoError(t, err)
	conn.AssertExpectations(t)
}

func TestFTP_StoreUploadFailureCleansPartial(t *testing.T) {
	ts := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	a := makeArtifact(t, backup.FormatName("world", ts), ts)

	conn := &mockConn{}
	conn.On("Login", "mc", "hunter2").Return(nil)
	conn.On("ChangeDir", "/backups").Return(nil)
	conn.On("Stor", a.Name+".partial", mock.Anything).Return(errors.New("426 transfer aborted"))
	conn.On("Delete", a.Name+".partial").Return(nil)

	f := newMockedFTP(conn, nil)
	_, err := f.Store(context.Background(), a)
	require.Error(t, err)

	var opError *OpError
	require.ErrorAs(t, err, &opError)
	assert.Equal(t, "ftp", opError.Target)
	assert.Equal(t, "store", opError.Op)
	conn.AssertExpectations(t)
}

func TestFTP_StoreConnectionRefused(t *testing.T) {
	ts := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	a := makeArtifact(t, backup.FormatName("world", ts), ts)

	f := newMockedFTP(nil, ErrConnection)
	_, err := f.Store(context.Background(), a)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestFTP_LoginRejected(t *testing.T) {
	ts := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	a := makeArtifact(t, backup.FormatName("world", ts), ts)

	conn := &mockConn{}
	conn.On("Login", "mc", "hunter2").Return(errors.New("530 login incorrect"))
	conn.On("Quit").Return(nil)

	f := newMockedFTP(conn, nil)
	_, err := f.Store(context.Background(), a)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.False(t, errors.Is(err, ErrConnection), "rejected credentials are not a connection failure")
	conn.AssertExpectations(t)
}

func TestFTP_List(t *testing.T) {
	conn := &mockConn{}
	conn.On("Login", "mc", "hunter2").Return(nil)
	conn.On("ChangeDir", "/backups").Return(nil)
	conn.On("NameList", "").Return([]string{
		"world_20260831_120000.zip",
		"readme.txt",
		"world_20260829_120000.zip",
		"world_20260830_120000.zip.partial",
		"world_20260830_120000.zip",
	}, nil)

	f := newMockedFTP(conn, nil)
	backups, err := f.List(context.Background())
	require.NoError(t, err)

	names := make([]string, len(backups))
	for i, b := range backups {
		names[i] = b.Name
	}
	assert.Equal(t, []string{
		"world_20260829_120000.zip",
		"world_20260830_120000.zip",
		"world_20260831_120000.zip",
	}, names, "sorted oldest first, foreign and partial names skipped")
}

func TestFTP_ListFailureIsNotEmptyListing(t *testing.T) {
	conn := &mockConn{}
	conn.On("Login", "mc", "hunter2").Return(nil)
	conn.On("ChangeDir", "/backups").Return(nil)
	conn.On("NameList", "").Return(nil, errors.New("connection reset"))

	f := newMockedFTP(conn, nil)
	backups, err := f.List(context.Background())
	require.Error(t, err, "a dropped connection must never read as zero backups")
	assert.Nil(t, backups)
}

func TestFTP_ConnectionReusedAcrossOperations(t *testing.T) {
	dials := 0
	conn := &mockConn{}
	conn.On("Login", "mc", "hunter2").Return(nil)
	conn.On("ChangeDir", "/backups").Return(nil).Once()
	conn.On("NameList", "").Return([]string{}, nil).Twice()

	f := newMockedFTP(nil, nil)
	f.dial = func(ctx context.Context) (ftpConn, error) {
		dials++
		return conn, nil
	}

	_, err := f.List(context.Background())
	require.NoError(t, err)
	_, err = f.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dials)
}

func TestFTP_Prune(t *testing.T) {
	conn := &mockConn{}
	conn.On("Login", "mc", "hunter2").Return(nil)
	conn.On("ChangeDir", "/backups").Return(nil)
	conn.On("Delete", "world_20260829_120000.zip").Return(nil)
	conn.On("Delete", "world_20260830_120000.zip").Return(errors.New("550 file busy"))
	conn.On("Delete", "world_20260831_090000.zip").Return(nil)

	f := newMockedFTP(conn, nil)
	result := f.Prune(context.Background(), []backup.StoredBackup{
		{Name: "world_20260829_120000.zip"},
		{Name: "world_20260830_120000.zip"},
		{Name: "world_20260831_090000.zip"},
	})

	assert.Equal(t, []string{"world_20260829_120000.zip", "world_20260831_090000.zip"}, result.Deleted)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "world_20260830_120000.zip", result.Failed[0].Name)
	conn.AssertExpectations(t)
}

func TestFTP_PruneConnectFailureFailsAllVictims(t *testing.T) {
	f := newMockedFTP(nil, ErrConnection)
	result := f.Prune(context.Background(), []backup.StoredBackup{
		{Name: "world_20260829_120000.zip"},
		{Name: "world_20260830_120000.zip"},
	})

	assert.Empty(t, result.Deleted)
	require.Len(t, result.Failed, 2)
	for _, failure := range result.Failed {
		assert.ErrorIs(t, failure.Err, ErrConnection)
	}
}

func TestFTP_CloseWithoutConnect(t *testing.T) {
	f := newMockedFTP(nil, nil)
	assert.NoError(t, f.Close())
}

package sync

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/driftsync/driftsync/pkg/drive"
	"github.com/driftsync/driftsync/pkg/session"
	"github.com/driftsync/driftsync/pkg/versions"
)

// newLocalTest builds the upload daemon directly so no real filesystem
// watcher is started.
func newLocalTest(t *testing.T, fake *fakeDrive) (*LocalDaemon, *versions.Store, string) {
	fs = afero.NewMemMapFs()
	assert.NoError(t, fs.MkdirAll("/drive", 0755))

	stateDir, err := ioutil.TempDir("", "driftsync-test")
	assert.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(stateDir) })

	store := versions.New(stateDir)
	daemon := &LocalDaemon{
		session:  session.New(fake, func(drive.Session) error { return nil }),
		store:    store,
		rootID:   "root",
		localDir: "/drive",
	}
	return daemon, store, stateDir
}

func TestLocalSyncUploadsNewTree(t *testing.T) {
	fake := newFakeDrive()
	fake.addFolder("", "root", "drive", "1")

	daemon, store, _ := newLocalTest(t, fake)
	assert.NoError(t, fs.MkdirAll("/drive/sub", 0755))
	assert.NoError(t, afero.WriteFile(fs, "/drive/sub/file.txt",
		[]byte("local data"), 0644))
	assert.NoError(t, afero.WriteFile(fs, "/drive/top.txt",
		[]byte("top"), 0644))

	completed, err := daemon.syncOnce()
	assert.NoError(t, err)
	assert.True(t, completed)

	// The folder must be created before the file inside it.
	assert.Equal(t, []string{"sub", "file.txt", "top.txt"}, fake.creates)

	mapping, err := store.Load()
	assert.NoError(t, err)
	assert.Len(t, mapping, 3)

	byPath := map[string]versions.Record{}
	for _, rec := range mapping {
		byPath[rec.Path] = rec
	}
	assert.True(t, byPath["/drive/sub"].IsFolder)
	assert.Equal(t, hashBytes([]byte("local data")),
		byPath["/drive/sub/file.txt"].ContentHash)
	assert.Equal(t, "root", byPath["/drive/top.txt"].ParentID)
}

func TestLocalSyncUploadsChangedContent(t *testing.T) {
	fake := newFakeDrive()
	fake.addFolder("", "root", "drive", "1")
	fake.addFile("root", "doc", "doc.txt", "2", []byte("old"))

	daemon, store, _ := newLocalTest(t, fake)
	assert.NoError(t, afero.WriteFile(fs, "/drive/doc.txt", []byte("new"), 0644))
	releaseStore := store.Acquire()
	assert.NoError(t, store.Save(map[string]versions.Record{
		"doc": {
			Version:     "2",
			ContentHash: hashBytes([]byte("old")),
			ParentID:    "root",
			Path:        "/drive/doc.txt",
		},
	}))
	releaseStore()

	completed, err := daemon.syncOnce()
	assert.NoError(t, err)
	assert.True(t, completed)

	assert.Equal(t, []string{"doc"}, fake.updates)
	assert.Empty(t, fake.creates)
	assert.Equal(t, "new", string(fake.contents["doc"]))

	mapping, err := store.Load()
	assert.NoError(t, err)
	assert.Equal(t, hashBytes([]byte("new")), mapping["doc"].ContentHash)
}

func TestLocalSyncNoChangesNoCalls(t *testing.T) {
	fake := newFakeDrive()
	fake.addFolder("", "root", "drive", "1")

	daemon, store, _ := newLocalTest(t, fake)
	assert.NoError(t, afero.WriteFile(fs, "/drive/doc.txt", []byte("same"), 0644))
	releaseStore := store.Acquire()
	assert.NoError(t, store.Save(map[string]versions.Record{
		"doc": {
			Version:     "2",
			ContentHash: hashBytes([]byte("same")),
			ParentID:    "root",
			Path:        "/drive/doc.txt",
		},
	}))
	releaseStore()

	completed, err := daemon.syncOnce()
	assert.NoError(t, err)
	assert.True(t, completed)

	assert.Empty(t, fake.creates)
	assert.Empty(t, fake.updates)
	assert.Empty(t, fake.trashes)
}

func TestLocalSyncTrashesRemoved(t *testing.T) {
	fake := newFakeDrive()
	fake.addFolder("", "root", "drive", "1")
	fake.addFile("root", "gone", "gone.txt", "2", []byte("bye"))

	daemon, store, _ := newLocalTest(t, fake)
	releaseStore := store.Acquire()
	assert.NoError(t, store.Save(map[string]versions.Record{
		"gone": {
			Version:     "2",
			ContentHash: hashBytes([]byte("bye")),
			ParentID:    "root",
			Path:        "/drive/gone.txt",
		},
	}))
	releaseStore()

	completed, err := daemon.syncOnce()
	assert.NoError(t, err)
	assert.True(t, completed)

	assert.Equal(t, []string{"gone"}, fake.trashes)
	mapping, err := store.Load()
	assert.NoError(t, err)
	assert.Empty(t, mapping)
}

func TestLocalSyncReauthorizes(t *testing.T) {
	fake := newFakeDrive()
	fake.addFolder("", "root", "drive", "1")
	fake.authFailures = 1

	daemon, store, stateDir := newLocalTest(t, fake)
	assert.NoError(t, afero.WriteFile(fs, "/drive/new.txt", []byte("data"), 0644))
	releaseStore := store.Acquire()
	assert.NoError(t, store.Save(map[string]versions.Record{}))
	releaseStore()
	before, err := ioutil.ReadFile(filepath.Join(stateDir, versions.FileName))
	assert.NoError(t, err)

	completed, err := daemon.syncOnce()
	assert.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, 1, fake.refreshCount())

	after, err := ioutil.ReadFile(filepath.Join(stateDir, versions.FileName))
	assert.NoError(t, err)
	assert.Equal(t, before, after)

	// The retried cycle succeeds with the refreshed session.
	completed, err = daemon.syncOnce()
	assert.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, []string{"new.txt"}, fake.creates)
}

func TestSnapshotLocal(t *testing.T) {
	fs = afero.NewMemMapFs()
	assert.NoError(t, fs.MkdirAll("/drive/a/b", 0755))
	assert.NoError(t, afero.WriteFile(fs, "/drive/a/file.txt",
		[]byte("contents"), 0644))

	snapshot, err := snapshotLocal("/drive")
	assert.NoError(t, err)
	assert.Equal(t, map[string]localFile{
		"/drive/a":          {isDir: true},
		"/drive/a/b":        {isDir: true},
		"/drive/a/file.txt": {hash: hashBytes([]byte("contents"))},
	}, snapshot)
}

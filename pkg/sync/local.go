package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/driftsync/driftsync/pkg/drive"
	"github.com/driftsync/driftsync/pkg/errors"
	"github.com/driftsync/driftsync/pkg/fswatch"
	"github.com/driftsync/driftsync/pkg/session"
	"github.com/driftsync/driftsync/pkg/versions"
)

// localPollInterval is how often the local daemon checks for changes even
// when no filesystem event fired. It's the only trigger when the watcher
// couldn't be set up.
const localPollInterval = 15 * time.Second

// LocalDaemon uploads local-side changes to the drive: new files and
// folders, content updates, and removals of objects that disappeared from
// the local tree. It shares the session and version store with the remote
// daemon and acquires them in the same order.
type LocalDaemon struct {
	session  *session.Shared
	store    *versions.Store
	rootID   string
	localDir string

	trigger chan struct{}
	clock   clockwork.Clock
}

// NewLocalDaemon creates the upload-direction daemon for the local root.
func NewLocalDaemon(shared *session.Shared, store *versions.Store,
	rootID, localDir string) (*LocalDaemon, error) {

	trigger, err := fswatch.Watch(localDir)
	if err != nil {
		rootCause := errors.RootCause(err)
		if strings.Contains(rootCause.Error(), "too many open files") {
			log.WithField("dir", localDir).Warnf(
				"Too many files to watch for changes. Falling back to "+
					"polling every %s.", localPollInterval)
			trigger = nil
		} else {
			return nil, errors.WithContext(err, "watch files")
		}
	}

	return &LocalDaemon{
		session:  shared,
		store:    store,
		rootID:   rootID,
		localDir: localDir,
		trigger:  trigger,
		clock:    clockwork.NewRealClock(),
	}, nil
}

// Run loops upload cycles until one fails. The first cycle runs
// immediately; afterwards a cycle runs whenever a watched file changes, and
// at least every poll interval.
func (d *LocalDaemon) Run() error {
	for {
		completed, err := d.syncOnce()
		if err != nil {
			return err
		}
		if !completed {
			continue
		}

		select {
		case <-d.trigger:
		case <-d.clock.After(localPollInterval):
		}
	}
}

// syncOnce runs one upload cycle, with the same completed/abandoned
// semantics as the remote daemon.
func (d *LocalDaemon) syncOnce() (completed bool, err error) {
	client, releaseSession := d.session.Acquire()
	defer releaseSession()
	releaseStore := d.store.Acquire()
	defer releaseStore()

	mapping, err := d.store.Load()
	if err != nil {
		return false, err
	}

	snapshot, err := snapshotLocal(d.localDir)
	if err != nil {
		return false, errors.WithContext(err, "snapshot local files")
	}

	if err := d.push(client, snapshot, mapping); err != nil {
		if drive.IsUnauthorized(err) {
			if reauthErr := d.session.Reauthorize(); reauthErr != nil {
				return false, reauthErr
			}
			return false, nil
		}
		return false, errors.WithContext(err, "push updates to the drive")
	}

	if err := d.store.Save(mapping); err != nil {
		return false, err
	}
	return true, nil
}

// localFile is one entry of a local tree snapshot.
type localFile struct {
	isDir bool

	// hash is the md5 of the file's content. Empty for directories.
	hash string
}

// snapshotLocal walks the local root and returns its files and directories
// keyed by absolute path. The root itself is not included.
func snapshotLocal(root string) (map[string]localFile, error) {
	snapshot := map[string]localFile{}
	err := afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		if path == root {
			return nil
		}

		if fi.IsDir() {
			snapshot[path] = localFile{isDir: true}
			return nil
		}

		hash, err := HashFile(path)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("hash %q", path))
		}
		snapshot[path] = localFile{hash: hash}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// push reconciles the local snapshot against the mapping: uploads anything
// the drive doesn't have yet, updates files whose content changed, and
// trashes objects that disappeared locally. The mapping is refreshed from
// the server's returned metadata as it goes.
func (d *LocalDaemon) push(client drive.Client, snapshot map[string]localFile,
	mapping map[string]versions.Record) error {

	pathIndex := map[string]string{d.localDir: d.rootID}
	for id, rec := range mapping {
		pathIndex[rec.Path] = id
	}

	// Create new objects parents-first. Sorting paths lexicographically
	// guarantees a directory sorts before everything inside it.
	var paths []string
	for path := range snapshot {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if _, tracked := pathIndex[path]; tracked {
			continue
		}

		parentID, ok := pathIndex[filepath.Dir(path)]
		if !ok {
			// The parent couldn't be created this cycle (or is itself
			// untracked). The next cycle picks this path up again.
			log.WithField("path", path).Warn(
				"Skipping upload: parent folder isn't tracked yet")
			continue
		}

		meta, err := d.create(client, parentID, path, snapshot[path])
		if err != nil {
			return err
		}

		mapping[meta.ID] = recordFor(meta, parentID, path, snapshot[path])
		pathIndex[path] = meta.ID
		log.WithField("path", path).Info("Uploaded new object")
	}

	// Re-upload files whose content changed since they were last synced.
	for id, rec := range mapping {
		if rec.IsFolder {
			continue
		}
		local, ok := snapshot[rec.Path]
		if !ok || local.isDir || local.hash == rec.ContentHash {
			continue
		}

		contents, err := afero.ReadFile(fs, rec.Path)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("read %q", rec.Path))
		}

		if hashBytes(contents) != local.hash {
			// The file changed between the snapshot and the read. Leave it
			// for the next cycle so the recorded hash matches what was
			// actually uploaded.
			log.WithError(errors.ErrFileChanged).WithField("path", rec.Path).
				Warn("Skipping upload until the next cycle")
			continue
		}

		meta, err := client.UpdateContent(id, contents)
		if err != nil {
			return err
		}

		mapping[id] = recordFor(*meta, rec.ParentID, rec.Path, local)
		log.WithField("path", rec.Path).Info("Uploaded changed content")
	}

	// Trash objects that disappeared from the local tree.
	for id, rec := range mapping {
		if _, ok := snapshot[rec.Path]; ok {
			continue
		}

		if err := client.Trash(id); err != nil {
			return err
		}
		delete(mapping, id)
		log.WithField("path", rec.Path).Info("Trashed removed object")
	}

	return nil
}

func (d *LocalDaemon) create(client drive.Client, parentID, path string,
	local localFile) (drive.Meta, error) {

	name := filepath.Base(path)
	if local.isDir {
		meta, err := client.CreateFolder(parentID, name)
		if err != nil {
			return drive.Meta{}, err
		}
		return *meta, nil
	}

	contents, err := afero.ReadFile(fs, path)
	if err != nil {
		return drive.Meta{}, errors.WithContext(err, fmt.Sprintf("read %q", path))
	}

	meta, err := client.Upload(parentID, name, contents)
	if err != nil {
		return drive.Meta{}, err
	}
	return *meta, nil
}

func recordFor(meta drive.Meta, parentID, path string, local localFile) versions.Record {
	rec := versions.Record{
		Version:  meta.Version,
		ParentID: parentID,
		Path:     path,
		IsFolder: local.isDir,
	}
	if !local.isDir {
		rec.ContentHash = meta.ContentHash
		if rec.ContentHash == "" {
			rec.ContentHash = local.hash
		}
	}
	return rec
}

package sync

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/driftsync/driftsync/pkg/drive"
	"github.com/driftsync/driftsync/pkg/errors"
	"github.com/driftsync/driftsync/pkg/session"
	"github.com/driftsync/driftsync/pkg/versions"
)

// remoteSyncInterval is how long the remote daemon sleeps between completed
// reconciliation cycles.
const remoteSyncInterval = 10 * time.Second

// RemoteDaemon applies remote-side changes to the local filesystem. Each
// cycle it acquires the shared session and version store, walks the remote
// tree, applies the resulting operations, and persists the updated mapping.
type RemoteDaemon struct {
	session  *session.Shared
	store    *versions.Store
	rootID   string
	localDir string

	clock  clockwork.Clock
	status *statusTracker
}

// NewRemoteDaemon creates a daemon that mirrors the remote folder `rootID`
// into `localDir`.
func NewRemoteDaemon(shared *session.Shared, store *versions.Store,
	rootID, localDir string) *RemoteDaemon {

	return &RemoteDaemon{
		session:  shared,
		store:    store,
		rootID:   rootID,
		localDir: localDir,
		clock:    clockwork.NewRealClock(),
		status:   newStatusTracker(),
	}
}

// Status returns a snapshot of the daemon's progress.
func (d *RemoteDaemon) Status() Status {
	return d.status.get()
}

// Run loops reconciliation cycles until one fails. A cycle that was
// abandoned for reauthorization is retried immediately with no delay;
// completed cycles are followed by a fixed sleep.
func (d *RemoteDaemon) Run() error {
	for {
		completed, err := d.syncOnce()
		if err != nil {
			d.status.setState(StateFatal)
			return err
		}
		if !completed {
			continue
		}

		d.status.setState(StateSleeping)
		d.clock.Sleep(remoteSyncInterval)
	}
}

// syncOnce runs one reconciliation cycle. It reports completed=false when
// the cycle was abandoned because the session had to be reauthorized; the
// in-memory mapping edits from such a cycle are discarded, never persisted.
func (d *RemoteDaemon) syncOnce() (completed bool, err error) {
	d.status.setState(StateAcquiring)
	client, releaseSession := d.session.Acquire()
	defer releaseSession()

	// Lock order is always session, then store. The local daemon acquires
	// in the same order, which is what makes deadlock impossible.
	releaseStore := d.store.Acquire()
	defer releaseStore()

	mapping, err := d.store.Load()
	if err != nil {
		return false, err
	}

	d.status.setState(StateWalking)
	ops, err := plan(client, d.rootID, d.localDir, mapping)
	if err == nil {
		err = d.apply(client, ops, mapping)
	}
	if err != nil {
		if drive.IsUnauthorized(err) {
			if reauthErr := d.session.Reauthorize(); reauthErr != nil {
				return false, reauthErr
			}
			return false, nil
		}
		return false, errors.WithContext(err, "get updates from the drive")
	}

	d.status.setState(StatePersisting)
	if err := d.store.Save(mapping); err != nil {
		return false, err
	}

	d.status.cycleCompleted(ops)
	return true, nil
}

// apply executes the planned operations in order against the filesystem and
// the in-memory mapping.
func (d *RemoteDaemon) apply(client drive.Client, ops []operation,
	mapping map[string]versions.Record) error {

	for _, op := range ops {
		var err error
		switch op := op.(type) {
		case retrackOp:
			rec := mapping[op.id]
			if rec.IsFolder {
				retrackDescendants(mapping, rec.Path, op.path)
			}
			rec.Path = op.path
			delete(mapping, op.id)
			mapping[op.id] = rec
		case deleteOp:
			if op.record != nil {
				err = removeFromFS(*op.record)
			}
			delete(mapping, op.id)
		case renameOp:
			err = applyRename(op.from, op.to)
		case ensureDirOp:
			err = ensureDir(op.path)
		case downloadOp:
			err = d.saveFile(client, op.id, op.path)
		case trackOp:
			delete(mapping, op.id)
			mapping[op.id] = op.record
		}

		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("apply %s", op.opName()))
		}
	}
	return nil
}

// retrackDescendants rewrites the recorded path prefix of every object under
// a folder that moved. The walk skips descendant subtrees whose stamps are
// unchanged, so their records are fixed here rather than during planning.
func retrackDescendants(mapping map[string]versions.Record, from, to string) {
	if from == to {
		return
	}

	prefix := from + string(filepath.Separator)
	for id, rec := range mapping {
		if strings.HasPrefix(rec.Path, prefix) {
			rec.Path = to + rec.Path[len(from):]
			mapping[id] = rec
		}
	}
}

// applyRename moves an object to its new path. The source can be
// legitimately absent: when a file both moved with a renamed ancestor and
// changed content, the ancestor's rename already carried it and the planned
// download writes the fresh content to the destination.
func applyRename(from, to string) error {
	exists, err := afero.Exists(fs, from)
	if err != nil {
		return errors.WithContext(err, fmt.Sprintf("stat %q", from))
	}
	if !exists {
		log.WithFields(log.Fields{
			"from": from,
			"to":   to,
		}).Debug("Skipping rename of an object that already moved")
		return nil
	}

	if err := fs.Rename(from, to); err != nil {
		return errors.WithContext(err, fmt.Sprintf(
			"rename %q to %q", from, to))
	}
	return nil
}

// saveFile downloads the full content of a file object and writes it to
// dest, truncating any existing file.
func (d *RemoteDaemon) saveFile(client drive.Client, id, dest string) error {
	contents, err := client.Download(id)
	if err != nil {
		return err
	}

	if err := afero.WriteFile(fs, dest, contents, 0644); err != nil {
		return errors.WithContext(err, fmt.Sprintf("write %q", dest))
	}

	log.WithField("path", dest).Info("Downloaded file")
	return nil
}

func ensureDir(path string) error {
	exists, err := afero.DirExists(fs, path)
	if err != nil {
		return errors.WithContext(err, fmt.Sprintf("stat %q", path))
	}
	if exists {
		return nil
	}

	if err := fs.Mkdir(path, 0755); err != nil {
		return errors.WithContext(err, fmt.Sprintf("create directory %q", path))
	}
	return nil
}

// removeFromFS deletes the filesystem object named by a record, recursively
// for folders. It's idempotent: a path that's already absent is not an
// error.
func removeFromFS(rec versions.Record) error {
	exists, err := afero.Exists(fs, rec.Path)
	if err != nil {
		return errors.WithContext(err, fmt.Sprintf("stat %q", rec.Path))
	}
	if !exists {
		return nil
	}

	if rec.IsFolder {
		err = fs.RemoveAll(rec.Path)
	} else {
		err = fs.Remove(rec.Path)
	}
	if err != nil {
		return errors.WithContext(err, fmt.Sprintf("remove %q", rec.Path))
	}

	log.WithField("path", rec.Path).Info("Removed trashed object")
	return nil
}

package sync

import (
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/driftsync/driftsync/pkg/drive"
	"github.com/driftsync/driftsync/pkg/versions"
)

// An operation is one filesystem or mapping mutation produced by planning a
// reconciliation walk. Planning never mutates anything itself: the full list
// of operations is computed first, and applied afterwards.
type operation interface {
	opName() string
}

// retrackOp fixes a record whose path went stale because an ancestor folder
// moved. Only the mapping is touched: the filesystem object already moved
// together with its ancestor.
type retrackOp struct {
	id   string
	path string
}

// deleteOp removes a trashed object from the filesystem and the mapping.
// record is nil when the object was never tracked, in which case there's
// nothing to remove locally.
type deleteOp struct {
	id     string
	record *versions.Record
}

// renameOp moves a file or directory whose remote location or name changed.
// The object is renamed in place rather than deleted and recreated.
type renameOp struct {
	from string
	to   string
}

// ensureDirOp creates a directory if it doesn't exist at apply time.
type ensureDirOp struct {
	path string
}

// downloadOp fetches a file's content and writes it to path, truncating any
// existing file.
type downloadOp struct {
	id   string
	path string
}

// trackOp records the latest observed state of an object. It replaces any
// existing record (modeled as remove-then-insert to keep id uniqueness
// obvious).
type trackOp struct {
	id     string
	record versions.Record
}

func (retrackOp) opName() string   { return "retrack" }
func (deleteOp) opName() string    { return "delete" }
func (renameOp) opName() string    { return "rename" }
func (ensureDirOp) opName() string { return "ensure-dir" }
func (downloadOp) opName() string  { return "download" }
func (trackOp) opName() string     { return "track" }

// plan recursively reconciles the remote folder against the cached mapping
// and returns the operations needed to bring the local tree up to date. It
// reads remote metadata and the mapping, but performs no mutations.
func plan(client drive.Client, folderID, localPath string,
	mapping map[string]versions.Record) ([]operation, error) {

	folder, err := client.GetObject(folderID)
	if err != nil {
		return nil, err
	}
	if folder == nil {
		// The folder was deleted remotely between cycles. This is a benign
		// race: the parent walk removes it once its trashed state is listed.
		log.WithField("id", folderID).Warn(
			"Unable to find directory on the drive. Skipping it.")
		return nil, nil
	}

	// If the folder's stamp is unchanged, nothing under it changed either,
	// and the whole subtree is skipped without listing it.
	if rec, ok := mapping[folderID]; ok && rec.Version == folder.Version {
		return nil, nil
	}

	children, err := client.ListChildren(folderID)
	if err != nil {
		return nil, err
	}

	var ops []operation
	for _, child := range children {
		rec, tracked := mapping[child.ID]
		dest := filepath.Join(localPath, child.Name)

		// The record's path can go stale when an ancestor folder was
		// renamed or moved: the filesystem object moved together with the
		// ancestor, so only the recorded path needs fixing.
		if tracked && rec.Path != dest {
			ops = append(ops, retrackOp{id: child.ID, path: dest})
		}

		if tracked && rec.Version == child.Version {
			continue
		}

		if child.Trashed {
			op := deleteOp{id: child.ID}
			if tracked {
				recCopy := rec
				op.record = &recCopy
			}
			ops = append(ops, op)
			continue
		}

		if strings.Contains(child.Name, "/") {
			// Such a name can't be represented as a single filesystem
			// entry. Stop reconciling this directory rather than failing
			// the daemon; the rest of the tree is unaffected.
			log.WithFields(log.Fields{
				"id":   child.ID,
				"name": child.Name,
			}).Warn("Remote object name contains a path separator. " +
				"Skipping the rest of this directory.")
			return ops, nil
		}

		if child.IsFolder {
			if tracked && rec.Path != dest {
				ops = append(ops, renameOp{from: rec.Path, to: dest})
			}
			ops = append(ops, ensureDirOp{path: dest})

			childOps, err := plan(client, child.ID, dest, mapping)
			if err != nil {
				return nil, err
			}
			ops = append(ops, childOps...)

			ops = append(ops, trackOp{
				id: child.ID,
				record: versions.Record{
					Version:  child.Version,
					ParentID: folderID,
					Path:     dest,
					IsFolder: true,
				},
			})
			continue
		}

		// Rename before downloading so that fresh content lands at the
		// final path and isn't clobbered by the move.
		if tracked && rec.Path != dest {
			ops = append(ops, renameOp{from: rec.Path, to: dest})
		}
		if !tracked || rec.ContentHash != child.ContentHash {
			ops = append(ops, downloadOp{id: child.ID, path: dest})
		}
		ops = append(ops, trackOp{
			id: child.ID,
			record: versions.Record{
				Version:     child.Version,
				ContentHash: child.ContentHash,
				ParentID:    folderID,
				Path:        dest,
			},
		})
	}

	return ops, nil
}

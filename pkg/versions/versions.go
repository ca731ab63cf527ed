// Package versions persists the mapping from remote object ids to the
// version each object had the last time it was reconciled. The mapping is
// loaded wholesale at the start of a cycle, mutated in memory, and written
// back wholesale at the end. There is no partial persistence: a cycle that
// aborts simply never saves, and its in-memory edits are discarded.
package versions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/driftsync/driftsync/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// FileName is the name of the version mapping file inside the state dir.
const FileName = "versions.json"

// Record is the last observed state of one remote object.
type Record struct {
	// Version is the opaque stamp the drive reported when the object was
	// last reconciled.
	Version string `json:"version"`

	// ContentHash is the md5 of the file content. Omitted for folders.
	ContentHash string `json:"content_hash,omitempty"`

	// ParentID is the id of the remote folder containing the object.
	ParentID string `json:"parent_id"`

	// Path is where the object lives on the local filesystem.
	Path string `json:"path"`

	IsFolder bool `json:"is_folder"`
}

// Store is the persistent version mapping shared by the sync daemons. The
// daemons must acquire it (after the session, in that order everywhere) for
// the duration of a cycle.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a store backed by the mapping file in the given state dir.
func New(stateDir string) *Store {
	return &Store{path: filepath.Join(stateDir, FileName)}
}

// Acquire blocks until no other daemon holds the store, and returns a
// release function. The caller must call release on every exit path.
func (s *Store) Acquire() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

// Load reads the persisted mapping. A missing file is not an error: it
// yields an empty mapping, which is the state of a fresh installation.
func (s *Store) Load() (map[string]Record, error) {
	data, err := afero.ReadFile(fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Record{}, nil
		}
		return nil, errors.StorageError{Op: "read", Path: s.path, Err: err}
	}

	mapping := map[string]Record{}
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, errors.StorageError{Op: "parse", Path: s.path, Err: err}
	}
	return mapping, nil
}

// Save overwrites the mapping file with the full mapping. The write goes to
// a temporary file first and is moved into place with a rename, so a crash
// mid-write can't truncate the previous mapping.
func (s *Store) Save(mapping map[string]Record) error {
	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return errors.StorageError{Op: "marshal", Path: s.path, Err: err}
	}

	if err := fs.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.StorageError{Op: "write", Path: s.path, Err: err}
	}

	tmp := fmt.Sprintf("%s.tmp", s.path)
	if err := afero.WriteFile(fs, tmp, data, 0600); err != nil {
		return errors.StorageError{Op: "write", Path: s.path, Err: err}
	}

	if err := fs.Rename(tmp, s.path); err != nil {
		return errors.StorageError{Op: "replace", Path: s.path, Err: err}
	}
	return nil
}

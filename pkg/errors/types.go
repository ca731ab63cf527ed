package errors

import (
	"fmt"
)

var ErrFileChanged = New("file contents changed during sync")

// IngestionError represents a remote object whose metadata is missing a
// field we require. It's raised once at the ingestion boundary rather than
// letting a missing field abort the process somewhere deep in the walk.
type IngestionError struct {
	Field    string
	ObjectID string
}

func (err IngestionError) Error() string {
	if err.ObjectID == "" {
		return fmt.Sprintf("remote object is missing required field %q", err.Field)
	}
	return fmt.Sprintf("remote object %q is missing required field %q",
		err.ObjectID, err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// StorageError represents a failure to read or write the persisted version
// mapping.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (err StorageError) Error() string {
	return fmt.Sprintf("%s version store %q: %s", err.Op, err.Path, err.Err)
}

// Unwrap returns the underlying error.
func (err StorageError) Unwrap() error {
	return err.Err
}

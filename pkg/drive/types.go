package drive

import (
	"github.com/driftsync/driftsync/pkg/errors"
)

// FolderMimeType is the mime type the drive assigns to folder objects.
const FolderMimeType = "application/vnd.driftsync.folder"

// wireObject is the raw JSON representation of an object's metadata as
// returned by the drive API. Every field the server may omit is a pointer so
// that missing fields are caught at the ingestion boundary instead of
// surfacing as zero values deep in the reconciliation walk.
type wireObject struct {
	ID          *string  `json:"id"`
	Name        *string  `json:"name"`
	MimeType    *string  `json:"mimeType"`
	Version     *string  `json:"version"`
	MD5Checksum *string  `json:"md5Checksum"`
	Trashed     *bool    `json:"trashed"`
	Parents     []string `json:"parents"`
}

// Meta is the validated metadata of one remote object.
type Meta struct {
	ID   string
	Name string

	// Version is an opaque stamp assigned by the drive. It changes whenever
	// the object changes, and for folders, whenever anything in the folder's
	// subtree changes.
	Version string

	// ContentHash is the md5 hash of the object's content. Empty for folders.
	ContentHash string

	IsFolder bool
	Trashed  bool
}

// ingest validates a wire object and converts it into a Meta. A missing
// required field yields an IngestionError naming the field.
func (raw wireObject) ingest() (Meta, error) {
	id := ""
	if raw.ID != nil {
		id = *raw.ID
	}

	required := []struct {
		field string
		ok    bool
	}{
		{"id", raw.ID != nil},
		{"name", raw.Name != nil},
		{"mimeType", raw.MimeType != nil},
		{"version", raw.Version != nil},
	}
	for _, req := range required {
		if !req.ok {
			return Meta{}, errors.IngestionError{Field: req.field, ObjectID: id}
		}
	}

	meta := Meta{
		ID:       *raw.ID,
		Name:     *raw.Name,
		Version:  *raw.Version,
		IsFolder: *raw.MimeType == FolderMimeType,
	}
	if raw.Trashed != nil {
		meta.Trashed = *raw.Trashed
	}
	if raw.MD5Checksum != nil {
		meta.ContentHash = *raw.MD5Checksum
	}
	return meta, nil
}

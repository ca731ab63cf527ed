package drive

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftsync/driftsync/pkg/errors"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestIngest(t *testing.T) {
	tests := []struct {
		name    string
		raw     wireObject
		expMeta Meta
		expErr  error
	}{
		{
			name: "File",
			raw: wireObject{
				ID:          strPtr("f1"),
				Name:        strPtr("notes.txt"),
				MimeType:    strPtr("text/plain"),
				Version:     strPtr("42"),
				MD5Checksum: strPtr("abc123"),
				Trashed:     boolPtr(false),
			},
			expMeta: Meta{
				ID:          "f1",
				Name:        "notes.txt",
				Version:     "42",
				ContentHash: "abc123",
			},
		},
		{
			name: "Folder",
			raw: wireObject{
				ID:       strPtr("d1"),
				Name:     strPtr("photos"),
				MimeType: strPtr(FolderMimeType),
				Version:  strPtr("7"),
			},
			expMeta: Meta{
				ID:       "d1",
				Name:     "photos",
				Version:  "7",
				IsFolder: true,
			},
		},
		{
			name: "TrashedFile",
			raw: wireObject{
				ID:       strPtr("f2"),
				Name:     strPtr("old.txt"),
				MimeType: strPtr("text/plain"),
				Version:  strPtr("3"),
				Trashed:  boolPtr(true),
			},
			expMeta: Meta{
				ID:      "f2",
				Name:    "old.txt",
				Version: "3",
				Trashed: true,
			},
		},
		{
			name: "MissingVersion",
			raw: wireObject{
				ID:       strPtr("f3"),
				Name:     strPtr("damaged"),
				MimeType: strPtr("text/plain"),
			},
			expErr: errors.IngestionError{Field: "version", ObjectID: "f3"},
		},
		{
			name:   "MissingID",
			raw:    wireObject{Name: strPtr("nameless")},
			expErr: errors.IngestionError{Field: "id"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			meta, err := test.raw.ingest()
			assert.Equal(t, test.expErr, err)
			assert.Equal(t, test.expMeta, meta)
		})
	}
}

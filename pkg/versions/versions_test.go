package versions

import (
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/driftsync/driftsync/pkg/errors"
)

func TestLoadMissingFile(t *testing.T) {
	fs = afero.NewMemMapFs()

	store := New("/state")
	mapping, err := store.Load()
	assert.NoError(t, err)
	assert.Equal(t, map[string]Record{}, mapping)
}

func TestLoadCorruptFile(t *testing.T) {
	fs = afero.NewMemMapFs()
	assert.NoError(t, afero.WriteFile(fs, "/state/versions.json",
		[]byte("not json"), 0600))

	store := New("/state")
	_, err := store.Load()

	storageErr, ok := err.(errors.StorageError)
	assert.True(t, ok)
	assert.Equal(t, "parse", storageErr.Op)
}

func TestRoundTrip(t *testing.T) {
	fs = afero.NewMemMapFs()
	store := New("/state")

	mapping := map[string]Record{}
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("obj-%d", i)
		mapping[id] = Record{
			Version:     fmt.Sprintf("v%d", i),
			ContentHash: fmt.Sprintf("hash-%d", i),
			ParentID:    "root",
			Path:        fmt.Sprintf("/drive/file-%d", i),
		}
	}
	mapping["folder"] = Record{
		Version:  "v1",
		ParentID: "root",
		Path:     "/drive/folder",
		IsFolder: true,
	}

	assert.NoError(t, store.Save(mapping))

	loaded, err := store.Load()
	assert.NoError(t, err)
	assert.Equal(t, mapping, loaded)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	fs = afero.NewMemMapFs()
	store := New("/state")

	assert.NoError(t, store.Save(map[string]Record{
		"a": {Version: "1", Path: "/drive/a", ParentID: "root"},
	}))

	exists, err := afero.Exists(fs, "/state/versions.json.tmp")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestSaveOverwrites(t *testing.T) {
	fs = afero.NewMemMapFs()
	store := New("/state")

	assert.NoError(t, store.Save(map[string]Record{
		"a": {Version: "1", Path: "/drive/a", ParentID: "root"},
		"b": {Version: "1", Path: "/drive/b", ParentID: "root"},
	}))
	assert.NoError(t, store.Save(map[string]Record{
		"a": {Version: "2", Path: "/drive/a", ParentID: "root"},
	}))

	loaded, err := store.Load()
	assert.NoError(t, err)
	assert.Equal(t, map[string]Record{
		"a": {Version: "2", Path: "/drive/a", ParentID: "root"},
	}, loaded)
}

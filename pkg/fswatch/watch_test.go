package fswatch

import (
	"sort"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/driftsync/driftsync/pkg/errors"
)

func TestGetPathsToWatch(t *testing.T) {
	tests := []struct {
		name     string
		root     string
		dirs     []string
		files    []string
		expPaths []string
		expError error
	}{
		{
			name: "NestedDirectories",
			root: "/drive",
			dirs: []string{"/drive", "/drive/photos", "/drive/photos/2026",
				"/drive/docs"},
			files: []string{"/drive/notes.txt", "/drive/photos/2026/a.jpg"},
			expPaths: []string{"/drive", "/drive/docs", "/drive/photos",
				"/drive/photos/2026"},
		},
		{
			name:     "RootOnly",
			root:     "/drive",
			dirs:     []string{"/drive"},
			files:    []string{"/drive/notes.txt"},
			expPaths: []string{"/drive"},
		},
		{
			name:     "MissingRoot",
			root:     "/gone",
			expError: errors.FileNotFound{Path: "/gone"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fs = afero.NewMemMapFs()
			for _, dir := range test.dirs {
				assert.NoError(t, fs.MkdirAll(dir, 0755))
			}
			for _, file := range test.files {
				assert.NoError(t, afero.WriteFile(fs, file, []byte("x"), 0644))
			}

			paths, err := getPathsToWatch(test.root)
			assert.Equal(t, test.expError, err)

			sort.Strings(paths)
			assert.Equal(t, test.expPaths, paths)
		})
	}
}

func TestCombineUpdates(t *testing.T) {
	updates := make(chan fsnotify.Event)
	combined := combineUpdates(updates)

	// A burst of events coalesces into at most one pending trigger.
	for i := 0; i < 5; i++ {
		updates <- fsnotify.Event{}
	}

	select {
	case <-combined:
	case <-time.After(time.Second):
		t.Fatal("expected a combined trigger")
	}

	// Drain any trigger from events still in flight, then confirm the
	// channel goes quiet.
	time.Sleep(100 * time.Millisecond)
	select {
	case <-combined:
	default:
	}

	select {
	case <-combined:
		t.Fatal("expected no further triggers")
	case <-time.After(100 * time.Millisecond):
	}
}

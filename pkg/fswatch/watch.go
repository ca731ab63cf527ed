package fswatch

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/driftsync/driftsync/pkg/errors"
)

var fs = afero.NewOsFs()

// Watch watches for changes anywhere under `root`. It sends an event on the
// returned channel whenever a watched file or directory changes.
func Watch(root string) (chan struct{}, error) {
	pathsToWatch, err := getPathsToWatch(root)
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, path := range pathsToWatch {
		if err := watcher.Add(path); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, fmt.Sprintf("watch %q", path))
		}
	}
	return combineUpdates(watcher.Events), nil
}

func combineUpdates(updates <-chan fsnotify.Event) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		for range updates {
			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

// getPathsToWatch returns the root and every directory below it. fsnotify
// doesn't watch directories recursively, so each subdirectory is registered
// individually. New subdirectories created later are never registered, so
// changes under them are only seen by the local daemon's poll cycle.
func getPathsToWatch(root string) (paths []string, err error) {
	fi, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: root}
		}
		return nil, errors.WithContext(err, "stat")
	}

	if !fi.Mode().IsDir() {
		return nil, errors.New(fmt.Sprintf("watch root %q is not a directory", root))
	}

	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		if fi.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

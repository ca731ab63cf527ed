package sync

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/driftsync/driftsync/cmd/util"
	"github.com/driftsync/driftsync/pkg/errors"
	"github.com/driftsync/driftsync/pkg/session"
	"github.com/driftsync/driftsync/pkg/versions"
)

// UI presents the progress of a remote daemon while running it. The plain
// headless implementation just runs the daemon.
type UI interface {
	Run(daemon *RemoteDaemon) error
}

// Run starts the three daemon threads -- remote reconciliation, local
// reconciliation, and the UI watching the remote daemon's progress -- and
// blocks until the first of them fails. Any thread failure is fatal to the
// whole process: there is no isolation or supervised restart.
func Run(shared *session.Shared, store *versions.Store, rootID,
	localDir string, ui UI) error {

	local, err := NewLocalDaemon(shared, store, rootID, localDir)
	if err != nil {
		return errors.WithContext(err, "create local daemon")
	}

	remote := NewRemoteDaemon(shared, store, rootID, localDir)

	type threadResult struct {
		name string
		err  error
	}
	results := make(chan threadResult, 3)

	go func() {
		defer util.HandlePanic()
		results <- threadResult{"remote", remote.Run()}
	}()
	go func() {
		defer util.HandlePanic()
		results <- threadResult{"local", local.Run()}
	}()
	go func() {
		defer util.HandlePanic()
		results <- threadResult{"ui", ui.Run(remote)}
	}()

	result := <-results
	if result.err == nil {
		// Only the UI thread returns cleanly (the user quit).
		log.WithField("thread", result.name).Info("Shutting down")
		return nil
	}

	return errors.WithContext(result.err,
		fmt.Sprintf("fatal error in thread %q", result.name))
}

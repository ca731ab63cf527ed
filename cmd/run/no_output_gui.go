package run

import (
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	syncPkg "github.com/driftsync/driftsync/pkg/sync"
)

// noOutputGUI implements a headless GUI that's used during integration
// tests. It doesn't print anything to the screen, and just blocks until
// `driftsync run` is killed.
type noOutputGUI struct{}

func (gui noOutputGUI) Run(_ *syncPkg.RemoteDaemon) error {
	// Just wait for Ctrl-C.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	return nil
}

func (gui noOutputGUI) GetLogger() *logrus.Logger {
	return logrus.StandardLogger()
}

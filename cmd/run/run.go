package run

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/driftsync/driftsync/cmd/util"
	"github.com/driftsync/driftsync/pkg/config"
	"github.com/driftsync/driftsync/pkg/drive"
	"github.com/driftsync/driftsync/pkg/errors"
	"github.com/driftsync/driftsync/pkg/session"
	syncPkg "github.com/driftsync/driftsync/pkg/sync"
	"github.com/driftsync/driftsync/pkg/versions"
)

// chanWriter provides an io.Writer interface for writing to a channel.
type chanWriter chan []byte

func (w chanWriter) Write(p []byte) (int, error) {
	cpy := make([]byte, len(p))
	copy(cpy, p)
	w <- cpy
	return len(p), nil
}

// New creates a new `run` command.
func New() *cobra.Command {
	var disableGUI bool
	cobraCmd := &cobra.Command{
		Use:   "run",
		Short: "Start syncing the configured folders",
		Long: "Continuously mirror the configured drive folder to the local\n" +
			"directory, and upload local changes back to the drive.",
		Run: func(_ *cobra.Command, _ []string) {
			var gui driftGUI
			if disableGUI {
				gui = noOutputGUI{}
			} else {
				gui = newDriftGUI()
			}

			if err := run(gui); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cobraCmd.Flags().BoolVar(&disableGUI, "no-gui", false,
		"Disable the GUI. Only used by integration testing")
	return cobraCmd
}

func run(gui driftGUI) error {
	client, userConfig, err := util.GetDriveClient()
	if err != nil {
		return err
	}

	if userConfig.LocalDir == "" || userConfig.RemoteDir == "" {
		return errors.NewFriendlyError("The localDir and remoteDir fields "+
			"are required in %s. Run `driftsync config` to fix.",
			config.UserConfigPath)
	}

	stateDir, err := config.GetStateDir()
	if err != nil {
		return errors.WithContext(err, "get state dir")
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		// Show the full timestamp rather than the time elapsed since the
		// process started. This makes correlating logs with drive-side
		// events easier.
		FullTimestamp: true,

		// Disable colors since we'll be logging to a file.
		DisableColors: true,
	})

	logPath := filepath.Join(stateDir, "driftsync.log")
	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errors.WithContext(err, "open log file")
	}
	defer logFile.Close()
	logrus.SetOutput(logFile)

	if err := setOpenFilesLimit(); err != nil {
		gui.GetLogger().WithError(err).Warn(
			"Failed to increase the kernel limit on open files. " +
				"Local change detection may fall back to polling.")
	}

	if err := os.MkdirAll(userConfig.LocalDir, 0755); err != nil {
		return errors.WithContext(err, "create local dir")
	}

	persist := func(s drive.Session) error {
		return drive.SaveSession(stateDir, s)
	}
	shared := session.New(client, persist)

	rootID, err := resolveRoot(shared, userConfig.RemoteDir)
	if err != nil {
		return err
	}

	gui.GetLogger().Infof("Syncing drive folder %q to %s",
		userConfig.RemoteDir, userConfig.LocalDir)

	store := versions.New(stateDir)
	return syncPkg.Run(shared, store, rootID, userConfig.LocalDir, gui)
}

// resolveRoot looks up the remote folder by name, reauthorizing once if the
// stored session has gone stale since the last run.
func resolveRoot(shared *session.Shared, name string) (string, error) {
	client, release := shared.Acquire()
	defer release()

	meta, err := client.FindRootFolder(name)
	if err != nil && drive.IsUnauthorized(err) {
		if err := shared.Reauthorize(); err != nil {
			return "", err
		}
		meta, err = client.FindRootFolder(name)
	}
	if err != nil {
		return "", errors.WithContext(err, "find remote folder")
	}
	return meta.ID, nil
}

// The max file limit is 10240, even though the max returned by Getrlimit is
// 1<<63-1. This is OPEN_MAX in sys/syslimits.h.
const osxMaxSoftOpenFilesLimit = 10240

func setOpenFilesLimit() error {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		return errors.WithContext(err, "get current limit")
	}

	if rLimit.Max < osxMaxSoftOpenFilesLimit {
		rLimit.Cur = rLimit.Max
	} else {
		rLimit.Cur = osxMaxSoftOpenFilesLimit
	}
	return syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
}

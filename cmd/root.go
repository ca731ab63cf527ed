package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	configCmd "github.com/driftsync/driftsync/cmd/config"
	"github.com/driftsync/driftsync/cmd/login"
	"github.com/driftsync/driftsync/cmd/run"
	"github.com/driftsync/driftsync/cmd/upgradecli"
	"github.com/driftsync/driftsync/cmd/util"
	"github.com/driftsync/driftsync/cmd/version"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info
// and above.
const verboseLogKey = "DRIFTSYNC_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	rootCmd := &cobra.Command{
		Use:          "driftsync",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		configCmd.New(),
		login.New(),
		run.New(),
		upgradecli.New(),
		version.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}

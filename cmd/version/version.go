package version

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/driftsync/driftsync/cmd/util"
	"github.com/driftsync/driftsync/pkg/errors"
	"github.com/driftsync/driftsync/pkg/version"
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the local and server version of driftsync.",
		Long: "Print the local version of driftsync and the version\n" +
			"advertised by the configured drive server.",
		Run: func(_ *cobra.Command, args []string) {
			if err := run(); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run() error {
	fmt.Printf("local version:  %s\n", version.Version)

	client, _, err := util.GetDriveClient()
	if err != nil {
		// The local version is still useful without a configured drive.
		log.WithError(err).Debug("Failed to build drive client")
		fmt.Println("server version: unavailable (not logged in)")
		return nil
	}

	serverVersion, err := client.Ping()
	if err != nil {
		return errors.WithContext(err, "get server version")
	}

	fmt.Printf("server version: %s\n", serverVersion)
	return nil
}

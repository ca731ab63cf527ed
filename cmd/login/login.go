package login

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/driftsync/driftsync/cmd/util"
	"github.com/driftsync/driftsync/pkg/config"
	"github.com/driftsync/driftsync/pkg/drive"
	"github.com/driftsync/driftsync/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout    io.Writer = os.Stdout
	stdin     io.Reader = os.Stdin
	authorize           = drive.Authorize
)

// New creates a new `login` command.
func New() *cobra.Command {
	var creds drive.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize driftsync to access your drive",
		Long: "Store the drive API credentials, and exchange an\n" +
			"authorization code for a session. The session is refreshed\n" +
			"automatically afterwards, so this only needs to be run once.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(creds); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&creds.ClientID, "client-id", "",
		"The drive API client id. "+
			"Optional: If not set, `driftsync login` will interactively prompt.")
	cmd.Flags().StringVar(&creds.ClientSecret, "client-secret", "",
		"The drive API client secret. "+
			"Optional: If not set, `driftsync login` will interactively prompt.")
	return cmd
}

func run(creds drive.Credentials) error {
	userConfig, err := config.ParseUser()
	if err != nil {
		return errors.NewFriendlyError("No user config found. "+
			"Run `driftsync config` first.\n%s", err)
	}

	reader := bufio.NewReader(stdin)
	if creds.ClientID == "" {
		creds.ClientID, err = prompt(reader, "Client id")
		if err != nil {
			return err
		}
	}
	if creds.ClientSecret == "" {
		creds.ClientSecret, err = prompt(reader, "Client secret")
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "\nOpen the following URL in your browser, and "+
		"approve the access request:\n\n\t%s\n\n",
		drive.AuthorizeURL(userConfig.Server, creds))

	code, err := prompt(reader, "Authorization code")
	if err != nil {
		return err
	}

	session, err := authorize(userConfig.Server, creds, code)
	if err != nil {
		return errors.WithContext(err, "authorize")
	}

	stateDir, err := config.GetStateDir()
	if err != nil {
		return errors.WithContext(err, "get state dir")
	}

	if err := drive.SaveCredentials(stateDir, creds); err != nil {
		return errors.WithContext(err, "save credentials")
	}
	if err := drive.SaveSession(stateDir, session); err != nil {
		return errors.WithContext(err, "save session")
	}

	fmt.Fprintln(stdout, "Login successful. Run `driftsync run` to start syncing.")
	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	for {
		fmt.Fprintf(stdout, "%s: ", label)
		resp, err := reader.ReadString('\n')
		if err != nil {
			return "", errors.WithContext(err, "read response")
		}

		resp = strings.TrimSpace(resp)
		if resp != "" {
			return resp, nil
		}
	}
}

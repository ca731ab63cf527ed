package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/driftsync/driftsync/cmd/util"
	"github.com/driftsync/driftsync/pkg/config"
	"github.com/driftsync/driftsync/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout          io.Writer = os.Stdout
	stdin           io.Reader = os.Stdin
	guessDefaults             = guessDefaultsImpl
	parseUserConfig           = config.ParseUser
)

// New creates a new `config` command.
func New() *cobra.Command {
	var cliOpts config.User
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Setup the driftsync user configuration",
		Run: func(_ *cobra.Command, _ []string) {
			if err := SetupConfig(cliOpts); err != nil {
				err = errors.NewFriendlyError("Failed to setup configuration:\n%s", err)
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&cliOpts.LocalDir, "local-dir", "",
		"Set the local directory in the config. "+
			"Optional: If not set, `driftsync config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.RemoteDir, "remote-dir", "",
		"Set the remote folder name in the config. "+
			"Optional: If not set, `driftsync config` will interactively prompt.")
	cmd.Flags().StringVar(&cliOpts.Server, "server", "",
		"Set the drive server URL in the config. "+
			"Optional: If not set, `driftsync config` will interactively prompt.")

	// Setup the commands for querying the contents of the user config.
	type getterDef struct {
		use, short string
		fn         func(config.User) string
	}

	getters := []getterDef{
		{
			use:   "get-local-dir",
			short: "Get the currently configured local directory",
			fn:    func(cfg config.User) string { return cfg.LocalDir },
		},
		{
			use:   "get-remote-dir",
			short: "Get the currently configured remote folder name",
			fn:    func(cfg config.User) string { return cfg.RemoteDir },
		},
		{
			use:   "get-server",
			short: "Get the currently configured drive server URL",
			fn:    func(cfg config.User) string { return cfg.Server },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Run: func(_ *cobra.Command, _ []string) {
				cfg, err := parseUserConfig()
				if err != nil {
					err = errors.WithContext(err, "read config")
					util.HandleFatalError(err)
				}

				fmt.Fprintln(stdout, getter.fn(cfg))
			},
		})
	}

	return cmd
}

// SetupConfig generates the user config (interactively prompting for any
// field not supplied on the command line) and writes it to disk.
func SetupConfig(cliOpts config.User) error {
	cfg, err := generateConfig(cliOpts)
	if err != nil {
		return errors.WithContext(err, "generate config")
	}

	if err := config.WriteUser(cfg); err != nil {
		return errors.WithContext(err, "write config")
	}

	path, err := config.GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "get user config path")
	}

	fmt.Printf("Wrote config to %s\n", path)
	return nil
}

func remoteDirValidationFn(name string) (string, bool) {
	if name == "" {
		return "The remote folder name can't be empty. " +
			"Please pick another name.", false
	}

	if strings.Contains(name, "/") {
		return "The remote folder name can't contain `/`. " +
			"The folder must live in the root of your drive.", false
	}

	return "", true
}

func serverValidationFn(server string) (string, bool) {
	if !strings.HasPrefix(server, "http://") &&
		!strings.HasPrefix(server, "https://") {
		return "The server must be a full URL, starting with http:// " +
			"or https://.", false
	}
	return "", true
}

type prompt struct {
	helpString, prompt, defaultAnswer, currAnswer string
	field                                         *string
	validationFn                                  func(string) (string, bool)
}

// generateConfig interacts with the user to decide what the user's desired
// configuration is.
// It makes best guesses at reasonable defaults, and allows users to
// explicitly override them if desired.
func generateConfig(cliOpts config.User) (config.User, error) {
	defaults := guessDefaults()
	currConfig, err := parseUserConfig()
	if err != nil {
		currConfig = config.User{}
		log.WithError(err).Debug("Failed to read current config")
	}

	cfg := cliOpts
	var prompts []prompt
	if cliOpts.LocalDir == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the local directory to keep in sync.\n" +
				"Everything in it is mirrored to the drive, and remote " +
				"changes are downloaded into it.",
			prompt:        "Local directory",
			defaultAnswer: defaults.LocalDir,
			currAnswer:    currConfig.LocalDir,
			field:         &cfg.LocalDir,
		})
	}

	if cliOpts.RemoteDir == "" {
		prompts = append(prompts, prompt{
			helpString: "Enter the name of the folder in the root of your " +
				"drive to sync with.\n" +
				"It's created on the drive if it doesn't exist yet.",
			prompt:        "Remote folder name",
			defaultAnswer: defaults.RemoteDir,
			currAnswer:    currConfig.RemoteDir,
			field:         &cfg.RemoteDir,
			validationFn:  remoteDirValidationFn,
		})
	}

	if cliOpts.Server == "" {
		prompts = append(prompts, prompt{
			helpString:    "Enter the base URL of the drive API server.",
			prompt:        "Drive server URL",
			defaultAnswer: defaults.Server,
			currAnswer:    currConfig.Server,
			field:         &cfg.Server,
			validationFn:  serverValidationFn,
		})
	}

	for _, prompt := range prompts {
		var resp string
		for {
			resp, err = promptUser(prompt.helpString, prompt.prompt,
				prompt.defaultAnswer, prompt.currAnswer)
			if err != nil {
				return config.User{}, errors.WithContext(err, "read response")
			}

			if prompt.validationFn == nil {
				break
			}

			validationErr, ok := prompt.validationFn(resp)
			if ok {
				break
			}

			fmt.Fprintln(stdout, validationErr)
		}

		*prompt.field = resp
	}

	return cfg, nil
}

// guessDefaultsImpl tries to guess reasonable defaults for the fields in the
// user config.
func guessDefaultsImpl() (cfg config.User) {
	if localDir, err := homedir.Expand("~/Drive"); err == nil {
		cfg.LocalDir = localDir
	} else {
		log.WithError(err).Info("Failed to guess local directory")
	}

	cfg.RemoteDir = "driftsync"
	return cfg
}

func promptUser(helpString, prompt, defaultAnswer, currAnswer string) (string, error) {
	// Display a new line at the end to separate different fields to make it
	// look clearer.
	defer fmt.Fprintln(stdout)

	options := []string{}
	if defaultAnswer != "" {
		options = append(options, defaultAnswer)
	}
	if currAnswer != "" && currAnswer != defaultAnswer {
		options = append(options, currAnswer)
	}
	options = append(options, "(Enter manually)")

	fmt.Fprintln(stdout, helpString+"\n"+prompt+":")

	stdinReader := bufio.NewReader(stdin)

	if nOptions := len(options); nOptions > 1 {
		// defaultAnswer or currAnswer exists.
		fmt.Fprintln(stdout)
		for i, option := range options {
			if i == 0 {
				option = fmt.Sprintf("%s (recommended)", option)
			}
			fmt.Fprintf(stdout, "\t%d. %s\n", i+1, option)
		}
		fmt.Fprintln(stdout)

		for {
			fmt.Fprintf(stdout, "Please choose one [1-%d]: ", nOptions)
			choiceStr, err := stdinReader.ReadString('\n')
			if err != nil {
				return "", err
			}

			var choice int
			choiceStr = strings.TrimRight(choiceStr, "\n")

			// Default to the first choice if user doesn't enter anything.
			if choiceStr == "" {
				choice = 1
			} else {
				choice, err = strconv.Atoi(choiceStr)
				if err != nil || choice < 1 || choice > nOptions {
					// Try again if the input is invalid.
					continue
				}
			}

			if choice == nOptions {
				// Enter manually.
				break
			}

			return options[choice-1], nil
		}
	}

	fmt.Fprint(stdout, "Please enter manually: ")
	resp, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(resp, "\n"), nil
}

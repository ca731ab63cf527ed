package config

import (
	"path/filepath"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/driftsync/driftsync/pkg/errors"
)

const (
	// UserConfigPath is the default path to the driftsync user config.
	UserConfigPath = "~/.driftsync.yaml"

	// StateDirPath is the directory holding the files driftsync maintains
	// itself: the session, the credentials, and the version mapping.
	StateDirPath = "~/.config/driftsync"

	// InitialUserConfigVersion is the first version of the driftsync
	// user config. Config files that do not specify a version
	// will default to this version.
	InitialUserConfigVersion = "v1alpha1"

	// SupportedUserConfigVersion is the supported version of the
	// driftsync user config of the current driftsync binary.
	SupportedUserConfigVersion = "v1alpha1"
)

// User contains the configuration for the synchronized directory pair.
type User struct {
	Version string `json:"version,omitempty"`

	// LocalDir is the local root that mirrors the remote folder.
	LocalDir string `json:"localDir"`

	// RemoteDir is the name of the folder in the root of the drive that is
	// kept in sync with LocalDir. It's resolved to an object id once at
	// startup.
	RemoteDir string `json:"remoteDir"`

	// Server is the base URL of the drive API.
	Server string `json:"server"`
}

func (u User) getVersion() string {
	return u.Version
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseUser attempts to parse the User stored in the default path.
func ParseUser() (User, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return User{}, errors.WithContext(err, "expand config path")
	}

	config := User{Version: InitialUserConfigVersion}
	if err := parseConfig(path, &config, SupportedUserConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return User{}, errors.NewFriendlyError("The driftsync user config "+
				"file doesn't exist at %q. Please run `driftsync config` to "+
				"create it.", path)
		}
		return User{}, errors.WithContext(err, "parse")
	}

	config.LocalDir, err = homedir.Expand(config.LocalDir)
	if err != nil {
		return User{}, errors.WithContext(err, "expand local dir")
	}

	// Evaluate relative paths relative to the config path.
	if config.LocalDir != "" && !filepath.IsAbs(config.LocalDir) {
		config.LocalDir = filepath.Join(filepath.Dir(path), config.LocalDir)
	}
	return config, nil
}

// WriteUser writes the given user config to disk.
func WriteUser(cfg User) error {
	cfg.Version = SupportedUserConfigVersion
	path, err := GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// GetUserConfigPath returns the path to the user's global driftsync
// configuration. This path is expanded, so it can be directly passed to file
// operations.
func GetUserConfigPath() (string, error) {
	return homedirExpand(UserConfigPath)
}

// GetStateDir returns the expanded path of the directory holding driftsync's
// own state files.
func GetStateDir() (string, error) {
	return homedirExpand(StateDirPath)
}

package util

import (
	"github.com/driftsync/driftsync/pkg/config"
	"github.com/driftsync/driftsync/pkg/drive"
	"github.com/driftsync/driftsync/pkg/errors"
)

// GetDriveClient builds a drive client from the user config and the
// credentials and session stored in the state directory.
func GetDriveClient() (drive.Client, config.User, error) {
	userConfig, err := config.ParseUser()
	if err != nil {
		return nil, config.User{}, errors.WithContext(err, "parse user config")
	}

	stateDir, err := config.GetStateDir()
	if err != nil {
		return nil, config.User{}, errors.WithContext(err, "get state dir")
	}

	creds, err := drive.LoadCredentials(stateDir)
	if err != nil {
		return nil, config.User{}, errors.NewFriendlyError(
			"No drive credentials found. Run `driftsync login` first.")
	}

	session, err := drive.LoadSession(stateDir)
	if err != nil {
		return nil, config.User{}, errors.NewFriendlyError(
			"No drive session found. Run `driftsync login` first.")
	}

	return drive.New(userConfig.Server, creds, session), userConfig, nil
}

package drive

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/driftsync/driftsync/pkg/errors"
)

const (
	sessionFileName = "session.json"
	credsFileName   = "creds.json"
)

// Session is one authenticated drive session. The refresh token is the
// long-lived credential used to obtain a fresh access token when the current
// one expires.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Credentials identify this installation to the drive's token endpoint.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// LoadSession reads the persisted session from the state directory.
func LoadSession(stateDir string) (Session, error) {
	path := filepath.Join(stateDir, sessionFileName)
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Session{}, errors.WithContext(err, "read session")
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, errors.WithContext(err, "parse session")
	}
	return session, nil
}

// SaveSession persists the session so the next process start reuses it.
func SaveSession(stateDir string, session Session) error {
	if err := fs.MkdirAll(stateDir, 0700); err != nil {
		return errors.WithContext(err, "create state dir")
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return errors.WithContext(err, "marshal session")
	}

	path := filepath.Join(stateDir, sessionFileName)
	if err := afero.WriteFile(fs, path, data, 0600); err != nil {
		return errors.WithContext(err, "write session")
	}
	return nil
}

// SaveCredentials stores the client credentials in the state directory.
func SaveCredentials(stateDir string, creds Credentials) error {
	if err := fs.MkdirAll(stateDir, 0700); err != nil {
		return errors.WithContext(err, "create state dir")
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return errors.WithContext(err, "marshal credentials")
	}

	path := filepath.Join(stateDir, credsFileName)
	if err := afero.WriteFile(fs, path, data, 0600); err != nil {
		return errors.WithContext(err, "write credentials")
	}
	return nil
}

// LoadCredentials reads the client credentials from the state directory.
func LoadCredentials(stateDir string) (Credentials, error) {
	path := filepath.Join(stateDir, credsFileName)
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Credentials{}, errors.WithContext(err, "read credentials")
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, errors.WithContext(err, "parse credentials")
	}
	return creds, nil
}

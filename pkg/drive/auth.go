package drive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/driftsync/driftsync/pkg/errors"
)

// AuthorizeURL returns the URL the user must open in a browser to grant
// this installation access to their drive. The drive displays an
// authorization code there, which Authorize exchanges for a session.
func AuthorizeURL(server string, creds Credentials) string {
	return fmt.Sprintf("%s/oauth/authorize?client_id=%s&response_type=code",
		server, url.QueryEscape(creds.ClientID))
}

// Authorize exchanges an authorization code for a session.
func Authorize(server string, creds Credentials, code string) (Session, error) {
	body, err := json.Marshal(map[string]string{
		"client_id":     creds.ClientID,
		"client_secret": creds.ClientSecret,
		"code":          code,
		"grant_type":    "authorization_code",
	})
	if err != nil {
		return Session{}, errors.WithContext(err, "marshal token request")
	}

	resp, err := http.Post(server+"/oauth/token", "application/json",
		bytes.NewReader(body))
	if err != nil {
		return Session{}, errors.WithContext(err, "token request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Session{}, errors.WithContext(
			statusError(resp), "exchange authorization code")
	}

	var token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return Session{}, errors.WithContext(err, "parse token response")
	}

	if token.RefreshToken == "" {
		return Session{}, errors.New("token endpoint returned no refresh token")
	}

	return Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}, nil
}

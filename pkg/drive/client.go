package drive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/afero"

	"github.com/driftsync/driftsync/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// ErrUnauthorized is returned when the drive rejects the current session.
// It's the only remote failure the daemons recover from: they reauthorize
// and restart the cycle. Everything else kills the owning daemon.
var ErrUnauthorized = errors.New("drive session is not authorized")

// IsUnauthorized reports whether the failure was an authorization failure,
// however deeply it was annotated on the way up.
func IsUnauthorized(err error) bool {
	return errors.RootCause(err) == ErrUnauthorized
}

// Client is the set of drive operations consumed by the sync daemons. It is
// not safe for concurrent use: callers must hold the shared session handle
// for the duration of every call.
type Client interface {
	// GetObject fetches the metadata of one object. It returns (nil, nil)
	// when the object doesn't exist on the drive.
	GetObject(id string) (*Meta, error)

	// ListChildren lists the direct children of a folder in the order the
	// server reports them.
	ListChildren(parentID string) ([]Meta, error)

	// Download fetches the full content of a file object.
	Download(id string) ([]byte, error)

	// Upload creates a new file object under the given parent.
	Upload(parentID, name string, contents []byte) (*Meta, error)

	// UpdateContent replaces the content of an existing file object.
	UpdateContent(id string, contents []byte) (*Meta, error)

	// CreateFolder creates a new folder object under the given parent.
	CreateFolder(parentID, name string) (*Meta, error)

	// Trash soft-deletes an object on the drive.
	Trash(id string) error

	// FindRootFolder resolves the configured remote root folder by name.
	FindRootFolder(name string) (*Meta, error)

	// RefreshSession exchanges the stored refresh token for a new session
	// and installs it on the client. The returned session should be
	// persisted by the caller.
	RefreshSession() (Session, error)

	// Ping returns the server's advertised version.
	Ping() (string, error)
}

type client struct {
	server  string
	creds   Credentials
	session Session

	// No timeout: a stalled remote call blocks its owning daemon, which is
	// the documented behavior of the sync loop.
	http *http.Client
}

// New creates a drive client for the given server using a previously
// obtained session.
func New(server string, creds Credentials, session Session) Client {
	return &client{
		server:  server,
		creds:   creds,
		session: session,
		http:    &http.Client{},
	}
}

func (c *client) GetObject(id string) (*Meta, error) {
	resp, err := c.do("GET", "/api/v1/files/"+url.PathEscape(id), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var raw wireObject
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, errors.WithContext(err, "parse object")
	}

	meta, err := raw.ingest()
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *client) ListChildren(parentID string) ([]Meta, error) {
	resp, err := c.do("GET",
		"/api/v1/files?parent="+url.QueryEscape(parentID), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return parseList(resp.Body)
}

func (c *client) Download(id string) ([]byte, error) {
	resp, err := c.do("GET",
		"/api/v1/files/"+url.PathEscape(id)+"/content", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	contents, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithContext(err, "read content")
	}
	return contents, nil
}

func (c *client) Upload(parentID, name string, contents []byte) (*Meta, error) {
	path := fmt.Sprintf("/api/v1/files?parent=%s&name=%s",
		url.QueryEscape(parentID), url.QueryEscape(name))
	resp, err := c.do("POST", path, bytes.NewReader(contents),
		"application/octet-stream")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return parseMeta(resp.Body)
}

func (c *client) UpdateContent(id string, contents []byte) (*Meta, error) {
	resp, err := c.do("PUT", "/api/v1/files/"+url.PathEscape(id)+"/content",
		bytes.NewReader(contents), "application/octet-stream")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return parseMeta(resp.Body)
}

func (c *client) CreateFolder(parentID, name string) (*Meta, error) {
	path := fmt.Sprintf("/api/v1/folders?parent=%s&name=%s",
		url.QueryEscape(parentID), url.QueryEscape(name))
	resp, err := c.do("POST", path, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return parseMeta(resp.Body)
}

func (c *client) Trash(id string) error {
	resp, err := c.do("POST", "/api/v1/files/"+url.PathEscape(id)+"/trash",
		nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func (c *client) FindRootFolder(name string) (*Meta, error) {
	resp, err := c.do("GET", "/api/v1/files?name="+url.QueryEscape(name), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	files, err := parseList(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.NewFriendlyError(
			"No folder named %q found in the root of your drive.", name)
	}

	root := files[0]
	if !root.IsFolder {
		return nil, errors.NewFriendlyError(
			"The drive object named %q is not a folder.", name)
	}
	return &root, nil
}

func (c *client) RefreshSession() (Session, error) {
	if c.session.RefreshToken == "" {
		return Session{}, errors.New("no refresh token in the stored session")
	}

	body, err := json.Marshal(map[string]string{
		"client_id":     c.creds.ClientID,
		"client_secret": c.creds.ClientSecret,
		"refresh_token": c.session.RefreshToken,
		"grant_type":    "refresh_token",
	})
	if err != nil {
		return Session{}, errors.WithContext(err, "marshal token request")
	}

	resp, err := c.http.Post(c.server+"/oauth/token", "application/json",
		bytes.NewReader(body))
	if err != nil {
		return Session{}, errors.WithContext(err, "token request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Session{}, errors.WithContext(
			statusError(resp), "exchange refresh token")
	}

	var token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return Session{}, errors.WithContext(err, "parse token response")
	}

	session := Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
	if session.RefreshToken == "" {
		// The token endpoint may omit the refresh token when it's unchanged.
		session.RefreshToken = c.session.RefreshToken
	}

	c.session = session
	return session, nil
}

func (c *client) Ping() (string, error) {
	resp, err := c.do("GET", "/health", nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var health struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return "", errors.WithContext(err, "parse health response")
	}
	return health.Version, nil
}

func (c *client) do(method, path string, body io.Reader, contentType string) (
	*http.Response, error) {

	req, err := http.NewRequest(method, c.server+path, body)
	if err != nil {
		return nil, errors.WithContext(err, "create request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+c.session.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WithContext(err, fmt.Sprintf("%s %s", method, path))
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return statusError(resp)
	}
	return nil
}

func statusError(resp *http.Response) error {
	detail, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 1024))
	return errors.New(fmt.Sprintf("drive returned %s: %s",
		resp.Status, string(detail)))
}

func parseMeta(body io.Reader) (*Meta, error) {
	var raw wireObject
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, errors.WithContext(err, "parse object")
	}

	meta, err := raw.ingest()
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func parseList(body io.Reader) ([]Meta, error) {
	var list struct {
		Files []wireObject `json:"files"`
	}
	if err := json.NewDecoder(body).Decode(&list); err != nil {
		return nil, errors.WithContext(err, "parse listing")
	}

	var metas []Meta
	for _, raw := range list.Files {
		meta, err := raw.ingest()
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

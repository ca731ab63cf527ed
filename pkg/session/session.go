// Package session guards the single authenticated drive client that every
// daemon shares. The drive client is not safe for concurrent use, so all
// remote operations happen under this handle's lock.
package session

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/driftsync/driftsync/pkg/drive"
	"github.com/driftsync/driftsync/pkg/errors"
)

// Persist saves a refreshed session so the next process start reuses it.
type Persist func(drive.Session) error

// Shared is the mutually exclusive handle to the one drive session shared by
// every daemon. Acquire blocks until no other daemon holds the session,
// which guarantees at most one in-flight remote operation system-wide.
type Shared struct {
	mu      sync.Mutex
	client  drive.Client
	persist Persist
}

// New wraps the given client in a shared handle.
func New(client drive.Client, persist Persist) *Shared {
	return &Shared{client: client, persist: persist}
}

// Acquire blocks until the session is free, and returns the client together
// with a release function. The caller must call release on every exit path.
func (s *Shared) Acquire() (drive.Client, func()) {
	s.mu.Lock()
	return s.client, s.mu.Unlock
}

// Reauthorize exchanges the stored refresh token for a fresh session and
// persists it. The caller must hold the session (via Acquire) when calling
// this. On success the caller must abandon its current cycle rather than
// retrying in place: the next scheduled cycle runs with the fresh session.
func (s *Shared) Reauthorize() error {
	refreshed, err := s.client.RefreshSession()
	if err != nil {
		return errors.WithContext(err, "refresh session")
	}

	if err := s.persist(refreshed); err != nil {
		return errors.WithContext(err, "persist session")
	}

	log.Info("Drive authorization was refreshed because it was out of date")
	return nil
}

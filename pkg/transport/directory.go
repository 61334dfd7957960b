package transport

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
)

const (
	sessionIDPrefix = "mcp_session_"
	sessionIDBytes  = 32
)

// GenerateSessionID returns a fresh unguessable session identifier. The id is
// the bearer token for message delivery, so it must not be predictable.
func GenerateSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", mcperrors.Internal("generate session id", err)
	}
	return sessionIDPrefix + hex.EncodeToString(buf), nil
}

// SessionDirectory maps live session ids to their channels. It is constructed
// once at process start and passed by reference to every handler that needs
// it; tests build their own isolated instances. Session state lives in the
// memory of exactly one process, so a session can only be addressed through
// the instance that created it.
type SessionDirectory struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewSessionDirectory creates an empty directory.
func NewSessionDirectory() *SessionDirectory {
	return &SessionDirectory{
		sessions: make(map[string]Session),
	}
}

// Register inserts a new session under its id.
func (d *SessionDirectory) Register(id string, session Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.sessions[id]; exists {
		return mcperrors.DuplicateSession(id)
	}
	d.sessions[id] = session
	return nil
}

// Resolve finds a live session by id. Never-issued, already-closed and
// wrong-process ids all collapse to the same SessionNotFound outcome; the
// caller cannot distinguish them.
func (d *SessionDirectory) Resolve(id string) (Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	session, ok := d.sessions[id]
	if !ok {
		return nil, mcperrors.SessionNotFound(id)
	}
	return session, nil
}

// Remove drops a session from the directory. Removing an id that is not
// present is a no-op, so the close path may race with explicit removal.
func (d *SessionDirectory) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, id)
}

// Len reports the number of live sessions.
func (d *SessionDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

// Snapshot returns the live sessions at the time of the call. Shutdown uses
// it to close every open channel; closing a snapshotted session after it was
// already removed is harmless.
func (d *SessionDirectory) Snapshot() []Session {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sessions := make([]Session, 0, len(d.sessions))
	for _, session := range d.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

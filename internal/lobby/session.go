// internal/lobby/session.go
package lobby

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// DefaultGrace is how long a dropped session stays resumable.
const DefaultGrace = 2 * time.Minute

// Session is one browser identity. The session id doubles as the player id
// everywhere in the realtime protocol.
type Session struct {
	ID       string
	Name     string
	RoomCode string

	// DisconnectedAt is zero while a live connection is bound.
	DisconnectedAt time.Time
}

func (s *Session) connected() bool { return s.DisconnectedAt.IsZero() }

// Registry tracks sessions and their reconnect grace windows. It is owned
// by the lobby actor goroutine and is not safe for concurrent use.
type Registry struct {
	sessions map[string]*Session
	grace    time.Duration
	now      func() time.Time
}

func NewRegistry(grace time.Duration) *Registry {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Registry{
		sessions: make(map[string]*Session),
		grace:    grace,
		now:      time.Now,
	}
}

// Open creates a fresh session bound to a live connection.
func (r *Registry) Open() *Session {
	s := &Session{ID: uuid.NewString()}
	r.sessions[s.ID] = s
	return s
}

func (r *Registry) Get(id string) *Session {
	return r.sessions[id]
}

// MarkDisconnected starts the grace window for id.
func (r *Registry) MarkDisconnected(id string) {
	if s, ok := r.sessions[id]; ok {
		s.DisconnectedAt = r.now()
	}
}

// Resume rebinds a session to a new connection. A session past its grace
// deadline is deleted and reported expired.
func (r *Registry) Resume(id string) (*Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !s.connected() && r.now().Sub(s.DisconnectedAt) > r.grace {
		delete(r.sessions, id)
		return nil, ErrSessionExpired
	}
	s.DisconnectedAt = time.Time{}
	return s, nil
}

func (r *Registry) Delete(id string) {
	delete(r.sessions, id)
}

// Sweep deletes every disconnected session past its grace deadline and
// returns them so the caller can settle their room membership.
func (r *Registry) Sweep() []*Session {
	var expired []*Session
	now := r.now()
	for id, s := range r.sessions {
		if !s.connected() && now.Sub(s.DisconnectedAt) > r.grace {
			delete(r.sessions, id)
			expired = append(expired, s)
		}
	}
	return expired
}

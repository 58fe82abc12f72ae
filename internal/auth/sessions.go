package auth

import (
	"fmt"
	"sync"
	"time"
)

// ManualSession tracks one in-flight manual login. The browser side waits on
// Done; the API side closes it when the user confirms.
type ManualSession struct {
	SiteName  string
	StartedAt time.Time
	done      chan struct{}
}

// Done is closed when the session is completed via the registry.
func (s *ManualSession) Done() <-chan struct{} { return s.done }

// SessionRegistry holds manual login sessions in memory. One active session
// per site.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*ManualSession
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*ManualSession)}
}

// Start registers a manual session for the site. It fails if one is already
// active.
func (r *SessionRegistry) Start(siteName string, now time.Time) (*ManualSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[siteName]; ok {
		return nil, fmt.Errorf("manual login session already active for %s", siteName)
	}
	s := &ManualSession{
		SiteName:  siteName,
		StartedAt: now,
		done:      make(chan struct{}),
	}
	r.sessions[siteName] = s
	return s, nil
}

// Complete signals the waiting setup flow and removes the session. It
// reports whether a session was active.
func (r *SessionRegistry) Complete(siteName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[siteName]
	if !ok {
		return false
	}
	close(s.done)
	delete(r.sessions, siteName)
	return true
}

// Remove drops the session without signalling completion. Used when the
// setup flow ends for another reason (timeout, error).
func (r *SessionRegistry) Remove(siteName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, siteName)
}

// Active lists the sites with an in-flight manual session.
func (r *SessionRegistry) Active() []*ManualSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ManualSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// IsActive reports whether a manual session exists for the site.
func (r *SessionRegistry) IsActive(siteName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[siteName]
	return ok
}

package annotation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
)

type sessionEntry struct {
	session  *Session
	lastUsed time.Time
}

// SessionRegistry owns one Session per user.
type SessionRegistry struct {
	deps SessionDeps
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(deps SessionDeps) *SessionRegistry {
	return &SessionRegistry{
		deps:     deps,
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

// Session returns the user's session, creating it on first use.
func (r *SessionRegistry) Session(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[userID]
	if !ok {
		entry = &sessionEntry{session: NewSession(userID, r.deps)}
		r.sessions[userID] = entry
	}
	entry.lastUsed = r.now()
	return entry.session
}

// Current returns the user's session if it has scope open.
func (r *SessionRegistry) Current(userID string, scope models.Scope) (*Session, error) {
	r.mu.Lock()
	entry, ok := r.sessions[userID]
	if ok {
		entry.lastUsed = r.now()
	}
	r.mu.Unlock()

	if !ok || entry.session.Scope() != scope {
		return nil, fmt.Errorf("chapter %s is not open: %w", scope, domain.ErrNotMounted)
	}
	return entry.session, nil
}

// Close drops the user's session.
func (r *SessionRegistry) Close(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// PruneIdle drops sessions unused for longer than maxIdle and returns how many were dropped.
func (r *SessionRegistry) PruneIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	pruned := 0
	for userID, entry := range r.sessions {
		if entry.lastUsed.Before(cutoff) {
			delete(r.sessions, userID)
			pruned++
		}
	}
	return pruned
}

// Run prunes idle sessions every interval until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.PruneIdle(maxIdle); n > 0 {
				r.deps.Logger.Debug("pruned idle sessions", "count", n, "remaining", r.Len())
			}
		}
	}
}

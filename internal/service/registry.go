package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/console/internal/auth"
	"github.com/kiwari-pos/console/internal/model"
)

// AdminSession is a logged-in admin: who they are, the backend token used on
// their behalf, and their order session.
type AdminSession struct {
	*Session
	Admin     model.Admin
	Token     string
	ExpiresAt time.Time
}

// Registry owns every live admin session. It is constructed once by the
// server and handed to the handlers that need it.
type Registry struct {
	ttl      time.Duration
	opts     Options
	notifier Notifier
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*AdminSession
}

// NewRegistry creates a Registry whose sessions live for at most ttl.
func NewRegistry(ttl time.Duration, opts Options, notifier Notifier) *Registry {
	return &Registry{
		ttl:      ttl,
		opts:     opts,
		notifier: notifier,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*AdminSession),
	}
}

// Create starts a session for admin. It expires after the registry TTL or
// when the backend token expires, whichever is first.
func (r *Registry) Create(api Backend, token string, admin model.Admin) *AdminSession {
	expiresAt := r.now().Add(r.ttl)
	if exp, ok := auth.BackendTokenExpiry(token); ok && exp.Before(expiresAt) {
		expiresAt = exp
	}

	id := uuid.New()
	sess := &AdminSession{
		Session:   NewSession(id, api, r.notifier, r.opts),
		Admin:     admin,
		Token:     token,
		ExpiresAt: expiresAt,
	}

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()
	return sess
}

// Get returns a live session. Expired sessions are removed and reported missing.
func (r *Registry) Get(id uuid.UUID) (*AdminSession, bool) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !r.now().Before(sess.ExpiresAt) {
		r.Delete(id)
		return nil, false
	}
	return sess, true
}

func (r *Registry) Delete(id uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Each calls fn for every live session. fn runs without the registry lock.
func (r *Registry) Each(fn func(*AdminSession)) {
	now := r.now()
	r.mu.RLock()
	live := make([]*AdminSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		if now.Before(s.ExpiresAt) {
			live = append(live, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range live {
		fn(s)
	}
}

// Len returns the number of stored sessions, expired ones included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every interval until ctx is done.
// This should be called as a goroutine: go registry.RunSweeper(ctx, time.Minute)
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				log.Printf("Swept %d expired admin sessions", n)
			}
		}
	}
}

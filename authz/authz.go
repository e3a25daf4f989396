// Package authz decides whether a resolved identity may run a protected
// operation. Every evaluation reads the identity fresh from the session slot;
// nothing is cached between evaluations, so nested or repeated guards cannot
// leak state into one another.
package authz

import (
	"errors"
	"sync"

	"github.com/pwless/pwless/database/model"
)

// ErrUnauthorized is returned by a guard whose check failed.
var ErrUnauthorized = errors.New("unauthorized")

// Session exposes the identity slot of one visitor session. Each concurrent
// visitor session has its own independent slot.
type Session interface {
	// User returns the currently resolved identity, or nil when the session
	// is unauthenticated.
	User() *model.User
}

// MemorySession is an in-process Session for embedding hosts and tests. The
// web layer uses the cookie-backed session instead.
type MemorySession struct {
	mu   sync.RWMutex
	user *model.User
}

func NewMemorySession() *MemorySession {
	return &MemorySession{}
}

func (s *MemorySession) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SetUser fills the identity slot after a successful resolution.
func (s *MemorySession) SetUser(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// Clear empties the slot, returning the session to the unauthenticated state.
func (s *MemorySession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
}

// Requirement names the privilege an operation demands. Role matches the
// user's role by exact name; CustomRoleID matches against the user's custom
// role set by stable id, never by name. A zero Requirement only demands an
// authenticated, enabled user.
type Requirement struct {
	Role         string
	CustomRoleID int64
}

// RequireRole builds a requirement for one of the predefined roles.
func RequireRole(name string) Requirement {
	return Requirement{Role: name}
}

// RequireCustomRole builds a requirement for a custom role by its stable id.
func RequireCustomRole(id int64) Requirement {
	return Requirement{CustomRoleID: id}
}

// Authorized evaluates the requirement against the session's current
// identity. A missing identity or a disabled user fails closed.
func Authorized(s Session, req Requirement) bool {
	if s == nil {
		return false
	}
	user := s.User()
	if user == nil || user.Disabled {
		return false
	}
	if req.Role != "" && !user.HasRole(req.Role) {
		return false
	}
	if req.CustomRoleID != 0 && !user.HasCustomRole(req.CustomRoleID) {
		return false
	}
	return true
}

// Guard wraps op so that it only runs when the session satisfies the
// requirement at call time. The returned callable captures no identity: the
// session is re-evaluated on every invocation. When the check fails the
// optional fallback runs and ErrUnauthorized is returned.
func Guard(s Session, req Requirement, fallback func(), op func() error) func() error {
	return func() error {
		if !Authorized(s, req) {
			if fallback != nil {
				fallback()
			}
			return ErrUnauthorized
		}
		return op()
	}
}

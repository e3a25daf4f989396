// Package session stores the resolved identity of one browser session in the
// cookie-backed gin session. Each visitor session is an independent slot;
// derived caches live next to the identity and die with it.
package session

import (
	"encoding/gob"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/pwless/pwless/authz"
	"github.com/pwless/pwless/database/model"
)

// SessionName is the cookie name of the visitor session.
const SessionName = "pwless"

const (
	currentUserKey      = "PWLESS_USER"
	signInKey           = "PWLESS_SIGN_IN"
	rolesCacheKey       = "PWLESS_ROLES_CACHE"
	customRolesCacheKey = "PWLESS_CUSTOM_ROLES_CACHE"
)

func init() {
	gob.Register(model.User{})
	gob.Register(model.UserSignIn{})
	gob.Register([]model.Role{})
	gob.Register([]model.CustomRole{})
}

// SetCurrentUser fills the identity slot after a successful resolution. Any
// cached derivations of a previous identity are dropped first, so a new
// identity can never observe stale values.
func SetCurrentUser(c *gin.Context, user *model.User, signIn *model.UserSignIn) error {
	s := sessions.Default(c)
	s.Delete(rolesCacheKey)
	s.Delete(customRolesCacheKey)
	s.Set(currentUserKey, *user)
	if signIn != nil {
		s.Set(signInKey, *signIn)
	} else {
		s.Delete(signInKey)
	}
	return s.Save()
}

// CurrentUser returns the identity of this session, or nil when
// unauthenticated.
func CurrentUser(c *gin.Context) *model.User {
	s := sessions.Default(c)
	if obj := s.Get(currentUserKey); obj != nil {
		if user, ok := obj.(model.User); ok {
			return &user
		}
	}
	return nil
}

// CurrentSignIn returns the sign-in metadata recorded when the identity was
// resolved, or nil.
func CurrentSignIn(c *gin.Context) *model.UserSignIn {
	s := sessions.Default(c)
	if obj := s.Get(signInKey); obj != nil {
		if signIn, ok := obj.(model.UserSignIn); ok {
			return &signIn
		}
	}
	return nil
}

// Authenticated reports whether this session holds a resolved identity.
func Authenticated(c *gin.Context) bool {
	return CurrentUser(c) != nil
}

// SetMaxAge adjusts the lifetime of the session cookie.
func SetMaxAge(c *gin.Context, maxAge int) error {
	s := sessions.Default(c)
	s.Options(sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
	})
	return s.Save()
}

// SignOut empties the identity slot and every cached value derived from it,
// and expires the cookie.
func SignOut(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{
		Path:   "/",
		MaxAge: -1,
	})
	if err := s.Save(); err != nil {
		return err
	}
	c.SetCookie(SessionName, "", -1, "/", "", false, true)
	return nil
}

// SetCachedRoles stores the role list shown by the admin pages for this
// session. Re-deriving is explicit: the cache never survives an identity
// change or sign-out.
func SetCachedRoles(c *gin.Context, roles []model.Role) error {
	s := sessions.Default(c)
	s.Set(rolesCacheKey, roles)
	return s.Save()
}

// CachedRoles returns the cached role list of this session, or nil.
func CachedRoles(c *gin.Context) []model.Role {
	s := sessions.Default(c)
	if obj := s.Get(rolesCacheKey); obj != nil {
		if roles, ok := obj.([]model.Role); ok {
			return roles
		}
	}
	return nil
}

// SetCachedCustomRoles stores the custom-role list for this session.
func SetCachedCustomRoles(c *gin.Context, roles []model.CustomRole) error {
	s := sessions.Default(c)
	s.Set(customRolesCacheKey, roles)
	return s.Save()
}

// CachedCustomRoles returns the cached custom-role list, or nil.
func CachedCustomRoles(c *gin.Context) []model.CustomRole {
	s := sessions.Default(c)
	if obj := s.Get(customRolesCacheKey); obj != nil {
		if roles, ok := obj.([]model.CustomRole); ok {
			return roles
		}
	}
	return nil
}

// ginSession adapts one request's session to authz.Session. It holds no
// identity of its own: User always goes back to the underlying store.
type ginSession struct {
	c *gin.Context
}

func (g ginSession) User() *model.User {
	return CurrentUser(g.c)
}

// Current exposes the request's visitor session to the authorization engine.
func Current(c *gin.Context) authz.Session {
	return ginSession{c: c}
}

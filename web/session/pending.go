package session

import (
	"encoding/gob"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/pwless/pwless/web/service"
)

const pendingRegistrationKey = "PWLESS_PENDING_REGISTRATION"

func init() {
	gob.Register(service.PendingRegistration{})
}

// SetPendingRegistration parks the register form data between handing out a
// register token and the passkey ceremony completing.
func SetPendingRegistration(c *gin.Context, pending *service.PendingRegistration) error {
	s := sessions.Default(c)
	s.Set(pendingRegistrationKey, *pending)
	return s.Save()
}

// PendingRegistration returns the parked registration, or nil when no
// ceremony is in flight.
func PendingRegistration(c *gin.Context) *service.PendingRegistration {
	s := sessions.Default(c)
	if obj := s.Get(pendingRegistrationKey); obj != nil {
		if pending, ok := obj.(service.PendingRegistration); ok {
			return &pending
		}
	}
	return nil
}

// ClearPendingRegistration drops the parked registration.
func ClearPendingRegistration(c *gin.Context) error {
	s := sessions.Default(c)
	s.Delete(pendingRegistrationKey)
	return s.Save()
}

// Package service implements the application services of pwless: identity
// resolution, user administration and role management.
package service

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pwless/pwless/database"
	"github.com/pwless/pwless/database/model"
	"github.com/pwless/pwless/database/repo"
	"github.com/pwless/pwless/logger"
	"github.com/pwless/pwless/provider"
	"github.com/pwless/pwless/util/common"
)

// AuthService resolves verified passkey assertions into persisted users.
// Provider round trips always happen before the database transaction opens,
// never while one is held.
type AuthService struct {
	DB       *gorm.DB
	Provider provider.Client
	// PreAuthorized refuses registration of users that were not created
	// beforehand by an administrator.
	PreAuthorized bool
}

func NewAuthService(client provider.Client, preAuthorized bool) *AuthService {
	return &AuthService{DB: database.GetDB(), Provider: client, PreAuthorized: preAuthorized}
}

// PendingRegistration carries the user shape between the begin and finish
// halves of a registration ceremony. Nothing is persisted until the ceremony
// succeeds.
type PendingRegistration struct {
	UserID      string
	Username    string
	DisplayName string
	Email       string
	Aliases     []string
}

// SplitAliases normalizes a semicolon-separated alias string.
func SplitAliases(raw string) []string {
	var aliases []string
	for _, a := range strings.Split(raw, ";") {
		if a = strings.TrimSpace(a); a != "" {
			aliases = append(aliases, a)
		}
	}
	return aliases
}

// BeginRegistration validates the username, decides whether registration is
// allowed and asks the provider for a ceremony token. No rows are written:
// user creation waits for the verified assertion in FinishRegistration.
func (s *AuthService) BeginRegistration(ctx context.Context, pending *PendingRegistration) (string, error) {
	user, err := model.NewUser(pending.UserID, pending.Username, pending.DisplayName)
	if err != nil {
		return "", err
	}

	existing, err := repo.GetUser(s.DB, repo.UserFilter{Username: user.Username}, repo.LoadOptions{})
	if err != nil {
		return "", err
	}
	switch {
	case existing == nil && s.PreAuthorized:
		return "", common.NewAppError(common.KindNotPreAuthorized,
			"user "+user.Username+" does not exist, but must exist to allow registration", nil)
	case existing != nil && existing.Disabled:
		return "", common.NewValidationError("username", "user %s is disabled", user.Username)
	case existing != nil:
		user = existing
	}
	pending.UserID = user.ID
	pending.Username = user.Username

	token, err := s.Provider.CreateRegisterToken(ctx, provider.RegisterRequest{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: pending.DisplayName,
		Aliases:     pending.Aliases,
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// FinishRegistration verifies the completed ceremony token with the provider
// and resolves it to a user. A first-time registration creates the user row,
// its optional primary email and the first sign-in entry atomically; user
// existence and first-sign-in record always commit together.
func (s *AuthService) FinishRegistration(ctx context.Context, token string, pending PendingRegistration) (*model.User, *model.UserSignIn, error) {
	verified, err := s.Provider.VerifySignIn(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	var user *model.User
	var signIn *model.UserSignIn
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		user, err = repo.GetUser(tx, repo.UserFilter{ID: verified.UserID},
			repo.LoadOptions{CustomRoles: true, Emails: true})
		if err != nil {
			return err
		}
		if user == nil {
			if s.PreAuthorized {
				return common.NewAppError(common.KindNotPreAuthorized,
					"user "+pending.Username+" is not pre-authorized to register", nil)
			}
			user, err = s.createFirstTimeUser(tx, verified, pending)
			if err != nil {
				return err
			}
		}
		if user.Disabled {
			return common.NewValidationError("username", "user %s is disabled", user.Username)
		}
		signIn, err = newSignInEntry(user.ID, verified, model.SignInTypeRegister)
		if err != nil {
			return err
		}
		return repo.CreateUserSignIn(tx, signIn)
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("registered passkey for user %s (credential %s)", user.Username, verified.CredentialID)
	return user, signIn, nil
}

func (s *AuthService) createFirstTimeUser(tx *gorm.DB, verified *provider.VerifiedSignIn, pending PendingRegistration) (*model.User, error) {
	user, err := model.NewUser(verified.UserID, pending.Username, pending.DisplayName)
	if err != nil {
		return nil, err
	}
	if err := repo.CreateUser(tx, user); err != nil {
		return nil, err
	}
	if pending.Email != "" {
		email, err := model.NewEmail(user.ID, pending.Email, model.PrimaryEmailRank)
		if err != nil {
			return nil, err
		}
		if err := repo.CreateEmail(tx, email); err != nil {
			return nil, err
		}
		user.Emails = append(user.Emails, *email)
	}
	return user, nil
}

// SignIn verifies a sign-in ceremony token and resolves it to the persisted
// user. The verified identity must already exist locally; the sign-in entry
// is appended in the same transactional scope as the lookup.
func (s *AuthService) SignIn(ctx context.Context, token string) (*model.User, *model.UserSignIn, error) {
	verified, err := s.Provider.VerifySignIn(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	var user *model.User
	var signIn *model.UserSignIn
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		user, err = repo.GetUser(tx, repo.UserFilter{ID: verified.UserID},
			repo.LoadOptions{CustomRoles: true, Emails: true})
		if err != nil {
			return err
		}
		if user == nil {
			return common.NewAppError(common.KindNotPreAuthorized,
				"no user exists for the verified identity", nil)
		}
		if user.Disabled {
			return common.NewValidationError("username", "user %s is disabled", user.Username)
		}
		signIn, err = newSignInEntry(user.ID, verified, model.SignInTypeSignIn)
		if err != nil {
			return err
		}
		return repo.CreateUserSignIn(tx, signIn)
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("user %s signed in (credential %s)", user.Username, verified.CredentialID)
	return user, signIn, nil
}

func newSignInEntry(userID string, verified *provider.VerifiedSignIn, signInType string) (*model.UserSignIn, error) {
	at := verified.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}
	entry, err := model.NewUserSignIn(userID, at, signInType)
	if err != nil {
		return nil, err
	}
	entry.Origin = verified.Origin
	entry.Device = verified.Device
	entry.Country = verified.Country
	entry.CredentialNickname = verified.Nickname
	entry.CredentialID = verified.CredentialID
	entry.RPID = verified.RPID
	if verified.Type != "" {
		entry.SignInType = verified.Type
	}
	return entry, nil
}

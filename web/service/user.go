package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/pwless/pwless/database"
	"github.com/pwless/pwless/database/model"
	"github.com/pwless/pwless/database/repo"
	"github.com/pwless/pwless/logger"
	"github.com/pwless/pwless/provider"
	"github.com/pwless/pwless/util/common"
)

// UserService implements the administrative user operations.
type UserService struct {
	DB       *gorm.DB
	Provider provider.Client
}

func NewUserService(client provider.Client) *UserService {
	return &UserService{DB: database.GetDB(), Provider: client}
}

// CreateUserParams describes an administrator-created (pre-authorized) user.
type CreateUserParams struct {
	UserID        string
	Username      string
	DisplayName   string
	Email         string
	RoleName      string
	CustomRoleIDs []int64
	CreatedBy     string
}

// CreateUser creates a user, its optional primary email and its custom-role
// links in one transaction. The default role applies when none is named.
func (s *UserService) CreateUser(params CreateUserParams) (*model.User, error) {
	user, err := model.NewUser(params.UserID, params.Username, params.DisplayName)
	if err != nil {
		return nil, err
	}
	user.CreatedBy = params.CreatedBy
	user.UpdatedBy = params.CreatedBy

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if params.RoleName != "" {
			role, err := repo.GetRoleByName(tx, params.RoleName)
			if err != nil {
				return err
			}
			if role == nil {
				return common.NewValidationError("role", "role %q does not exist", params.RoleName)
			}
			user.RoleID = role.ID
			user.Role = *role
		}
		if err := repo.CreateUser(tx, user); err != nil {
			return err
		}
		if params.Email != "" {
			email, err := model.NewEmail(user.ID, params.Email, model.PrimaryEmailRank)
			if err != nil {
				return err
			}
			email.CreatedBy = params.CreatedBy
			email.UpdatedBy = params.CreatedBy
			if err := repo.CreateEmail(tx, email); err != nil {
				return err
			}
			user.Emails = append(user.Emails, *email)
		}
		if len(params.CustomRoleIDs) > 0 {
			if err := repo.AssignCustomRoles(tx, user, params.CustomRoleIDs...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("created user %s (%s)", user.Username, user.ID)
	return user, nil
}

// GetUser returns one user, or nil when none matches the filter.
func (s *UserService) GetUser(filter repo.UserFilter, opts repo.LoadOptions) (*model.User, error) {
	return repo.GetUser(s.DB, filter, opts)
}

// ListUsers returns the users matching the filter ordered by username.
func (s *UserService) ListUsers(filter repo.UserFilter, opts repo.LoadOptions) ([]model.User, error) {
	return repo.ListUsers(s.DB, filter, opts)
}

// UpdateUserParams describes a partial user update. Nil fields stay
// untouched.
type UpdateUserParams struct {
	DisplayName *string
	RoleName    *string
	Disabled    *bool
	UpdatedBy   string
}

// UpdateUser applies the changed fields to an existing user.
func (s *UserService) UpdateUser(id string, params UpdateUserParams) (*model.User, error) {
	var user *model.User
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = repo.GetUser(tx, repo.UserFilter{ID: id}, repo.LoadOptions{CustomRoles: true, Emails: true})
		if err != nil {
			return err
		}
		if user == nil {
			return common.NewValidationError("user_id", "user %q does not exist", id)
		}
		if params.DisplayName != nil {
			user.DisplayName = *params.DisplayName
		}
		if params.RoleName != nil {
			role, err := repo.GetRoleByName(tx, *params.RoleName)
			if err != nil {
				return err
			}
			if role == nil {
				return common.NewValidationError("role", "role %q does not exist", *params.RoleName)
			}
			user.RoleID = role.ID
			user.Role = *role
		}
		if params.Disabled != nil && *params.Disabled != user.Disabled {
			if *params.Disabled {
				user.Disable(time.Now().UTC())
			} else {
				user.Enable()
			}
		}
		user.UpdatedBy = params.UpdatedBy
		return repo.UpdateUser(tx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes the user locally and at the provider. The remote account
// is deleted first; the local row is deleted regardless of the remote
// outcome. A failed remote deletion is reported as a partial-success warning
// after the local deletion committed, never as a rollback.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	remoteErr := s.Provider.DeleteAccount(ctx, id)
	if remoteErr != nil {
		logger.Warningf("failed to delete provider account of user %s: %v", id, remoteErr)
	}

	if err := repo.DeleteUser(s.DB, id); err != nil {
		return err
	}
	logger.Infof("deleted user %s", id)

	if remoteErr != nil {
		return common.NewAppError(common.KindPartialDelete,
			"user deleted locally, but the provider account could not be removed", remoteErr)
	}
	return nil
}

// AddEmail attaches an additional email address to a user.
func (s *UserService) AddEmail(userID, address string, rank int) (*model.Email, error) {
	email, err := model.NewEmail(userID, address, rank)
	if err != nil {
		return nil, err
	}
	if err := repo.CreateEmail(s.DB, email); err != nil {
		return nil, err
	}
	return email, nil
}

// DeleteEmail removes one email address of a user. Deleting an address owned
// by another user is a no-op.
func (s *UserService) DeleteEmail(userID string, emailID int64) error {
	return repo.DeleteEmail(s.DB, userID, emailID)
}

// SignInHistory returns up to limit sign-in entries of a user, newest first.
func (s *UserService) SignInHistory(userID string, limit int) ([]model.UserSignIn, error) {
	return repo.ListUserSignIns(s.DB, userID, limit)
}

// Credentials lists the passkeys the provider holds for a user.
func (s *UserService) Credentials(ctx context.Context, userID string) ([]provider.Credential, error) {
	return s.Provider.ListCredentials(ctx, userID)
}

// UpdateAliases replaces the sign-in aliases of a user at the provider. The
// user must exist locally; aliases themselves live only on the provider side.
func (s *UserService) UpdateAliases(ctx context.Context, userID string, aliases []string) error {
	user, err := repo.GetUser(s.DB, repo.UserFilter{ID: userID}, repo.LoadOptions{})
	if err != nil {
		return err
	}
	if user == nil {
		return common.NewValidationError("user_id", "user %q does not exist", userID)
	}
	if err := s.Provider.SetAliases(ctx, userID, aliases); err != nil {
		return err
	}
	logger.Infof("updated aliases of user %s", user.Username)
	return nil
}

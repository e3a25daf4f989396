package service

import (
	"gorm.io/gorm"

	"github.com/pwless/pwless/database"
	"github.com/pwless/pwless/database/model"
	"github.com/pwless/pwless/database/repo"
	"github.com/pwless/pwless/util/common"
)

// RoleService implements role and custom-role administration.
type RoleService struct {
	DB *gorm.DB
}

func NewRoleService() *RoleService {
	return &RoleService{DB: database.GetDB()}
}

// ListRoles returns the predefined roles ordered by rank.
func (s *RoleService) ListRoles() ([]model.Role, error) {
	return repo.ListRoles(s.DB)
}

// ListCustomRoles returns all custom roles ordered by rank.
func (s *RoleService) ListCustomRoles() ([]model.CustomRole, error) {
	return repo.ListCustomRoles(s.DB)
}

// CreateCustomRole creates an application-defined role.
func (s *RoleService) CreateCustomRole(name string, rank int, description string) (*model.CustomRole, error) {
	role, err := model.NewCustomRole(name, rank, description)
	if err != nil {
		return nil, err
	}
	if err := repo.CreateCustomRole(s.DB, role); err != nil {
		return nil, err
	}
	return role, nil
}

// RenameCustomRole renames a custom role; assignments keep working since they
// reference the stable id.
func (s *RoleService) RenameCustomRole(id int64, name string) error {
	return repo.RenameCustomRole(s.DB, id, name)
}

// AssignCustomRoles links custom roles to a user by their stable ids.
func (s *RoleService) AssignCustomRoles(userID string, roleIDs ...int64) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		user, err := repo.GetUser(tx, repo.UserFilter{ID: userID}, repo.LoadOptions{})
		if err != nil {
			return err
		}
		if user == nil {
			return common.NewValidationError("user_id", "user %q does not exist", userID)
		}
		return repo.AssignCustomRoles(tx, user, roleIDs...)
	})
}

// RemoveCustomRole unlinks a custom role from a user.
func (s *RoleService) RemoveCustomRole(userID string, roleID int64) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		user, err := repo.GetUser(tx, repo.UserFilter{ID: userID}, repo.LoadOptions{})
		if err != nil {
			return err
		}
		if user == nil {
			return common.NewValidationError("user_id", "user %q does not exist", userID)
		}
		return repo.RemoveCustomRole(tx, user, roleID)
	})
}

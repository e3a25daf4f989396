package repo

import (
	"gorm.io/gorm"

	"github.com/pwless/pwless/database"
	"github.com/pwless/pwless/database/model"
	"github.com/pwless/pwless/util/common"
)

// CreateRole inserts a role. The predefined roles are normally seeded by
// database.SeedDefaultRoles; this exists for extending the fixed set.
func CreateRole(tx *gorm.DB, role *model.Role) error {
	err := tx.Create(role).Error
	if database.IsDuplicate(err) {
		return common.NewValidationError("name", "role %q already exists", role.Name)
	}
	if err != nil {
		return common.NewAppError(common.KindDatabase, "error saving role "+role.Name, err)
	}
	return nil
}

// GetRoleByName returns the role with the given name, or nil if it does not exist.
func GetRoleByName(tx *gorm.DB, name string) (*model.Role, error) {
	role := &model.Role{}
	err := tx.Where("name = ?", name).First(role).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, common.NewAppError(common.KindDatabase, "error loading role "+name, err)
	}
	return role, nil
}

// GetRoleByID returns the role with the given id, or nil if it does not exist.
func GetRoleByID(tx *gorm.DB, id int64) (*model.Role, error) {
	role := &model.Role{}
	err := tx.First(role, id).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, common.NewAppError(common.KindDatabase, "error loading role", err)
	}
	return role, nil
}

// ListRoles returns all roles ordered by ascending rank.
func ListRoles(tx *gorm.DB) ([]model.Role, error) {
	var roles []model.Role
	if err := tx.Order("rank ASC").Find(&roles).Error; err != nil {
		return nil, common.NewAppError(common.KindDatabase, "error loading roles", err)
	}
	return roles, nil
}

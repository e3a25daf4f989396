package repo

import (
	"gorm.io/gorm"

	"github.com/pwless/pwless/database"
	"github.com/pwless/pwless/database/model"
	"github.com/pwless/pwless/util/common"
)

// CreateCustomRole inserts an application-defined role.
func CreateCustomRole(tx *gorm.DB, role *model.CustomRole) error {
	err := tx.Create(role).Error
	if database.IsDuplicate(err) {
		return common.NewValidationError("name", "custom role %q already exists", role.Name)
	}
	if err != nil {
		return common.NewAppError(common.KindDatabase, "error saving custom role "+role.Name, err)
	}
	return nil
}

// GetCustomRoles returns the custom roles with the given ids.
func GetCustomRoles(tx *gorm.DB, ids ...int64) ([]model.CustomRole, error) {
	var roles []model.CustomRole
	if len(ids) == 0 {
		return roles, nil
	}
	if err := tx.Where("role_id IN ?", ids).Find(&roles).Error; err != nil {
		return nil, common.NewAppError(common.KindDatabase, "error loading custom roles", err)
	}
	return roles, nil
}

// ListCustomRoles returns all custom roles ordered by ascending rank.
func ListCustomRoles(tx *gorm.DB) ([]model.CustomRole, error) {
	var roles []model.CustomRole
	if err := tx.Order("rank ASC").Find(&roles).Error; err != nil {
		return nil, common.NewAppError(common.KindDatabase, "error loading custom roles", err)
	}
	return roles, nil
}

// RenameCustomRole changes the display name of a custom role. User
// assignments reference the stable role_id and are unaffected.
func RenameCustomRole(tx *gorm.DB, id int64, name string) error {
	err := tx.Model(&model.CustomRole{}).Where("role_id = ?", id).Update("name", name).Error
	if database.IsDuplicate(err) {
		return common.NewValidationError("name", "custom role %q already exists", name)
	}
	if err != nil {
		return common.NewAppError(common.KindDatabase, "error renaming custom role", err)
	}
	return nil
}

// AssignCustomRoles links the custom roles with the given ids to the user.
func AssignCustomRoles(tx *gorm.DB, user *model.User, ids ...int64) error {
	roles, err := GetCustomRoles(tx, ids...)
	if err != nil {
		return err
	}
	if len(roles) != len(ids) {
		return common.NewValidationError("custom_roles", "one or more custom roles do not exist")
	}
	if err := tx.Model(user).Association("CustomRoles").Append(&roles); err != nil {
		return common.NewAppError(common.KindDatabase, "error assigning custom roles to user "+user.ID, err)
	}
	return nil
}

// RemoveCustomRole unlinks a custom role from the user. The role itself stays.
func RemoveCustomRole(tx *gorm.DB, user *model.User, id int64) error {
	if err := tx.Model(user).Association("CustomRoles").Delete(&model.CustomRole{ID: id}); err != nil {
		return common.NewAppError(common.KindDatabase, "error removing custom role from user "+user.ID, err)
	}
	return nil
}

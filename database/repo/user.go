package repo

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pwless/pwless/database"
	"github.com/pwless/pwless/database/model"
	"github.com/pwless/pwless/util/common"
)

// CreateUser inserts a user row. A user without an explicit role gets the
// default role. A duplicate username surfaces as a field-level validation
// error.
func CreateUser(tx *gorm.DB, user *model.User) error {
	if user.RoleID == 0 {
		role, err := GetRoleByName(tx, model.RoleUser)
		if err != nil {
			return err
		}
		if role == nil {
			return common.NewAppError(common.KindDatabase, "default role is missing, run init first", nil)
		}
		user.RoleID = role.ID
		user.Role = *role
	}
	err := tx.Omit(clause.Associations).Create(user).Error
	if database.IsDuplicate(err) {
		return common.NewValidationError("username", "username %q is already taken", user.Username)
	}
	if err != nil {
		return common.NewAppError(common.KindDatabase, "error saving user "+user.Username, err)
	}
	return nil
}

// GetUser returns the first user matching the filter, or nil if none matches.
func GetUser(tx *gorm.DB, filter UserFilter, opts LoadOptions) (*model.User, error) {
	user := &model.User{}
	err := opts.apply(filter.apply(tx.Model(&model.User{}))).First(user).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, common.NewAppError(common.KindDatabase, "error loading user", err)
	}
	return user, nil
}

// ListUsers returns the users matching the filter, ordered by username.
func ListUsers(tx *gorm.DB, filter UserFilter, opts LoadOptions) ([]model.User, error) {
	var users []model.User
	err := opts.apply(filter.apply(tx.Model(&model.User{}))).
		Order("username ASC").
		Find(&users).Error
	if err != nil {
		return nil, common.NewAppError(common.KindDatabase, "error loading users", err)
	}
	return users, nil
}

// UpdateUser persists changed user columns. Association changes go through
// AssignCustomRole / RemoveCustomRole.
func UpdateUser(tx *gorm.DB, user *model.User) error {
	err := tx.Omit(clause.Associations).Save(user).Error
	if database.IsDuplicate(err) {
		return common.NewValidationError("username", "username %q is already taken", user.Username)
	}
	if err != nil {
		return common.NewAppError(common.KindDatabase, "error updating user "+user.ID, err)
	}
	return nil
}

// DeleteUser removes the user row together with its owned emails, sign-in
// history and custom-role links.
func DeleteUser(tx *gorm.DB, id string) error {
	err := tx.Select(clause.Associations).Delete(&model.User{ID: id}).Error
	if err != nil {
		return common.NewAppError(common.KindDatabase, "error deleting user "+id, err)
	}
	return nil
}

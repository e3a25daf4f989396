package repo

import (
	"gorm.io/gorm"

	"github.com/pwless/pwless/database"
	"github.com/pwless/pwless/database/model"
	"github.com/pwless/pwless/util/common"
)

// CreateUserSignIn appends one row to the sign-in audit log. The log is
// append-only: there is deliberately no update operation for it.
func CreateUserSignIn(tx *gorm.DB, signIn *model.UserSignIn) error {
	if err := tx.Create(signIn).Error; err != nil {
		return common.NewAppError(common.KindDatabase, "error saving sign-in entry for user "+signIn.UserID, err)
	}
	return nil
}

// LatestUserSignIn returns the most recent sign-in entry of a user, or nil if
// the user never signed in.
func LatestUserSignIn(tx *gorm.DB, userID string) (*model.UserSignIn, error) {
	signIn := &model.UserSignIn{}
	err := tx.Where("user_id = ?", userID).Order("signed_in_at DESC").First(signIn).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, common.NewAppError(common.KindDatabase, "error loading sign-in history of user "+userID, err)
	}
	return signIn, nil
}

// ListUserSignIns returns up to limit sign-in entries of a user, newest
// first. A limit <= 0 returns the full history.
func ListUserSignIns(tx *gorm.DB, userID string, limit int) ([]model.UserSignIn, error) {
	q := tx.Where("user_id = ?", userID).Order("signed_in_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var signIns []model.UserSignIn
	if err := q.Find(&signIns).Error; err != nil {
		return nil, common.NewAppError(common.KindDatabase, "error loading sign-in history of user "+userID, err)
	}
	return signIns, nil
}

// CountUserSignIns returns the number of logged sign-ins of a user.
func CountUserSignIns(tx *gorm.DB, userID string) (int64, error) {
	var count int64
	err := tx.Model(&model.UserSignIn{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return 0, common.NewAppError(common.KindDatabase, "error counting sign-ins of user "+userID, err)
	}
	return count, nil
}

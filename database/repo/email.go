package repo

import (
	"gorm.io/gorm"

	"github.com/pwless/pwless/database"
	"github.com/pwless/pwless/database/model"
	"github.com/pwless/pwless/util/common"
)

// CreateEmail inserts an email row. Uniqueness violations are attributed to
// the offending field: a second rank-1 address for the same user reports the
// rank, an address owned by someone else reports the address. The insert runs
// in a savepoint so a violation does not abort an enclosing transaction,
// which on Postgres would also poison the attribution query.
func CreateEmail(tx *gorm.DB, email *model.Email) error {
	err := tx.Transaction(func(inner *gorm.DB) error {
		return inner.Create(email).Error
	})
	if database.IsDuplicate(err) {
		return attributeEmailConflict(tx, email)
	}
	if err != nil {
		return common.NewAppError(common.KindDatabase, "error saving email "+email.Address, err)
	}
	return nil
}

func attributeEmailConflict(tx *gorm.DB, email *model.Email) error {
	var count int64
	err := tx.Model(&model.Email{}).
		Where("user_id = ? AND rank = ?", email.UserID, email.Rank).
		Count(&count).Error
	if err == nil && count > 0 {
		if email.IsPrimary() {
			return common.NewValidationError("rank", "user already has a primary email")
		}
		return common.NewValidationError("rank", "user already has an email with rank %d", email.Rank)
	}
	return common.NewValidationError("email", "email %q is already registered", email.Address)
}

// ListEmails returns the emails of a user ordered by rank, primary first.
func ListEmails(tx *gorm.DB, userID string) ([]model.Email, error) {
	var emails []model.Email
	err := tx.Where("user_id = ?", userID).Order("rank ASC").Find(&emails).Error
	if err != nil {
		return nil, common.NewAppError(common.KindDatabase, "error loading emails of user "+userID, err)
	}
	return emails, nil
}

// DeleteEmail removes one email row of a user.
func DeleteEmail(tx *gorm.DB, userID string, id int64) error {
	err := tx.Where("user_id = ?", userID).Delete(&model.Email{}, id).Error
	if err != nil {
		return common.NewAppError(common.KindDatabase, "error deleting email", err)
	}
	return nil
}

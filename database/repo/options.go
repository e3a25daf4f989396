// Package repo implements the query and write operations over the pwless
// entities. Every function takes an explicit *gorm.DB handle, which may be
// the shared connection or an open transaction: callers batch related writes
// by running them inside database.Transaction.
package repo

import (
	"gorm.io/gorm"

	"github.com/pwless/pwless/database/model"
)

// LoadOptions controls which relationships a query loads eagerly. The Role of
// a user is always joined since authorization depends on it; everything else
// is opt-in so callers avoid unnecessary joins.
type LoadOptions struct {
	CustomRoles bool
	Emails      bool
	SignIns     bool
	// DeferAudit skips loading the audit column group.
	DeferAudit bool
}

func (o LoadOptions) apply(tx *gorm.DB) *gorm.DB {
	tx = tx.Preload("Role")
	if o.CustomRoles {
		tx = tx.Preload("CustomRoles")
	}
	if o.Emails {
		tx = tx.Preload("Emails")
	}
	if o.SignIns {
		tx = tx.Preload("SignIns")
	}
	if o.DeferAudit {
		tx = tx.Omit(model.AuditColumns()...)
	}
	return tx
}

// UserFilter narrows user queries. Zero values mean "no filter"; Disabled is
// tri-state: nil matches both enabled and disabled users.
type UserFilter struct {
	ID       string
	Username string
	Disabled *bool
}

func (f UserFilter) apply(tx *gorm.DB) *gorm.DB {
	if f.ID != "" {
		tx = tx.Where("id = ?", f.ID)
	}
	if f.Username != "" {
		tx = tx.Where("username = ?", f.Username)
	}
	if f.Disabled != nil {
		tx = tx.Where("disabled = ?", *f.Disabled)
	}
	return tx
}

// Bool returns a pointer for use in tri-state filters.
func Bool(v bool) *bool { return &v }

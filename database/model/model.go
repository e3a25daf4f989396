// Package model defines the persisted entities of pwless: users, their email
// addresses, roles, custom roles and the sign-in audit log.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pwless/pwless/util/common"
)

// Audit is the column group shared by every table. Queries may defer loading
// these columns, see AuditColumns.
type Audit struct {
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	CreatedBy string    `json:"createdBy"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
	UpdatedBy string    `json:"updatedBy"`
}

// AuditColumns returns the database column names of the audit group.
func AuditColumns() []string {
	return []string{"created_at", "created_by", "updated_at", "updated_by"}
}

// The predefined role names. A role with a higher rank has more privileges,
// but authorization matches on the exact role name, not on the rank.
const (
	RoleViewer    = "viewer"
	RoleUser      = "user"
	RoleSuperUser = "superuser"
	RoleAdmin     = "admin"
)

// Role is one of the fixed predefined roles. Every user has exactly one.
type Role struct {
	ID          int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string `json:"name" gorm:"uniqueIndex;not null"`
	Rank        int    `json:"rank" gorm:"not null"`
	Description string `json:"description"`
	Audit
}


// DefaultRoles returns the roles seeded at database initialization, ordered
// by ascending rank.
func DefaultRoles() []Role {
	return []Role{
		{Name: RoleViewer, Rank: 1, Description: "Read-only access."},
		{Name: RoleUser, Rank: 2, Description: "A standard user."},
		{Name: RoleSuperUser, Rank: 3, Description: "A user with elevated privileges."},
		{Name: RoleAdmin, Rank: 4, Description: "Full administrative access."},
	}
}

// CustomRole is an application-defined authorization tag. Users reference it
// by its stable id, so renaming a custom role never breaks existing
// assignments.
type CustomRole struct {
	ID          int64  `json:"id" gorm:"primaryKey;autoIncrement;column:role_id"`
	Name        string `json:"name" gorm:"uniqueIndex;not null"`
	Rank        int    `json:"rank"`
	Description string `json:"description"`
	Audit
}


// NewCustomRole validates and builds a custom role.
func NewCustomRole(name string, rank int, description string) (*CustomRole, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.NewValidationError("name", "custom role name is required")
	}
	return &CustomRole{Name: name, Rank: rank, Description: description}, nil
}

// User is the aggregate root. It owns its emails (cascade delete), holds a
// weak reference to its sign-in history and a non-owning many-to-many link to
// custom roles.
type User struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	Username    string     `json:"username" gorm:"uniqueIndex;not null"`
	DisplayName string     `json:"displayName"`
	RoleID      int64      `json:"roleId" gorm:"not null;index"`
	Role        Role       `json:"role"`
	Verified    bool       `json:"verified"`
	VerifiedAt  *time.Time `json:"verifiedAt"`
	Disabled    bool       `json:"disabled" gorm:"index;default:false"`
	DisabledAt  *time.Time `json:"disabledAt"`

	CustomRoles []CustomRole `json:"customRoles" gorm:"many2many:user_role_custom_role;constraint:OnDelete:CASCADE"`
	Emails      []Email      `json:"emails" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	SignIns     []UserSignIn `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Audit
}


// NewUser validates and builds a user. An empty id is replaced with a fresh
// UUID. The role is assigned by the repository at creation time.
func NewUser(id, username, displayName string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, common.NewValidationError("username", "username is required")
	}
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, common.NewValidationError("user_id", "user id %q is not a valid UUID", id)
	}
	return &User{ID: id, Username: username, DisplayName: displayName}, nil
}

// PrimaryEmail returns the rank-1 email of the user, or nil if the emails are
// not loaded or the user has none.
func (u *User) PrimaryEmail() *Email {
	for i := range u.Emails {
		if u.Emails[i].Rank == PrimaryEmailRank {
			return &u.Emails[i]
		}
	}
	return nil
}

// HasRole reports whether the user's role matches name exactly.
func (u *User) HasRole(name string) bool {
	return u.Role.Name == name
}

// HasCustomRole reports whether the user holds the custom role with roleID.
func (u *User) HasCustomRole(roleID int64) bool {
	for i := range u.CustomRoles {
		if u.CustomRoles[i].ID == roleID {
			return true
		}
	}
	return false
}

// Disable marks the user disabled at the given time.
func (u *User) Disable(at time.Time) {
	u.Disabled = true
	u.DisabledAt = &at
}

// Enable clears the disabled state.
func (u *User) Enable() {
	u.Disabled = false
	u.DisabledAt = nil
}

// MarkVerified marks the user verified at the given time.
func (u *User) MarkVerified(at time.Time) {
	u.Verified = true
	u.VerifiedAt = &at
}

// PrimaryEmailRank is the rank of a user's primary email address.
const PrimaryEmailRank = 1

// Email is an address owned by exactly one user. Rank 1 is the primary
// address; the (user_id, rank) pair is unique.
type Email struct {
	ID         int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID     string     `json:"userId" gorm:"size:36;not null;index;uniqueIndex:uq_email_user_rank,priority:1"`
	Address    string     `json:"address" gorm:"uniqueIndex;not null"`
	Rank       int        `json:"rank" gorm:"not null;uniqueIndex:uq_email_user_rank,priority:2"`
	Verified   bool       `json:"verified"`
	VerifiedAt *time.Time `json:"verifiedAt"`
	Audit
}


// NewEmail validates and builds an email address for a user.
func NewEmail(userID, address string, rank int) (*Email, error) {
	address = strings.TrimSpace(address)
	if userID == "" {
		return nil, common.NewValidationError("user_id", "email requires a user id")
	}
	if at := strings.Index(address, "@"); at < 1 || at == len(address)-1 {
		return nil, common.NewValidationError("email", "invalid email address %q", address)
	}
	if rank < PrimaryEmailRank {
		return nil, common.NewValidationError("rank", "email rank must be >= %d, got %d", PrimaryEmailRank, rank)
	}
	return &Email{UserID: userID, Address: address, Rank: rank}, nil
}

// IsPrimary reports whether this is the user's primary address.
func (e *Email) IsPrimary() bool { return e.Rank == PrimaryEmailRank }

// Sign-in event types.
const (
	SignInTypeSignIn   = "passkey_signin"
	SignInTypeRegister = "passkey_register"
)

// UserSignIn is one row of the append-only sign-in audit log. Rows are never
// updated and are removed only when the user itself is deleted.
type UserSignIn struct {
	ID                 int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID             string    `json:"userId" gorm:"size:36;not null;index:ix_user_sign_in_user_time,priority:1"`
	SignedInAt         time.Time `json:"signedInAt" gorm:"not null;index:ix_user_sign_in_user_time,priority:2"`
	Success            bool      `json:"success"`
	Origin             string    `json:"origin" gorm:"index"`
	Device             string    `json:"device"`
	Country            string    `json:"country"`
	CredentialNickname string    `json:"credentialNickname"`
	CredentialID       string    `json:"credentialId"`
	SignInType         string    `json:"signInType"`
	RPID               string    `json:"rpId"`
	Audit
}


// NewUserSignIn validates and builds a sign-in log entry.
func NewUserSignIn(userID string, at time.Time, signInType string) (*UserSignIn, error) {
	if userID == "" {
		return nil, common.NewValidationError("user_id", "sign-in entry requires a user id")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &UserSignIn{UserID: userID, SignedInAt: at, Success: true, SignInType: signInType}, nil
}

package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewUser(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		username string
		wantErr  bool
	}{
		{name: "valid with explicit id", id: "b6142db4-467d-4889-91f5-40a33ef0247e", username: "alice"},
		{name: "valid without id", id: "", username: "bob"},
		{name: "username with surrounding spaces", id: "", username: "  carol  "},
		{name: "missing username", id: "", username: "", wantErr: true},
		{name: "whitespace username", id: "", username: "   ", wantErr: true},
		{name: "malformed id", id: "not-a-uuid", username: "dave", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			user, err := NewUser(tc.id, tc.username, "")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			_, err = uuid.Parse(user.ID)
			assert.NoError(t, err, "user id must be a UUID")
			assert.NotEqual(t, tc.username, " "+user.Username+" ", "username must be trimmed")
		})
	}
}

func TestNewUserGeneratesDistinctIDs(t *testing.T) {
	u1, err := NewUser("", "alice", "")
	assert.NoError(t, err)
	u2, err := NewUser("", "bob", "")
	assert.NoError(t, err)
	assert.NotEqual(t, u1.ID, u2.ID)
}

func TestNewEmail(t *testing.T) {
	userID := uuid.NewString()

	tests := []struct {
		name    string
		userID  string
		address string
		rank    int
		wantErr bool
	}{
		{name: "valid primary", userID: userID, address: "alice@example.com", rank: 1},
		{name: "valid secondary", userID: userID, address: "alice@work.example.com", rank: 2},
		{name: "missing user id", userID: "", address: "alice@example.com", rank: 1, wantErr: true},
		{name: "no at sign", userID: userID, address: "alice.example.com", rank: 1, wantErr: true},
		{name: "nothing before at", userID: userID, address: "@example.com", rank: 1, wantErr: true},
		{name: "nothing after at", userID: userID, address: "alice@", rank: 1, wantErr: true},
		{name: "rank zero", userID: userID, address: "alice@example.com", rank: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			email, err := NewEmail(tc.userID, tc.address, tc.rank)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.rank == PrimaryEmailRank, email.IsPrimary())
		})
	}
}

func TestPrimaryEmail(t *testing.T) {
	user := &User{Emails: []Email{
		{Address: "second@example.com", Rank: 2},
		{Address: "first@example.com", Rank: 1},
	}}
	primary := user.PrimaryEmail()
	if assert.NotNil(t, primary) {
		assert.Equal(t, "first@example.com", primary.Address)
	}

	none := &User{}
	assert.Nil(t, none.PrimaryEmail())
}

func TestHasRoleMatchesExactName(t *testing.T) {
	user := &User{Role: Role{Name: RoleAdmin, Rank: 4}}

	assert.True(t, user.HasRole(RoleAdmin))
	// A higher rank never satisfies a requirement for a different role.
	assert.False(t, user.HasRole(RoleUser))
	assert.False(t, user.HasRole(RoleViewer))
}

func TestHasCustomRole(t *testing.T) {
	user := &User{CustomRoles: []CustomRole{{ID: 7, Name: "reporting"}}}

	assert.True(t, user.HasCustomRole(7))
	assert.False(t, user.HasCustomRole(8))
}

func TestDisableEnable(t *testing.T) {
	user := &User{}
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user.Disable(at)
	assert.True(t, user.Disabled)
	if assert.NotNil(t, user.DisabledAt) {
		assert.Equal(t, at, *user.DisabledAt)
	}

	user.Enable()
	assert.False(t, user.Disabled)
	assert.Nil(t, user.DisabledAt)
}

func TestNewCustomRole(t *testing.T) {
	role, err := NewCustomRole("  reporting  ", 3, "view reports")
	assert.NoError(t, err)
	assert.Equal(t, "reporting", role.Name)

	_, err = NewCustomRole("   ", 1, "")
	assert.Error(t, err)
}

func TestNewUserSignIn(t *testing.T) {
	at := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	entry, err := NewUserSignIn("user-1", at, SignInTypeSignIn)
	assert.NoError(t, err)
	assert.True(t, entry.Success)
	assert.Equal(t, at, entry.SignedInAt)

	entry, err = NewUserSignIn("user-1", time.Time{}, SignInTypeRegister)
	assert.NoError(t, err)
	assert.False(t, entry.SignedInAt.IsZero())

	_, err = NewUserSignIn("", at, SignInTypeSignIn)
	assert.Error(t, err)
}

func TestDefaultRolesOrderedByRank(t *testing.T) {
	roles := DefaultRoles()
	assert.Len(t, roles, 4)
	for i := 1; i < len(roles); i++ {
		assert.Greater(t, roles[i].Rank, roles[i-1].Rank)
	}
	assert.Equal(t, RoleViewer, roles[0].Name)
	assert.Equal(t, RoleAdmin, roles[3].Name)
}

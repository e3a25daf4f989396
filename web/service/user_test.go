package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pwless/pwless/database"
	"github.com/pwless/pwless/database/model"
	"github.com/pwless/pwless/database/repo"
	"github.com/pwless/pwless/util/common"
)

func TestCreateUserWithRoleEmailAndCustomRoles(t *testing.T) {
	setup(t)
	defer teardown()

	role, err := model.NewCustomRole("reporting", 1, "")
	assert.NoError(t, err)
	assert.NoError(t, repo.CreateCustomRole(database.GetDB(), role))

	svc := &UserService{DB: database.GetDB(), Provider: &fakeProvider{}}
	user, err := svc.CreateUser(CreateUserParams{
		Username:      "alice",
		DisplayName:   "Alice",
		Email:         "alice@example.com",
		RoleName:      model.RoleSuperUser,
		CustomRoleIDs: []int64{role.ID},
		CreatedBy:     "admin",
	})
	assert.NoError(t, err)
	assert.Equal(t, model.RoleSuperUser, user.Role.Name)

	got, err := svc.GetUser(repo.UserFilter{Username: "alice"}, repo.LoadOptions{CustomRoles: true, Emails: true})
	assert.NoError(t, err)
	if assert.NotNil(t, got) {
		assert.Equal(t, "admin", got.CreatedBy)
		assert.Len(t, got.CustomRoles, 1)
		if primary := got.PrimaryEmail(); assert.NotNil(t, primary) {
			assert.Equal(t, "alice@example.com", primary.Address)
		}
	}
}

func TestCreateUserUnknownRoleRollsBack(t *testing.T) {
	setup(t)
	defer teardown()

	svc := &UserService{DB: database.GetDB(), Provider: &fakeProvider{}}
	_, err := svc.CreateUser(CreateUserParams{Username: "alice", RoleName: "ghost"})
	assert.True(t, common.IsKind(err, common.KindValidation))

	got, err := svc.GetUser(repo.UserFilter{Username: "alice"}, repo.LoadOptions{})
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateUserBadEmailRollsBackUserRow(t *testing.T) {
	setup(t)
	defer teardown()

	svc := &UserService{DB: database.GetDB(), Provider: &fakeProvider{}}
	_, err := svc.CreateUser(CreateUserParams{Username: "alice", Email: "not-an-address"})
	assert.True(t, common.IsKind(err, common.KindValidation))

	// User and email commit together or not at all.
	got, err := svc.GetUser(repo.UserFilter{Username: "alice"}, repo.LoadOptions{})
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateUserAppliesOnlyGivenFields(t *testing.T) {
	setup(t)
	defer teardown()

	svc := &UserService{DB: database.GetDB(), Provider: &fakeProvider{}}
	user, err := svc.CreateUser(CreateUserParams{Username: "alice", DisplayName: "Alice"})
	assert.NoError(t, err)

	newName := "Alice Smith"
	updated, err := svc.UpdateUser(user.ID, UpdateUserParams{DisplayName: &newName, UpdatedBy: "admin"})
	assert.NoError(t, err)
	assert.Equal(t, "Alice Smith", updated.DisplayName)
	assert.Equal(t, model.RoleUser, updated.Role.Name, "role must stay untouched")
	assert.False(t, updated.Disabled)

	roleName := model.RoleAdmin
	disabled := true
	updated, err = svc.UpdateUser(user.ID, UpdateUserParams{RoleName: &roleName, Disabled: &disabled})
	assert.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, updated.Role.Name)
	assert.True(t, updated.Disabled)
	assert.NotNil(t, updated.DisabledAt)

	enabled := false
	updated, err = svc.UpdateUser(user.ID, UpdateUserParams{Disabled: &enabled})
	assert.NoError(t, err)
	assert.False(t, updated.Disabled)
	assert.Nil(t, updated.DisabledAt)
}

func TestUpdateUserUnknownID(t *testing.T) {
	setup(t)
	defer teardown()

	svc := &UserService{DB: database.GetDB(), Provider: &fakeProvider{}}
	_, err := svc.UpdateUser("1f6f29f1-45ec-44a1-abf9-cb04896cae42", UpdateUserParams{})
	assert.True(t, common.IsKind(err, common.KindValidation))
}

func TestDeleteUserRemovesRemoteAndLocal(t *testing.T) {
	setup(t)
	defer teardown()

	fake := &fakeProvider{}
	svc := &UserService{DB: database.GetDB(), Provider: fake}
	user, err := svc.CreateUser(CreateUserParams{Username: "alice"})
	assert.NoError(t, err)

	assert.NoError(t, svc.DeleteUser(context.Background(), user.ID))
	assert.Equal(t, []string{user.ID}, fake.deletedAccounts)

	got, err := svc.GetUser(repo.UserFilter{ID: user.ID}, repo.LoadOptions{})
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteUserRemoteFailureStillDeletesLocally(t *testing.T) {
	setup(t)
	defer teardown()

	fake := &fakeProvider{deleteErr: errors.New("provider unreachable")}
	svc := &UserService{DB: database.GetDB(), Provider: fake}
	user, err := svc.CreateUser(CreateUserParams{Username: "alice"})
	assert.NoError(t, err)

	err = svc.DeleteUser(context.Background(), user.ID)
	assert.True(t, common.IsKind(err, common.KindPartialDelete),
		"a failed remote deletion is a partial-success warning, not a rollback")

	got, lookupErr := svc.GetUser(repo.UserFilter{ID: user.ID}, repo.LoadOptions{})
	assert.NoError(t, lookupErr)
	assert.Nil(t, got, "local row must be gone despite the remote failure")
}

func TestUpdateAliases(t *testing.T) {
	setup(t)
	defer teardown()

	fake := &fakeProvider{}
	svc := &UserService{DB: database.GetDB(), Provider: fake}
	user, err := svc.CreateUser(CreateUserParams{Username: "alice"})
	assert.NoError(t, err)

	aliases := []string{"alice@example.com", "alice@work.example.com"}
	assert.NoError(t, svc.UpdateAliases(context.Background(), user.ID, aliases))
	assert.Equal(t, aliases, fake.aliasCalls[user.ID])

	err = svc.UpdateAliases(context.Background(), "1f6f29f1-45ec-44a1-abf9-cb04896cae42", aliases)
	assert.True(t, common.IsKind(err, common.KindValidation),
		"aliases of an unknown user must not reach the provider")
	assert.Len(t, fake.aliasCalls, 1)
}

func TestAddEmailAndHistory(t *testing.T) {
	setup(t)
	defer teardown()

	svc := &UserService{DB: database.GetDB(), Provider: &fakeProvider{}}
	user, err := svc.CreateUser(CreateUserParams{Username: "alice", Email: "alice@example.com"})
	assert.NoError(t, err)

	email, err := svc.AddEmail(user.ID, "alice@work.example.com", 2)
	assert.NoError(t, err)
	assert.False(t, email.IsPrimary())

	history, err := svc.SignInHistory(user.ID, 10)
	assert.NoError(t, err)
	assert.Empty(t, history, "an admin-created user has no sign-ins yet")

	assert.NoError(t, svc.DeleteEmail(user.ID, email.ID))
	got, err := svc.GetUser(repo.UserFilter{ID: user.ID}, repo.LoadOptions{Emails: true})
	assert.NoError(t, err)
	if assert.NotNil(t, got) && assert.Len(t, got.Emails, 1) {
		assert.True(t, got.Emails[0].IsPrimary(), "only the secondary address is removed")
	}
}

package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pwless/pwless/config"
	"github.com/pwless/pwless/database"
	"github.com/pwless/pwless/database/model"
	"github.com/pwless/pwless/database/repo"
	"github.com/pwless/pwless/provider"
	"github.com/pwless/pwless/util/common"
)

// fakeProvider scripts the provider answers and records the calls.
type fakeProvider struct {
	registerToken string
	registerErr   error
	verified      *provider.VerifiedSignIn
	verifyErr     error
	credentials   []provider.Credential
	deleteErr     error

	deletedAccounts []string
	registerReqs    []provider.RegisterRequest
	aliasCalls      map[string][]string
}

func (f *fakeProvider) CreateRegisterToken(_ context.Context, req provider.RegisterRequest) (string, error) {
	f.registerReqs = append(f.registerReqs, req)
	if f.registerErr != nil {
		return "", f.registerErr
	}
	return f.registerToken, nil
}

func (f *fakeProvider) VerifySignIn(_ context.Context, token string) (*provider.VerifiedSignIn, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verified, nil
}

func (f *fakeProvider) ListCredentials(_ context.Context, userID string) ([]provider.Credential, error) {
	return f.credentials, nil
}

func (f *fakeProvider) SetAliases(_ context.Context, userID string, aliases []string) error {
	if f.aliasCalls == nil {
		f.aliasCalls = make(map[string][]string)
	}
	f.aliasCalls[userID] = aliases
	return nil
}

func (f *fakeProvider) DeleteAccount(_ context.Context, userID string) error {
	f.deletedAccounts = append(f.deletedAccounts, userID)
	return f.deleteErr
}

func setup(t *testing.T) {
	t.Helper()
	os.Remove("test.db")
	err := database.InitDB(&config.DatabaseConfig{
		Type:   config.DatabaseTypeSQLite,
		SQLite: config.SQLiteConfig{Path: "test.db"},
	})
	assert.NoError(t, err)
}

func teardown() {
	database.CloseDB()
	os.Remove("test.db")
	os.Remove("test.db-wal")
	os.Remove("test.db-shm")
}

func verifiedFor(userID string) *provider.VerifiedSignIn {
	return &provider.VerifiedSignIn{
		Success:      true,
		UserID:       userID,
		Timestamp:    time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		RPID:         "example.com",
		Origin:       "https://example.com",
		Device:       "Chrome on Linux",
		Country:      "SE",
		Nickname:     "laptop",
		CredentialID: "cred-1",
	}
}

func TestBeginRegistrationIssuesToken(t *testing.T) {
	setup(t)
	defer teardown()

	fake := &fakeProvider{registerToken: "register_abc"}
	svc := &AuthService{DB: database.GetDB(), Provider: fake}

	pending := PendingRegistration{Username: "alice", DisplayName: "Alice", Aliases: []string{"alice@example.com"}}
	token, err := svc.BeginRegistration(context.Background(), &pending)
	assert.NoError(t, err)
	assert.Equal(t, "register_abc", token)
	assert.NotEmpty(t, pending.UserID)

	if assert.Len(t, fake.registerReqs, 1) {
		assert.Equal(t, pending.UserID, fake.registerReqs[0].UserID)
		assert.Equal(t, []string{"alice@example.com"}, fake.registerReqs[0].Aliases)
	}

	// No rows before the ceremony completes.
	user, err := repo.GetUser(database.GetDB(), repo.UserFilter{Username: "alice"}, repo.LoadOptions{})
	assert.NoError(t, err)
	assert.Nil(t, user)
}

func TestBeginRegistrationPreAuthorizedRefusesUnknownUser(t *testing.T) {
	setup(t)
	defer teardown()

	fake := &fakeProvider{registerToken: "register_abc"}
	svc := &AuthService{DB: database.GetDB(), Provider: fake, PreAuthorized: true}

	pending := PendingRegistration{Username: "stranger"}
	_, err := svc.BeginRegistration(context.Background(), &pending)
	assert.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindNotPreAuthorized))
	assert.Empty(t, fake.registerReqs, "no provider call for a refused registration")
}

func TestBeginRegistrationPreAuthorizedAcceptsExistingUser(t *testing.T) {
	setup(t)
	defer teardown()

	existing, err := model.NewUser("", "alice", "")
	assert.NoError(t, err)
	assert.NoError(t, repo.CreateUser(database.GetDB(), existing))

	fake := &fakeProvider{registerToken: "register_abc"}
	svc := &AuthService{DB: database.GetDB(), Provider: fake, PreAuthorized: true}

	pending := PendingRegistration{Username: "alice"}
	_, err = svc.BeginRegistration(context.Background(), &pending)
	assert.NoError(t, err)
	assert.Equal(t, existing.ID, pending.UserID, "token must be issued for the existing user id")
}

func TestBeginRegistrationRefusesDisabledUser(t *testing.T) {
	setup(t)
	defer teardown()

	existing, err := model.NewUser("", "alice", "")
	assert.NoError(t, err)
	assert.NoError(t, repo.CreateUser(database.GetDB(), existing))
	existing.Disable(time.Now().UTC())
	assert.NoError(t, repo.UpdateUser(database.GetDB(), existing))

	svc := &AuthService{DB: database.GetDB(), Provider: &fakeProvider{registerToken: "x"}}
	pending := PendingRegistration{Username: "alice"}
	_, err = svc.BeginRegistration(context.Background(), &pending)
	assert.True(t, common.IsKind(err, common.KindValidation))
}

func TestFinishRegistrationCreatesUserAtomically(t *testing.T) {
	setup(t)
	defer teardown()

	userID := uuid.NewString()
	fake := &fakeProvider{verified: verifiedFor(userID)}
	svc := &AuthService{DB: database.GetDB(), Provider: fake}

	pending := PendingRegistration{
		UserID:      userID,
		Username:    "alice",
		DisplayName: "Alice",
		Email:       "alice@example.com",
	}
	user, signIn, err := svc.FinishRegistration(context.Background(), "verify_abc", pending)
	assert.NoError(t, err)
	if assert.NotNil(t, user) {
		assert.Equal(t, userID, user.ID)
		assert.Equal(t, model.RoleUser, user.Role.Name)
		if primary := user.PrimaryEmail(); assert.NotNil(t, primary) {
			assert.Equal(t, "alice@example.com", primary.Address)
		}
	}
	if assert.NotNil(t, signIn) {
		assert.Equal(t, model.SignInTypeRegister, signIn.SignInType)
		assert.Equal(t, "cred-1", signIn.CredentialID)
	}

	count, err := repo.CountUserSignIns(database.GetDB(), userID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestFinishRegistrationPreAuthorizedRefusesUnknownIdentity(t *testing.T) {
	setup(t)
	defer teardown()

	userID := uuid.NewString()
	fake := &fakeProvider{verified: verifiedFor(userID)}
	svc := &AuthService{DB: database.GetDB(), Provider: fake, PreAuthorized: true}

	_, _, err := svc.FinishRegistration(context.Background(), "verify_abc",
		PendingRegistration{UserID: userID, Username: "stranger"})
	assert.True(t, common.IsKind(err, common.KindNotPreAuthorized))

	// The refusal must leave zero rows behind.
	user, err := repo.GetUser(database.GetDB(), repo.UserFilter{ID: userID}, repo.LoadOptions{})
	assert.NoError(t, err)
	assert.Nil(t, user)
	count, err := repo.CountUserSignIns(database.GetDB(), userID)
	assert.NoError(t, err)
	assert.Zero(t, count)
}

func TestSignInResolvesExistingUser(t *testing.T) {
	setup(t)
	defer teardown()

	existing, err := model.NewUser("", "alice", "")
	assert.NoError(t, err)
	assert.NoError(t, repo.CreateUser(database.GetDB(), existing))

	fake := &fakeProvider{verified: verifiedFor(existing.ID)}
	svc := &AuthService{DB: database.GetDB(), Provider: fake}

	user, signIn, err := svc.SignIn(context.Background(), "verify_abc")
	assert.NoError(t, err)
	if assert.NotNil(t, user) {
		assert.Equal(t, "alice", user.Username)
	}
	if assert.NotNil(t, signIn) {
		assert.Equal(t, model.SignInTypeSignIn, signIn.SignInType)
		assert.Equal(t, "SE", signIn.Country)
		assert.Equal(t, "https://example.com", signIn.Origin)
	}

	count, err := repo.CountUserSignIns(database.GetDB(), existing.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSignInUnknownIdentity(t *testing.T) {
	setup(t)
	defer teardown()

	fake := &fakeProvider{verified: verifiedFor(uuid.NewString())}
	svc := &AuthService{DB: database.GetDB(), Provider: fake}

	_, _, err := svc.SignIn(context.Background(), "verify_abc")
	assert.True(t, common.IsKind(err, common.KindNotPreAuthorized))
}

func TestSignInDisabledUser(t *testing.T) {
	setup(t)
	defer teardown()

	existing, err := model.NewUser("", "alice", "")
	assert.NoError(t, err)
	assert.NoError(t, repo.CreateUser(database.GetDB(), existing))
	existing.Disable(time.Now().UTC())
	assert.NoError(t, repo.UpdateUser(database.GetDB(), existing))

	fake := &fakeProvider{verified: verifiedFor(existing.ID)}
	svc := &AuthService{DB: database.GetDB(), Provider: fake}

	_, _, err = svc.SignIn(context.Background(), "verify_abc")
	assert.True(t, common.IsKind(err, common.KindValidation))

	// The refused attempt is not logged.
	count, err := repo.CountUserSignIns(database.GetDB(), existing.ID)
	assert.NoError(t, err)
	assert.Zero(t, count)
}

func TestSplitAliases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "single", raw: "alice@example.com", want: []string{"alice@example.com"}},
		{name: "multiple with spaces", raw: "a@x.com; b@x.com ;c@x.com", want: []string{"a@x.com", "b@x.com", "c@x.com"}},
		{name: "trailing separator", raw: "a@x.com;", want: []string{"a@x.com"}},
		{name: "only separators", raw: ";;;", want: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SplitAliases(tc.raw))
		})
	}
}

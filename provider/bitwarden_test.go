package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pwless/pwless/config"
	"github.com/pwless/pwless/util/common"
)

func newTestClient(handler http.Handler) (*BitwardenClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewBitwardenClient(config.ProviderConfig{
		URL:       srv.URL,
		SecretKey: "secret-key",
	})
	return client, srv
}

func TestCreateRegisterToken(t *testing.T) {
	var gotPath, gotSecret string
	var gotBody map[string]any

	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSecret = r.Header.Get("ApiSecret")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"token": "register_abc"})
	}))
	defer srv.Close()

	token, err := client.CreateRegisterToken(context.Background(), RegisterRequest{
		UserID:      "user-1",
		Username:    "alice",
		DisplayName: "Alice",
		Aliases:     []string{"alice@example.com"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "register_abc", token)
	assert.Equal(t, "/register/token", gotPath)
	assert.Equal(t, "secret-key", gotSecret)
	assert.Equal(t, "user-1", gotBody["userId"])
	assert.Equal(t, "alice", gotBody["username"])
	assert.Equal(t, "none", gotBody["attestation"])
	assert.Equal(t, true, gotBody["discoverable"])
}

func TestCreateRegisterTokenDiscoverableOverride(t *testing.T) {
	var gotBody map[string]any
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"token": "t"})
	}))
	defer srv.Close()

	off := false
	_, err := client.CreateRegisterToken(context.Background(), RegisterRequest{
		UserID:       "user-1",
		Username:     "alice",
		Discoverable: &off,
	})
	assert.NoError(t, err)
	assert.Equal(t, false, gotBody["discoverable"])
}

func TestVerifySignIn(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/signin/verify", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success":      true,
			"userId":       "user-1",
			"rpid":         "example.com",
			"origin":       "https://example.com",
			"device":       "Chrome on Linux",
			"country":      "SE",
			"credentialId": "cred-1",
		})
	}))
	defer srv.Close()

	verified, err := client.VerifySignIn(context.Background(), "verify_abc")
	assert.NoError(t, err)
	assert.True(t, verified.Success)
	assert.Equal(t, "user-1", verified.UserID)
	assert.Equal(t, "cred-1", verified.CredentialID)
}

func TestVerifySignInUnverifiedToken(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false})
	}))
	defer srv.Close()

	_, err := client.VerifySignIn(context.Background(), "stale")
	assert.True(t, common.IsKind(err, common.KindProvider))
}

func TestAPIErrorSurfacesDetails(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"title":     "invalid token",
			"detail":    "the token has expired",
			"errorCode": "expired_token",
		})
	}))
	defer srv.Close()

	_, err := client.VerifySignIn(context.Background(), "expired")
	assert.True(t, common.IsKind(err, common.KindProvider))

	var apiErr *APIError
	if assert.True(t, errors.As(err, &apiErr)) {
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		assert.Equal(t, "invalid token", apiErr.Title)
		assert.Equal(t, "expired_token", apiErr.ErrorCode)
	}
}

func TestAPIErrorNonJSONBody(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	_, err := client.VerifySignIn(context.Background(), "t")
	var apiErr *APIError
	if assert.True(t, errors.As(err, &apiErr)) {
		assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	}
}

func TestListCredentials(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/credentials/list", r.URL.Path)
		assert.Equal(t, "user-1", r.URL.Query().Get("userId"))
		json.NewEncoder(w).Encode(map[string]any{
			"values": []map[string]any{
				{"userId": "user-1", "nickname": "laptop", "descriptor": map[string]string{"type": "public-key", "id": "cred-1"}},
			},
		})
	}))
	defer srv.Close()

	creds, err := client.ListCredentials(context.Background(), "user-1")
	assert.NoError(t, err)
	if assert.Len(t, creds, 1) {
		assert.Equal(t, "laptop", creds[0].Nickname)
		assert.Equal(t, "cred-1", creds[0].Descriptor.ID)
	}
}

func TestDeleteAccount(t *testing.T) {
	var gotBody map[string]any
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/delete", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&gotBody)
	}))
	defer srv.Close()

	assert.NoError(t, client.DeleteAccount(context.Background(), "user-1"))
	assert.Equal(t, "user-1", gotBody["userId"])
}

func TestSetAliases(t *testing.T) {
	var gotBody map[string]any
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/alias", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&gotBody)
	}))
	defer srv.Close()

	assert.NoError(t, client.SetAliases(context.Background(), "user-1", []string{"a@x.com"}))
	assert.Equal(t, []any{"a@x.com"}, gotBody["aliases"])
	assert.Equal(t, true, gotBody["hashing"])
}

func TestUnreachableProvider(t *testing.T) {
	client := NewBitwardenClient(config.ProviderConfig{
		URL:       "http://127.0.0.1:1",
		SecretKey: "secret-key",
	})
	_, err := client.VerifySignIn(context.Background(), "t")
	assert.True(t, common.IsKind(err, common.KindProvider))
}

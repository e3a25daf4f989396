// Package provider wraps the passkey SaaS API that performs the WebAuthn
// ceremonies. pwless never implements the ceremony itself: it hands out
// ceremony tokens and consumes verified assertions.
package provider

import (
	"context"
	"fmt"
	"time"
)

// Credential describes a passkey registered with the provider.
type Credential struct {
	Descriptor       CredentialDescriptor `json:"descriptor"`
	PublicKey        string               `json:"publicKey"`
	UserID           string               `json:"userId"`
	SignatureCounter int                  `json:"signatureCounter"`
	AttestationFmt   string               `json:"attestationFmt"`
	CreatedAt        time.Time            `json:"createdAt"`
	LastUsedAt       time.Time            `json:"lastUsedAt"`
	RPID             string               `json:"rpid"`
	Origin           string               `json:"origin"`
	Country          string               `json:"country"`
	Device           string               `json:"device"`
	Nickname         string               `json:"nickname"`
}

// CredentialDescriptor is the WebAuthn credential identifier.
type CredentialDescriptor struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// RegisterRequest describes the user a registration ceremony token is
// created for.
type RegisterRequest struct {
	UserID      string
	Username    string
	DisplayName string
	// Aliases are alternate sign-in identifiers stored provider-side.
	Aliases []string
	// Discoverable overrides the client default when non-nil.
	Discoverable *bool
}

// VerifiedSignIn is the provider's verdict on a completed ceremony token.
type VerifiedSignIn struct {
	Success      bool      `json:"success"`
	UserID       string    `json:"userId"`
	Timestamp    time.Time `json:"timestamp"`
	RPID         string    `json:"rpid"`
	Origin       string    `json:"origin"`
	Device       string    `json:"device"`
	Country      string    `json:"country"`
	Nickname     string    `json:"nickname"`
	CredentialID string    `json:"credentialId"`
	ExpiresAt    time.Time `json:"expiresAt"`
	TokenID      string    `json:"tokenId"`
	Type         string    `json:"type"`
}

// Client is the narrow surface pwless consumes from the passkey provider.
// Calls are synchronous network round trips and are never made while a
// database transaction is open.
type Client interface {
	// CreateRegisterToken creates a token the browser-side adapter uses to
	// run the registration ceremony.
	CreateRegisterToken(ctx context.Context, req RegisterRequest) (string, error)
	// VerifySignIn exchanges a completed ceremony token for the verified
	// identity assertion.
	VerifySignIn(ctx context.Context, token string) (*VerifiedSignIn, error)
	// ListCredentials returns the passkeys registered for a user.
	ListCredentials(ctx context.Context, userID string) ([]Credential, error)
	// SetAliases replaces the sign-in aliases of a user.
	SetAliases(ctx context.Context, userID string, aliases []string) error
	// DeleteAccount removes the provider-side account of a user.
	DeleteAccount(ctx context.Context, userID string) error
}

// APIError is a non-2xx answer from the provider API.
type APIError struct {
	Status    int    `json:"status"`
	Title     string `json:"title"`
	Detail    string `json:"detail"`
	ErrorCode string `json:"errorCode"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("provider api: %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("provider api: %d %s", e.Status, e.Title)
}

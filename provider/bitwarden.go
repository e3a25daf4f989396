package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/pwless/pwless/config"
	"github.com/pwless/pwless/logger"
	"github.com/pwless/pwless/util/common"
)

// RegisterConfig is the passkey configuration applied when creating
// registration tokens.
type RegisterConfig struct {
	Attestation       string
	AuthenticatorType string
	Discoverable      bool
	UserVerification  string
	Validity          time.Duration
	AliasHashing      bool
}

// DefaultRegisterConfig mirrors the provider defaults: any authenticator,
// discoverable credential, no attestation.
func DefaultRegisterConfig() RegisterConfig {
	return RegisterConfig{
		Attestation:       "none",
		AuthenticatorType: "any",
		Discoverable:      true,
		UserVerification:  "preferred",
		Validity:          120 * time.Second,
		AliasHashing:      true,
	}
}

// BitwardenClient talks to a Bitwarden Passwordless.dev compatible API.
type BitwardenClient struct {
	baseURL        string
	secretKey      string
	http           *http.Client
	registerConfig RegisterConfig
}

var _ Client = (*BitwardenClient)(nil)

// NewBitwardenClient builds a client from the loaded provider configuration.
func NewBitwardenClient(cfg config.ProviderConfig) *BitwardenClient {
	return &BitwardenClient{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		secretKey:      cfg.SecretKey,
		http:           &http.Client{Timeout: 30 * time.Second},
		registerConfig: DefaultRegisterConfig(),
	}
}

// WithRegisterConfig overrides the default registration token settings.
func (c *BitwardenClient) WithRegisterConfig(rc RegisterConfig) *BitwardenClient {
	c.registerConfig = rc
	return c
}

func (c *BitwardenClient) CreateRegisterToken(ctx context.Context, req RegisterRequest) (string, error) {
	rc := c.registerConfig
	discoverable := rc.Discoverable
	if req.Discoverable != nil {
		discoverable = *req.Discoverable
	}
	body := map[string]any{
		"userId":            req.UserID,
		"username":          req.Username,
		"displayname":       req.DisplayName,
		"attestation":       rc.Attestation,
		"authenticatorType": rc.AuthenticatorType,
		"discoverable":      discoverable,
		"userVerification":  rc.UserVerification,
		"aliases":           req.Aliases,
		"aliasHashing":      rc.AliasHashing,
		"expiresAt":         time.Now().UTC().Add(rc.Validity),
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/register/token", body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *BitwardenClient) VerifySignIn(ctx context.Context, token string) (*VerifiedSignIn, error) {
	out := &VerifiedSignIn{}
	if err := c.post(ctx, "/signin/verify", map[string]any{"token": token}, out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, common.NewAppError(common.KindProvider, "sign-in token was not verified", nil)
	}
	return out, nil
}

func (c *BitwardenClient) ListCredentials(ctx context.Context, userID string) ([]Credential, error) {
	var out struct {
		Values []Credential `json:"values"`
	}
	path := "/credentials/list?userId=" + url.QueryEscape(userID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Values, nil
}

func (c *BitwardenClient) SetAliases(ctx context.Context, userID string, aliases []string) error {
	body := map[string]any{
		"userId":  userID,
		"aliases": aliases,
		"hashing": c.registerConfig.AliasHashing,
	}
	return c.post(ctx, "/alias", body, nil)
}

func (c *BitwardenClient) DeleteAccount(ctx context.Context, userID string) error {
	return c.post(ctx, "/users/delete", map[string]any{"userId": userID}, nil)
}

func (c *BitwardenClient) post(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return common.NewAppError(common.KindProvider, "error encoding provider request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return common.NewAppError(common.KindProvider, "error building provider request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *BitwardenClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return common.NewAppError(common.KindProvider, "error building provider request", err)
	}
	return c.do(req, out)
}

func (c *BitwardenClient) do(req *http.Request, out any) error {
	req.Header.Set("ApiSecret", c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return common.NewAppError(common.KindProvider, "provider api is unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return common.NewAppError(common.KindProvider, "error reading provider response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Title: resp.Status}
		if err := json.Unmarshal(raw, apiErr); err != nil {
			logger.Debugf("provider returned non-JSON error body: %s", string(raw))
		}
		apiErr.Status = resp.StatusCode
		return common.NewAppError(common.KindProvider, "provider api call failed", apiErr)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return common.NewAppError(common.KindProvider, "error decoding provider response", err)
		}
	}
	return nil
}

package authsdk

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/tokens"
)

// ErrTwoFactorRequired is returned by Login when the account has TOTP
// enabled. Complete the login with CompleteTwoFactor.
var ErrTwoFactorRequired = errors.New("authsdk: second factor required")

// SDKClient is a client for the authmesh authentication service.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// Headers are sent with every request, e.g. the device headers
	// X-Device-Name and X-Device-Fingerprint recorded at login.
	Headers map[string]string
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates an account.
func (c *SDKClient) Register(ctx context.Context, username, password string) (*AccountResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/accounts", "", RegisterRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	var account AccountResponse
	if err := decodeJSON(resp, &account, http.StatusCreated); err != nil {
		return nil, err
	}
	return &account, nil
}

// Login authenticates with a password. For accounts with TOTP enabled it
// returns the pending TokenSet together with ErrTwoFactorRequired.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*Session, tokens.TokenSet, error) {
	set, err := c.tokenRequest(ctx, "/v1/auth/login", "", LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, tokens.TokenSet{}, err
	}
	if set.TwoFactorRequired {
		return nil, set, ErrTwoFactorRequired
	}
	return c.NewSession(set), set, nil
}

// CompleteTwoFactor exchanges a pending token and a TOTP code for a session.
func (c *SDKClient) CompleteTwoFactor(ctx context.Context, pending tokens.TokenSet, code string) (*Session, error) {
	set, err := c.tokenRequest(ctx, "/v1/auth/2fa/complete", pending.Raw(jwtx.KindTwoFactorPending),
		TwoFactorCompleteRequest{Code: code})
	if err != nil {
		return nil, err
	}
	return c.NewSession(set), nil
}

// Refresh exchanges a REFRESH token for a new ACCESS token.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (tokens.TokenSet, error) {
	return c.tokenRequest(ctx, "/v1/auth/refresh", "", RefreshRequest{RefreshToken: refreshToken})
}

// NewSession wraps an existing TokenSet holding ACCESS and REFRESH tokens.
func (c *SDKClient) NewSession(set tokens.TokenSet) *Session {
	return &Session{
		client:  c,
		access:  set.Raw(jwtx.KindAccess),
		refresh: set.Raw(jwtx.KindRefresh),
		roles:   set.Roles,
	}
}

func (c *SDKClient) tokenRequest(ctx context.Context, path, bearer string, body any) (tokens.TokenSet, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, bearer, body)
	if err != nil {
		return tokens.TokenSet{}, err
	}

	var set tokens.TokenSet
	if err := decodeJSON(resp, &set, http.StatusOK); err != nil {
		return tokens.TokenSet{}, err
	}
	return set, nil
}

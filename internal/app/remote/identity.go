package remote

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/app/session"
	"storefront/internal/pkg/errs"
)

// IdentityClient talks to the identity service. It implements session.IdentityService.
type IdentityClient struct {
	baseClient
}

// NewIdentityClient constructs an IdentityClient for the service at baseURL.
func NewIdentityClient(httpClient *http.Client, baseURL string) *IdentityClient {
	return &IdentityClient{baseClient: newBaseClient(httpClient, baseURL, "IdentityClient")}
}

// Login exchanges credentials for a session token.
func (c *IdentityClient) Login(ctx context.Context, creds session.Credentials) (*session.Grant, error) {
	var grant session.Grant
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", creds, &grant); err != nil {
		return nil, classifyAuth(err)
	}
	return &grant, nil
}

// Signup registers a new account and returns its session token.
func (c *IdentityClient) Signup(ctx context.Context, creds session.Credentials) (*session.Grant, error) {
	var grant session.Grant
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", "", creds, &grant); err != nil {
		return nil, classifyAuth(err)
	}
	return &grant, nil
}

// Logout invalidates token. An already invalid token is not an error.
func (c *IdentityClient) Logout(ctx context.Context, token string) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", token, nil, nil)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return nil
	}
	return err
}

// CurrentSession returns the identity behind token, or nil when the service no longer
// knows the session.
func (c *IdentityClient) CurrentSession(ctx context.Context, token string) (*session.Identity, error) {
	var identity *session.Identity
	err := c.do(ctx, http.MethodGet, "/api/auth/session", token, nil, &identity)

	var apiErr *APIError
	switch {
	case err == nil:
		return identity, nil
	case errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Code == errs.ErrNotAuthenticated):
		return nil, nil
	case errors.As(err, &apiErr):
		return nil, errs.Wrap(errs.ErrRemoteUnavailable, err)
	default:
		return nil, err
	}
}

// classifyAuth maps a failed login or signup onto an AuthenticationFailed kind.
func classifyAuth(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if errs.Is(err, errs.ErrRemoteUnavailable) {
			return errs.Wrap(errs.ErrAuthRemoteFault, err)
		}
		return err
	}

	switch {
	case apiErr.Code == errs.ErrEmailNotVerified:
		return errs.Wrap(errs.ErrEmailNotVerified, err)
	case apiErr.Code == errs.ErrAccountExists || apiErr.Status == http.StatusConflict:
		return errs.Wrap(errs.ErrAccountExists, err)
	case apiErr.Code == errs.ErrInvalidCredentials || apiErr.Status == http.StatusUnauthorized:
		return errs.Wrap(errs.ErrInvalidCredentials, err)
	case apiErr.Status == http.StatusTooManyRequests:
		return errs.Wrap(errs.ErrRateLimitExceeded, err)
	default:
		return errs.Wrap(errs.ErrAuthRemoteFault, err)
	}
}

package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every request the SDKClient makes.
const DefaultTimeout = 10 * time.Second

// SDKClient calls the splitbill auth endpoints. It holds no session state;
// see Manager for that.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client for the service at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// Login exchanges an identity assertion for a token pair. A refused
// assertion comes back as a 401 *OAuth2Error.
func (c *SDKClient) Login(ctx context.Context, assertion string) (*TokenPair, error) {
	return c.exchange(ctx, "/login", assertion)
}

// Refresh presents a refresh token once and returns its replacement pair.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return c.exchange(ctx, "/refresh", refreshToken)
}

func (c *SDKClient) exchange(ctx context.Context, path, credential string) (*TokenPair, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, nil, bearer(credential))
	if err != nil {
		return nil, err
	}

	var pair TokenPair
	if err := decodeJSON(resp, &pair, http.StatusOK); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Logout revokes the refresh token of the user owning accessToken.
func (c *SDKClient) Logout(ctx context.Context, accessToken string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/logout", nil, bearer(accessToken))
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

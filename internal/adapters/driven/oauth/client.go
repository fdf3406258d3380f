package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
	"github.com/custodia-labs/viewshot-cli/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.OAuthClient = (*Client)(nil)

// Endpoint paths relative to the server base URL.
const (
	DeviceCodePath = "/oauth/device/code"
	TokenPath      = "/oauth/token"
	RevokePath     = "/oauth/revoke"
	ProfilePath    = "/api/user/me"

	grantTypeDeviceCode   = "urn:ietf:params:oauth:grant-type:device_code"
	grantTypeRefreshToken = "refresh_token"
)

// Client implements driven.OAuthClient over HTTP. The *http.Client is
// owned by the caller and never closed here.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
}

// NewClient creates an OAuth client for the server at baseURL.
func NewClient(baseURL, clientID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		clientID:   clientID,
		httpClient: httpClient,
	}
}

// RequestDeviceCode starts a device authorisation.
func (c *Client) RequestDeviceCode(ctx context.Context, scope string) (*domain.DeviceAuthorization, error) {
	data := url.Values{}
	data.Set("client_id", c.clientID)
	if scope != "" {
		data.Set("scope", scope)
	}

	status, body, resp, err := c.postForm(ctx, DeviceCodePath, data)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, parseError(resp, body)
	}

	// DeviceAuthResponse turns expires_in into an absolute Expiry.
	var da oauth2.DeviceAuthResponse
	if err := json.Unmarshal(body, &da); err != nil {
		return nil, fmt.Errorf("decode device code response: %w", err)
	}
	if da.DeviceCode == "" || da.UserCode == "" || da.VerificationURI == "" {
		return nil, errors.New("invalid device code response: missing required fields")
	}

	logger.Debug("oauth: device code response, interval %ds", da.Interval)
	return &domain.DeviceAuthorization{
		DeviceCode:              da.DeviceCode,
		UserCode:                da.UserCode,
		VerificationURI:         da.VerificationURI,
		VerificationURIComplete: da.VerificationURIComplete,
		ExpiresAt:               da.Expiry.UTC(),
		Interval:                time.Duration(da.Interval) * time.Second,
	}, nil
}

// PollToken asks whether the device code was approved. OAuth error codes
// come back as a PollResult, distinguished by code rather than HTTP status.
func (c *Client) PollToken(ctx context.Context, deviceCode string) (domain.PollResult, error) {
	data := url.Values{}
	data.Set("grant_type", grantTypeDeviceCode)
	data.Set("device_code", deviceCode)
	data.Set("client_id", c.clientID)

	status, body, resp, err := c.postForm(ctx, TokenPath, data)
	if err != nil {
		return domain.PollResult{}, err
	}

	// Some servers answer pending and slow_down with a 200.
	if errResp, ok := decodeError(body); ok {
		return domain.PollResultFromCode(errResp.Error, errResp.Description), nil
	}
	if status != http.StatusOK {
		return domain.PollResult{}, parseError(resp, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return domain.PollResult{}, fmt.Errorf("decode token response: %w", err)
	}
	grant, err := tr.toGrant()
	if err != nil {
		return domain.PollResult{}, err
	}
	return domain.PollResult{Outcome: domain.PollSuccess, Grant: grant}, nil
}

// RefreshToken exchanges a refresh token. Servers that do not rotate
// refresh tokens return none; the caller keeps the old one.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenGrant, error) {
	if refreshToken == "" {
		return nil, domain.ErrNoRefreshToken
	}
	data := url.Values{}
	data.Set("grant_type", grantTypeRefreshToken)
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", c.clientID)

	status, body, resp, err := c.postForm(ctx, TokenPath, data)
	if err != nil {
		return nil, err
	}
	if _, ok := decodeError(body); ok || status != http.StatusOK {
		return nil, parseError(resp, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return tr.toGrant()
}

// Revoke invalidates a token (RFC 7009). Unknown tokens are not an error.
func (c *Client) Revoke(ctx context.Context, token string) error {
	data := url.Values{}
	data.Set("token", token)
	data.Set("client_id", c.clientID)

	status, body, resp, err := c.postForm(ctx, RevokePath, data)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return parseError(resp, body)
	}
	return nil
}

// FetchProfile loads the signed-in user's profile with the given token.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*domain.UserProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+ProfilePath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.HTTPError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodGet,
			Path:       ProfilePath,
		}
	}

	var profile domain.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &profile, nil
}

// Package oauth talks to the authorisation server: device authorisation,
// token polling and refresh, revocation and the user profile endpoint.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

// maxResponseBytes caps how much of an OAuth response body is read.
const maxResponseBytes = 1 << 20

// tokenResponse is the success body of the token endpoint.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// errorResponse is the RFC 6749 error body.
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// toGrant validates the response and converts it to a domain grant.
func (t tokenResponse) toGrant() (*domain.TokenGrant, error) {
	if t.AccessToken == "" {
		return nil, errors.New("invalid token response: access_token is empty")
	}
	if t.TokenType != "" && !strings.EqualFold(t.TokenType, "bearer") {
		return nil, fmt.Errorf("invalid token response: unsupported token_type %q", t.TokenType)
	}
	if t.ExpiresIn < 0 {
		return nil, fmt.Errorf("invalid token response: expires_in %d", t.ExpiresIn)
	}
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresIn:    int64(t.ExpiresIn),
	}
	return &domain.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		Scope:        t.Scope,
		ExpiresIn:    time.Duration(tok.ExpiresIn) * time.Second,
	}, nil
}

// postForm sends an application/x-www-form-urlencoded POST and returns the
// status and body.
func (c *Client) postForm(ctx context.Context, path string, data url.Values) (int, []byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(data.Encode()))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%s request: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, resp, fmt.Errorf("read %s response: %w", path, err)
	}
	return resp.StatusCode, body, resp, nil
}

// decodeError reports whether body is an RFC 6749 error body with a
// non-empty code, whatever the HTTP status.
func decodeError(body []byte) (errorResponse, bool) {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return errorResponse{}, false
	}
	return errResp, true
}

// parseError extracts an OAuth error from a non-success response. When the
// body carries no error code an *oauth2.RetrieveError is returned.
func parseError(resp *http.Response, body []byte) error {
	if errResp, ok := decodeError(body); ok {
		return &domain.OAuthError{
			Code:        errResp.Error,
			Description: errResp.Description,
			StatusCode:  resp.StatusCode,
		}
	}
	return &oauth2.RetrieveError{Response: resp, Body: body}
}

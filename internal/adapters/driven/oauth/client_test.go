package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "viewshot-test", srv.Client())
}

// ==================== Device Code Tests ====================

func TestRequestDeviceCode_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DeviceCodePath, r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "viewshot-test", r.PostForm.Get("client_id"))
		assert.Equal(t, "screenshots:write", r.PostForm.Get("scope"))

		writeJSON(w, http.StatusOK, map[string]any{
			"device_code":               "dev-123",
			"user_code":                 "ABCD-EFGH",
			"verification_uri":          "https://example.com/device",
			"verification_uri_complete": "https://example.com/device?code=ABCD-EFGH",
			"expires_in":                600,
			"interval":                  5,
		})
	})

	before := time.Now()
	auth, err := c.RequestDeviceCode(context.Background(), "screenshots:write")
	require.NoError(t, err)

	assert.Equal(t, "dev-123", auth.DeviceCode)
	assert.Equal(t, "ABCD-EFGH", auth.UserCode)
	assert.Equal(t, 5*time.Second, auth.Interval)
	assert.Equal(t, "https://example.com/device?code=ABCD-EFGH", auth.BrowserURI())
	assert.WithinDuration(t, before.Add(600*time.Second), auth.ExpiresAt, 5*time.Second)
}

func TestRequestDeviceCode_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_client",
			"error_description": "unknown client",
		})
	})

	_, err := c.RequestDeviceCode(context.Background(), "")
	require.Error(t, err)

	var oauthErr *domain.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, "invalid_client", oauthErr.Code)
	assert.Equal(t, http.StatusBadRequest, oauthErr.StatusCode)
}

func TestRequestDeviceCode_MissingFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"device_code": "dev"})
	})

	_, err := c.RequestDeviceCode(context.Background(), "")
	assert.ErrorContains(t, err, "missing required fields")
}

// ==================== Poll Tests ====================

func TestPollToken_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    map[string]any
		outcome domain.PollOutcome
		code    string
	}{
		{"pending", http.StatusBadRequest, map[string]any{"error": "authorization_pending"}, domain.PollPending, ""},
		{"slow down", http.StatusBadRequest, map[string]any{"error": "slow_down"}, domain.PollSlowDown, ""},
		{"expired", http.StatusBadRequest, map[string]any{"error": "expired_token"}, domain.PollError, "expired_token"},
		{"denied", http.StatusForbidden, map[string]any{"error": "access_denied"}, domain.PollError, "access_denied"},
		// Flow control is decided by the code, not the status.
		{"pending with 401", http.StatusUnauthorized, map[string]any{"error": "authorization_pending"}, domain.PollPending, ""},
		{"pending with 200", http.StatusOK, map[string]any{"error": "authorization_pending"}, domain.PollPending, ""},
		{"slow down with 200", http.StatusOK, map[string]any{"error": "slow_down"}, domain.PollSlowDown, ""},
		{"expired with 200", http.StatusOK, map[string]any{"error": "expired_token"}, domain.PollError, "expired_token"},
		{"denied with 200", http.StatusOK,
			map[string]any{"error": "access_denied", "error_description": "user declined"}, domain.PollError, "access_denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseForm())
				assert.Equal(t, grantTypeDeviceCode, r.PostForm.Get("grant_type"))
				assert.Equal(t, "dev-123", r.PostForm.Get("device_code"))
				writeJSON(w, tt.status, tt.body)
			})

			result, err := c.PollToken(context.Background(), "dev-123")
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, result.Outcome)
			assert.Equal(t, tt.code, result.ErrorCode)
		})
	}
}

func TestPollToken_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"token_type":    "bearer",
			"expires_in":    3600,
			"scope":         "screenshots:write",
		})
	})

	result, err := c.PollToken(context.Background(), "dev-123")
	require.NoError(t, err)
	require.Equal(t, domain.PollSuccess, result.Outcome)
	require.NotNil(t, result.Grant)
	assert.Equal(t, "at-1", result.Grant.AccessToken)
	assert.Equal(t, "rt-1", result.Grant.RefreshToken)
	assert.Equal(t, "Bearer", result.Grant.TokenType)
	assert.Equal(t, time.Hour, result.Grant.ExpiresIn)
}

func TestPollToken_UnparseableErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := c.PollToken(context.Background(), "dev-123")
	var retrieveErr *oauth2.RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	assert.Equal(t, http.StatusBadGateway, retrieveErr.Response.StatusCode)
}

// ==================== Refresh Tests ====================

func TestRefreshToken_KeepsRotationOptional(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-old", r.PostForm.Get("refresh_token"))
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "at-2",
			"expires_in":   1800,
		})
	})

	grant, err := c.RefreshToken(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "at-2", grant.AccessToken)
	assert.Empty(t, grant.RefreshToken)
	assert.Equal(t, 30*time.Minute, grant.ExpiresIn)
}

func TestRefreshToken_InvalidGrant(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
	})

	_, err := c.RefreshToken(context.Background(), "rt-revoked")
	var oauthErr *domain.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, domain.OAuthErrInvalidGrant, oauthErr.Code)
}

func TestRefreshToken_ErrorBodyWithOK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"error": "invalid_grant"})
	})

	_, err := c.RefreshToken(context.Background(), "rt-revoked")
	var oauthErr *domain.OAuthError
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, domain.OAuthErrInvalidGrant, oauthErr.Code)
	assert.Equal(t, http.StatusOK, oauthErr.StatusCode)
}

func TestRefreshToken_Empty(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "id", nil)
	_, err := c.RefreshToken(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNoRefreshToken)
}

// ==================== Revoke & Profile Tests ====================

func TestRevoke(t *testing.T) {
	var revoked []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, RevokePath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		revoked = append(revoked, r.PostForm.Get("token"))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.Revoke(context.Background(), "at-1"))
	assert.Equal(t, []string{"at-1"}, revoked)
}

func TestFetchProfile_SendsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ProfilePath, r.URL.Path)
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]string{
			"id":          "u-42",
			"username":    "ada",
			"email":       "ada@example.com",
			"displayName": "Ada Lovelace",
		})
	})

	profile, err := c.FetchProfile(context.Background(), "at-1")
	require.NoError(t, err)
	assert.Equal(t, "u-42", profile.ID)
	assert.Equal(t, "Ada Lovelace", profile.DisplayName)
}

func TestFetchProfile_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.FetchProfile(context.Background(), "bad")
	assert.True(t, domain.IsUnauthorized(err))
}

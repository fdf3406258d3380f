package cli

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

func TestLoginCmd_Use(t *testing.T) {
	assert.Equal(t, "login", loginCmd.Use)
	assert.Contains(t, loginCmd.Long, "device flow")
}

func TestLoginCmd_Success(t *testing.T) {
	svcs := setupTestServices(t)
	svcs.auth.authenticateOK = true

	out, err := execute(t, "login")

	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Ada Lovelace.")
	assert.Equal(t, 1, svcs.auth.authenticated)
}

func TestLoginCmd_AlreadySignedIn(t *testing.T) {
	svcs := setupTestServices(t)
	svcs.auth.session = testSession()

	out, err := execute(t, "login")

	require.NoError(t, err)
	assert.Contains(t, out, "Already signed in as Ada Lovelace.")
	assert.Equal(t, 0, svcs.auth.authenticated)
}

func TestLoginCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		ok   bool
		want string
	}{
		{name: "cancelled", err: context.Canceled, want: "login cancelled"},
		{name: "expired", err: domain.ErrDeviceFlowExpired, want: "code expired"},
		{name: "denied", err: domain.ErrAccessDenied, want: "denied"},
		{name: "other", err: errors.New("server exploded"), want: "login failed: server exploded"},
		{name: "not ok", want: "login failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svcs := setupTestServices(t)
			svcs.auth.authenticateErr = tt.err
			svcs.auth.authenticateOK = tt.ok

			_, err := execute(t, "login")

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoginCmd_NoService(t *testing.T) {
	setupTestServices(t)
	SetServices(nil)

	_, err := execute(t, "login")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth service not configured")
}

func TestLogoutCmd(t *testing.T) {
	svcs := setupTestServices(t)
	svcs.auth.session = testSession()

	out, err := execute(t, "logout")

	require.NoError(t, err)
	assert.Contains(t, out, "Signed out.")
	assert.Equal(t, 1, svcs.auth.signOuts)
}

func TestLogoutCmd_Error(t *testing.T) {
	svcs := setupTestServices(t)
	svcs.auth.signOutErr = errors.New("store closed")

	_, err := execute(t, "logout")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "logout failed")
}

// ==================== Status Tests ====================

func TestStatusCmd_NotSignedIn(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "State:    not_authenticated")
	assert.Contains(t, out, "viewshot login")
}

func TestStatusCmd_SignedIn(t *testing.T) {
	svcs := setupTestServices(t)
	session := testSession()
	session.TokenExpiry = time.Now().Add(2 * time.Hour)
	svcs.auth.session = session

	out, err := execute(t, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "User:     Ada Lovelace")
	assert.Contains(t, out, "Email:    ada@example.com")
	assert.Contains(t, out, "Instance: inst-1")
	assert.Contains(t, out, "(in ")
}

func TestStatusCmd_JSON(t *testing.T) {
	svcs := setupTestServices(t)
	session := testSession()
	session.AccessToken = "secret-token"
	svcs.auth.session = session

	out, err := execute(t, "status", "--json")
	require.NoError(t, err)

	var got statusOutput
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &got))
	assert.Equal(t, domain.DefaultServerURL, got.Server)
	assert.Equal(t, domain.AuthStateAuthenticated.String(), got.State)
	require.NotNil(t, got.Session)
	assert.Equal(t, "u1", got.Session.UserID)
	assert.NotContains(t, out, "secret-token")
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		session *domain.Session
		want    string
	}{
		{name: "nil", session: nil, want: "unknown user"},
		{name: "display name", session: &domain.Session{UserDisplayName: "Ada", Username: "ada"}, want: "Ada"},
		{name: "username", session: &domain.Session{Username: "ada", UserEmail: "a@x"}, want: "ada"},
		{name: "email", session: &domain.Session{UserEmail: "a@x", UserID: "u1"}, want: "a@x"},
		{name: "id", session: &domain.Session{UserID: "u1"}, want: "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, displayName(tt.session))
		})
	}
}

func TestHumanUntil(t *testing.T) {
	assert.Equal(t, "expired", humanUntil(time.Now().Add(-time.Minute)))
	assert.Equal(t, "in 1h0m0s", humanUntil(time.Now().Add(time.Hour+10*time.Second)))
}

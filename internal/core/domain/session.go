package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ClockSkewTolerance is how far timestamps may drift from the local clock
	// before a session is considered inconsistent.
	ClockSkewTolerance = time.Minute

	// RefreshThreshold is the remaining token lifetime below which an access
	// token is refreshed instead of being handed out.
	RefreshThreshold = 5 * time.Minute

	// pendingUserPrefix marks the provisional user ID of a session whose
	// device authorisation has not completed yet.
	pendingUserPrefix = "pending:"
)

// AuthState is the lifecycle state of an authentication session.
type AuthState int

// Session lifecycle states.
const (
	// AuthStateNotAuthenticated is a fresh session with no grant.
	AuthStateNotAuthenticated AuthState = iota
	// AuthStatePendingAuthorization means a device code was issued and the
	// user has not approved it yet.
	AuthStatePendingAuthorization
	// AuthStateAuthenticated means the session holds a usable access token.
	AuthStateAuthenticated
	// AuthStateExpired means the access token expired and a refresh is due.
	AuthStateExpired
	// AuthStateFailed means the device flow timed out or was denied.
	AuthStateFailed
	// AuthStateSignedOut means the user explicitly logged out.
	AuthStateSignedOut
)

var authStateNames = map[AuthState]string{
	AuthStateNotAuthenticated:     "not_authenticated",
	AuthStatePendingAuthorization: "pending_authorization",
	AuthStateAuthenticated:        "authenticated",
	AuthStateExpired:              "expired",
	AuthStateFailed:               "failed",
	AuthStateSignedOut:            "signed_out",
}

// String returns the snake_case name of the state.
func (s AuthState) String() string {
	if name, ok := authStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("auth_state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s AuthState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *AuthState) UnmarshalText(text []byte) error {
	for state, name := range authStateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("%w: unknown auth state %q", ErrInvalidInput, string(text))
}

// Session is one user's OAuth grant for one host-application instance.
//
// Identity is the (UserID, InstanceID) pair compared case-insensitively;
// tokens play no part in equality.
type Session struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenExpiry  time.Time `json:"token_expiry"`

	SessionStarted time.Time `json:"session_started"`
	// LastRefreshed is zero until the first successful refresh.
	LastRefreshed time.Time `json:"last_refreshed,omitempty"`
	IsActive      bool      `json:"is_active"`

	UserEmail       string `json:"user_email,omitempty"`
	UserDisplayName string `json:"user_display_name,omitempty"`
	Username        string `json:"username,omitempty"`
	Scope           string `json:"scope,omitempty"`
	InstanceID      string `json:"instance_id"`

	State AuthState `json:"state"`

	// Device flow fields. Only meaningful while PendingAuthorization.
	DeviceCode              string    `json:"device_code,omitempty"`
	UserCode                string    `json:"user_code,omitempty"`
	VerificationURI         string    `json:"verification_uri,omitempty"`
	VerificationURIComplete string    `json:"verification_uri_complete,omitempty"`
	DeviceExpiresAt         time.Time `json:"device_expires_at,omitempty"`
}

// NewSession creates an unauthenticated session for a host instance.
func NewSession(instanceID string, now time.Time) *Session {
	return &Session{
		InstanceID:     instanceID,
		SessionStarted: now,
		State:          AuthStateNotAuthenticated,
	}
}

// NewPendingSession creates a session waiting for the user to approve a
// device authorisation.
func NewPendingSession(instanceID, scope string, auth DeviceAuthorization, now time.Time) *Session {
	return &Session{
		UserID:                  PendingUserID(instanceID),
		InstanceID:              instanceID,
		Scope:                   scope,
		SessionStarted:          now,
		State:                   AuthStatePendingAuthorization,
		DeviceCode:              auth.DeviceCode,
		UserCode:                auth.UserCode,
		VerificationURI:         auth.VerificationURI,
		VerificationURIComplete: auth.VerificationURIComplete,
		DeviceExpiresAt:         auth.ExpiresAt,
	}
}

// PendingUserID returns the provisional user ID used before the profile
// of the authorising user is known.
func PendingUserID(instanceID string) string {
	return pendingUserPrefix + instanceID
}

// Key returns the storage identity of the session.
func (s *Session) Key() string {
	return SessionKey(s.UserID, s.InstanceID)
}

// SessionKey normalises a (user, instance) pair into a storage key.
func SessionKey(userID, instanceID string) string {
	return strings.ToLower(userID) + "|" + strings.ToLower(instanceID)
}

// Equal reports whether both sessions belong to the same user and instance.
func (s *Session) Equal(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	return strings.EqualFold(s.UserID, other.UserID) &&
		strings.EqualFold(s.InstanceID, other.InstanceID)
}

// BelongsTo reports whether the session is keyed by the given pair.
func (s *Session) BelongsTo(userID, instanceID string) bool {
	return s != nil && s.Key() == SessionKey(userID, instanceID)
}

// IsTokenValid returns true if the session is active and holds an
// unexpired access token.
func (s *Session) IsTokenValid(now time.Time) bool {
	return s.IsActive && s.AccessToken != "" && now.Before(s.TokenExpiry)
}

// CanRefresh returns true if the access token expired and a refresh token
// is available to renew it.
func (s *Session) CanRefresh(now time.Time) bool {
	return s.IsActive && s.RefreshToken != "" && !now.Before(s.TokenExpiry)
}

// NeedsAuthentication returns true if the session is inactive or holds no
// tokens at all.
func (s *Session) NeedsAuthentication() bool {
	return !s.IsActive || (s.AccessToken == "" && s.RefreshToken == "")
}

// IsApproachingExpiry returns true if the token is still valid but has at
// most RefreshThreshold left.
func (s *Session) IsApproachingExpiry(now time.Time) bool {
	return s.IsTokenValid(now) && s.TokenExpiry.Sub(now) <= RefreshThreshold
}

// TimeUntilExpiry returns the remaining lifetime of the access token.
func (s *Session) TimeUntilExpiry(now time.Time) time.Duration {
	return s.TokenExpiry.Sub(now)
}

// AuthenticationState derives the lifecycle state from the token
// predicates. Priority: needs-auth > valid > can-refresh > failed.
func (s *Session) AuthenticationState(now time.Time) AuthState {
	switch {
	case s.NeedsAuthentication():
		switch s.State {
		case AuthStatePendingAuthorization, AuthStateFailed, AuthStateSignedOut:
			return s.State
		default:
			return AuthStateNotAuthenticated
		}
	case s.IsTokenValid(now):
		return AuthStateAuthenticated
	case s.CanRefresh(now):
		return AuthStateExpired
	default:
		return AuthStateFailed
	}
}

// Validate checks the session invariants and returns the first violation.
func (s *Session) Validate(now time.Time) error {
	if s.State != AuthStateNotAuthenticated && s.UserID == "" {
		return fmt.Errorf("%w: session in state %s has no user id", ErrInvalidSession, s.State)
	}
	if s.IsActive {
		if s.AccessToken == "" {
			return fmt.Errorf("%w: active session has no access token", ErrInvalidSession)
		}
		if s.TokenExpiry.Before(now.Add(-ClockSkewTolerance)) {
			return fmt.Errorf("%w: active session token expired at %s",
				ErrInvalidSession, s.TokenExpiry.Format(time.RFC3339))
		}
	}
	if s.SessionStarted.After(now.Add(ClockSkewTolerance)) {
		return fmt.Errorf("%w: session starts in the future", ErrInvalidSession)
	}
	if !s.LastRefreshed.IsZero() && s.LastRefreshed.Before(s.SessionStarted) {
		return fmt.Errorf("%w: last refresh precedes session start", ErrInvalidSession)
	}
	return nil
}

// IsValid reports whether Validate finds no invariant violation.
func (s *Session) IsValid(now time.Time) bool {
	return s.Validate(now) == nil
}

// ApplyGrant stores a freshly issued token pair on the session. An empty
// refresh token keeps the previous one (servers without rotation).
func (s *Session) ApplyGrant(grant TokenGrant, now time.Time) {
	s.AccessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		s.RefreshToken = grant.RefreshToken
	}
	s.TokenExpiry = grant.ExpiryFrom(now)
	if grant.Scope != "" {
		s.Scope = grant.Scope
	}
	s.IsActive = true
}

// ClearDeviceFlow removes the transient device authorisation fields.
func (s *Session) ClearDeviceFlow() {
	s.DeviceCode = ""
	s.UserCode = ""
	s.VerificationURI = ""
	s.VerificationURIComplete = ""
	s.DeviceExpiresAt = time.Time{}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// SafeCopy returns a copy with every secret stripped. This is the only form
// that may be logged or handed to a user interface.
func (s *Session) SafeCopy() *Session {
	c := s.Clone()
	if c == nil {
		return nil
	}
	c.AccessToken = ""
	c.RefreshToken = ""
	c.DeviceCode = ""
	return c
}

package domain

import "time"

// DefaultPollInterval is used when the authorisation server omits the
// polling interval (RFC 8628 section 3.2).
const DefaultPollInterval = 5 * time.Second

// DeviceAuthorization is the server response that starts a device flow.
type DeviceAuthorization struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	// ExpiresAt is the absolute expiry of the device code.
	ExpiresAt time.Time
	// Interval is the minimum wait between token polls.
	Interval time.Duration
}

// BrowserURI returns the URI the user should open, preferring the one that
// already embeds the user code.
func (d DeviceAuthorization) BrowserURI() string {
	if d.VerificationURIComplete != "" {
		return d.VerificationURIComplete
	}
	return d.VerificationURI
}

// TokenGrant is an access/refresh token pair issued by the token endpoint.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	// ExpiresIn is the lifetime relative to the moment the grant was issued.
	ExpiresIn time.Duration
	// Expiry is the absolute expiry when the transport already computed it.
	Expiry time.Time
}

// ExpiryFrom returns the absolute token expiry.
func (g TokenGrant) ExpiryFrom(now time.Time) time.Time {
	if !g.Expiry.IsZero() {
		return g.Expiry
	}
	return now.Add(g.ExpiresIn)
}

// PollOutcome classifies one device-code token poll.
type PollOutcome int

// Poll outcomes. Pending and SlowDown are flow-control signals, not failures.
const (
	PollPending PollOutcome = iota
	PollSlowDown
	PollSuccess
	PollError
)

// String returns a readable name for the outcome.
func (o PollOutcome) String() string {
	switch o {
	case PollPending:
		return "pending"
	case PollSlowDown:
		return "slow_down"
	case PollSuccess:
		return "success"
	case PollError:
		return "error"
	default:
		return unknownDescription
	}
}

// OAuth error codes returned by the token endpoint.
const (
	OAuthErrAuthorizationPending = "authorization_pending"
	OAuthErrSlowDown             = "slow_down"
	OAuthErrExpiredToken         = "expired_token"
	OAuthErrAccessDenied         = "access_denied"
	OAuthErrInvalidGrant         = "invalid_grant"
)

// PollResult is the tagged result of a device-code token poll.
type PollResult struct {
	Outcome PollOutcome
	// Grant is set when Outcome is PollSuccess.
	Grant *TokenGrant
	// ErrorCode and Description are set when Outcome is PollError.
	ErrorCode   string
	Description string
}

// PollResultFromCode maps an OAuth error code to a poll result.
func PollResultFromCode(code, description string) PollResult {
	switch code {
	case OAuthErrAuthorizationPending:
		return PollResult{Outcome: PollPending}
	case OAuthErrSlowDown:
		return PollResult{Outcome: PollSlowDown}
	default:
		return PollResult{Outcome: PollError, ErrorCode: code, Description: description}
	}
}

// UserProfile is the authenticated user's profile from /api/user/me.
type UserProfile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

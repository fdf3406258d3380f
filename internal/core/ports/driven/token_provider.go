package driven

import "context"

// TokenProvider hands out access tokens for authenticated API calls.
//
// GetToken is the single point enforcing token freshness: callers never
// read a session's access token directly.
type TokenProvider interface {
	// GetToken returns a valid access token, refreshing first if the
	// current one is close to expiry. Returns domain.ErrAuthRequired when
	// no usable token can be produced.
	GetToken(ctx context.Context) (string, error)

	// Refresh forces a refresh-token exchange and reports whether it succeeded.
	Refresh(ctx context.Context) bool

	// IsAuthenticated returns true if a valid session is available.
	IsAuthenticated() bool
}

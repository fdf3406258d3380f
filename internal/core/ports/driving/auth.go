package driving

import (
	"context"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

// AuthService owns the user's session and the device authorisation flow.
type AuthService interface {
	// Authenticate runs the device flow. Returns true only once a token and
	// the user profile were obtained and persisted. A cancelled context
	// returns false with ctx.Err() and leaves the session untouched.
	Authenticate(ctx context.Context) (bool, error)

	// GetAccessToken returns a token with more than five minutes left,
	// refreshing synchronously when needed.
	GetAccessToken(ctx context.Context) (string, error)

	// RefreshToken exchanges the refresh token for a new pair. Fails
	// closed: the previous token is kept when the exchange errors.
	RefreshToken(ctx context.Context) bool

	// SignOut revokes best-effort, then clears the local and stored session.
	SignOut(ctx context.Context) error

	// Initialize restores and refreshes the last persisted session.
	Initialize(ctx context.Context) bool

	// IsAuthenticated returns true if the current token is valid.
	IsAuthenticated() bool

	// CurrentSession returns a token-free copy of the session, or nil.
	CurrentSession() *domain.Session

	// Close stops the background refresh timer.
	Close() error
}

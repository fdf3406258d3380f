package driven

import (
	"context"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

// OAuthClient talks to the authorisation server's device-flow endpoints.
type OAuthClient interface {
	// RequestDeviceCode starts a device authorisation for the given scope.
	RequestDeviceCode(ctx context.Context, scope string) (*domain.DeviceAuthorization, error)

	// PollToken asks the token endpoint whether the device code was approved.
	// Flow-control answers (pending, slow_down) and OAuth errors are returned
	// as a PollResult; the error return is reserved for transport failures.
	PollToken(ctx context.Context, deviceCode string) (domain.PollResult, error)

	// RefreshToken exchanges a refresh token for a new grant.
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenGrant, error)

	// Revoke invalidates a token server-side.
	Revoke(ctx context.Context, token string) error

	// FetchProfile loads the profile of the user owning accessToken.
	FetchProfile(ctx context.Context, accessToken string) (*domain.UserProfile, error)
}

package driven

import (
	"context"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
)

// VerificationPresenter shows the user where to approve a device code.
// Opening a browser is a side effect of presenting, never a retry point.
type VerificationPresenter interface {
	PresentVerification(ctx context.Context, auth domain.DeviceAuthorization) error
}

package driven

import "github.com/custodia-labs/viewshot-cli/internal/core/domain"

// NotificationPublisher delivers notifications to observers.
// Publish must never block the caller.
type NotificationPublisher interface {
	Publish(n domain.Notification)
}

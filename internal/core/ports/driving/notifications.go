package driving

import "github.com/custodia-labs/viewshot-cli/internal/core/domain"

// NotificationSource lets observers receive notifications over a bounded
// channel. The returned function unsubscribes and closes the channel.
type NotificationSource interface {
	Subscribe(buffer int) (<-chan domain.Notification, func())
}

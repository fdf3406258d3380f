// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - OAuthClient: Device authorization, token exchange, revoke and profile
//   - CredentialStore: Opaque session blob per (user, instance)
//   - UploadStore: Upload transaction history and retry queue
//   - ProjectAPI: Authenticated application endpoints
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VerificationPresenter: Shows the device code. Without it the code is only logged.
//   - NotificationPublisher: Observer fan-out. Without it notifications are dropped.
//   - SchedulerStore: Task state for long-running commands.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven

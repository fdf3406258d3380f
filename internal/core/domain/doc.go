// Package domain defines the core business entities for viewshot.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Session: The signed-in user, tokens and device-flow progress
//   - UploadTransaction: One screenshot upload and its retry state
//   - Project: An upload target on the server
//   - Notification: Observer events published by the services
//   - ClientConfig: The effective configuration
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain

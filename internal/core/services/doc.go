// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// AuthService owns the session and the device flow, UploadService drives
// upload transactions, and Notifier fans notifications out to observers.
package services

package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates a collaborator was not configured.
	ErrNotImplemented = errors.New("not implemented")

	// Authentication Errors.

	// ErrAuthRequired indicates no usable session exists and the user must log in.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthExpired indicates the authentication has expired and refresh failed.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrInvalidSession indicates a session violates its invariants.
	ErrInvalidSession = errors.New("invalid session")

	// ErrTokenRefreshFailed indicates token refresh operation failed.
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// ErrNoRefreshToken indicates the session has no refresh token to exchange.
	ErrNoRefreshToken = errors.New("no refresh token")

	// ErrDeviceFlowExpired indicates the device code expired before the user approved it.
	ErrDeviceFlowExpired = errors.New("device authorization expired")

	// ErrAccessDenied indicates the user denied the device authorization.
	ErrAccessDenied = errors.New("access denied")

	// ErrAuthInProgress indicates a device flow is already running.
	ErrAuthInProgress = errors.New("authentication already in progress")

	// Transport Errors.

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrNetwork indicates the server could not be reached.
	ErrNetwork = errors.New("network error")

	// ErrUnauthorized indicates the server rejected the credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// Upload Errors.

	// ErrRetryLimitReached indicates an upload transaction used all its retries.
	ErrRetryLimitReached = errors.New("upload retry limit reached")

	// ErrInvalidTransition indicates an upload state change that the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid upload state transition")

	// ErrEmptyImage indicates an upload was attempted without image data.
	ErrEmptyImage = errors.New("image is empty")
)

// HTTPError is a non-retryable application-level HTTP failure.
type HTTPError struct {
	StatusCode int
	Body       string
	Method     string
	Path       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// UnauthorizedError is returned when the server still rejects the request
// after the one permitted token refresh.
type UnauthorizedError struct {
	Path string
	// RefreshAttempted is true when a refresh was tried before giving up.
	RefreshAttempted bool
}

func (e *UnauthorizedError) Error() string {
	if e.RefreshAttempted {
		return fmt.Sprintf("unauthorized: %s rejected after token refresh", e.Path)
	}
	return fmt.Sprintf("unauthorized: %s rejected", e.Path)
}

// Unwrap lets errors.Is match ErrUnauthorized.
func (e *UnauthorizedError) Unwrap() error {
	return ErrUnauthorized
}

// RateLimitError is returned when the server kept rate limiting past the
// retry budget.
type RateLimitError struct {
	RetryAfter time.Duration
	Attempts   int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded after %d attempts, retry after %s", e.Attempts, e.RetryAfter)
}

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// NetworkError wraps a transport failure that survived every retry.
type NetworkError struct {
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// OAuthError is an error response from the authorisation server.
type OAuthError struct {
	Code        string
	Description string
	StatusCode  int
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return "oauth error: " + e.Code
	}
	return fmt.Sprintf("oauth error: %s - %s", e.Code, e.Description)
}

// Is maps terminal device-flow codes onto their sentinels.
func (e *OAuthError) Is(target error) bool {
	switch target {
	case ErrDeviceFlowExpired:
		return e.Code == OAuthErrExpiredToken
	case ErrAccessDenied:
		return e.Code == OAuthErrAccessDenied
	default:
		return false
	}
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrAuthRequired) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsNetwork checks if the error is a transport failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsRetryable reports whether a failed upload is worth a transaction-level
// retry: transport failures, rate limiting and server-side 5xx errors.
func IsRetryable(err error) bool {
	if IsNetwork(err) || IsRateLimited(err) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	var oauthErr *OAuthError
	if errors.As(err, &oauthErr) {
		return oauthErr.StatusCode
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrRateLimited) {
		return http.StatusTooManyRequests
	}
	return 0
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
	"github.com/custodia-labs/viewshot-cli/internal/logger"
)

// Ensure AuthService implements both the driving port and the token
// provider consumed by the API client.
var (
	_ driving.AuthService  = (*AuthService)(nil)
	_ driven.TokenProvider = (*AuthService)(nil)
)

const (
	// minRefreshDelay and maxRefreshDelay bound the background refresh timer.
	minRefreshDelay = 5 * time.Minute
	maxRefreshDelay = 30 * time.Minute

	// backgroundRefreshTimeout bounds one timer-driven refresh.
	backgroundRefreshTimeout = time.Minute

	refreshFlightKey = "refresh"
)

// LastUserTracker remembers which user's session to restore at startup.
type LastUserTracker interface {
	LastUserID() string
	SetLastUserID(userID string) error
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithPresenter sets who shows the verification URI to the user.
func WithPresenter(p driven.VerificationPresenter) AuthOption {
	return func(s *AuthService) { s.presenter = p }
}

// WithPublisher sets where notifications go.
func WithPublisher(p driven.NotificationPublisher) AuthOption {
	return func(s *AuthService) { s.publisher = p }
}

// WithLastUserTracker sets where the last signed-in user is recorded.
func WithLastUserTracker(t LastUserTracker) AuthOption {
	return func(s *AuthService) { s.lastUser = t }
}

// WithClock replaces the wall clock and the poll-loop sleep. Used by tests.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
		if after != nil {
			s.after = after
		}
	}
}

// AuthService owns the current session. It runs the device authorisation
// flow, hands out fresh access tokens, refreshes them in the background and
// persists the session through the credential store.
//
// One mutex guards the session. Network calls are made without holding it;
// the lock is re-acquired only to commit a result.
type AuthService struct {
	oauth      driven.OAuthClient
	store      driven.CredentialStore
	presenter  driven.VerificationPresenter
	publisher  driven.NotificationPublisher
	lastUser   LastUserTracker
	instanceID string
	scope      string

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	// lifetime is cancelled by Close so a pending background refresh
	// never runs against a torn-down transport.
	lifetime context.Context
	cancel   context.CancelFunc

	refreshes singleflight.Group

	mu           sync.Mutex
	session      *domain.Session
	refreshTimer *time.Timer
	flowRunning  bool
	closed       bool
}

// NewAuthService creates an auth service for one host instance.
func NewAuthService(
	oauth driven.OAuthClient,
	store driven.CredentialStore,
	instanceID, scope string,
	opts ...AuthOption,
) *AuthService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &AuthService{
		oauth:      oauth,
		store:      store,
		instanceID: instanceID,
		scope:      scope,
		now:        func() time.Time { return time.Now().UTC() },
		after:      time.After,
		lifetime:   ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ==================== Device Flow ====================

// Authenticate runs the device authorisation flow.
//
// It returns true once a token and the user profile were obtained and the
// session was persisted. Expiry of the device code or a terminal OAuth
// error marks the session Failed. A cancelled context returns ctx.Err()
// and leaves the session in whatever state it last had.
func (s *AuthService) Authenticate(ctx context.Context) (bool, error) {
	if s.oauth == nil {
		return false, domain.ErrNotImplemented
	}

	s.mu.Lock()
	if s.flowRunning {
		s.mu.Unlock()
		return false, domain.ErrAuthInProgress
	}
	if s.session != nil && s.session.IsTokenValid(s.now()) {
		s.mu.Unlock()
		logger.Debug("auth: session already valid, skipping device flow")
		return true, nil
	}
	s.flowRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.flowRunning = false
		s.mu.Unlock()
	}()

	logger.Section("Device Authorization")

	auth, err := s.oauth.RequestDeviceCode(ctx, s.scope)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.publishAuthError(err)
		return false, fmt.Errorf("request device code: %w", err)
	}
	if auth.Interval <= 0 {
		auth.Interval = domain.DefaultPollInterval
	}
	logger.Info("auth: device code issued, user code %s, expires %s",
		auth.UserCode, auth.ExpiresAt.Format(time.RFC3339))

	if s.presenter != nil {
		if err := s.presenter.PresentVerification(ctx, *auth); err != nil {
			logger.Warn("auth: presenting verification uri: %v", err)
		}
	}

	pending := domain.NewPendingSession(s.instanceID, s.scope, *auth, s.now())
	s.replaceSession(pending)

	return s.pollForToken(ctx, pending, auth.DeviceCode, auth.Interval)
}

// pollForToken is the device-flow poll loop. pending and slow_down are flow
// control; everything else ends the flow.
func (s *AuthService) pollForToken(
	ctx context.Context,
	pending *domain.Session,
	deviceCode string,
	interval time.Duration,
) (bool, error) {
	for attempt := 1; ; attempt++ {
		if !s.now().Before(pending.DeviceExpiresAt) {
			return s.failFlow(domain.ErrDeviceFlowExpired)
		}

		select {
		case <-ctx.Done():
			logger.Debug("auth: device flow cancelled after %d polls", attempt-1)
			return false, ctx.Err()
		case <-s.after(interval):
		}

		if !s.now().Before(pending.DeviceExpiresAt) {
			return s.failFlow(domain.ErrDeviceFlowExpired)
		}

		result, err := s.oauth.PollToken(ctx, deviceCode)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			logger.Warn("auth: token poll %d failed: %v", attempt, err)
			continue
		}

		logger.Debug("auth: poll %d -> %s", attempt, result.Outcome)
		switch result.Outcome {
		case domain.PollPending:
			continue
		case domain.PollSlowDown:
			interval *= 2
			logger.Debug("auth: slowing down, next poll in %s", interval)
			continue
		case domain.PollSuccess:
			if result.Grant == nil {
				return s.failFlow(&domain.OAuthError{Code: "invalid_response", Description: "token response without grant"})
			}
			return s.completeFlow(ctx, pending, *result.Grant)
		default:
			return s.failFlow(&domain.OAuthError{Code: result.ErrorCode, Description: result.Description})
		}
	}
}

// completeFlow loads the profile, persists the session and arms the refresh timer.
func (s *AuthService) completeFlow(ctx context.Context, pending *domain.Session, grant domain.TokenGrant) (bool, error) {
	profile, err := s.oauth.FetchProfile(ctx, grant.AccessToken)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return s.failFlow(fmt.Errorf("fetch user profile: %w", err))
	}

	userID := firstNonEmpty(profile.ID, profile.Username, profile.Email)
	if userID == "" {
		return s.failFlow(fmt.Errorf("%w: profile has no user id", domain.ErrInvalidSession))
	}

	now := s.now()
	sess := pending.Clone()
	sess.UserID = userID
	sess.Username = profile.Username
	sess.UserEmail = profile.Email
	sess.UserDisplayName = profile.DisplayName
	sess.SessionStarted = now
	sess.LastRefreshed = time.Time{}
	sess.ApplyGrant(grant, now)
	sess.State = domain.AuthStateAuthenticated
	sess.ClearDeviceFlow()

	if err := sess.Validate(now); err != nil {
		return s.failFlow(err)
	}
	if err := s.persist(ctx, sess); err != nil {
		return s.failFlow(err)
	}

	s.replaceSession(sess)
	s.rememberUser(userID)
	s.scheduleRefresh(sess.TokenExpiry)

	logger.L().Info().
		Str("user", userID).
		Str("instance", sess.InstanceID).
		Time("expires", sess.TokenExpiry).
		Msg("auth: signed in")
	return true, nil
}

// failFlow marks the session Failed and reports cause.
func (s *AuthService) failFlow(cause error) (bool, error) {
	s.mu.Lock()
	if s.session == nil {
		s.session = domain.NewSession(s.instanceID, s.now())
		s.session.UserID = domain.PendingUserID(s.instanceID)
	}
	prev := s.session.State
	s.session.State = domain.AuthStateFailed
	s.session.IsActive = false
	s.session.ClearDeviceFlow()
	s.mu.Unlock()

	logger.Warn("auth: device flow failed: %v", cause)
	s.publishStateChange(prev, domain.AuthStateFailed)
	s.publishAuthError(cause)
	return false, cause
}

// ==================== Tokens ====================

// GetAccessToken returns the cached token when more than RefreshThreshold
// remains; otherwise it refreshes once, synchronously.
func (s *AuthService) GetAccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	sess := s.session
	if sess == nil || sess.NeedsAuthentication() {
		s.mu.Unlock()
		return "", domain.ErrAuthRequired
	}
	now := s.now()
	if sess.IsTokenValid(now) && sess.TimeUntilExpiry(now) > domain.RefreshThreshold {
		token := sess.AccessToken
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	if !s.sharedRefresh(ctx, false) {
		return "", fmt.Errorf("%w: %w", domain.ErrAuthRequired, domain.ErrTokenRefreshFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil || !s.session.IsTokenValid(s.now()) {
		return "", domain.ErrAuthRequired
	}
	return s.session.AccessToken, nil
}

// GetToken implements driven.TokenProvider.
func (s *AuthService) GetToken(ctx context.Context) (string, error) {
	return s.GetAccessToken(ctx)
}

// Refresh implements driven.TokenProvider.
func (s *AuthService) Refresh(ctx context.Context) bool {
	return s.RefreshToken(ctx)
}

// RefreshToken exchanges the refresh token for a new pair. Concurrent
// callers share one in-flight exchange. On failure the previous token is
// kept and false is returned.
func (s *AuthService) RefreshToken(ctx context.Context) bool {
	return s.sharedRefresh(ctx, true)
}

// sharedRefresh runs refresh through the single flight. Unless force is
// set, a token another caller already renewed is accepted as is.
func (s *AuthService) sharedRefresh(ctx context.Context, force bool) bool {
	v, _, _ := s.refreshes.Do(refreshFlightKey, func() (any, error) {
		if !force && s.hasFreshToken() {
			return true, nil
		}
		return s.refresh(ctx), nil
	})
	ok, _ := v.(bool)
	return ok
}

func (s *AuthService) hasFreshToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	return s.session != nil && s.session.IsTokenValid(now) &&
		s.session.TimeUntilExpiry(now) > domain.RefreshThreshold
}

func (s *AuthService) refresh(ctx context.Context) bool {
	if s.oauth == nil {
		return false
	}

	s.mu.Lock()
	sess := s.session
	if sess == nil || !sess.IsActive || sess.RefreshToken == "" {
		s.mu.Unlock()
		logger.Debug("auth: no refresh token, skipping refresh")
		return false
	}
	snapshot := sess.Clone()
	s.mu.Unlock()

	logger.Debug("auth: refreshing token for %s", snapshot.UserID)
	grant, err := s.oauth.RefreshToken(ctx, snapshot.RefreshToken)
	if err != nil {
		logger.Warn("auth: token refresh failed: %v", err)
		s.publishAuthError(fmt.Errorf("%w: %w", domain.ErrTokenRefreshFailed, err))
		return false
	}

	now := s.now()
	s.mu.Lock()
	if s.session == nil || !s.session.Equal(snapshot) || !s.session.IsActive {
		// Signed out while the exchange was in flight.
		s.mu.Unlock()
		return false
	}
	prev := s.session.State
	s.session.ApplyGrant(*grant, now)
	s.session.LastRefreshed = now
	s.session.State = domain.AuthStateAuthenticated
	updated := s.session.Clone()
	s.mu.Unlock()

	if err := s.persist(ctx, updated); err != nil {
		logger.Warn("auth: persisting refreshed session: %v", err)
	}
	s.scheduleRefresh(updated.TokenExpiry)

	if prev != domain.AuthStateAuthenticated {
		s.publishStateChange(prev, domain.AuthStateAuthenticated)
	}
	s.publish(domain.Notification{Kind: domain.NotifyTokenRefreshed, TokenExpiry: updated.TokenExpiry})
	return true
}

// ==================== Refresh Scheduling ====================

// refreshDelay returns how long to wait before the next background refresh:
// five minutes before expiry, but never sooner than five minutes and never
// later than thirty.
func refreshDelay(untilExpiry time.Duration) time.Duration {
	return min(maxRefreshDelay, max(minRefreshDelay, untilExpiry-domain.RefreshThreshold))
}

// scheduleRefresh arms the single background refresh timer.
func (s *AuthService) scheduleRefresh(expiry time.Time) {
	delay := refreshDelay(expiry.Sub(s.now()))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
	}
	s.refreshTimer = time.AfterFunc(delay, s.backgroundRefresh)
	logger.Debug("auth: next refresh in %s", delay.Round(time.Second))
}

// backgroundRefresh is the timer callback. Failures are only logged; the
// next GetAccessToken retries synchronously.
func (s *AuthService) backgroundRefresh() {
	ctx, cancel := context.WithTimeout(s.lifetime, backgroundRefreshTimeout)
	defer cancel()
	if ctx.Err() != nil {
		return
	}
	if !s.RefreshToken(ctx) {
		logger.Warn("auth: background refresh failed")
	}
}

func (s *AuthService) stopRefreshTimer() {
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
}

// ==================== Sign Out & Restore ====================

// SignOut revokes the tokens best-effort, then clears the local session and
// the stored copy regardless of the revoke outcome.
func (s *AuthService) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.stopRefreshTimer()
	sess := s.session.Clone()
	s.mu.Unlock()

	if sess == nil {
		return nil
	}

	if s.oauth != nil {
		for _, token := range []string{sess.AccessToken, sess.RefreshToken} {
			if token == "" {
				continue
			}
			if err := s.oauth.Revoke(ctx, token); err != nil {
				logger.Warn("auth: revoke failed (continuing sign-out): %v", err)
			}
		}
	}

	s.mu.Lock()
	prev := sess.State
	if s.session != nil {
		prev = s.session.State
	}
	signedOut := domain.NewSession(sess.InstanceID, sess.SessionStarted)
	signedOut.UserID = sess.UserID
	signedOut.UserEmail = sess.UserEmail
	signedOut.UserDisplayName = sess.UserDisplayName
	signedOut.Username = sess.Username
	signedOut.State = domain.AuthStateSignedOut
	s.session = signedOut
	s.mu.Unlock()

	var errs []error
	if s.store != nil && sess.UserID != "" {
		// The stored copy must go even when the caller's context is done.
		if err := s.store.Delete(context.WithoutCancel(ctx), sess.UserID, sess.InstanceID); err != nil {
			errs = append(errs, fmt.Errorf("delete stored credentials: %w", err))
		}
	}
	if s.lastUser != nil {
		if err := s.lastUser.SetLastUserID(""); err != nil {
			errs = append(errs, fmt.Errorf("clear last user: %w", err))
		}
	}

	s.publishStateChange(prev, domain.AuthStateSignedOut)
	logger.Info("auth: signed out %s", sess.UserID)
	return errors.Join(errs...)
}

// Initialize restores the last persisted session and refreshes it. If the
// restored session is unusable and the refresh fails, the stored copy is
// deleted.
func (s *AuthService) Initialize(ctx context.Context) bool {
	if s.store == nil || s.lastUser == nil {
		return false
	}
	userID := s.lastUser.LastUserID()
	if userID == "" {
		return false
	}

	blob, err := s.store.Retrieve(ctx, userID, s.instanceID)
	if err != nil {
		logger.Warn("auth: reading stored credentials: %v", err)
		return false
	}
	if blob == nil {
		logger.Debug("auth: no stored session for %s", userID)
		return false
	}

	restored, err := domain.DecodeCredentials(blob)
	if err != nil || !restored.BelongsTo(userID, s.instanceID) {
		logger.Warn("auth: discarding unreadable stored session for %s", userID)
		s.discardStored(ctx, userID)
		return false
	}

	now := s.now()
	usable := restored.IsValid(now) && restored.IsTokenValid(now)
	restored.State = restored.AuthenticationState(now)
	s.replaceSession(restored)

	if s.RefreshToken(ctx) {
		logger.Info("auth: restored and refreshed session for %s", userID)
		return true
	}
	if usable {
		s.scheduleRefresh(restored.TokenExpiry)
		logger.Info("auth: restored session for %s (refresh deferred)", userID)
		return true
	}

	logger.Warn("auth: stored session for %s could not be restored", userID)
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	s.discardStored(ctx, userID)
	return false
}

func (s *AuthService) discardStored(ctx context.Context, userID string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), userID, s.instanceID); err != nil {
		logger.Warn("auth: deleting stored session: %v", err)
	}
	if err := s.lastUser.SetLastUserID(""); err != nil {
		logger.Warn("auth: clearing last user: %v", err)
	}
}

// ==================== Queries ====================

// IsAuthenticated returns true if the current access token is valid.
func (s *AuthService) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil && s.session.IsTokenValid(s.now())
}

// CurrentSession returns a token-free copy of the session with its derived
// state, or nil if there is none.
func (s *AuthService) CurrentSession() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	c := s.session.SafeCopy()
	c.State = c.AuthenticationState(s.now())
	return c
}

// Close stops the background refresh timer and cancels any refresh it
// started. The service must be closed before its transport is torn down.
func (s *AuthService) Close() error {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopRefreshTimer()
	return nil
}

// ==================== Helpers ====================

// replaceSession installs sess and announces the state change.
func (s *AuthService) replaceSession(sess *domain.Session) {
	s.mu.Lock()
	prev := domain.AuthStateNotAuthenticated
	if s.session != nil {
		prev = s.session.State
	}
	s.session = sess
	s.mu.Unlock()

	if prev != sess.State {
		s.publishStateChange(prev, sess.State)
	}
}

func (s *AuthService) persist(ctx context.Context, sess *domain.Session) error {
	if s.store == nil {
		return nil
	}
	blob, err := domain.EncodeCredentials(sess, s.now())
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := s.store.Store(ctx, sess.UserID, sess.InstanceID, blob); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	return nil
}

func (s *AuthService) rememberUser(userID string) {
	if s.lastUser == nil {
		return
	}
	if err := s.lastUser.SetLastUserID(userID); err != nil {
		logger.Warn("auth: recording last user: %v", err)
	}
}

func (s *AuthService) publish(n domain.Notification) {
	if s.publisher == nil {
		return
	}
	if n.At.IsZero() {
		n.At = s.now()
	}
	s.publisher.Publish(n)
}

func (s *AuthService) publishStateChange(prev, next domain.AuthState) {
	s.publish(domain.Notification{
		Kind:          domain.NotifyAuthStateChanged,
		PreviousState: prev,
		State:         next,
	})
}

func (s *AuthService) publishAuthError(err error) {
	s.publish(domain.Notification{
		Kind:       domain.NotifyAuthError,
		Message:    err.Error(),
		StatusCode: domain.StatusCode(err),
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

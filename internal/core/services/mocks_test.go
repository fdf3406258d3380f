package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
)

// --- Mock implementations shared by the service tests ---

// fakeClock drives AuthService time. Every poll-loop wait advances the
// clock by the requested duration and returns immediately.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

// mockOAuthClient implements driven.OAuthClient for testing.
type mockOAuthClient struct {
	mu sync.Mutex

	device    *domain.DeviceAuthorization
	deviceErr error

	polls     []domain.PollResult
	pollCalls int

	refreshGrant *domain.TokenGrant
	refreshErr   error
	refreshDelay time.Duration
	refreshCalls int

	revokeErr error
	revoked   []string

	profile    *domain.UserProfile
	profileErr error
}

var _ driven.OAuthClient = (*mockOAuthClient)(nil)

func (m *mockOAuthClient) RequestDeviceCode(_ context.Context, _ string) (*domain.DeviceAuthorization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deviceErr != nil {
		return nil, m.deviceErr
	}
	d := *m.device
	return &d, nil
}

func (m *mockOAuthClient) PollToken(_ context.Context, _ string) (domain.PollResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollCalls++
	if len(m.polls) == 0 {
		return domain.PollResult{Outcome: domain.PollPending}, nil
	}
	next := m.polls[0]
	m.polls = m.polls[1:]
	return next, nil
}

func (m *mockOAuthClient) RefreshToken(ctx context.Context, _ string) (*domain.TokenGrant, error) {
	m.mu.Lock()
	m.refreshCalls++
	delay := m.refreshDelay
	grant, err := m.refreshGrant, m.refreshErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, domain.ErrTokenRefreshFailed
	}
	g := *grant
	return &g, nil
}

func (m *mockOAuthClient) Revoke(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked = append(m.revoked, token)
	return m.revokeErr
}

func (m *mockOAuthClient) FetchProfile(_ context.Context, _ string) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	p := *m.profile
	return &p, nil
}

func (m *mockOAuthClient) calls() (polls, refreshes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pollCalls, m.refreshCalls
}

// mockCredentialStore implements driven.CredentialStore for testing.
type mockCredentialStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	storeErr  error
	deleteErr error
	deletes   int
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{blobs: make(map[string][]byte)}
}

func (m *mockCredentialStore) Store(_ context.Context, userID, instanceID string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return m.storeErr
	}
	m.blobs[domain.SessionKey(userID, instanceID)] = append([]byte(nil), blob...)
	return nil
}

func (m *mockCredentialStore) Retrieve(_ context.Context, userID, instanceID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[domain.SessionKey(userID, instanceID)], nil
}

func (m *mockCredentialStore) Delete(_ context.Context, userID, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.blobs, domain.SessionKey(userID, instanceID))
	return m.deleteErr
}

func (m *mockCredentialStore) has(userID, instanceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[domain.SessionKey(userID, instanceID)]
	return ok
}

// mockTracker implements LastUserTracker for testing.
type mockTracker struct {
	mu     sync.Mutex
	userID string
}

func (m *mockTracker) LastUserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

func (m *mockTracker) SetLastUserID(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userID = userID
	return nil
}

// recordingPublisher implements driven.NotificationPublisher for testing.
type recordingPublisher struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (p *recordingPublisher) Publish(n domain.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, n)
}

func (p *recordingPublisher) ofKind(kind domain.NotificationKind) []domain.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Notification
	for _, n := range p.notes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// mockProjectAPI implements driven.ProjectAPI for testing.
type mockProjectAPI struct {
	mu          sync.Mutex
	projects    []domain.Project
	uploadErrs  []error
	uploadCalls int
	uploaded    [][]byte
	health      *domain.HealthStatus
	healthErr   error
	statusInfo  *domain.UploadStatusInfo
	healthCalls int

	// formOverhead is added to the reported total, as a multipart body
	// is larger than the image it carries.
	formOverhead int64
}

var _ driven.ProjectAPI = (*mockProjectAPI)(nil)

func (m *mockProjectAPI) ListProjects(_ context.Context) ([]domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projects, nil
}

func (m *mockProjectAPI) GetProject(_ context.Context, id string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.projects {
		if strings.EqualFold(p.ID, id) {
			p := p
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockProjectAPI) UploadScreenshot(
	_ context.Context,
	projectID string,
	image []byte,
	_ domain.ScreenshotMetadata,
	progress driven.ProgressFunc,
) (*domain.UploadResult, error) {
	m.mu.Lock()
	call := m.uploadCalls
	m.uploadCalls++
	m.uploaded = append(m.uploaded, append([]byte(nil), image...))
	var err error
	if call < len(m.uploadErrs) {
		err = m.uploadErrs[call]
	}
	total := int64(len(image)) + m.formOverhead
	m.mu.Unlock()

	if progress != nil {
		progress(domain.NewUploadProgress(0, total))
		progress(domain.NewUploadProgress(total/2, total))
	}
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress(domain.NewUploadProgress(total, total))
	}
	return &domain.UploadResult{ImageID: "img-" + projectID, URL: "https://viewshot.app/i/img-" + projectID}, nil
}

func (m *mockProjectAPI) GetUploadStatus(_ context.Context, uploadID string) (*domain.UploadStatusInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusInfo == nil {
		return nil, domain.ErrNotFound
	}
	info := *m.statusInfo
	info.UploadID = uploadID
	return &info, nil
}

func (m *mockProjectAPI) Health(_ context.Context) (*domain.HealthStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthCalls++
	if m.healthErr != nil {
		return nil, m.healthErr
	}
	if m.health == nil {
		return &domain.HealthStatus{Status: "ok"}, nil
	}
	h := *m.health
	return &h, nil
}

func (m *mockProjectAPI) uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploadCalls
}

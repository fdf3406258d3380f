package mcp

import (
	"context"
	"sync"

	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
)

// mockAuthService is a mock implementation of driving.AuthService.
type mockAuthService struct {
	session       *domain.Session
	authenticated bool
}

func (m *mockAuthService) Authenticate(context.Context) (bool, error) { return m.authenticated, nil }

func (m *mockAuthService) GetAccessToken(context.Context) (string, error) {
	return "", domain.ErrAuthRequired
}

func (m *mockAuthService) RefreshToken(context.Context) bool { return false }
func (m *mockAuthService) SignOut(context.Context) error     { return nil }
func (m *mockAuthService) Initialize(context.Context) bool   { return m.authenticated }
func (m *mockAuthService) IsAuthenticated() bool             { return m.authenticated }
func (m *mockAuthService) CurrentSession() *domain.Session   { return m.session.SafeCopy() }
func (m *mockAuthService) Close() error                      { return nil }

// mockUploadService is a mock implementation of driving.UploadService.
type mockUploadService struct {
	mu       sync.Mutex
	requests []driving.UploadRequest

	tx      *domain.UploadTransaction
	uploads []domain.UploadTransaction
	err     error
	getErr  error
}

func (m *mockUploadService) Upload(_ context.Context, req driving.UploadRequest) (*domain.UploadTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.tx, m.err
}

func (m *mockUploadService) RetryDue(context.Context) (int, error) { return 0, m.err }

func (m *mockUploadService) Retry(context.Context, string) (*domain.UploadTransaction, error) {
	return m.tx, m.err
}

func (m *mockUploadService) List(context.Context, int) ([]domain.UploadTransaction, error) {
	return m.uploads, m.err
}

func (m *mockUploadService) Get(_ context.Context, id string) (*domain.UploadTransaction, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for i := range m.uploads {
		if m.uploads[i].ID == id {
			return &m.uploads[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUploadService) lastRequest() driving.UploadRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return driving.UploadRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// mockProjectService is a mock implementation of driving.ProjectService.
type mockProjectService struct {
	projects []domain.Project
	status   *domain.UploadStatusInfo
	health   *domain.HealthStatus
	err      error
}

func (m *mockProjectService) List(context.Context) ([]domain.Project, error) {
	return m.projects, m.err
}

func (m *mockProjectService) Get(_ context.Context, id string) (*domain.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.projects {
		if m.projects[i].ID == id {
			return &m.projects[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockProjectService) UploadStatus(context.Context, string) (*domain.UploadStatusInfo, error) {
	return m.status, m.err
}

func (m *mockProjectService) Health(context.Context) (*domain.HealthStatus, error) {
	return m.health, m.err
}

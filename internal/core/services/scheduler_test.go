package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/viewshot-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/viewshot-cli/internal/core/domain"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driven"
	"github.com/custodia-labs/viewshot-cli/internal/core/ports/driving"
)

// --- Mock implementations for scheduler testing ---

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu       sync.RWMutex
	tasks    map[string]*domain.ScheduledTask
	results  map[string][]domain.TaskResult
	saveErr  error
	listErr  error
	getErr   error
	pruneErr error
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks:   make(map[string]*domain.ScheduledTask),
		results: make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if task == nil {
		return domain.ErrInvalidInput
	}
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if result == nil {
		return domain.ErrInvalidInput
	}
	m.results[result.TaskID] = append(m.results[result.TaskID], *result)
	return nil
}

func (m *mockSchedulerStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.results[taskID]
	if len(results) > limit {
		results = results[len(results)-limit:]
	}
	return append([]domain.TaskResult(nil), results...), nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, _ int) error {
	return m.pruneErr
}

// Ensure mocks implement interfaces
var _ driven.SchedulerStore = (*mockSchedulerStore)(nil)

// newSchedulerFixture wires a scheduler to real upload and project services
// backed by the mock API.
func newSchedulerFixture(t *testing.T) (*Scheduler, *mockSchedulerStore, *mockProjectAPI, driving.UploadService) {
	t.Helper()
	api := &mockProjectAPI{}
	cfg := domain.DefaultClientConfig()
	cfg.RetryDelayMinutes = 0
	uploads := NewUploadService(api, memory.NewUploadStore(), nil, cfg)
	store := newMockSchedulerStore()
	return NewScheduler(domain.DefaultSchedulerConfig(), store, uploads, NewProjectService(api)), store, api, uploads
}

// ==================== Scheduler Tests ====================

func TestNewScheduler(t *testing.T) {
	scheduler, _, _, _ := newSchedulerFixture(t)

	require.NotNil(t, scheduler)
	assert.True(t, scheduler.config.Enabled)
	assert.Equal(t, 30*time.Second, scheduler.config.TickInterval)
}

func TestNewScheduler_DefaultTick(t *testing.T) {
	scheduler := NewScheduler(domain.SchedulerConfig{Enabled: true}, newMockSchedulerStore(), nil, nil)
	assert.Equal(t, time.Minute, scheduler.config.TickInterval)
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler, _, _, _ := newSchedulerFixture(t)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = scheduler.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	cancel()
	require.NoError(t, scheduler.Stop())
	wg.Wait()
}

func TestScheduler_Disabled(t *testing.T) {
	cfg := domain.DefaultSchedulerConfig()
	cfg.Enabled = false
	store := newMockSchedulerStore()
	scheduler := NewScheduler(cfg, store, nil, nil)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Empty(t, store.tasks)
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	scheduler, _, _, _ := newSchedulerFixture(t)
	require.NoError(t, scheduler.Stop())
}

func TestScheduler_DoubleStart(t *testing.T) {
	scheduler, _, _, _ := newSchedulerFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = scheduler.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	// Already running, returns immediately.
	assert.NoError(t, scheduler.Start(context.Background()))

	cancel()
	scheduler.Stop() //nolint:errcheck
	wg.Wait()
}

func TestScheduler_InitialiseTasks(t *testing.T) {
	scheduler, store, _, _ := newSchedulerFixture(t)
	ctx := context.Background()

	require.NoError(t, scheduler.initialiseTasks(ctx))

	retry, err := store.GetTask(ctx, domain.TaskIDUploadRetry)
	require.NoError(t, err)
	require.NotNil(t, retry)
	assert.Equal(t, "Upload Retry", retry.Name)
	assert.Equal(t, time.Minute, retry.Interval)
	assert.True(t, retry.IsDue(time.Now()))

	health, err := store.GetTask(ctx, domain.TaskIDHealthCheck)
	require.NoError(t, err)
	require.NotNil(t, health)
	assert.Equal(t, 5*time.Minute, health.Interval)
}

func TestScheduler_EnsureTask_UpdateInterval(t *testing.T) {
	scheduler, store, _, _ := newSchedulerFixture(t)
	ctx := context.Background()

	taskCfg := domain.TaskConfig{Enabled: true, Interval: time.Hour}
	require.NoError(t, scheduler.ensureTask(ctx, "test-task", "Test Task", taskCfg))

	taskCfg.Interval = 2 * time.Hour
	taskCfg.Enabled = false
	require.NoError(t, scheduler.ensureTask(ctx, "test-task", "Test Task", taskCfg))

	task, err := store.GetTask(ctx, "test-task")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, task.Interval)
	assert.False(t, task.Enabled)
	assert.True(t, task.NextRun.After(time.Now().Add(time.Hour)))
}

func TestScheduler_InitialiseTasks_StoreError(t *testing.T) {
	scheduler, store, _, _ := newSchedulerFixture(t)
	store.getErr = errors.New("db locked")

	assert.Error(t, scheduler.initialiseTasks(context.Background()))
}

// ==================== Task Execution Tests ====================

func TestScheduler_RunUploadRetry(t *testing.T) {
	scheduler, store, api, uploads := newSchedulerFixture(t)
	ctx := context.Background()

	api.uploadErrs = []error{serverError(503)}
	tx, err := uploads.Upload(ctx, driving.UploadRequest{ProjectID: "p1", SourcePath: writeImage(t)})
	require.Error(t, err)
	require.Equal(t, domain.UploadRetrying, tx.Status)

	task := &domain.ScheduledTask{ID: domain.TaskIDUploadRetry, Interval: time.Minute, Enabled: true}
	scheduler.runTask(ctx, task)
	scheduler.wg.Wait()

	assert.Equal(t, 2, api.uploads())
	history, err := store.GetTaskHistory(ctx, domain.TaskIDUploadRetry, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, 1, history[0].ItemsProcessed)

	saved, err := store.GetTask(ctx, domain.TaskIDUploadRetry)
	require.NoError(t, err)
	assert.False(t, saved.LastSuccess.IsZero())
	assert.True(t, saved.NextRun.After(saved.LastRun))
}

func TestScheduler_RunHealthCheck_RecordsFailure(t *testing.T) {
	scheduler, store, api, _ := newSchedulerFixture(t)
	ctx := context.Background()
	api.healthErr = &domain.NetworkError{Attempts: 4, Err: errors.New("connection refused")}

	task := &domain.ScheduledTask{ID: domain.TaskIDHealthCheck, Interval: time.Minute, Enabled: true}
	scheduler.runTask(ctx, task)
	scheduler.wg.Wait()

	history, err := store.GetTaskHistory(ctx, domain.TaskIDHealthCheck, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Contains(t, history[0].Error, "connection refused")

	saved, err := store.GetTask(ctx, domain.TaskIDHealthCheck)
	require.NoError(t, err)
	assert.Contains(t, saved.LastError, "connection refused")
}

func TestScheduler_NilCollaborators(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil, nil)
	ctx := context.Background()

	n, err := scheduler.runUploadRetry(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, scheduler.runHealthCheck(ctx))
}

func TestScheduler_CheckAndRunDueTasks(t *testing.T) {
	scheduler, store, api, _ := newSchedulerFixture(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDHealthCheck,
		Name:     "Health Check",
		Interval: time.Hour,
		NextRun:  now.Add(-time.Minute),
		Enabled:  true,
	}))
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{
		ID:       domain.TaskIDUploadRetry,
		Name:     "Upload Retry",
		Interval: time.Hour,
		NextRun:  now.Add(time.Hour),
		Enabled:  true,
	}))

	scheduler.checkAndRunDueTasks(ctx)
	scheduler.wg.Wait()

	api.mu.Lock()
	calls := api.healthCalls
	api.mu.Unlock()
	assert.Equal(t, 1, calls)

	history, err := store.GetTaskHistory(ctx, domain.TaskIDUploadRetry, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestScheduler_RunTask_UnknownTaskID(t *testing.T) {
	scheduler, store, _, _ := newSchedulerFixture(t)
	ctx := context.Background()

	scheduler.runTask(ctx, &domain.ScheduledTask{ID: "unknown-task", Name: "Unknown", Enabled: true})
	scheduler.wg.Wait()

	assert.Empty(t, store.results)
}

func TestScheduler_HealthCheckWithMemoryStore(t *testing.T) {
	api := &mockProjectAPI{}
	store := memory.NewSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil, NewProjectService(api))
	ctx := context.Background()

	require.NoError(t, scheduler.initialiseTasks(ctx))
	task, err := store.GetTask(ctx, domain.TaskIDHealthCheck)
	require.NoError(t, err)
	require.NotNil(t, task)

	scheduler.runTask(ctx, task)
	scheduler.wg.Wait()

	history, err := store.GetTaskHistory(ctx, domain.TaskIDHealthCheck, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

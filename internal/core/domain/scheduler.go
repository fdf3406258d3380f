package domain

import "time"

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Interval defines how often the task should run.
	Interval time.Duration

	LastRun time.Time
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// IsDue returns true if the task is enabled and its next run has arrived.
func (t *ScheduledTask) IsDue(now time.Time) bool {
	return t.Enabled && !now.Before(t.NextRun)
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time

	// Success indicates whether the task completed without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string

	// ItemsProcessed is a count of items handled (e.g. uploads retried).
	ItemsProcessed int
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// TickInterval is how often the scheduler looks for due tasks.
	TickInterval time.Duration

	// TaskConfigs holds per-task configuration.
	TaskConfigs map[string]TaskConfig
}

// TaskConfig holds configuration for a single task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// GetTaskConfig returns the configuration for a specific task.
// Returns a zero TaskConfig if the task is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig returns the defaults used by long-running commands.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:      true,
		TickInterval: 30 * time.Second,
		TaskConfigs: map[string]TaskConfig{
			TaskIDUploadRetry: {
				Enabled:  true,
				Interval: time.Minute,
			},
			TaskIDHealthCheck: {
				Enabled:  true,
				Interval: 5 * time.Minute,
			},
		},
	}
}

// Task IDs for built-in tasks.
const (
	TaskIDUploadRetry = "upload-retry"
	TaskIDHealthCheck = "health-check"
)

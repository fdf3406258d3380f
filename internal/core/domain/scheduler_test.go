package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSchedulerConfig(t *testing.T) {
	config := DefaultSchedulerConfig()

	assert.True(t, config.Enabled)
	assert.Equal(t, 30*time.Second, config.TickInterval)
	assert.Len(t, config.TaskConfigs, 2)

	retryCfg := config.TaskConfigs[TaskIDUploadRetry]
	assert.True(t, retryCfg.Enabled)
	assert.Equal(t, time.Minute, retryCfg.Interval)

	healthCfg := config.TaskConfigs[TaskIDHealthCheck]
	assert.True(t, healthCfg.Enabled)
	assert.Equal(t, 5*time.Minute, healthCfg.Interval)
}

func TestSchedulerConfig_GetTaskConfig(t *testing.T) {
	config := DefaultSchedulerConfig()

	assert.True(t, config.GetTaskConfig(TaskIDUploadRetry).Enabled)

	unknownCfg := config.GetTaskConfig("unknown-task")
	assert.False(t, unknownCfg.Enabled)
	assert.Equal(t, time.Duration(0), unknownCfg.Interval)
}

func TestSchedulerConfig_GetTaskConfig_NilMap(t *testing.T) {
	config := SchedulerConfig{Enabled: true}

	cfg := config.GetTaskConfig("any-task")
	assert.False(t, cfg.Enabled)
	assert.Equal(t, time.Duration(0), cfg.Interval)
}

func TestTaskConstants(t *testing.T) {
	assert.Equal(t, "upload-retry", TaskIDUploadRetry)
	assert.Equal(t, "health-check", TaskIDHealthCheck)
}

func TestScheduledTask_IsDue(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		task     ScheduledTask
		expected bool
	}{
		{"past due", ScheduledTask{Enabled: true, NextRun: now.Add(-time.Minute)}, true},
		{"exactly now", ScheduledTask{Enabled: true, NextRun: now}, true},
		{"future", ScheduledTask{Enabled: true, NextRun: now.Add(time.Minute)}, false},
		{"disabled", ScheduledTask{Enabled: false, NextRun: now.Add(-time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.task.IsDue(now))
		})
	}
}

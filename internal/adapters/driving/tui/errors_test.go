package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_AreDistinct(t *testing.T) {
	errors := []error{
		ErrMissingAuthService,
		ErrMissingUploadService,
		ErrMissingProjectService,
		ErrInvalidPorts,
		ErrNoProject,
	}

	// Ensure all errors are unique
	seen := make(map[string]bool)
	for _, err := range errors {
		msg := err.Error()
		assert.False(t, seen[msg], "duplicate error message: %s", msg)
		seen[msg] = true
	}
}

func TestErrMissingAuthService_Message(t *testing.T) {
	assert.Contains(t, ErrMissingAuthService.Error(), "auth service")
}

func TestErrMissingUploadService_Message(t *testing.T) {
	assert.Contains(t, ErrMissingUploadService.Error(), "upload service")
}

func TestErrMissingProjectService_Message(t *testing.T) {
	assert.Contains(t, ErrMissingProjectService.Error(), "project service")
}

func TestErrInvalidPorts_Message(t *testing.T) {
	assert.Contains(t, ErrInvalidPorts.Error(), "invalid ports")
}

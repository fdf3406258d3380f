package tui

import "errors"

// ErrMissingAuthService is returned when the auth service is not provided.
var ErrMissingAuthService = errors.New("tui: auth service is required")

// ErrMissingUploadService is returned when the upload service is not provided.
var ErrMissingUploadService = errors.New("tui: upload service is required")

// ErrMissingProjectService is returned when the project service is not provided.
var ErrMissingProjectService = errors.New("tui: project service is required")

// ErrInvalidPorts is returned when no ports were given at all.
var ErrInvalidPorts = errors.New("tui: invalid ports configuration")

// ErrNoProject is reported when an upload is requested before a project was chosen.
var ErrNoProject = errors.New("no project selected, choose one in Projects")

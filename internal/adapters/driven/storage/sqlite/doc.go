// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. It implements several store interfaces through a single database connection:
//
//   - CredentialStore: serialised sessions, one row per (user, instance)
//   - UploadStore: upload transaction history and the retry queue
//   - SchedulerStore: background task timings and results
//
// # Schema
//
// The schema is managed through versioned migrations in the migrations/ directory.
// Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.viewshot/data/viewshot.db with 0600
// permissions.
package sqlite

// Package sqlite provides SQLite-backed audit persistence.
//
// It is the on-disk store shared by the HTTP service, the worker and command
// tooling, so every surface sees the same batches and findings.
package sqlite

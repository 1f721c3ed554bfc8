// Package storage defines persistence contracts for audit data.
//
// These interfaces exist so HTTP handlers, the worker and command tooling can
// depend on stable domain semantics without coupling to SQLite schema details.
package storage

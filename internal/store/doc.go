// Package store provides abstractions for task persistence: the
// TaskStore interface, the DBTX database abstraction, transaction
// helpers, and the sentinel errors the implementations return.
package store

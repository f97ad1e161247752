// Package domain defines the core business entities and errors for the
// task lifecycle: the Task entity, its status state machine, and the
// typed errors that protect its invariants.
package domain

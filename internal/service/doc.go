// Package service provides application-level services for creating,
// listing, cancelling and completing tasks. It orchestrates the domain
// state machine, the task store, the policy enforcer, the executor and
// the notifier, and owns the error taxonomy the API layer maps to
// status codes.
package service

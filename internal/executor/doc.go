// Package executor runs the work behind a task. The service hands a
// task to Start and gets back a Handle for cooperative cancellation;
// the executor reports the outcome through a completion callback and
// never touches the repository itself.
package executor

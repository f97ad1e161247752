// Package events defines the task lifecycle notification contract.
// Notifications are fire-and-forget: a notifier failure must never roll
// back or fail the task mutation that triggered it.
package events

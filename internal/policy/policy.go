// Package policy decides whether a principal may perform an action on a
// task. Decisions are explicit values rather than errors so that callers
// can distinguish "denied" from "the check itself broke"; the service
// layer converts a denial into its error taxonomy.
package policy

import (
	"context"

	"github.com/google/uuid"
	"github.com/taskvault/taskvault-api/internal/domain"
)

// Actions checked before each service operation.
const (
	ActionCreate     = "tasks:create"
	ActionGet        = "tasks:get"
	ActionList       = "tasks:list"
	ActionCancel     = "tasks:cancel"
	ActionSetOwner   = "tasks:set_owner"
)

// Principal identifies the authenticated caller of a service operation.
type Principal struct {
	// ID is the caller's unique identifier, used as the default task owner.
	ID uuid.UUID

	// Admin grants elevated access: reading and cancelling tasks owned by
	// others, listing across owners, and assigning an owner at creation.
	Admin bool
}

// Decision is the result of a policy check.
type Decision struct {
	Allowed bool
	// Reason describes a denial. It is logged, never returned to clients.
	Reason string
}

// Allow is the decision granting the checked action.
var Allow = Decision{Allowed: true}

// Deny creates a denial decision with the given reason.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Enforcer checks whether a principal may perform an action. The target
// task is nil for actions that have no single target (create, list).
type Enforcer interface {
	Check(ctx context.Context, action string, principal Principal, target *domain.Task) Decision
}

// OwnerEnforcer is the default Enforcer: any principal may create and
// list (listing is scoped to the principal elsewhere), while reading and
// cancelling a specific task requires ownership or the admin role.
type OwnerEnforcer struct{}

// NewOwnerEnforcer creates the default owner-scoped Enforcer.
func NewOwnerEnforcer() *OwnerEnforcer {
	return &OwnerEnforcer{}
}

// Ensure OwnerEnforcer implements the Enforcer interface
var _ Enforcer = (*OwnerEnforcer)(nil)

// Check implements Enforcer.
func (e *OwnerEnforcer) Check(
	_ context.Context,
	action string,
	principal Principal,
	target *domain.Task,
) Decision {
	if principal.ID == uuid.Nil {
		return Deny("missing principal")
	}

	switch action {
	case ActionCreate, ActionList:
		return Allow

	case ActionSetOwner:
		if principal.Admin {
			return Allow
		}
		return Deny("owner override requires the admin role")

	case ActionGet, ActionCancel:
		if principal.Admin {
			return Allow
		}
		if target != nil && target.Owner == principal.ID {
			return Allow
		}
		return Deny("task is owned by another principal")

	default:
		return Deny("unknown action " + action)
	}
}

package engine

import (
	"fmt"

	"github.com/madaldho/designflow-app-sub000/internal/domain"
	"github.com/madaldho/designflow-app-sub000/internal/roles"
)

// PermissionError indicates the actor's role or ownership does not authorize
// the action. Never retried.
type PermissionError struct {
	Action roles.Action
	Role   domain.Role
	Reason string
}

func (e PermissionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("permission %s denied for role %s: %s", e.Action, e.Role, e.Reason)
	}
	return fmt.Sprintf("permission %s denied for role %s", e.Action, e.Role)
}

// TransitionError indicates the requested event is not valid from the
// project's current status, or the acting role may not take that edge.
type TransitionError struct {
	Status domain.Status
	Event  Event
	Role   domain.Role
	// RoleDenied is true when the edge exists but the role is not allowed
	// on it; false when the (status, event) pair is not in the table.
	RoleDenied bool
}

func (e TransitionError) Error() string {
	if e.RoleDenied {
		return fmt.Sprintf("role %s may not apply %s from status %s", e.Role, e.Event, e.Status)
	}
	return fmt.Sprintf("event %s not valid from status %s", e.Event, e.Status)
}

// PreconditionError indicates a required related entity is missing or in the
// wrong state.
type PreconditionError struct {
	Reason string
}

func (e PreconditionError) Error() string { return e.Reason }

// ConflictError indicates another writer changed the project between read
// and write. The caller may retry the whole operation.
type ConflictError struct {
	ProjectID string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("project %s was modified concurrently; retry", e.ProjectID)
}

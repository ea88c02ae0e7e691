package engine

import "github.com/madaldho/designflow-app-sub000/internal/domain"

// Event is a requested project transition. Every status change goes through
// Transition; nothing writes the status column directly.
type Event string

const (
	EventStartDesign          Event = "start_design"
	EventUploadProof          Event = "upload_proof"
	EventReviewApprove        Event = "review_approve"
	EventReviewRequestChanges Event = "review_request_changes"
	EventApprovalGrant        Event = "approval_grant"
	EventApprovalReject       Event = "approval_reject"
	EventPrintStart           Event = "print_start"
	EventPrintComplete        Event = "print_complete"
	EventPickupConfirm        Event = "pickup_confirm"
	EventArchive              Event = "archive"
	EventCancel               Event = "cancel"
)

type edge struct {
	target domain.Status
	roles  []domain.Role
}

var designerRoles = []domain.Role{domain.RoleDesignerInternal, domain.RoleDesignerExternal}
var reviewRoles = []domain.Role{domain.RoleReviewer, domain.RoleApprover}
var approverOnly = []domain.Role{domain.RoleApprover}
var externalOnly = []domain.Role{domain.RoleDesignerExternal}
var requesterOnly = []domain.Role{domain.RoleRequester}

// transitions is the fixed table: (current status, event) -> (target, roles
// allowed on the edge). Admin is implicitly allowed on every edge.
var transitions = map[domain.Status]map[Event]edge{
	domain.StatusDraft: {
		EventStartDesign: {domain.StatusDesigning, requesterOnly},
		EventUploadProof: {domain.StatusReadyForReview, designerRoles},
	},
	domain.StatusDesigning: {
		EventUploadProof: {domain.StatusReadyForReview, designerRoles},
	},
	domain.StatusChangesRequested: {
		EventUploadProof: {domain.StatusReadyForReview, designerRoles},
	},
	domain.StatusReadyForReview: {
		EventReviewApprove:        {domain.StatusApproved, reviewRoles},
		EventReviewRequestChanges: {domain.StatusChangesRequested, reviewRoles},
	},
	domain.StatusApproved: {
		EventApprovalGrant:  {domain.StatusApprovedForPrint, approverOnly},
		EventApprovalReject: {domain.StatusChangesRequested, approverOnly},
	},
	domain.StatusApprovedForPrint: {
		EventPrintStart: {domain.StatusInPrint, externalOnly},
	},
	domain.StatusInPrint: {
		EventPrintComplete: {domain.StatusReady, externalOnly},
	},
	domain.StatusReady: {
		EventPickupConfirm: {domain.StatusPickedUp, externalOnly},
	},
}

// Transition resolves the target status for (current, event) applied by
// role. The error distinguishes an unknown edge from a role denial.
func Transition(current domain.Status, ev Event, role domain.Role) (domain.Status, error) {
	// archive/cancel are reachable from any non-terminal status, admin only.
	if ev == EventArchive || ev == EventCancel {
		if current.Terminal() {
			return "", TransitionError{Status: current, Event: ev, Role: role}
		}
		if role != domain.RoleAdmin {
			return "", TransitionError{Status: current, Event: ev, Role: role, RoleDenied: true}
		}
		if ev == EventArchive {
			return domain.StatusArchived, nil
		}
		return domain.StatusCancelled, nil
	}
	e, ok := transitions[current][ev]
	if !ok {
		return "", TransitionError{Status: current, Event: ev, Role: role}
	}
	if role == domain.RoleAdmin {
		return e.target, nil
	}
	for _, allowed := range e.roles {
		if role == allowed {
			return e.target, nil
		}
	}
	return "", TransitionError{Status: current, Event: ev, Role: role, RoleDenied: true}
}

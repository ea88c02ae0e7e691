// Package roles answers "can this role ever perform this action". Ownership
// checks (creator/assignee on a specific project) belong to the engine.
package roles

import "github.com/madaldho/designflow-app-sub000/internal/domain"

// Action is one of the fixed set of permissioned operations.
type Action string

const (
	CreateProject      Action = "create_project"
	EditProject        Action = "edit_project"
	DeleteProject      Action = "delete_project"
	ViewProjects       Action = "view_projects"
	AssignRoles        Action = "assign_roles"
	UploadProof        Action = "upload_proof"
	SubmitReview       Action = "submit_review"
	CreateApproval     Action = "create_approval"
	StartPrint         Action = "start_print"
	UpdatePrint        Action = "update_print"
	ConfirmPickup      Action = "confirm_pickup"
	ManageUsers        Action = "manage_users"
	ManageInstitutions Action = "manage_institutions"
)

// Actions lists every known action.
var Actions = []Action{
	CreateProject,
	EditProject,
	DeleteProject,
	ViewProjects,
	AssignRoles,
	UploadProof,
	SubmitReview,
	CreateApproval,
	StartPrint,
	UpdatePrint,
	ConfirmPickup,
	ManageUsers,
	ManageInstitutions,
}

// matrix maps each non-admin role to the actions it may perform. Admin is
// handled in Can and never listed here.
var matrix = map[domain.Role]map[Action]bool{
	domain.RoleRequester: {
		CreateProject: true,
		EditProject:   true,
		DeleteProject: true,
		ViewProjects:  true,
		AssignRoles:   true,
	},
	domain.RoleDesignerInternal: {
		ViewProjects: true,
		EditProject:  true,
		UploadProof:  true,
	},
	domain.RoleDesignerExternal: {
		ViewProjects:  true,
		EditProject:   true,
		UploadProof:   true,
		StartPrint:    true,
		UpdatePrint:   true,
		ConfirmPickup: true,
	},
	domain.RoleReviewer: {
		ViewProjects: true,
		SubmitReview: true,
	},
	domain.RoleApprover: {
		ViewProjects:   true,
		SubmitReview:   true,
		CreateApproval: true,
	},
}

// Can reports whether role may ever perform action. It is total over the
// (role, action) domain: unknown roles and actions resolve to false.
func Can(role domain.Role, action Action) bool {
	if role == domain.RoleAdmin {
		return true
	}
	return matrix[role][action]
}

package roles_test

import (
	"testing"

	"github.com/madaldho/designflow-app-sub000/internal/domain"
	"github.com/madaldho/designflow-app-sub000/internal/roles"
)

func TestAdminCanEverything(t *testing.T) {
	for _, action := range roles.Actions {
		if !roles.Can(domain.RoleAdmin, action) {
			t.Fatalf("admin denied %s", action)
		}
	}
}

func TestMatrixBoundaries(t *testing.T) {
	cases := []struct {
		role   domain.Role
		action roles.Action
		want   bool
	}{
		{domain.RoleRequester, roles.CreateProject, true},
		{domain.RoleRequester, roles.DeleteProject, true},
		{domain.RoleRequester, roles.AssignRoles, true},
		{domain.RoleReviewer, roles.AssignRoles, false},
		{domain.RoleRequester, roles.UploadProof, false},
		{domain.RoleRequester, roles.SubmitReview, false},
		{domain.RoleRequester, roles.ManageUsers, false},
		{domain.RoleDesignerInternal, roles.UploadProof, true},
		{domain.RoleDesignerInternal, roles.StartPrint, false},
		{domain.RoleDesignerInternal, roles.ConfirmPickup, false},
		{domain.RoleDesignerExternal, roles.UploadProof, true},
		{domain.RoleDesignerExternal, roles.StartPrint, true},
		{domain.RoleDesignerExternal, roles.ConfirmPickup, true},
		{domain.RoleDesignerExternal, roles.SubmitReview, false},
		{domain.RoleReviewer, roles.SubmitReview, true},
		{domain.RoleReviewer, roles.CreateApproval, false},
		{domain.RoleReviewer, roles.UploadProof, false},
		{domain.RoleApprover, roles.SubmitReview, true},
		{domain.RoleApprover, roles.CreateApproval, true},
		{domain.RoleApprover, roles.StartPrint, false},
	}
	for _, c := range cases {
		if got := roles.Can(c.role, c.action); got != c.want {
			t.Errorf("Can(%s, %s) = %v, want %v", c.role, c.action, got, c.want)
		}
	}
}

func TestUnknownRoleOrActionDenied(t *testing.T) {
	if roles.Can(domain.Role("ghost"), roles.CreateProject) {
		t.Fatalf("unknown role should be denied")
	}
	if roles.Can(domain.RoleRequester, roles.Action("teleport")) {
		t.Fatalf("unknown action should be denied")
	}
}

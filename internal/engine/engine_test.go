package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/madaldho/designflow-app-sub000/internal/db"
	"github.com/madaldho/designflow-app-sub000/internal/domain"
	"github.com/madaldho/designflow-app-sub000/internal/engine"
	"github.com/madaldho/designflow-app-sub000/internal/migrate"
	"github.com/madaldho/designflow-app-sub000/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

// fixed cast used by most tests
const (
	admin     = "u-admin"
	requester = "u-req"
	designer  = "u-des"
	printer   = "u-ext"
	reviewer  = "u-rev"
	approver  = "u-app"
)

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn)
	eng.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	now := eng.Now().UTC().Format(time.RFC3339)
	if err := eng.Repo.InsertInstitution(ctx, domain.Institution{ID: "inst-1", Name: "City Press", CreatedAt: now}); err != nil {
		t.Fatalf("seed institution: %v", err)
	}
	seed := []struct {
		id   string
		role domain.Role
	}{
		{admin, domain.RoleAdmin},
		{requester, domain.RoleRequester},
		{designer, domain.RoleDesignerInternal},
		{printer, domain.RoleDesignerExternal},
		{reviewer, domain.RoleReviewer},
		{approver, domain.RoleApprover},
	}
	for _, s := range seed {
		u := domain.User{
			ID:            s.id,
			Name:          s.id,
			Email:         s.id + "@example.test",
			Role:          s.role,
			InstitutionID: "inst-1",
			Active:        true,
			CreatedAt:     now,
		}
		if err := eng.Repo.InsertUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", s.id, err)
		}
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func newProject(t *testing.T, env testEnv) domain.Project {
	t.Helper()
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		Title:     "Banner order",
		MediaType: "banner",
		Quantity:  2,
		ActorID:   requester,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func assignCast(t *testing.T, env testEnv, projectID string) domain.Project {
	t.Helper()
	des, rev, app := designer, reviewer, approver
	p, err := env.Engine.AssignRoles(env.Ctx, engine.RoleAssignOptions{
		ProjectID:  projectID,
		ActorID:    admin,
		AssigneeID: &des,
		ReviewerID: &rev,
		ApproverID: &app,
	})
	if err != nil {
		t.Fatalf("assign roles: %v", err)
	}
	return p
}

func mustStatus(t *testing.T, env testEnv, projectID string, want domain.Status) domain.Project {
	t.Helper()
	p, err := env.Engine.Repo.GetProject(env.Ctx, projectID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if p.Status != want {
		t.Fatalf("status %s, want %s", p.Status, want)
	}
	return p
}

func TestFullPipeline(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	if p.Status != domain.StatusDraft || p.Version != 0 {
		t.Fatalf("new project: status=%s version=%d", p.Status, p.Version)
	}

	p = assignCast(t, env, p.ID)
	if p.Status != domain.StatusDesigning {
		t.Fatalf("after assign: status=%s", p.Status)
	}

	proof, err := env.Engine.SubmitProof(env.Ctx, engine.ProofSubmitOptions{
		ProjectID: p.ID, ActorID: designer, FileRef: "s3://proofs/banner-v1.pdf",
	})
	if err != nil {
		t.Fatalf("submit proof: %v", err)
	}
	if proof.Version != 1 {
		t.Fatalf("proof version %d, want 1", proof.Version)
	}
	p = mustStatus(t, env, p.ID, domain.StatusReadyForReview)
	if p.Version != 1 {
		t.Fatalf("project version %d after proof, want 1", p.Version)
	}

	if _, err := env.Engine.SubmitReview(env.Ctx, engine.ReviewSubmitOptions{
		ProjectID: p.ID, ActorID: reviewer, Decision: "approved", Comment: "looks right",
	}); err != nil {
		t.Fatalf("submit review: %v", err)
	}
	mustStatus(t, env, p.ID, domain.StatusApproved)

	a, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalSubmitOptions{
		ProjectID: p.ID, ActorID: approver, Decision: "approved",
	})
	if err != nil {
		t.Fatalf("submit approval: %v", err)
	}
	if a.ApprovedAt == nil {
		t.Fatalf("approved approval should carry approved_at")
	}
	mustStatus(t, env, p.ID, domain.StatusApprovedForPrint)

	job, err := env.Engine.StartPrint(env.Ctx, engine.PrintStartOptions{ProjectID: p.ID, ActorID: printer})
	if err != nil {
		t.Fatalf("start print: %v", err)
	}
	if job.Status != "in_progress" || job.StartedAt == nil {
		t.Fatalf("print job: status=%s started=%v", job.Status, job.StartedAt)
	}
	mustStatus(t, env, p.ID, domain.StatusInPrint)

	job, err = env.Engine.UpdatePrintJob(env.Ctx, engine.PrintUpdateOptions{
		PrintJobID: job.ID, ActorID: printer, Status: "completed",
	})
	if err != nil {
		t.Fatalf("complete print: %v", err)
	}
	if job.CompletedAt == nil {
		t.Fatalf("completed job should carry completed_at")
	}
	mustStatus(t, env, p.ID, domain.StatusReady)

	pickup, err := env.Engine.ConfirmPickup(env.Ctx, engine.PickupConfirmOptions{
		ProjectID: p.ID, ActorID: printer, TakerName: "Budi", TakerPhone: "0812",
	})
	if err != nil {
		t.Fatalf("confirm pickup: %v", err)
	}
	if pickup.TakerName != "Budi" {
		t.Fatalf("pickup taker %s", pickup.TakerName)
	}
	mustStatus(t, env, p.ID, domain.StatusPickedUp)
}

func TestReworkLoopBumpsProofVersions(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	assignCast(t, env, p.ID)

	submit := func() domain.Proof {
		proof, err := env.Engine.SubmitProof(env.Ctx, engine.ProofSubmitOptions{
			ProjectID: p.ID, ActorID: designer, FileRef: "file",
		})
		if err != nil {
			t.Fatalf("submit proof: %v", err)
		}
		return proof
	}
	requestChanges := func() {
		if _, err := env.Engine.SubmitReview(env.Ctx, engine.ReviewSubmitOptions{
			ProjectID: p.ID, ActorID: reviewer, Decision: "changes_requested", Comment: "wrong logo",
		}); err != nil {
			t.Fatalf("request changes: %v", err)
		}
	}

	if v := submit().Version; v != 1 {
		t.Fatalf("first proof version %d", v)
	}
	requestChanges()
	mustStatus(t, env, p.ID, domain.StatusChangesRequested)
	if v := submit().Version; v != 2 {
		t.Fatalf("second proof version %d", v)
	}
	requestChanges()
	if v := submit().Version; v != 3 {
		t.Fatalf("third proof version %d", v)
	}
	mustStatus(t, env, p.ID, domain.StatusReadyForReview)

	proofs, err := env.Engine.Repo.ListProofs(env.Ctx, p.ID)
	if err != nil {
		t.Fatalf("list proofs: %v", err)
	}
	if len(proofs) != 3 {
		t.Fatalf("expected 3 proofs, got %d", len(proofs))
	}
}

func TestApprovalRejectReturnsToRework(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	assignCast(t, env, p.ID)
	if _, err := env.Engine.SubmitProof(env.Ctx, engine.ProofSubmitOptions{ProjectID: p.ID, ActorID: designer, FileRef: "f"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitReview(env.Ctx, engine.ReviewSubmitOptions{ProjectID: p.ID, ActorID: reviewer, Decision: "approved"}); err != nil {
		t.Fatal(err)
	}
	a, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalSubmitOptions{
		ProjectID: p.ID, ActorID: approver, Decision: "rejected", Comment: "budget cut",
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if a.ApprovedAt != nil {
		t.Fatalf("rejected approval must not carry approved_at")
	}
	mustStatus(t, env, p.ID, domain.StatusChangesRequested)
}

func TestRoleDenials(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	assignCast(t, env, p.ID)

	var pe engine.PermissionError
	if _, err := env.Engine.SubmitProof(env.Ctx, engine.ProofSubmitOptions{ProjectID: p.ID, ActorID: requester, FileRef: "f"}); !errors.As(err, &pe) {
		t.Fatalf("requester proof: %v", err)
	}
	if _, err := env.Engine.SubmitReview(env.Ctx, engine.ReviewSubmitOptions{ProjectID: p.ID, ActorID: designer, Decision: "approved"}); !errors.As(err, &pe) {
		t.Fatalf("designer review: %v", err)
	}
	if _, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalSubmitOptions{ProjectID: p.ID, ActorID: reviewer, Decision: "approved"}); !errors.As(err, &pe) {
		t.Fatalf("reviewer approval: %v", err)
	}
	if _, err := env.Engine.StartPrint(env.Ctx, engine.PrintStartOptions{ProjectID: p.ID, ActorID: designer}); !errors.As(err, &pe) {
		t.Fatalf("internal designer print: %v", err)
	}
	if _, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "x", MediaType: "flyer", ActorID: reviewer}); !errors.As(err, &pe) {
		t.Fatalf("reviewer create project: %v", err)
	}
}

func TestOnlyAssignedDesignerUploads(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	assignCast(t, env, p.ID)

	// printer holds a designer role but is not assigned to this project
	_, err := env.Engine.SubmitProof(env.Ctx, engine.ProofSubmitOptions{ProjectID: p.ID, ActorID: printer, FileRef: "f"})
	var pe engine.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("unassigned designer proof: %v", err)
	}

	// admin bypasses the assignment check
	if _, err := env.Engine.SubmitProof(env.Ctx, engine.ProofSubmitOptions{ProjectID: p.ID, ActorID: admin, FileRef: "f"}); err != nil {
		t.Fatalf("admin proof: %v", err)
	}
}

func TestReviewRequiresProof(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	assignCast(t, env, p.ID)
	// force the status past upload without a proof row
	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Repo.MoveProjectStatusTx(env.Ctx, tx, p.ID, domain.StatusDesigning, domain.StatusReadyForReview, "2026-03-01T12:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.SubmitReview(env.Ctx, engine.ReviewSubmitOptions{ProjectID: p.ID, ActorID: reviewer, Decision: "approved"})
	var pre engine.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestPrintAndPickupPreconditions(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	assignCast(t, env, p.ID)

	var pre engine.PreconditionError
	if _, err := env.Engine.StartPrint(env.Ctx, engine.PrintStartOptions{ProjectID: p.ID, ActorID: printer}); !errors.As(err, &pre) {
		t.Fatalf("print from designing: %v", err)
	}
	if _, err := env.Engine.ConfirmPickup(env.Ctx, engine.PickupConfirmOptions{ProjectID: p.ID, ActorID: printer, TakerName: "x"}); !errors.As(err, &pre) {
		t.Fatalf("pickup from designing: %v", err)
	}
}

func TestPickupOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	p := runToReady(t, env)
	if _, err := env.Engine.ConfirmPickup(env.Ctx, engine.PickupConfirmOptions{ProjectID: p.ID, ActorID: printer, TakerName: "Sari"}); err != nil {
		t.Fatalf("first pickup: %v", err)
	}
	_, err := env.Engine.ConfirmPickup(env.Ctx, engine.PickupConfirmOptions{ProjectID: p.ID, ActorID: printer, TakerName: "Sari"})
	var pre engine.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("second pickup should hit precondition, got %v", err)
	}
}

func TestCompletedPrintJobIsFrozen(t *testing.T) {
	env := newTestEnv(t)
	p := runToApprovedForPrint(t, env)
	job, err := env.Engine.StartPrint(env.Ctx, engine.PrintStartOptions{ProjectID: p.ID, ActorID: printer})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UpdatePrintJob(env.Ctx, engine.PrintUpdateOptions{PrintJobID: job.ID, ActorID: printer, Status: "completed"}); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.UpdatePrintJob(env.Ctx, engine.PrintUpdateOptions{PrintJobID: job.ID, ActorID: printer, Status: "in_progress"})
	var pre engine.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("reopening completed job: %v", err)
	}
}

func TestStaleVersionUpdateRejected(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	assignCast(t, env, p.ID)

	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	// stale reader: wrong expected version means no row moves
	ok, err := env.Engine.Repo.MoveProjectStatusBumpVersionTx(env.Ctx, tx, p.ID, domain.StatusDesigning, domain.StatusReadyForReview, 7, "2026-03-01T12:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("stale version update should not match")
	}
	ok, err = env.Engine.Repo.MoveProjectStatusBumpVersionTx(env.Ctx, tx, p.ID, domain.StatusDesigning, domain.StatusReadyForReview, 0, "2026-03-01T12:00:00Z")
	if err != nil || !ok {
		t.Fatalf("correct version update should match: ok=%v err=%v", ok, err)
	}
}

func TestNotificationsOnWorkflowSteps(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	assignCast(t, env, p.ID)

	unread := func(userID string) int {
		n, err := env.Engine.Repo.UnreadNotificationCount(env.Ctx, userID)
		if err != nil {
			t.Fatalf("unread count: %v", err)
		}
		return n
	}

	// role assignment notified all three slots
	if unread(designer) != 1 || unread(reviewer) != 1 || unread(approver) != 1 {
		t.Fatalf("assignment notifications: des=%d rev=%d app=%d", unread(designer), unread(reviewer), unread(approver))
	}

	if _, err := env.Engine.SubmitProof(env.Ctx, engine.ProofSubmitOptions{ProjectID: p.ID, ActorID: designer, FileRef: "f"}); err != nil {
		t.Fatal(err)
	}
	if unread(reviewer) != 2 {
		t.Fatalf("reviewer should hear about the proof, unread=%d", unread(reviewer))
	}

	if _, err := env.Engine.SubmitReview(env.Ctx, engine.ReviewSubmitOptions{ProjectID: p.ID, ActorID: reviewer, Decision: "approved"}); err != nil {
		t.Fatal(err)
	}
	if unread(designer) != 2 {
		t.Fatalf("designer should hear about the review, unread=%d", unread(designer))
	}

	if _, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalSubmitOptions{ProjectID: p.ID, ActorID: approver, Decision: "approved"}); err != nil {
		t.Fatal(err)
	}
	// approval notifies both the requester and the designer
	if unread(requester) != 1 || unread(designer) != 3 {
		t.Fatalf("approval notifications: req=%d des=%d", unread(requester), unread(designer))
	}
}

func TestNoSelfNotification(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	adm := admin
	if _, err := env.Engine.AssignRoles(env.Ctx, engine.RoleAssignOptions{
		ProjectID: p.ID, ActorID: admin, AssigneeID: &adm, ReviewerID: &adm,
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	// the admin is both uploader and reviewer slot, so nothing is queued
	if _, err := env.Engine.SubmitProof(env.Ctx, engine.ProofSubmitOptions{ProjectID: p.ID, ActorID: admin, FileRef: "f"}); err != nil {
		t.Fatal(err)
	}
	n, err := env.Engine.Repo.UnreadNotificationCount(env.Ctx, admin)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("actor notified about own action, unread=%d", n)
	}
}

func TestActivityTrail(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	assignCast(t, env, p.ID)
	if _, err := env.Engine.SubmitProof(env.Ctx, engine.ProofSubmitOptions{ProjectID: p.ID, ActorID: designer, FileRef: "f"}); err != nil {
		t.Fatal(err)
	}
	acts, err := env.Engine.Repo.ListActivities(env.Ctx, repo.ActivityFilters{ProjectID: p.ID, Limit: 50})
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	types := map[string]bool{}
	for _, a := range acts {
		types[a.Type] = true
	}
	for _, want := range []string{"project_created", "roles_assigned", "proof_uploaded"} {
		if !types[want] {
			t.Fatalf("missing activity %s in %v", want, types)
		}
	}
}

func TestInactiveActorBlocked(t *testing.T) {
	env := newTestEnv(t)
	if err := env.Engine.SetUserActive(env.Ctx, admin, requester, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "x", MediaType: "flyer", ActorID: requester})
	var pe engine.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("inactive actor: %v", err)
	}
}

func TestEditLockedAfterTerminal(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	if _, err := env.Engine.CloseProject(env.Ctx, admin, p.ID, false); err != nil {
		t.Fatalf("archive: %v", err)
	}
	title := "renamed"
	_, err := env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{ProjectID: p.ID, ActorID: requester, Title: &title})
	var pre engine.PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("edit archived: %v", err)
	}
}

func TestCloseProjectAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	_, err := env.Engine.CloseProject(env.Ctx, requester, p.ID, true)
	var te engine.TransitionError
	if !errors.As(err, &te) || !te.RoleDenied {
		t.Fatalf("requester cancel: %v", err)
	}
	p2, err := env.Engine.CloseProject(env.Ctx, admin, p.ID, true)
	if err != nil || p2.Status != domain.StatusCancelled {
		t.Fatalf("admin cancel: %s, %v", p2.Status, err)
	}
}

func TestAssignRejectsWrongRoleForSlot(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	req := requester
	if _, err := env.Engine.AssignRoles(env.Ctx, engine.RoleAssignOptions{ProjectID: p.ID, ActorID: admin, AssigneeID: &req}); err == nil {
		t.Fatalf("requester should not fit the designer slot")
	}
	rev := reviewer
	if _, err := env.Engine.AssignRoles(env.Ctx, engine.RoleAssignOptions{ProjectID: p.ID, ActorID: admin, ApproverID: &rev}); err == nil {
		t.Fatalf("reviewer should not fit the approver slot")
	}
	// approvers may also review
	if _, err := env.Engine.AssignRoles(env.Ctx, engine.RoleAssignOptions{ProjectID: p.ID, ActorID: admin, ReviewerID: &rev}); err != nil {
		t.Fatalf("reviewer in reviewer slot: %v", err)
	}
}

func TestUserManagement(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		ActorID: requester, Name: "Eve", Email: "eve@example.test", Role: domain.RoleReviewer,
	})
	var pe engine.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("requester creating users: %v", err)
	}
	u, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		ActorID: admin, Name: "Eve", Email: "eve@example.test", Role: domain.RoleReviewer, InstitutionID: "inst-1",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		ActorID: admin, Name: "Eve 2", Email: "eve@example.test", Role: domain.RoleReviewer,
	}); err == nil {
		t.Fatalf("duplicate email accepted")
	}
	changed, err := env.Engine.ChangeUserRole(env.Ctx, admin, u.ID, domain.RoleApprover)
	if err != nil || changed.Role != domain.RoleApprover {
		t.Fatalf("change role: %s, %v", changed.Role, err)
	}
	if _, err := env.Engine.ChangeUserRole(env.Ctx, admin, u.ID, domain.Role("wizard")); err == nil {
		t.Fatalf("unknown role accepted")
	}
}

func TestBootstrapIdempotent(t *testing.T) {
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatal(err)
	}
	eng := engine.New(conn)
	ctx := context.Background()
	u1, err := eng.Bootstrap(ctx, "Root", "root@example.test")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if u1.Role != domain.RoleAdmin {
		t.Fatalf("bootstrap role %s", u1.Role)
	}
	u2, err := eng.Bootstrap(ctx, "Root", "root@example.test")
	if err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if u1.ID != u2.ID {
		t.Fatalf("bootstrap created a second admin")
	}
}

func TestRequesterStaffsOwnProject(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)

	des := designer
	p2, err := env.Engine.AssignRoles(env.Ctx, engine.RoleAssignOptions{
		ProjectID: p.ID, ActorID: requester, AssigneeID: &des,
	})
	if err != nil {
		t.Fatalf("requester assigns own project: %v", err)
	}
	if p2.Status != domain.StatusDesigning {
		t.Fatalf("after assign status %s, want designing", p2.Status)
	}

	// a requester may not staff someone else's project
	other, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		Title: "Admin poster", MediaType: "poster", ActorID: admin,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.AssignRoles(env.Ctx, engine.RoleAssignOptions{
		ProjectID: other.ID, ActorID: requester, AssigneeID: &des,
	})
	var pe engine.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("assigning a foreign project: %v", err)
	}
}

func TestConcurrentProofUploadsUniqueVersions(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	assignCast(t, env, p.ID)

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Engine.SubmitProof(env.Ctx, engine.ProofSubmitOptions{
				ProjectID: p.ID, ActorID: admin, FileRef: "f",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		var ce engine.ConflictError
		var te engine.TransitionError
		if !errors.As(err, &ce) && !errors.As(err, &te) {
			t.Fatalf("loser got unexpected error: %v", err)
		}
	}
	if wins == 0 {
		t.Fatalf("no upload succeeded")
	}
	proofs, err := env.Engine.Repo.ListProofs(env.Ctx, p.ID)
	if err != nil {
		t.Fatalf("list proofs: %v", err)
	}
	if len(proofs) != wins {
		t.Fatalf("%d proofs for %d successful uploads", len(proofs), wins)
	}
	seen := map[int]bool{}
	for _, proof := range proofs {
		if proof.Version < 1 || proof.Version > wins || seen[proof.Version] {
			t.Fatalf("versions not unique and gapless: %+v", proofs)
		}
		seen[proof.Version] = true
	}
}

func TestDeleteProjectLeavesAudit(t *testing.T) {
	env := newTestEnv(t)
	p := newProject(t, env)
	if err := env.Engine.DeleteProject(env.Ctx, requester, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.Repo.GetProject(env.Ctx, p.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("project still readable: %v", err)
	}
	acts, err := env.Engine.Repo.ListActivities(env.Ctx, repo.ActivityFilters{Type: "project_deleted", Limit: 10})
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(acts) != 1 {
		t.Fatalf("expected one deletion entry, got %d", len(acts))
	}
}

func runToApprovedForPrint(t *testing.T, env testEnv) domain.Project {
	t.Helper()
	p := newProject(t, env)
	assignCast(t, env, p.ID)
	if _, err := env.Engine.SubmitProof(env.Ctx, engine.ProofSubmitOptions{ProjectID: p.ID, ActorID: designer, FileRef: "f"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitReview(env.Ctx, engine.ReviewSubmitOptions{ProjectID: p.ID, ActorID: reviewer, Decision: "approved"}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalSubmitOptions{ProjectID: p.ID, ActorID: approver, Decision: "approved"}); err != nil {
		t.Fatal(err)
	}
	return mustStatus(t, env, p.ID, domain.StatusApprovedForPrint)
}

func runToReady(t *testing.T, env testEnv) domain.Project {
	t.Helper()
	p := runToApprovedForPrint(t, env)
	job, err := env.Engine.StartPrint(env.Ctx, engine.PrintStartOptions{ProjectID: p.ID, ActorID: printer})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UpdatePrintJob(env.Ctx, engine.PrintUpdateOptions{PrintJobID: job.ID, ActorID: printer, Status: "completed"}); err != nil {
		t.Fatal(err)
	}
	return mustStatus(t, env, p.ID, domain.StatusReady)
}

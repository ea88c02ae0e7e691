package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/madaldho/designflow-app-sub000/internal/activity"
	"github.com/madaldho/designflow-app-sub000/internal/domain"
	"github.com/madaldho/designflow-app-sub000/internal/notify"
	"github.com/madaldho/designflow-app-sub000/internal/repo"
	"github.com/madaldho/designflow-app-sub000/internal/roles"
)

// Engine is the single enforcement point for the approval pipeline: every
// mutation checks the role matrix, applies the transition table, writes the
// evidentiary side record and the audit/notification rows in one transaction.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Activity activity.Writer
	Notify   notify.Sink
	Now      func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:   db,
		Repo: repo.Repo{DB: db},
		Now:  time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowStr() string {
	return e.now().UTC().Format(time.RFC3339)
}

// actor loads the acting user and rejects inactive accounts.
func (e Engine) actor(ctx context.Context, actorID string) (domain.User, error) {
	u, err := e.Repo.GetUser(ctx, actorID)
	if err != nil {
		return u, err
	}
	if !u.Active {
		return u, PermissionError{Role: u.Role, Reason: "account disabled"}
	}
	return u, nil
}

func (e Engine) record(ctx context.Context, tx *sql.Tx, actType, description, userID, projectID string) error {
	w := e.Activity
	if w.Now == nil {
		w.Now = e.Now
	}
	return w.Record(ctx, tx, actType, description, userID, projectID)
}

func (e Engine) notifyUser(ctx context.Context, tx *sql.Tx, actorID, userID, projectID, notifType, title, message string, data notify.ContextData) error {
	if userID == "" || userID == actorID {
		return nil
	}
	s := e.Notify
	if s.Now == nil {
		s.Now = e.Now
	}
	return s.Notify(ctx, tx, userID, projectID, notifType, title, message, data)
}

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	ID            string
	Title         string
	MediaType     string
	Size          string
	Quantity      int
	Deadline      string
	InstitutionID string
	ActorID       string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.Project{}, err
	}
	if !roles.Can(actor.Role, roles.CreateProject) {
		return domain.Project{}, PermissionError{Action: roles.CreateProject, Role: actor.Role}
	}
	if opts.Title == "" {
		return domain.Project{}, errors.New("title is required")
	}
	if opts.MediaType == "" {
		return domain.Project{}, errors.New("media_type is required")
	}
	if opts.Quantity <= 0 {
		opts.Quantity = 1
	}
	institutionID := opts.InstitutionID
	if institutionID == "" {
		institutionID = actor.InstitutionID
	}
	if institutionID == "" {
		return domain.Project{}, errors.New("institution is required")
	}
	if _, err := e.Repo.GetInstitution(ctx, institutionID); err != nil {
		return domain.Project{}, fmt.Errorf("institution %s: %w", institutionID, err)
	}
	now := e.nowStr()
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	p := domain.Project{
		ID:            id,
		Title:         opts.Title,
		MediaType:     opts.MediaType,
		Size:          opts.Size,
		Quantity:      opts.Quantity,
		Status:        domain.StatusDraft,
		Version:       0,
		CreatorID:     actor.ID,
		InstitutionID: institutionID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if opts.Deadline != "" {
		p.Deadline = &opts.Deadline
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertProjectTx(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.record(ctx, tx, "project_created", fmt.Sprintf("project %q created", p.Title), actor.ID, p.ID); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// ownsProject implements the ownership half of edit/delete authorization:
// the role matrix says whether the role may ever edit, this says whether
// this actor may edit this project.
func ownsProject(actor domain.User, p domain.Project) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}
	if p.CreatorID == actor.ID {
		return true
	}
	return p.AssigneeID != nil && *p.AssigneeID == actor.ID
}

// ProjectUpdateOptions patches editable attributes. Nil fields are left
// untouched.
type ProjectUpdateOptions struct {
	ProjectID string
	ActorID   string
	Title     *string
	MediaType *string
	Size      *string
	Quantity  *int
	Deadline  *string
}

func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.Project{}, err
	}
	if !roles.Can(actor.Role, roles.EditProject) {
		return domain.Project{}, PermissionError{Action: roles.EditProject, Role: actor.Role}
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Project{}, err
	}
	if !ownsProject(actor, p) {
		return domain.Project{}, PermissionError{Action: roles.EditProject, Role: actor.Role, Reason: "not creator or assignee"}
	}
	if p.Status.Terminal() {
		return domain.Project{}, PreconditionError{Reason: fmt.Sprintf("project is %s and can no longer be edited", p.Status)}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	patch := repo.ProjectPatch{
		Title:     opts.Title,
		MediaType: opts.MediaType,
		Size:      opts.Size,
		Quantity:  opts.Quantity,
		Deadline:  opts.Deadline,
	}
	if err := e.Repo.UpdateProjectFieldsTx(ctx, tx, p.ID, patch, e.nowStr()); err != nil {
		return domain.Project{}, err
	}
	if err := e.record(ctx, tx, "project_updated", fmt.Sprintf("project %q updated", p.Title), actor.ID, p.ID); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return e.Repo.GetProject(ctx, p.ID)
}

func (e Engine) DeleteProject(ctx context.Context, actorID, projectID string) error {
	actor, err := e.actor(ctx, actorID)
	if err != nil {
		return err
	}
	if !roles.Can(actor.Role, roles.DeleteProject) {
		return PermissionError{Action: roles.DeleteProject, Role: actor.Role}
	}
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if actor.Role != domain.RoleAdmin && p.CreatorID != actor.ID {
		return PermissionError{Action: roles.DeleteProject, Role: actor.Role, Reason: "not creator"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteProjectTx(ctx, tx, projectID); err != nil {
		return err
	}
	if err := e.record(ctx, tx, "project_deleted", fmt.Sprintf("project %q deleted", p.Title), actor.ID, ""); err != nil {
		return err
	}
	return tx.Commit()
}

// RoleAssignOptions sets the designer/reviewer/approver slots on a project.
// Empty string clears a slot; nil leaves it alone.
type RoleAssignOptions struct {
	ProjectID  string
	ActorID    string
	AssigneeID *string
	ReviewerID *string
	ApproverID *string
}

func (e Engine) AssignRoles(ctx context.Context, opts RoleAssignOptions) (domain.Project, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.Project{}, err
	}
	if !roles.Can(actor.Role, roles.AssignRoles) {
		return domain.Project{}, PermissionError{Action: roles.AssignRoles, Role: actor.Role}
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Project{}, err
	}
	// non-admins may only staff their own projects
	if actor.Role != domain.RoleAdmin && p.CreatorID != actor.ID {
		return domain.Project{}, PermissionError{Action: roles.AssignRoles, Role: actor.Role, Reason: "not creator"}
	}
	if p.Status.Terminal() {
		return domain.Project{}, PreconditionError{Reason: fmt.Sprintf("project is %s", p.Status)}
	}
	if err := e.checkSlot(ctx, opts.AssigneeID, domain.RoleDesignerInternal, domain.RoleDesignerExternal); err != nil {
		return domain.Project{}, fmt.Errorf("assignee: %w", err)
	}
	if err := e.checkSlot(ctx, opts.ReviewerID, domain.RoleReviewer, domain.RoleApprover); err != nil {
		return domain.Project{}, fmt.Errorf("reviewer: %w", err)
	}
	if err := e.checkSlot(ctx, opts.ApproverID, domain.RoleApprover); err != nil {
		return domain.Project{}, fmt.Errorf("approver: %w", err)
	}
	now := e.nowStr()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.AssignProjectRolesTx(ctx, tx, p.ID, opts.AssigneeID, opts.ReviewerID, opts.ApproverID, now); err != nil {
		return domain.Project{}, err
	}
	// assigning a designer to a draft moves it into designing
	if p.Status == domain.StatusDraft && opts.AssigneeID != nil && *opts.AssigneeID != "" {
		target, err := Transition(p.Status, EventStartDesign, actor.Role)
		if err != nil {
			return domain.Project{}, err
		}
		ok, err := e.Repo.MoveProjectStatusTx(ctx, tx, p.ID, p.Status, target, now)
		if err != nil {
			return domain.Project{}, err
		}
		if !ok {
			return domain.Project{}, ConflictError{ProjectID: p.ID}
		}
	}
	if err := e.record(ctx, tx, "roles_assigned", fmt.Sprintf("roles assigned on project %q", p.Title), actor.ID, p.ID); err != nil {
		return domain.Project{}, err
	}
	for _, slot := range []*string{opts.AssigneeID, opts.ReviewerID, opts.ApproverID} {
		if slot == nil || *slot == "" {
			continue
		}
		err := e.notifyUser(ctx, tx, actor.ID, *slot, p.ID, "role_assigned", "You were assigned to a project",
			fmt.Sprintf("You now have a role on %q", p.Title), notify.ContextData{"project_id": p.ID})
		if err != nil {
			return domain.Project{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return e.Repo.GetProject(ctx, p.ID)
}

// checkSlot validates that a referenced user exists and carries one of the
// allowed roles. Admin fits any slot.
func (e Engine) checkSlot(ctx context.Context, userID *string, allowed ...domain.Role) error {
	if userID == nil || *userID == "" {
		return nil
	}
	u, err := e.Repo.GetUser(ctx, *userID)
	if err != nil {
		return err
	}
	if u.Role == domain.RoleAdmin {
		return nil
	}
	for _, r := range allowed {
		if u.Role == r {
			return nil
		}
	}
	return fmt.Errorf("user %s has role %s, expected one of %v", u.ID, u.Role, allowed)
}

// ProofSubmitOptions are parameters for uploading a design proof.
type ProofSubmitOptions struct {
	ProjectID string
	ActorID   string
	FileRef   string
	IsFinal   bool
	Notes     string
}

// SubmitProof inserts the next proof version and forces the project to
// ready_for_review. The version read, the proof insert and the conditional
// project update share one transaction, so two concurrent uploads can never
// be assigned the same version.
func (e Engine) SubmitProof(ctx context.Context, opts ProofSubmitOptions) (domain.Proof, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.Proof{}, err
	}
	if !roles.Can(actor.Role, roles.UploadProof) {
		return domain.Proof{}, PermissionError{Action: roles.UploadProof, Role: actor.Role}
	}
	if opts.FileRef == "" {
		return domain.Proof{}, errors.New("file_ref is required")
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Proof{}, err
	}
	if actor.Role != domain.RoleAdmin {
		if p.AssigneeID == nil {
			return domain.Proof{}, PermissionError{Action: roles.UploadProof, Role: actor.Role, Reason: "project has no assignee"}
		}
		if *p.AssigneeID != actor.ID {
			return domain.Proof{}, PermissionError{Action: roles.UploadProof, Role: actor.Role, Reason: "not the assigned designer"}
		}
	}
	target, err := Transition(p.Status, EventUploadProof, actor.Role)
	if err != nil {
		return domain.Proof{}, err
	}
	now := e.nowStr()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Proof{}, err
	}
	defer tx.Rollback()

	version, err := e.Repo.NextProofVersionTx(ctx, tx, p.ID)
	if err != nil {
		return domain.Proof{}, err
	}
	proof := domain.Proof{
		ID:         uuid.New().String(),
		ProjectID:  p.ID,
		Version:    version,
		FileRef:    opts.FileRef,
		UploaderID: actor.ID,
		IsFinal:    opts.IsFinal,
		Notes:      opts.Notes,
		CreatedAt:  now,
	}
	if err := e.Repo.InsertProofTx(ctx, tx, proof); err != nil {
		return domain.Proof{}, fmt.Errorf("insert proof: %w", err)
	}
	ok, err := e.Repo.MoveProjectStatusBumpVersionTx(ctx, tx, p.ID, p.Status, target, p.Version, now)
	if err != nil {
		return domain.Proof{}, err
	}
	if !ok {
		return domain.Proof{}, ConflictError{ProjectID: p.ID}
	}
	if err := e.record(ctx, tx, "proof_uploaded", fmt.Sprintf("proof v%d uploaded for %q", version, p.Title), actor.ID, p.ID); err != nil {
		return domain.Proof{}, err
	}
	if p.ReviewerID != nil {
		err := e.notifyUser(ctx, tx, actor.ID, *p.ReviewerID, p.ID, "proof_uploaded", "Proof ready for review",
			fmt.Sprintf("Proof v%d of %q awaits your review", version, p.Title),
			notify.ContextData{"project_id": p.ID, "proof_id": proof.ID, "version": version})
		if err != nil {
			return domain.Proof{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Proof{}, err
	}
	return proof, nil
}

// ReviewSubmitOptions are parameters for a design-quality judgment.
type ReviewSubmitOptions struct {
	ProjectID string
	ProofID   string
	ActorID   string
	Decision  string
	Comment   string
}

func (e Engine) SubmitReview(ctx context.Context, opts ReviewSubmitOptions) (domain.Review, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.Review{}, err
	}
	if !roles.Can(actor.Role, roles.SubmitReview) {
		return domain.Review{}, PermissionError{Action: roles.SubmitReview, Role: actor.Role}
	}
	var ev Event
	switch opts.Decision {
	case "approved":
		ev = EventReviewApprove
	case "changes_requested":
		ev = EventReviewRequestChanges
	default:
		return domain.Review{}, fmt.Errorf("decision must be approved or changes_requested, got %q", opts.Decision)
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Review{}, err
	}
	var proof domain.Proof
	if opts.ProofID != "" {
		proof, err = e.Repo.GetProof(ctx, opts.ProofID)
		if err != nil {
			return domain.Review{}, err
		}
		if proof.ProjectID != p.ID {
			return domain.Review{}, PreconditionError{Reason: "proof belongs to a different project"}
		}
	} else {
		proof, err = e.Repo.LatestProof(ctx, p.ID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.Review{}, PreconditionError{Reason: "project has no proof to review"}
			}
			return domain.Review{}, err
		}
	}
	target, err := Transition(p.Status, ev, actor.Role)
	if err != nil {
		return domain.Review{}, err
	}
	now := e.nowStr()
	rev := domain.Review{
		ID:         uuid.New().String(),
		ProjectID:  p.ID,
		ProofID:    proof.ID,
		ReviewerID: actor.ID,
		Decision:   opts.Decision,
		Comment:    opts.Comment,
		CreatedAt:  now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Review{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertReviewTx(ctx, tx, rev); err != nil {
		return domain.Review{}, fmt.Errorf("insert review: %w", err)
	}
	ok, err := e.Repo.MoveProjectStatusTx(ctx, tx, p.ID, p.Status, target, now)
	if err != nil {
		return domain.Review{}, err
	}
	if !ok {
		return domain.Review{}, ConflictError{ProjectID: p.ID}
	}
	if err := e.record(ctx, tx, "review_submitted", fmt.Sprintf("review %s on proof v%d of %q", opts.Decision, proof.Version, p.Title), actor.ID, p.ID); err != nil {
		return domain.Review{}, err
	}
	if p.AssigneeID != nil {
		err := e.notifyUser(ctx, tx, actor.ID, *p.AssigneeID, p.ID, "review_submitted", "Your proof was reviewed",
			fmt.Sprintf("Proof v%d of %q: %s", proof.Version, p.Title, opts.Decision),
			notify.ContextData{"project_id": p.ID, "proof_id": proof.ID, "decision": opts.Decision})
		if err != nil {
			return domain.Review{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Review{}, err
	}
	return rev, nil
}

// ApprovalSubmitOptions are parameters for the print-readiness sign-off.
type ApprovalSubmitOptions struct {
	ProjectID string
	ActorID   string
	Decision  string
	Comment   string
}

func (e Engine) SubmitApproval(ctx context.Context, opts ApprovalSubmitOptions) (domain.Approval, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.Approval{}, err
	}
	if !roles.Can(actor.Role, roles.CreateApproval) {
		return domain.Approval{}, PermissionError{Action: roles.CreateApproval, Role: actor.Role}
	}
	var ev Event
	switch opts.Decision {
	case "approved":
		ev = EventApprovalGrant
	case "rejected":
		ev = EventApprovalReject
	default:
		return domain.Approval{}, fmt.Errorf("decision must be approved or rejected, got %q", opts.Decision)
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Approval{}, err
	}
	target, err := Transition(p.Status, ev, actor.Role)
	if err != nil {
		return domain.Approval{}, err
	}
	now := e.nowStr()
	a := domain.Approval{
		ID:         uuid.New().String(),
		ProjectID:  p.ID,
		ApproverID: actor.ID,
		Status:     opts.Decision,
		Comment:    opts.Comment,
		CreatedAt:  now,
	}
	if opts.Decision == "approved" {
		a.ApprovedAt = &now
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Approval{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertApprovalTx(ctx, tx, a); err != nil {
		return domain.Approval{}, fmt.Errorf("insert approval: %w", err)
	}
	ok, err := e.Repo.MoveProjectStatusTx(ctx, tx, p.ID, p.Status, target, now)
	if err != nil {
		return domain.Approval{}, err
	}
	if !ok {
		return domain.Approval{}, ConflictError{ProjectID: p.ID}
	}
	if err := e.record(ctx, tx, "approval_submitted", fmt.Sprintf("approval %s for %q", opts.Decision, p.Title), actor.ID, p.ID); err != nil {
		return domain.Approval{}, err
	}
	// both the designer and the requester hear about the final sign-off
	recipients := []string{p.CreatorID}
	if p.AssigneeID != nil && *p.AssigneeID != p.CreatorID {
		recipients = append(recipients, *p.AssigneeID)
	}
	for _, rcpt := range recipients {
		err := e.notifyUser(ctx, tx, actor.ID, rcpt, p.ID, "approval_submitted", "Print approval decision",
			fmt.Sprintf("%q: approval %s", p.Title, opts.Decision),
			notify.ContextData{"project_id": p.ID, "decision": opts.Decision})
		if err != nil {
			return domain.Approval{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Approval{}, err
	}
	return a, nil
}

// PrintStartOptions are parameters for starting physical production.
type PrintStartOptions struct {
	ProjectID       string
	ActorID         string
	Notes           string
	EstimatedFinish string
}

func (e Engine) StartPrint(ctx context.Context, opts PrintStartOptions) (domain.PrintJob, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.PrintJob{}, err
	}
	if !roles.Can(actor.Role, roles.StartPrint) {
		return domain.PrintJob{}, PermissionError{Action: roles.StartPrint, Role: actor.Role}
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.PrintJob{}, err
	}
	if p.Status != domain.StatusApprovedForPrint {
		return domain.PrintJob{}, PreconditionError{Reason: fmt.Sprintf("project is %s, print requires approved_for_print", p.Status)}
	}
	target, err := Transition(p.Status, EventPrintStart, actor.Role)
	if err != nil {
		return domain.PrintJob{}, err
	}
	now := e.nowStr()
	job := domain.PrintJob{
		ID:         uuid.New().String(),
		ProjectID:  p.ID,
		OperatorID: actor.ID,
		Status:     "in_progress",
		Notes:      opts.Notes,
		StartedAt:  &now,
		CreatedAt:  now,
	}
	if opts.EstimatedFinish != "" {
		job.EstimatedFinish = &opts.EstimatedFinish
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PrintJob{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertPrintJobTx(ctx, tx, job); err != nil {
		return domain.PrintJob{}, fmt.Errorf("insert print job: %w", err)
	}
	ok, err := e.Repo.MoveProjectStatusTx(ctx, tx, p.ID, p.Status, target, now)
	if err != nil {
		return domain.PrintJob{}, err
	}
	if !ok {
		return domain.PrintJob{}, ConflictError{ProjectID: p.ID}
	}
	if err := e.record(ctx, tx, "print_started", fmt.Sprintf("print started for %q", p.Title), actor.ID, p.ID); err != nil {
		return domain.PrintJob{}, err
	}
	err = e.notifyUser(ctx, tx, actor.ID, p.CreatorID, p.ID, "print_started", "Printing started",
		fmt.Sprintf("%q is now in print", p.Title), notify.ContextData{"project_id": p.ID, "print_job_id": job.ID})
	if err != nil {
		return domain.PrintJob{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PrintJob{}, err
	}
	return job, nil
}

// PrintUpdateOptions patches a print job; moving it to completed also moves
// the project to ready.
type PrintUpdateOptions struct {
	PrintJobID string
	ActorID    string
	Status     string
	Notes      *string
}

func (e Engine) UpdatePrintJob(ctx context.Context, opts PrintUpdateOptions) (domain.PrintJob, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.PrintJob{}, err
	}
	if !roles.Can(actor.Role, roles.UpdatePrint) {
		return domain.PrintJob{}, PermissionError{Action: roles.UpdatePrint, Role: actor.Role}
	}
	switch opts.Status {
	case "", "queued", "in_progress", "completed":
	default:
		return domain.PrintJob{}, fmt.Errorf("invalid print status %q", opts.Status)
	}
	job, err := e.Repo.GetPrintJob(ctx, opts.PrintJobID)
	if err != nil {
		return domain.PrintJob{}, err
	}
	if job.Status == "completed" {
		return domain.PrintJob{}, PreconditionError{Reason: "print job already completed"}
	}
	p, err := e.Repo.GetProject(ctx, job.ProjectID)
	if err != nil {
		return domain.PrintJob{}, err
	}
	completing := opts.Status == "completed"
	var target domain.Status
	if completing {
		target, err = Transition(p.Status, EventPrintComplete, actor.Role)
		if err != nil {
			return domain.PrintJob{}, err
		}
	}
	now := e.nowStr()
	if opts.Status != "" {
		job.Status = opts.Status
	}
	if opts.Notes != nil {
		job.Notes = *opts.Notes
	}
	if completing {
		job.CompletedAt = &now
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PrintJob{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdatePrintJobTx(ctx, tx, job); err != nil {
		return domain.PrintJob{}, err
	}
	if completing {
		ok, err := e.Repo.MoveProjectStatusTx(ctx, tx, p.ID, p.Status, target, now)
		if err != nil {
			return domain.PrintJob{}, err
		}
		if !ok {
			return domain.PrintJob{}, ConflictError{ProjectID: p.ID}
		}
		if err := e.record(ctx, tx, "print_completed", fmt.Sprintf("print completed for %q", p.Title), actor.ID, p.ID); err != nil {
			return domain.PrintJob{}, err
		}
		err = e.notifyUser(ctx, tx, actor.ID, p.CreatorID, p.ID, "print_completed", "Print finished",
			fmt.Sprintf("%q is printed and ready for pickup", p.Title), notify.ContextData{"project_id": p.ID, "print_job_id": job.ID})
		if err != nil {
			return domain.PrintJob{}, err
		}
	} else {
		if err := e.record(ctx, tx, "print_updated", fmt.Sprintf("print job updated for %q", p.Title), actor.ID, p.ID); err != nil {
			return domain.PrintJob{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.PrintJob{}, err
	}
	return job, nil
}

// PickupConfirmOptions are parameters for recording the physical hand-off.
type PickupConfirmOptions struct {
	ProjectID        string
	ActorID          string
	TakerName        string
	TakerInstitution string
	TakerPhone       string
}

func (e Engine) ConfirmPickup(ctx context.Context, opts PickupConfirmOptions) (domain.PickupLog, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.PickupLog{}, err
	}
	if !roles.Can(actor.Role, roles.ConfirmPickup) {
		return domain.PickupLog{}, PermissionError{Action: roles.ConfirmPickup, Role: actor.Role}
	}
	if opts.TakerName == "" {
		return domain.PickupLog{}, errors.New("taker_name is required")
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.PickupLog{}, err
	}
	if p.Status != domain.StatusReady {
		return domain.PickupLog{}, PreconditionError{Reason: fmt.Sprintf("project is %s, pickup requires ready", p.Status)}
	}
	target, err := Transition(p.Status, EventPickupConfirm, actor.Role)
	if err != nil {
		return domain.PickupLog{}, err
	}
	now := e.nowStr()
	logEntry := domain.PickupLog{
		ID:               uuid.New().String(),
		ProjectID:        p.ID,
		TakerName:        opts.TakerName,
		TakerInstitution: opts.TakerInstitution,
		TakerPhone:       opts.TakerPhone,
		ConfirmerID:      actor.ID,
		PickedUpAt:       now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PickupLog{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertPickupLogTx(ctx, tx, logEntry); err != nil {
		return domain.PickupLog{}, fmt.Errorf("insert pickup log: %w", err)
	}
	ok, err := e.Repo.MoveProjectStatusTx(ctx, tx, p.ID, p.Status, target, now)
	if err != nil {
		return domain.PickupLog{}, err
	}
	if !ok {
		return domain.PickupLog{}, ConflictError{ProjectID: p.ID}
	}
	if err := e.record(ctx, tx, "pickup_confirmed", fmt.Sprintf("%q picked up by %s", p.Title, opts.TakerName), actor.ID, p.ID); err != nil {
		return domain.PickupLog{}, err
	}
	err = e.notifyUser(ctx, tx, actor.ID, p.CreatorID, p.ID, "pickup_confirmed", "Order picked up",
		fmt.Sprintf("%q was handed to %s", p.Title, opts.TakerName), notify.ContextData{"project_id": p.ID})
	if err != nil {
		return domain.PickupLog{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PickupLog{}, err
	}
	return logEntry, nil
}

// CloseProject archives or cancels a project from any non-terminal status.
// Admin only, enforced by the transition table.
func (e Engine) CloseProject(ctx context.Context, actorID, projectID string, cancel bool) (domain.Project, error) {
	actor, err := e.actor(ctx, actorID)
	if err != nil {
		return domain.Project{}, err
	}
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	ev := EventArchive
	actType := "project_archived"
	if cancel {
		ev = EventCancel
		actType = "project_cancelled"
	}
	target, err := Transition(p.Status, ev, actor.Role)
	if err != nil {
		return domain.Project{}, err
	}
	now := e.nowStr()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	ok, err := e.Repo.MoveProjectStatusTx(ctx, tx, p.ID, p.Status, target, now)
	if err != nil {
		return domain.Project{}, err
	}
	if !ok {
		return domain.Project{}, ConflictError{ProjectID: p.ID}
	}
	if err := e.record(ctx, tx, actType, fmt.Sprintf("project %q %s", p.Title, target), actor.ID, p.ID); err != nil {
		return domain.Project{}, err
	}
	err = e.notifyUser(ctx, tx, actor.ID, p.CreatorID, p.ID, actType, "Project closed",
		fmt.Sprintf("%q is now %s", p.Title, target), notify.ContextData{"project_id": p.ID, "status": string(target)})
	if err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	p.Status = target
	p.UpdatedAt = now
	return p, nil
}

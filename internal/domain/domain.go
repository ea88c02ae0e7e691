package domain

// Role is a user's fixed role in the pipeline. Only an admin may change it.
type Role string

const (
	RoleRequester        Role = "requester"
	RoleDesignerInternal Role = "designer_internal"
	RoleDesignerExternal Role = "designer_external"
	RoleReviewer         Role = "reviewer"
	RoleApprover         Role = "approver"
	RoleAdmin            Role = "admin"
)

// Roles lists every known role.
var Roles = []Role{
	RoleRequester,
	RoleDesignerInternal,
	RoleDesignerExternal,
	RoleReviewer,
	RoleApprover,
	RoleAdmin,
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Status is a project's position in the production pipeline.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusDesigning        Status = "designing"
	StatusReadyForReview   Status = "ready_for_review"
	StatusApproved         Status = "approved"
	StatusChangesRequested Status = "changes_requested"
	StatusApprovedForPrint Status = "approved_for_print"
	StatusInPrint          Status = "in_print"
	StatusReady            Status = "ready"
	StatusPickedUp         Status = "picked_up"
	StatusArchived         Status = "archived"
	StatusCancelled        Status = "cancelled"
)

// Statuses lists every project status.
var Statuses = []Status{
	StatusDraft,
	StatusDesigning,
	StatusReadyForReview,
	StatusApproved,
	StatusChangesRequested,
	StatusApprovedForPrint,
	StatusInPrint,
	StatusReady,
	StatusPickedUp,
	StatusArchived,
	StatusCancelled,
}

// Terminal reports whether s is an absorbing status.
func (s Status) Terminal() bool {
	return s == StatusPickedUp || s == StatusArchived || s == StatusCancelled
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Role          Role   `json:"role" enum:"requester,designer_internal,designer_external,reviewer,approver,admin"`
	InstitutionID string `json:"institution_id,omitempty"`
	Active        bool   `json:"active"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type Institution struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	MediaType     string  `json:"media_type"`
	Size          string  `json:"size,omitempty"`
	Quantity      int     `json:"quantity"`
	Deadline      *string `json:"deadline,omitempty" format:"date-time"`
	Status        Status  `json:"status" enum:"draft,designing,ready_for_review,approved,changes_requested,approved_for_print,in_print,ready,picked_up,archived,cancelled"`
	Version       int     `json:"version"`
	CreatorID     string  `json:"creator_id"`
	AssigneeID    *string `json:"assignee_id,omitempty"`
	ReviewerID    *string `json:"reviewer_id,omitempty"`
	ApproverID    *string `json:"approver_id,omitempty"`
	InstitutionID string  `json:"institution_id"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
}

// Proof is one uploaded version of the design artifact. Versions are
// strictly increasing per project with no gaps.
type Proof struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	Version    int    `json:"version"`
	FileRef    string `json:"file_ref"`
	UploaderID string `json:"uploader_id"`
	IsFinal    bool   `json:"is_final"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

// Review is a design-quality judgment on a specific proof. Distinct from
// Approval, which authorizes physical production.
type Review struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	ProofID    string `json:"proof_id"`
	ReviewerID string `json:"reviewer_id"`
	Decision   string `json:"decision" enum:"approved,changes_requested"`
	Comment    string `json:"comment,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Approval struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"project_id"`
	ApproverID string  `json:"approver_id"`
	Status     string  `json:"status" enum:"approved,rejected"`
	Comment    string  `json:"comment,omitempty"`
	ApprovedAt *string `json:"approved_at,omitempty" format:"date-time"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

type PrintJob struct {
	ID              string  `json:"id"`
	ProjectID       string  `json:"project_id"`
	OperatorID      string  `json:"operator_id"`
	Status          string  `json:"status" enum:"queued,in_progress,completed"`
	Notes           string  `json:"notes,omitempty"`
	StartedAt       *string `json:"started_at,omitempty" format:"date-time"`
	CompletedAt     *string `json:"completed_at,omitempty" format:"date-time"`
	EstimatedFinish *string `json:"estimated_finish,omitempty" format:"date-time"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
}

type PickupLog struct {
	ID               string `json:"id"`
	ProjectID        string `json:"project_id"`
	TakerName        string `json:"taker_name"`
	TakerInstitution string `json:"taker_institution,omitempty"`
	TakerPhone       string `json:"taker_phone,omitempty"`
	ConfirmerID      string `json:"confirmer_id"`
	PickedUpAt       string `json:"picked_up_at" format:"date-time"`
}

// Notification is append-only; only the read flag may change, and only by
// its owner.
type Notification struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	ProjectID *string `json:"project_id,omitempty"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Message   string  `json:"message,omitempty"`
	Data      string  `json:"data_json,omitempty"`
	IsRead    bool    `json:"is_read"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

// Activity is an immutable audit entry.
type Activity struct {
	ID          int64   `json:"id"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	UserID      string  `json:"user_id"`
	ProjectID   *string `json:"project_id,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

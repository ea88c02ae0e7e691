package server

import (
	"encoding/json"

	"github.com/madaldho/designflow-app-sub000/internal/domain"
)

// Request payloads

type CreateProjectRequest struct {
	ID            *string `json:"id,omitempty"`
	Title         string  `json:"title"`
	MediaType     string  `json:"media_type"`
	Size          *string `json:"size,omitempty"`
	Quantity      *int    `json:"quantity,omitempty"`
	Deadline      *string `json:"deadline,omitempty" format:"date-time"`
	InstitutionID *string `json:"institution_id,omitempty"`
}

type UpdateProjectRequest struct {
	Title     *string `json:"title,omitempty"`
	MediaType *string `json:"media_type,omitempty"`
	Size      *string `json:"size,omitempty"`
	Quantity  *int    `json:"quantity,omitempty"`
	Deadline  *string `json:"deadline,omitempty" format:"date-time"`
}

type AssignRolesRequest struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
	ReviewerID *string `json:"reviewer_id,omitempty"`
	ApproverID *string `json:"approver_id,omitempty"`
}

type SubmitProofRequest struct {
	FileRef string  `json:"file_ref"`
	IsFinal bool    `json:"is_final,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}

type SubmitReviewRequest struct {
	ProofID  *string `json:"proof_id,omitempty"`
	Decision string  `json:"decision" enum:"approved,changes_requested"`
	Comment  *string `json:"comment,omitempty"`
}

type SubmitApprovalRequest struct {
	Decision string  `json:"decision" enum:"approved,rejected"`
	Comment  *string `json:"comment,omitempty"`
}

type StartPrintRequest struct {
	Notes           *string `json:"notes,omitempty"`
	EstimatedFinish *string `json:"estimated_finish,omitempty" format:"date-time"`
}

type UpdatePrintJobRequest struct {
	Status *string `json:"status,omitempty" enum:"queued,in_progress,completed"`
	Notes  *string `json:"notes,omitempty"`
}

type ConfirmPickupRequest struct {
	TakerName        string  `json:"taker_name"`
	TakerInstitution *string `json:"taker_institution,omitempty"`
	TakerPhone       *string `json:"taker_phone,omitempty"`
}

type CreateUserRequest struct {
	Name          string  `json:"name"`
	Email         string  `json:"email" format:"email"`
	Role          string  `json:"role" enum:"requester,designer_internal,designer_external,reviewer,approver,admin"`
	InstitutionID *string `json:"institution_id,omitempty"`
}

type UpdateUserRequest struct {
	Role   *string `json:"role,omitempty" enum:"requester,designer_internal,designer_external,reviewer,approver,admin"`
	Active *bool   `json:"active,omitempty"`
}

type CreateInstitutionRequest struct {
	ID      *string `json:"id,omitempty"`
	Name    string  `json:"name"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type ProjectResponse struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	MediaType     string  `json:"media_type"`
	Size          string  `json:"size,omitempty"`
	Quantity      int     `json:"quantity"`
	Deadline      *string `json:"deadline,omitempty" format:"date-time"`
	Status        string  `json:"status" enum:"draft,designing,ready_for_review,approved,changes_requested,approved_for_print,in_print,ready,picked_up,archived,cancelled"`
	Version       int     `json:"version"`
	CreatorID     string  `json:"creator_id"`
	AssigneeID    *string `json:"assignee_id,omitempty"`
	ReviewerID    *string `json:"reviewer_id,omitempty"`
	ApproverID    *string `json:"approver_id,omitempty"`
	InstitutionID string  `json:"institution_id"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
}

type ProjectDetailResponse struct {
	ProjectResponse
	Proofs    []domain.Proof    `json:"proofs"`
	Reviews   []domain.Review   `json:"reviews"`
	Approvals []domain.Approval `json:"approvals"`
	PrintJobs []domain.PrintJob `json:"print_jobs"`
	Pickup    *domain.PickupLog `json:"pickup,omitempty"`
}

type NotificationResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	ProjectID *string        `json:"project_id,omitempty"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt string         `json:"created_at" format:"date-time"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type WhoAmIResponse struct {
	ActorID       string `json:"actor_id"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role,omitempty"`
	InstitutionID string `json:"institution_id,omitempty"`
	Source        string `json:"source"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type paginatedProjects struct {
	Items      []ProjectResponse `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type paginatedNotifications struct {
	Items       []NotificationResponse `json:"items"`
	UnreadCount int                    `json:"unread_count"`
	NextCursor  string                 `json:"next_cursor,omitempty"`
}

type paginatedActivities struct {
	Items      []domain.Activity `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// Conversion helpers

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:            p.ID,
		Title:         p.Title,
		MediaType:     p.MediaType,
		Size:          p.Size,
		Quantity:      p.Quantity,
		Deadline:      p.Deadline,
		Status:        string(p.Status),
		Version:       p.Version,
		CreatorID:     p.CreatorID,
		AssigneeID:    p.AssigneeID,
		ReviewerID:    p.ReviewerID,
		ApproverID:    p.ApproverID,
		InstitutionID: p.InstitutionID,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

func notificationResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		ProjectID: n.ProjectID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      decodeJSONMap(n.Data),
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func mapNotifications(items []domain.Notification) []NotificationResponse {
	res := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		res = append(res, notificationResponse(n))
	}
	return res
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

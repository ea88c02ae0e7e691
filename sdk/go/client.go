package designflowsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Designflow HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Project represents the API project model.
type Project struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	MediaType     string  `json:"media_type"`
	Size          string  `json:"size,omitempty"`
	Quantity      int     `json:"quantity"`
	Deadline      *string `json:"deadline,omitempty"`
	Status        string  `json:"status"`
	Version       int     `json:"version"`
	CreatorID     string  `json:"creator_id"`
	AssigneeID    *string `json:"assignee_id,omitempty"`
	ReviewerID    *string `json:"reviewer_id,omitempty"`
	ApproverID    *string `json:"approver_id,omitempty"`
	InstitutionID string  `json:"institution_id"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// Proof represents one uploaded design version.
type Proof struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	Version    int    `json:"version"`
	FileRef    string `json:"file_ref"`
	UploaderID string `json:"uploader_id"`
	IsFinal    bool   `json:"is_final"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// Review represents a design-quality decision.
type Review struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	ProofID    string `json:"proof_id"`
	ReviewerID string `json:"reviewer_id"`
	Decision   string `json:"decision"`
	Comment    string `json:"comment,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// Approval represents the print-readiness sign-off.
type Approval struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"project_id"`
	ApproverID string  `json:"approver_id"`
	Status     string  `json:"status"`
	Comment    string  `json:"comment,omitempty"`
	ApprovedAt *string `json:"approved_at,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// PrintJob represents physical production of a project.
type PrintJob struct {
	ID              string  `json:"id"`
	ProjectID       string  `json:"project_id"`
	OperatorID      string  `json:"operator_id"`
	Status          string  `json:"status"`
	Notes           string  `json:"notes,omitempty"`
	StartedAt       *string `json:"started_at,omitempty"`
	CompletedAt     *string `json:"completed_at,omitempty"`
	EstimatedFinish *string `json:"estimated_finish,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// PickupLog records the physical hand-off.
type PickupLog struct {
	ID               string `json:"id"`
	ProjectID        string `json:"project_id"`
	TakerName        string `json:"taker_name"`
	TakerInstitution string `json:"taker_institution,omitempty"`
	TakerPhone       string `json:"taker_phone,omitempty"`
	ConfirmerID      string `json:"confirmer_id"`
	PickedUpAt       string `json:"picked_up_at"`
}

// Notification is an in-app message for the authenticated user.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	ProjectID *string        `json:"project_id,omitempty"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt string         `json:"created_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedProjects wraps project listings with cursors.
type PaginatedProjects struct {
	Items      []Project `json:"items"`
	NextCursor string    `json:"next_cursor"`
}

// PaginatedNotifications wraps notification listings.
type PaginatedNotifications struct {
	Items       []Notification `json:"items"`
	UnreadCount int            `json:"unread_count"`
	NextCursor  string         `json:"next_cursor"`
}

// CreateProject opens a new project in draft.
func (c *Client) CreateProject(ctx context.Context, title, mediaType string, quantity int) (Project, error) {
	body := map[string]any{
		"title":      title,
		"media_type": mediaType,
	}
	if quantity > 0 {
		body["quantity"] = quantity
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", body, &resp)
	return resp, err
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "projects/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ProjectsPage returns a paginated project listing.
func (c *Client) ProjectsPage(ctx context.Context, status string, limit int, cursor string) (PaginatedProjects, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "projects"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp PaginatedProjects
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AssignRoles sets the designer, reviewer and approver slots.
func (c *Client) AssignRoles(ctx context.Context, projectID string, assignee, reviewer, approver *string) (Project, error) {
	body := map[string]any{}
	if assignee != nil {
		body["assignee_id"] = *assignee
	}
	if reviewer != nil {
		body["reviewer_id"] = *reviewer
	}
	if approver != nil {
		body["approver_id"] = *approver
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, c.projectPath(projectID, "assign"), body, &resp)
	return resp, err
}

// SubmitProof uploads the next proof version.
func (c *Client) SubmitProof(ctx context.Context, projectID, fileRef string, isFinal bool, notes string) (Proof, error) {
	body := map[string]any{
		"file_ref": fileRef,
		"is_final": isFinal,
	}
	if notes != "" {
		body["notes"] = notes
	}
	var resp Proof
	err := c.do(ctx, http.MethodPost, c.projectPath(projectID, "proofs"), body, &resp)
	return resp, err
}

// SubmitReview records a review decision on the latest proof.
func (c *Client) SubmitReview(ctx context.Context, projectID, decision, comment string) (Review, error) {
	body := map[string]any{"decision": decision}
	if comment != "" {
		body["comment"] = comment
	}
	var resp Review
	err := c.do(ctx, http.MethodPost, c.projectPath(projectID, "reviews"), body, &resp)
	return resp, err
}

// SubmitApproval records the print-readiness decision.
func (c *Client) SubmitApproval(ctx context.Context, projectID, decision, comment string) (Approval, error) {
	body := map[string]any{"decision": decision}
	if comment != "" {
		body["comment"] = comment
	}
	var resp Approval
	err := c.do(ctx, http.MethodPost, c.projectPath(projectID, "approvals"), body, &resp)
	return resp, err
}

// StartPrint begins physical production.
func (c *Client) StartPrint(ctx context.Context, projectID, notes string) (PrintJob, error) {
	body := map[string]any{}
	if notes != "" {
		body["notes"] = notes
	}
	var resp PrintJob
	err := c.do(ctx, http.MethodPost, c.projectPath(projectID, "print-jobs"), body, &resp)
	return resp, err
}

// CompletePrint marks a print job completed.
func (c *Client) CompletePrint(ctx context.Context, printJobID string) (PrintJob, error) {
	body := map[string]any{"status": "completed"}
	var resp PrintJob
	err := c.do(ctx, http.MethodPatch, "print-jobs/"+url.PathEscape(printJobID), body, &resp)
	return resp, err
}

// ConfirmPickup records the physical hand-off.
func (c *Client) ConfirmPickup(ctx context.Context, projectID, takerName, takerInstitution, takerPhone string) (PickupLog, error) {
	body := map[string]any{"taker_name": takerName}
	if takerInstitution != "" {
		body["taker_institution"] = takerInstitution
	}
	if takerPhone != "" {
		body["taker_phone"] = takerPhone
	}
	var resp PickupLog
	err := c.do(ctx, http.MethodPost, c.projectPath(projectID, "pickup"), body, &resp)
	return resp, err
}

// Notifications returns the authenticated user's notifications.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool, limit int, cursor string) (PaginatedNotifications, error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unread", "true")
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "notifications"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp PaginatedNotifications
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(projectID, p string) string {
	return fmt.Sprintf("projects/%s/%s", url.PathEscape(projectID), strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

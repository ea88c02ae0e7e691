package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/madaldho/designflow-app-sub000/internal/domain"
)

type NotificationFilters struct {
	UserID          string
	UnreadOnly      bool
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListNotifications(ctx context.Context, f NotificationFilters) ([]domain.Notification, error) {
	clauses := []string{"user_id=?"}
	args := []any{f.UserID}
	if f.UnreadOnly {
		clauses = append(clauses, "is_read=0")
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT id,user_id,project_id,type,title,COALESCE(message,''),COALESCE(data_json,''),is_read,created_at FROM notifications WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var projectID sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &projectID, &n.Type, &n.Title, &n.Message, &n.Data, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		if projectID.Valid {
			n.ProjectID = &projectID.String
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) UnreadNotificationCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM notifications WHERE user_id=? AND is_read=0`, userID).Scan(&count)
	return count, err
}

// MarkNotificationRead flips the read flag. The user filter keeps owners
// from touching each other's notifications.
func (r Repo) MarkNotificationRead(ctx context.Context, id, userID string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE user_id=? AND is_read=0`, userID)
	return err
}

type ActivityFilters struct {
	ProjectID string
	UserID    string
	Type      string
	Limit     int
	Cursor    int64
}

// ListActivities pages newest first by rowid.
func (r Repo) ListActivities(ctx context.Context, f ActivityFilters) ([]domain.Activity, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id,type,description,user_id,project_id,created_at FROM activities WHERE %s ORDER BY id DESC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var projectID sql.NullString
		if err := rows.Scan(&a.ID, &a.Type, &a.Description, &a.UserID, &projectID, &a.CreatedAt); err != nil {
			return nil, err
		}
		if projectID.Valid {
			a.ProjectID = &projectID.String
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// ActivitiesAfter returns entries with IDs greater than the cursor in
// ascending order, for the webhook dispatcher.
func (r Repo) ActivitiesAfter(ctx context.Context, limit int, cursor int64, projectID string) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	query := fmt.Sprintf(`SELECT id,type,description,user_id,project_id,created_at FROM activities WHERE %s ORDER BY id ASC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var pid sql.NullString
		if err := rows.Scan(&a.ID, &a.Type, &a.Description, &a.UserID, &pid, &a.CreatedAt); err != nil {
			return nil, err
		}
		if pid.Valid {
			a.ProjectID = &pid.String
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// LatestActivityID returns the most recent activity ID, zero when none.
func (r Repo) LatestActivityID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM activities`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

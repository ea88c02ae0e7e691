package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/madaldho/designflow-app-sub000/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const projectCols = `id,title,media_type,COALESCE(size,''),quantity,deadline,status,version,creator_id,assignee_id,reviewer_id,approver_id,institution_id,created_at,updated_at`

func scanProject(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var deadline, assignee, reviewer, approver sql.NullString
	err := scan(&p.ID, &p.Title, &p.MediaType, &p.Size, &p.Quantity, &deadline, &p.Status, &p.Version,
		&p.CreatorID, &assignee, &reviewer, &approver, &p.InstitutionID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if deadline.Valid {
		p.Deadline = &deadline.String
	}
	if assignee.Valid {
		p.AssigneeID = &assignee.String
	}
	if reviewer.Valid {
		p.ReviewerID = &reviewer.String
	}
	if approver.Valid {
		p.ApproverID = &approver.String
	}
	return p, nil
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id)
	return scanProject(row.Scan)
}

func (r Repo) InsertProjectTx(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,title,media_type,size,quantity,deadline,status,version,creator_id,assignee_id,reviewer_id,approver_id,institution_id,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Title, p.MediaType, nullable(p.Size), p.Quantity, nullableStringPtr(p.Deadline), p.Status, p.Version,
		p.CreatorID, nullableStringPtr(p.AssigneeID), nullableStringPtr(p.ReviewerID), nullableStringPtr(p.ApproverID),
		p.InstitutionID, p.CreatedAt, p.UpdatedAt)
	return err
}

// MoveProjectStatusTx performs the optimistic status write: the update only
// applies when the row still carries the status the engine read. A false
// return means another writer got there first.
func (r Repo) MoveProjectStatusTx(ctx context.Context, tx *sql.Tx, id string, from, to domain.Status, now string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET status=?, updated_at=? WHERE id=? AND status=?`, to, now, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MoveProjectStatusBumpVersionTx is MoveProjectStatusTx plus a version
// increment, additionally keyed on the version the engine read so two
// concurrent proof uploads cannot both apply.
func (r Repo) MoveProjectStatusBumpVersionTx(ctx context.Context, tx *sql.Tx, id string, from, to domain.Status, fromVersion int, now string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET status=?, version=version+1, updated_at=? WHERE id=? AND status=? AND version=?`,
		to, now, id, from, fromVersion)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateProjectFieldsTx patches editable project attributes. Status and
// version are engine-owned and never touched here.
func (r Repo) UpdateProjectFieldsTx(ctx context.Context, tx *sql.Tx, id string, patch ProjectPatch, now string) error {
	var (
		fields []string
		args   []any
	)
	if patch.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *patch.Title)
	}
	if patch.MediaType != nil {
		fields = append(fields, "media_type=?")
		args = append(args, *patch.MediaType)
	}
	if patch.Size != nil {
		fields = append(fields, "size=?")
		args = append(args, nullable(*patch.Size))
	}
	if patch.Quantity != nil {
		fields = append(fields, "quantity=?")
		args = append(args, *patch.Quantity)
	}
	if patch.Deadline != nil {
		fields = append(fields, "deadline=?")
		args = append(args, nullable(*patch.Deadline))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, now, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE projects SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type ProjectPatch struct {
	Title     *string
	MediaType *string
	Size      *string
	Quantity  *int
	Deadline  *string
}

// AssignProjectRolesTx sets the designer/reviewer/approver slots. Empty
// string clears a slot; nil leaves it untouched.
func (r Repo) AssignProjectRolesTx(ctx context.Context, tx *sql.Tx, id string, assignee, reviewer, approver *string, now string) error {
	var (
		fields []string
		args   []any
	)
	if assignee != nil {
		fields = append(fields, "assignee_id=?")
		args = append(args, nullable(*assignee))
	}
	if reviewer != nil {
		fields = append(fields, "reviewer_id=?")
		args = append(args, nullable(*reviewer))
	}
	if approver != nil {
		fields = append(fields, "approver_id=?")
		args = append(args, nullable(*approver))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, now, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE projects SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProject(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProjectTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type ProjectFilters struct {
	Status          string
	CreatorID       string
	AssigneeID      string
	InstitutionID   string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListProjects(ctx context.Context, f ProjectFilters) ([]domain.Project, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.CreatorID != "" {
		clauses = append(clauses, "creator_id=?")
		args = append(args, f.CreatorID)
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "assignee_id=?")
		args = append(args, f.AssigneeID)
	}
	if f.InstitutionID != "" {
		clauses = append(clauses, "institution_id=?")
		args = append(args, f.InstitutionID)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + projectCols + ` FROM projects ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) CountProjectsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM projects GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

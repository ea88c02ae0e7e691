package repo

import (
	"context"
	"database/sql"

	"github.com/madaldho/designflow-app-sub000/internal/domain"
)

// NextProofVersionTx assigns max(version)+1 for the project, read inside the
// caller's transaction so it pairs atomically with the insert and the
// conditional project update.
func (r Repo) NextProofVersionTx(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	var next int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version),0)+1 FROM proofs WHERE project_id=?`, projectID).Scan(&next)
	return next, err
}

func (r Repo) InsertProofTx(ctx context.Context, tx *sql.Tx, p domain.Proof) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO proofs(id,project_id,version,file_ref,uploader_id,is_final,notes,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.ProjectID, p.Version, p.FileRef, p.UploaderID, p.IsFinal, nullable(p.Notes), p.CreatedAt)
	return err
}

func scanProof(scan func(dest ...any) error) (domain.Proof, error) {
	var p domain.Proof
	err := scan(&p.ID, &p.ProjectID, &p.Version, &p.FileRef, &p.UploaderID, &p.IsFinal, &p.Notes, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

const proofCols = `id,project_id,version,file_ref,uploader_id,is_final,COALESCE(notes,''),created_at`

func (r Repo) GetProof(ctx context.Context, id string) (domain.Proof, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+proofCols+` FROM proofs WHERE id=?`, id)
	return scanProof(row.Scan)
}

func (r Repo) LatestProof(ctx context.Context, projectID string) (domain.Proof, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+proofCols+` FROM proofs WHERE project_id=? ORDER BY version DESC LIMIT 1`, projectID)
	return scanProof(row.Scan)
}

func (r Repo) ListProofs(ctx context.Context, projectID string) ([]domain.Proof, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+proofCols+` FROM proofs WHERE project_id=? ORDER BY version ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Proof
	for rows.Next() {
		p, err := scanProof(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) InsertReviewTx(ctx context.Context, tx *sql.Tx, rev domain.Review) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO reviews(id,project_id,proof_id,reviewer_id,decision,comment,created_at) VALUES (?,?,?,?,?,?,?)`,
		rev.ID, rev.ProjectID, rev.ProofID, rev.ReviewerID, rev.Decision, nullable(rev.Comment), rev.CreatedAt)
	return err
}

func (r Repo) ListReviews(ctx context.Context, projectID string) ([]domain.Review, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,proof_id,reviewer_id,decision,COALESCE(comment,''),created_at FROM reviews WHERE project_id=? ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Review
	for rows.Next() {
		var rev domain.Review
		if err := rows.Scan(&rev.ID, &rev.ProjectID, &rev.ProofID, &rev.ReviewerID, &rev.Decision, &rev.Comment, &rev.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rev)
	}
	return res, rows.Err()
}

func (r Repo) InsertApprovalTx(ctx context.Context, tx *sql.Tx, a domain.Approval) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO approvals(id,project_id,approver_id,status,comment,approved_at,created_at) VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.ProjectID, a.ApproverID, a.Status, nullable(a.Comment), nullableStringPtr(a.ApprovedAt), a.CreatedAt)
	return err
}

func (r Repo) ListApprovals(ctx context.Context, projectID string) ([]domain.Approval, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,approver_id,status,COALESCE(comment,''),approved_at,created_at FROM approvals WHERE project_id=? ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Approval
	for rows.Next() {
		var a domain.Approval
		var approvedAt sql.NullString
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.ApproverID, &a.Status, &a.Comment, &approvedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		if approvedAt.Valid {
			a.ApprovedAt = &approvedAt.String
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

const printJobCols = `id,project_id,operator_id,status,COALESCE(notes,''),started_at,completed_at,estimated_finish,created_at`

func scanPrintJob(scan func(dest ...any) error) (domain.PrintJob, error) {
	var j domain.PrintJob
	var started, completed, estimated sql.NullString
	err := scan(&j.ID, &j.ProjectID, &j.OperatorID, &j.Status, &j.Notes, &started, &completed, &estimated, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return j, ErrNotFound
	}
	if err != nil {
		return j, err
	}
	if started.Valid {
		j.StartedAt = &started.String
	}
	if completed.Valid {
		j.CompletedAt = &completed.String
	}
	if estimated.Valid {
		j.EstimatedFinish = &estimated.String
	}
	return j, nil
}

func (r Repo) InsertPrintJobTx(ctx context.Context, tx *sql.Tx, j domain.PrintJob) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO print_jobs(id,project_id,operator_id,status,notes,started_at,completed_at,estimated_finish,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		j.ID, j.ProjectID, j.OperatorID, j.Status, nullable(j.Notes), nullableStringPtr(j.StartedAt), nullableStringPtr(j.CompletedAt), nullableStringPtr(j.EstimatedFinish), j.CreatedAt)
	return err
}

func (r Repo) GetPrintJob(ctx context.Context, id string) (domain.PrintJob, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+printJobCols+` FROM print_jobs WHERE id=?`, id)
	return scanPrintJob(row.Scan)
}

func (r Repo) GetPrintJobTx(ctx context.Context, tx *sql.Tx, id string) (domain.PrintJob, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+printJobCols+` FROM print_jobs WHERE id=?`, id)
	return scanPrintJob(row.Scan)
}

// ActivePrintJob returns the project's non-completed print job, if any.
func (r Repo) ActivePrintJob(ctx context.Context, projectID string) (domain.PrintJob, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+printJobCols+` FROM print_jobs WHERE project_id=? AND status!='completed' ORDER BY created_at DESC LIMIT 1`, projectID)
	return scanPrintJob(row.Scan)
}

func (r Repo) UpdatePrintJobTx(ctx context.Context, tx *sql.Tx, j domain.PrintJob) error {
	_, err := tx.ExecContext(ctx, `UPDATE print_jobs SET status=?, notes=?, started_at=?, completed_at=?, estimated_finish=? WHERE id=?`,
		j.Status, nullable(j.Notes), nullableStringPtr(j.StartedAt), nullableStringPtr(j.CompletedAt), nullableStringPtr(j.EstimatedFinish), j.ID)
	return err
}

func (r Repo) ListPrintJobs(ctx context.Context, projectID string) ([]domain.PrintJob, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+printJobCols+` FROM print_jobs WHERE project_id=? ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PrintJob
	for rows.Next() {
		j, err := scanPrintJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}

func (r Repo) InsertPickupLogTx(ctx context.Context, tx *sql.Tx, p domain.PickupLog) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO pickup_logs(id,project_id,taker_name,taker_institution,taker_phone,confirmer_id,picked_up_at) VALUES (?,?,?,?,?,?,?)`,
		p.ID, p.ProjectID, p.TakerName, nullable(p.TakerInstitution), nullable(p.TakerPhone), p.ConfirmerID, p.PickedUpAt)
	return err
}

func (r Repo) GetPickupLog(ctx context.Context, projectID string) (domain.PickupLog, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,project_id,taker_name,COALESCE(taker_institution,''),COALESCE(taker_phone,''),confirmer_id,picked_up_at FROM pickup_logs WHERE project_id=?`, projectID)
	var p domain.PickupLog
	err := row.Scan(&p.ID, &p.ProjectID, &p.TakerName, &p.TakerInstitution, &p.TakerPhone, &p.ConfirmerID, &p.PickedUpAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

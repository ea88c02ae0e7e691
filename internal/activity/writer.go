package activity

import (
	"context"
	"database/sql"
	"time"
)

// Writer appends audit entries inside the caller's transaction so the entry
// commits or rolls back with the state change that caused it.
type Writer struct {
	Now func() time.Time
}

func (w Writer) Record(ctx context.Context, tx *sql.Tx, actType, description, userID, projectID string) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO activities(type,description,user_id,project_id,created_at) VALUES (?,?,?,?,?)`,
		actType, description, userID, nullable(projectID), ts)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

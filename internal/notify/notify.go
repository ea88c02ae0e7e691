package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sink writes per-user notifications inside the caller's transaction.
// Delivery beyond the table (webhooks, mail) is someone else's job.
type Sink struct {
	Now func() time.Time
}

// ContextData is attached to a notification as JSON.
type ContextData map[string]any

func (s Sink) Notify(ctx context.Context, tx *sql.Tx, userID, projectID, notifType, title, message string, data ContextData) error {
	if userID == "" {
		return nil
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	ts := s.Now().UTC().Format(time.RFC3339)
	if data == nil {
		data = ContextData{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal notification data: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO notifications(id,user_id,project_id,type,title,message,data_json,is_read,created_at) VALUES (?,?,?,?,?,?,?,0,?)`,
		uuid.New().String(), userID, nullable(projectID), notifType, title, nullable(message), string(payload), ts)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

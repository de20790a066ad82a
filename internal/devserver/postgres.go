package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kubecloud/console-agent/internal/model"
)

const notificationsSchema = `
CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	kind       TEXT NOT NULL,
	severity   TEXT NOT NULL,
	payload    JSONB NOT NULL DEFAULT '{}',
	task_id    TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'unread',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	read_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS notifications_user_created_idx
	ON notifications (user_id, created_at DESC);
`

// PostgresStore is the pgx-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the store and ensures the schema exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, notificationsSchema); err != nil {
		return nil, fmt.Errorf("ensure notifications schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, userID string, n model.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Status == "" {
		n.Status = model.StatusUnread
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, severity, payload, task_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, userID, n.Kind, n.Severity, payload, n.CorrelationID, n.Status, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, userID string, limit, offset int, unreadOnly bool) ([]model.Notification, int, error) {
	filter := ""
	if unreadOnly {
		filter = " AND status = 'unread'"
	}

	var total int
	err := s.pool.QueryRow(ctx,
		"SELECT count(*) FROM notifications WHERE user_id = $1"+filter, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, task_id, kind, severity, payload, status, created_at, read_at
		FROM notifications
		WHERE user_id = $1`+filter+`
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		var payload []byte
		if err := rows.Scan(&n.ID, &n.CorrelationID, &n.Kind, &n.Severity,
			&payload, &n.Status, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &n.Payload); err != nil {
				return nil, 0, fmt.Errorf("unmarshal payload: %w", err)
			}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, total, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, userID, id string, status model.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET status = $1,
		    read_at = CASE WHEN $1 = 'read' THEN now() ELSE NULL END
		WHERE user_id = $2 AND id = $3`,
		status, userID, id,
	)
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'read', read_at = now()
		WHERE user_id = $1 AND status = 'unread'`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM notifications WHERE user_id = $1 AND id = $2", userID, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM notifications WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	return nil
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chat-backend/internal/calls"
)

// PostgresRepo reads the archive written by calls.PostgresRecorder.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListCalls(ctx context.Context, conversationID string, from, to time.Time) ([]calls.Call, error) {
	if conversationID == "" {
		return nil, errors.New("conversation_id required")
	}
	const q = `SELECT call_id, conversation_id, type, initiator_id, room_name, status, started_at, ended_at, duration_seconds
		FROM calls
		WHERE conversation_id = $1 AND started_at >= $2 AND started_at < $3
		ORDER BY started_at DESC`
	rows, err := r.db.QueryContext(ctx, q, conversationID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calls.Call
	for rows.Next() {
		var c calls.Call
		var endedAt sql.NullTime
		if err := rows.Scan(
			&c.ID, &c.ConversationID, &c.Type, &c.InitiatorID, &c.RoomName,
			&c.Status, &c.StartedAt, &endedAt, &c.DurationSeconds,
		); err != nil {
			return nil, err
		}
		if endedAt.Valid {
			t := endedAt.Time
			c.EndedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

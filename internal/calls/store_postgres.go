package calls

import (
	"context"
	"database/sql"

	"chat-backend/pkg/utils"
)

// PostgresRecorder archives terminal call snapshots for history queries.
// The archive is written once per call at the terminal transition; a replay
// after a crash upserts the same rows.
type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Record(ctx context.Context, call Call, participants []Participant) error {
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const callQ = `INSERT INTO calls
			(call_id, conversation_id, type, initiator_id, room_name, status, started_at, ended_at, duration_seconds)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (call_id) DO UPDATE SET
				status = EXCLUDED.status,
				ended_at = EXCLUDED.ended_at,
				duration_seconds = EXCLUDED.duration_seconds`
		if _, err := tx.ExecContext(ctx, callQ,
			call.ID, call.ConversationID, string(call.Type), call.InitiatorID,
			call.RoomName, string(call.Status), call.StartedAt, call.EndedAt, call.DurationSeconds,
		); err != nil {
			return err
		}

		const partQ = `INSERT INTO call_participants
			(call_id, user_id, status, joined_at, left_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (call_id, user_id) DO UPDATE SET
				status = EXCLUDED.status,
				joined_at = EXCLUDED.joined_at,
				left_at = EXCLUDED.left_at`
		for _, p := range participants {
			if _, err := tx.ExecContext(ctx, partQ,
				p.CallID, p.UserID, string(p.Status), p.JoinedAt, p.LeftAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

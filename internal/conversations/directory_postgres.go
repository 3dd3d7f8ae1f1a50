package conversations

import (
	"context"
	"database/sql"
)

// PostgresDirectory reads conversation membership from the chat service's
// conversation_members table. The table is owned by the conversation CRUD
// service; this side only queries it.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) IsMember(ctx context.Context, userID, conversationID string) (bool, error) {
	if userID == "" || conversationID == "" {
		return false, ErrInvalidArgument
	}
	const q = `SELECT EXISTS (
		SELECT 1 FROM conversation_members
		WHERE conversation_id = $1 AND user_id = $2
	)`
	var ok bool
	if err := d.db.QueryRowContext(ctx, q, conversationID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (d *PostgresDirectory) MemberIDs(ctx context.Context, conversationID string) ([]string, error) {
	if conversationID == "" {
		return nil, ErrInvalidArgument
	}
	const q = `SELECT user_id FROM conversation_members
		WHERE conversation_id = $1 ORDER BY user_id`
	rows, err := d.db.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

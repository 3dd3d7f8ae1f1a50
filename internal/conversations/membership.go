package conversations

import (
	"context"
	"errors"
)

// Membership is the engine's read-only view of the conversation collaborator.
// Conversation and member CRUD live outside this service; the engine only
// asks who belongs where.
type Membership interface {
	IsMember(ctx context.Context, userID, conversationID string) (bool, error)
	MemberIDs(ctx context.Context, conversationID string) ([]string, error)
}

var ErrInvalidArgument = errors.New("conversations: invalid argument")

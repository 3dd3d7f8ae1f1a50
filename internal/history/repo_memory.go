package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"chat-backend/internal/calls"
)

// MemoryRepo is a simple in-memory history repository for tests and early
// development. It can double as the call recorder so archived snapshots are
// queryable without Postgres.
type MemoryRepo struct {
	mu sync.Mutex

	Calls []calls.Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

// Record implements the call service's Recorder port.
func (r *MemoryRepo) Record(ctx context.Context, call calls.Call, _ []calls.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.Calls {
		if c.ID == call.ID {
			r.Calls[i] = call
			return nil
		}
	}
	r.Calls = append(r.Calls, call)
	return nil
}

func (r *MemoryRepo) ListCalls(ctx context.Context, conversationID string, from, to time.Time) ([]calls.Call, error) {
	if conversationID == "" {
		return nil, errors.New("conversation_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Call, 0)
	for _, c := range r.Calls {
		if c.ConversationID != conversationID {
			continue
		}
		if c.StartedAt.Before(from) || !c.StartedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

package history

import (
	"context"
	"errors"
	"time"

	"chat-backend/internal/calls"
)

var ErrInvalidRequest = errors.New("history: invalid request")

// Repository abstracts access to archived (terminal) call records.
// Implementations query the immutable archive written by the call recorder,
// never the live session store.
type Repository interface {
	ListCalls(ctx context.Context, conversationID string, from, to time.Time) ([]calls.Call, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// List returns the archived calls of a conversation in the range.
func (s *Service) List(ctx context.Context, conversationID string, r TimeRange) ([]calls.Call, error) {
	if conversationID == "" {
		return nil, ErrInvalidRequest
	}
	if r.From.IsZero() || r.To.IsZero() || !r.To.After(r.From) {
		return nil, ErrInvalidRequest
	}
	if s.repo == nil {
		return nil, errors.New("history: repository not configured")
	}
	return s.repo.ListCalls(ctx, conversationID, r.From, r.To)
}

// CallsSummary aggregates terminal outcomes for one conversation.
func (s *Service) CallsSummary(ctx context.Context, req SummaryRequest) (Summary, error) {
	rows, err := s.List(ctx, req.ConversationID, req.Range)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{ConversationID: req.ConversationID}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		switch c.Status {
		case calls.CallStatusEnded:
			out.EndedCalls++
		case calls.CallStatusMissed:
			out.MissedCalls++
		case calls.CallStatusCancelled:
			out.CancelledCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"chat-backend/internal/calls"
)

func TestHistory_ConversationIsolation(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{ID: "c1", ConversationID: "conv-1", Status: calls.CallStatusEnded, DurationSeconds: 30, StartedAt: now},
		{ID: "c2", ConversationID: "conv-2", Status: calls.CallStatusEnded, DurationSeconds: 50, StartedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.List(context.Background(), "conv-1", TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 1 || out[0].ID != "c1" {
		t.Fatalf("expected only conv-1 calls, got %+v", out)
	}
}

func TestHistory_RangeFiltering(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{ID: "old", ConversationID: "conv-1", Status: calls.CallStatusEnded, StartedAt: now.Add(-48 * time.Hour)},
		{ID: "in", ConversationID: "conv-1", Status: calls.CallStatusEnded, StartedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.List(context.Background(), "conv-1", TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 1 || out[0].ID != "in" {
		t.Fatalf("range filter failed: %+v", out)
	}
}

func TestHistory_SummaryAggregates(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{ID: "c1", ConversationID: "conv-1", Status: calls.CallStatusEnded, DurationSeconds: 60, StartedAt: now},
		{ID: "c2", ConversationID: "conv-1", Status: calls.CallStatusEnded, DurationSeconds: 120, StartedAt: now},
		{ID: "c3", ConversationID: "conv-1", Status: calls.CallStatusMissed, StartedAt: now},
		{ID: "c4", ConversationID: "conv-1", Status: calls.CallStatusCancelled, StartedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), SummaryRequest{
		ConversationID: "conv-1",
		Range:          TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 4 || out.EndedCalls != 2 || out.MissedCalls != 1 || out.CancelledCalls != 1 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	if out.TotalDurationSeconds != 180 || out.AverageDurationSeconds != 45 {
		t.Fatalf("unexpected durations: %+v", out)
	}
}

func TestHistory_InvalidRequest(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Unix(1700000000, 0).UTC()

	if _, err := svc.List(context.Background(), "", TimeRange{From: now, To: now.Add(time.Hour)}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing conversation, got %v", err)
	}
	if _, err := svc.List(context.Background(), "conv-1", TimeRange{From: now, To: now}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for empty range, got %v", err)
	}
}

func TestHistory_RecorderUpsertsByCallID(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()

	c := calls.Call{ID: "c1", ConversationID: "conv-1", Status: calls.CallStatusOngoing, StartedAt: now}
	if err := repo.Record(context.Background(), c, nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	c.Status = calls.CallStatusEnded
	c.DurationSeconds = 42
	if err := repo.Record(context.Background(), c, nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if len(repo.Calls) != 1 {
		t.Fatalf("expected upsert, got %d rows", len(repo.Calls))
	}
	if repo.Calls[0].Status != calls.CallStatusEnded || repo.Calls[0].DurationSeconds != 42 {
		t.Fatalf("second record must replace the first: %+v", repo.Calls[0])
	}
}

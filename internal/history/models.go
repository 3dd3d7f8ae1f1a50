package history

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SummaryRequest requests aggregated call metrics for one conversation.
type SummaryRequest struct {
	ConversationID string    `json:"conversation_id"`
	Range          TimeRange `json:"range"`
}

type Summary struct {
	ConversationID string `json:"conversation_id"`

	TotalCalls     int `json:"total_calls"`
	EndedCalls     int `json:"ended_calls"`
	MissedCalls    int `json:"missed_calls"`
	CancelledCalls int `json:"cancelled_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}

package calls

import "time"

// CallType distinguishes audio-only from video calls.
type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

func (t CallType) Valid() bool {
	return t == CallTypeAudio || t == CallTypeVideo
}

// CallStatus is the lifecycle state of a call session. ongoing is the sole
// non-terminal state; exactly one terminal transition is ever recorded.
type CallStatus string

const (
	CallStatusOngoing   CallStatus = "ongoing"
	CallStatusEnded     CallStatus = "ended"
	CallStatusMissed    CallStatus = "missed"
	CallStatusCancelled CallStatus = "cancelled"
)

func (s CallStatus) Terminal() bool {
	return s == CallStatusEnded || s == CallStatusMissed || s == CallStatusCancelled
}

// Call is one attempt at a voice/video call among conversation members.
// Once Status is terminal the record is immutable.
type Call struct {
	ID             string     `json:"call_id" db:"call_id"`
	ConversationID string     `json:"conversation_id" db:"conversation_id"`
	Type           CallType   `json:"type" db:"type"`
	InitiatorID    string     `json:"initiator_id" db:"initiator_id"`
	RoomName       string     `json:"room_name" db:"room_name"`

	Status CallStatus `json:"status" db:"status"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// DurationSeconds is 0 until the terminal transition computes it.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`
}

// ParticipantStatus tracks one (call, user) pair.
// ringing → {accepted, declined, missed} happens exactly once;
// accepted → left is the only post-acceptance transition.
type ParticipantStatus string

const (
	ParticipantRinging  ParticipantStatus = "ringing"
	ParticipantAccepted ParticipantStatus = "accepted"
	ParticipantDeclined ParticipantStatus = "declined"
	ParticipantMissed   ParticipantStatus = "missed"
	ParticipantLeft     ParticipantStatus = "left"
)

type Participant struct {
	CallID string            `json:"call_id" db:"call_id"`
	UserID string            `json:"user_id" db:"user_id"`
	Status ParticipantStatus `json:"status" db:"status"`

	JoinedAt *time.Time `json:"joined_at,omitempty" db:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty" db:"left_at"`
}

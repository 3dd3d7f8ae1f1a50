package calls

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-backend/internal/conversations"

	"github.com/google/uuid"
)

// RoomTokenIssuer mints a join credential for the external media room,
// keyed by (identity, room).
type RoomTokenIssuer interface {
	JoinToken(identity, roomName string) (string, error)
}

// Guard caps concurrent calls per conversation. Implementations must be safe
// across processes; release is best-effort (acquisitions carry a TTL).
type Guard interface {
	Acquire(ctx context.Context, conversationID string) (bool, error)
	Release(ctx context.Context, conversationID string) error
}

// Recorder archives terminal call snapshots. Archival failures must not roll
// back the in-memory terminal transition.
type Recorder interface {
	Record(ctx context.Context, call Call, participants []Participant) error
}

// Event payloads handed to the fan-out notifier.

type IncomingCallEvent struct {
	CallID         string   `json:"callId"`
	ConversationID string   `json:"conversationId"`
	Type           CallType `json:"type"`
	FromUser       string   `json:"fromUser"`
	RoomName       string   `json:"roomName"`
}

type CallActionEvent struct {
	CallID string `json:"callId"`
	UserID string `json:"userId"`
}

type CallEndedEvent struct {
	CallID          string     `json:"callId"`
	Status          CallStatus `json:"status"`
	DurationSeconds int        `json:"durationSeconds"`
}

type MissedCallEvent struct {
	CallID         string `json:"callId"`
	ConversationID string `json:"conversationId"`
	FromUser       string `json:"from"`
}

// Notifier delivers call events to subscribed connections. Delivery is
// best-effort and must never block the call state machine.
type Notifier interface {
	IncomingCall(userIDs []string, ev IncomingCallEvent)
	CallJoined(ev CallActionEvent)
	CallRejected(ev CallActionEvent)
	CallEnded(ev CallEndedEvent)
	CallCancelled(ev CallEndedEvent)
	MissedCall(userIDs []string, ev MissedCallEvent)
}

// NopNotifier drops all events; useful in tests.
type NopNotifier struct{}

func (NopNotifier) IncomingCall([]string, IncomingCallEvent) {}
func (NopNotifier) CallJoined(CallActionEvent)               {}
func (NopNotifier) CallRejected(CallActionEvent)             {}
func (NopNotifier) CallEnded(CallEndedEvent)                 {}
func (NopNotifier) CallCancelled(CallEndedEvent)             {}
func (NopNotifier) MissedCall([]string, MissedCallEvent)     {}

// EndReason distinguishes a cancel from a normal hang-up.
type EndReason string

const (
	EndReasonNormal    EndReason = "normal"
	EndReasonCancelled EndReason = "cancelled"
)

// Service is the authoritative state machine for call sessions and their
// participants.
//
// Concurrency: every mutation of one call happens under that session's
// mutex, so concurrent end/cancel calls resolve to exactly one terminal
// write and the losers observe the winner's snapshot. External lookups
// (membership, token issuance) never happen inside the critical section.
type Service struct {
	store   *SessionStore
	members conversations.Membership
	tokens  RoomTokenIssuer

	notifier Notifier
	guard    Guard
	recorder Recorder

	// Presence hooks, injected to avoid a hard dependency on the tracker.
	onCallStarted func(userID string)
	onCallEnded   func(userID string)

	clock func() time.Time
	log   *slog.Logger
}

func NewService(store *SessionStore, members conversations.Membership, tokens RoomTokenIssuer) *Service {
	return &Service{
		store:         store,
		members:       members,
		tokens:        tokens,
		notifier:      NopNotifier{},
		onCallStarted: func(string) {},
		onCallEnded:   func(string) {},
		clock:         time.Now,
		log:           slog.Default(),
	}
}

func (s *Service) WithNotifier(n Notifier) *Service {
	if n != nil {
		s.notifier = n
	}
	return s
}

func (s *Service) WithGuard(g Guard) *Service {
	s.guard = g
	return s
}

func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

func (s *Service) WithPresenceHooks(started, ended func(userID string)) *Service {
	if started != nil {
		s.onCallStarted = started
	}
	if ended != nil {
		s.onCallEnded = ended
	}
	return s
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

func (s *Service) WithLogger(log *slog.Logger) *Service {
	s.log = log
	return s
}

type StartResult struct {
	Call         Call          `json:"call"`
	Participants []Participant `json:"participants"`
	RoomName     string        `json:"roomName"`
	Token        string        `json:"token"`
}

type JoinResult struct {
	Call     Call   `json:"call"`
	RoomName string `json:"roomName"`
	Token    string `json:"token"`
}

type EndResult struct {
	Call            Call          `json:"call"`
	Participants    []Participant `json:"participants"`
	Status          CallStatus    `json:"status"`
	DurationSeconds int           `json:"durationSeconds"`
	MissedUserIDs   []string      `json:"missedUserIds"`
}

// Start creates a call in the conversation with one participant per member:
// the initiator pre-accepted, everyone else ringing.
func (s *Service) Start(ctx context.Context, initiatorID, conversationID string, callType CallType) (StartResult, error) {
	if initiatorID == "" || conversationID == "" || !callType.Valid() {
		return StartResult{}, ErrInvalidArgument
	}

	ok, err := s.members.IsMember(ctx, initiatorID, conversationID)
	if err != nil {
		return StartResult{}, fmt.Errorf("membership check: %w", err)
	}
	if !ok {
		return StartResult{}, ErrForbidden
	}

	if s.guard != nil {
		acquired, err := s.guard.Acquire(ctx, conversationID)
		if err != nil {
			return StartResult{}, fmt.Errorf("call guard: %w", err)
		}
		if !acquired {
			return StartResult{}, ErrCallInProgress
		}
	}

	memberIDs, err := s.members.MemberIDs(ctx, conversationID)
	if err != nil {
		s.releaseGuard(conversationID)
		return StartResult{}, fmt.Errorf("member list: %w", err)
	}

	now := s.clock().UTC()
	call := Call{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Type:           callType,
		InitiatorID:    initiatorID,
		RoomName:       fmt.Sprintf("conv-%s-%d", conversationID, now.UnixMilli()),
		Status:         CallStatusOngoing,
		StartedAt:      now,
	}

	sess := &session{call: call, participants: make(map[string]*Participant)}
	ringing := make([]string, 0, len(memberIDs))
	seenInitiator := false
	for _, uid := range memberIDs {
		p := &Participant{CallID: call.ID, UserID: uid, Status: ParticipantRinging}
		if uid == initiatorID {
			joined := now
			p.Status = ParticipantAccepted
			p.JoinedAt = &joined
			seenInitiator = true
		} else {
			ringing = append(ringing, uid)
		}
		sess.participants[uid] = p
		sess.order = append(sess.order, uid)
	}
	if !seenInitiator {
		// Membership said yes but the member list raced a removal; keep the
		// initiator as a participant regardless.
		joined := now
		p := &Participant{CallID: call.ID, UserID: initiatorID, Status: ParticipantAccepted, JoinedAt: &joined}
		sess.participants[initiatorID] = p
		sess.order = append(sess.order, initiatorID)
	}

	token, err := s.tokens.JoinToken(initiatorID, call.RoomName)
	if err != nil {
		s.releaseGuard(conversationID)
		return StartResult{}, fmt.Errorf("join token: %w", err)
	}

	s.store.put(sess)

	s.onCallStarted(initiatorID)
	s.notifier.IncomingCall(ringing, IncomingCallEvent{
		CallID:         call.ID,
		ConversationID: conversationID,
		Type:           callType,
		FromUser:       initiatorID,
		RoomName:       call.RoomName,
	})

	sess.mu.Lock()
	snapCall, snapParts := sess.snapshotLocked()
	sess.mu.Unlock()

	return StartResult{Call: snapCall, Participants: snapParts, RoomName: call.RoomName, Token: token}, nil
}

// Join accepts an ongoing call for a conversation member and mints their
// media token. Joining an already-accepted participant is idempotent.
func (s *Service) Join(ctx context.Context, userID, callID string) (JoinResult, error) {
	if userID == "" || callID == "" {
		return JoinResult{}, ErrInvalidArgument
	}
	sess := s.store.get(callID)
	if sess == nil {
		return JoinResult{}, ErrNotFound
	}

	sess.mu.Lock()
	conversationID := sess.call.ConversationID
	sess.mu.Unlock()

	ok, err := s.members.IsMember(ctx, userID, conversationID)
	if err != nil {
		return JoinResult{}, fmt.Errorf("membership check: %w", err)
	}
	if !ok {
		return JoinResult{}, ErrForbidden
	}

	now := s.clock().UTC()

	sess.mu.Lock()
	if sess.call.Status != CallStatusOngoing {
		sess.mu.Unlock()
		return JoinResult{}, ErrInvalidState
	}
	p := sess.participants[userID]
	switch {
	case p == nil:
		// Member added to the conversation after the call started.
		joined := now
		p = &Participant{CallID: callID, UserID: userID, Status: ParticipantAccepted, JoinedAt: &joined}
		sess.participants[userID] = p
		sess.order = append(sess.order, userID)
	case p.Status == ParticipantAccepted:
		// Idempotent re-join (page reload, duplicate delivery).
	case p.Status == ParticipantRinging:
		joined := now
		p.Status = ParticipantAccepted
		p.JoinedAt = &joined
	default:
		sess.mu.Unlock()
		return JoinResult{}, ErrInvalidState
	}
	snapCall, _ := sess.snapshotLocked()
	sess.mu.Unlock()

	token, err := s.tokens.JoinToken(userID, snapCall.RoomName)
	if err != nil {
		return JoinResult{}, fmt.Errorf("join token: %w", err)
	}

	s.onCallStarted(userID)
	s.notifier.CallJoined(CallActionEvent{CallID: callID, UserID: userID})

	return JoinResult{Call: snapCall, RoomName: snapCall.RoomName, Token: token}, nil
}

// Reject declines a ringing call for one participant. Valid only while the
// call is ongoing; rejecting twice is a no-op.
func (s *Service) Reject(ctx context.Context, userID, callID string) error {
	if userID == "" || callID == "" {
		return ErrInvalidArgument
	}
	sess := s.store.get(callID)
	if sess == nil {
		return ErrNotFound
	}

	sess.mu.Lock()
	conversationID := sess.call.ConversationID
	sess.mu.Unlock()

	ok, err := s.members.IsMember(ctx, userID, conversationID)
	if err != nil {
		return fmt.Errorf("membership check: %w", err)
	}
	if !ok {
		return ErrForbidden
	}

	now := s.clock().UTC()

	sess.mu.Lock()
	if sess.call.Status != CallStatusOngoing {
		sess.mu.Unlock()
		return ErrInvalidState
	}
	p := sess.participants[userID]
	if p == nil {
		sess.mu.Unlock()
		return ErrNotFound
	}
	switch p.Status {
	case ParticipantRinging:
		left := now
		p.Status = ParticipantDeclined
		p.LeftAt = &left
	case ParticipantDeclined:
		// Idempotent.
	default:
		sess.mu.Unlock()
		return ErrInvalidState
	}
	sess.mu.Unlock()

	s.notifier.CallRejected(CallActionEvent{CallID: callID, UserID: userID})
	return nil
}

// End is the terminal-state resolver. The first caller to observe an ongoing
// call wins the terminal write; every later caller (end or cancel, duplicate
// or concurrent) gets the winner's snapshot back unchanged.
func (s *Service) End(ctx context.Context, userID, callID string, reason EndReason) (EndResult, error) {
	if userID == "" || callID == "" {
		return EndResult{}, ErrInvalidArgument
	}
	sess := s.store.get(callID)
	if sess == nil {
		return EndResult{}, ErrNotFound
	}

	sess.mu.Lock()
	conversationID := sess.call.ConversationID
	sess.mu.Unlock()

	ok, err := s.members.IsMember(ctx, userID, conversationID)
	if err != nil {
		return EndResult{}, fmt.Errorf("membership check: %w", err)
	}
	if !ok {
		return EndResult{}, ErrForbidden
	}

	now := s.clock().UTC()

	sess.mu.Lock()
	if sess.call.Status.Terminal() {
		res := terminalResultLocked(sess)
		sess.mu.Unlock()
		return res, nil
	}

	// Terminal transition: single indivisible pass under the session lock.
	duration := int(now.Sub(sess.call.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}

	acceptedOther := false
	for _, p := range sess.participants {
		if p.UserID != sess.call.InitiatorID && (p.JoinedAt != nil || p.Status == ParticipantAccepted || p.Status == ParticipantLeft) {
			acceptedOther = true
			break
		}
	}

	final := CallStatusMissed
	switch {
	case reason == EndReasonCancelled:
		final = CallStatusCancelled
	case acceptedOther:
		final = CallStatusEnded
	}

	var missed []string
	var wasOnCall []string
	for _, uid := range sess.order {
		p := sess.participants[uid]
		switch {
		case p.Status == ParticipantRinging && p.JoinedAt == nil:
			p.Status = ParticipantMissed
			missed = append(missed, p.UserID)
		case p.Status == ParticipantAccepted:
			// Covers the caller of End and any participant still on the call.
			left := now
			p.Status = ParticipantLeft
			p.LeftAt = &left
			wasOnCall = append(wasOnCall, p.UserID)
		}
	}

	ended := now
	sess.call.Status = final
	sess.call.EndedAt = &ended
	sess.call.DurationSeconds = duration

	call, parts := sess.snapshotLocked()
	sess.mu.Unlock()

	res := EndResult{
		Call:            call,
		Participants:    parts,
		Status:          final,
		DurationSeconds: duration,
		MissedUserIDs:   missed,
	}

	// Side effects happen once, on the winning path, outside the lock.
	s.releaseGuard(conversationID)
	for _, uid := range wasOnCall {
		s.onCallEnded(uid)
	}

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, call, parts); err != nil {
			s.log.Error("call archive failed", "call_id", callID, "err", err)
		}
	}

	ev := CallEndedEvent{CallID: callID, Status: final, DurationSeconds: duration}
	if final == CallStatusCancelled {
		s.notifier.CallCancelled(ev)
	} else {
		s.notifier.CallEnded(ev)
	}
	if len(missed) > 0 {
		s.notifier.MissedCall(missed, MissedCallEvent{
			CallID:         callID,
			ConversationID: conversationID,
			FromUser:       call.InitiatorID,
		})
	}

	return res, nil
}

// Cancel is the initiator aborting an unanswered call. It fails with
// ErrInvalidState once the call is terminal and delegates the transition to
// End with the cancelled reason otherwise.
func (s *Service) Cancel(ctx context.Context, userID, callID string) (EndResult, error) {
	if userID == "" || callID == "" {
		return EndResult{}, ErrInvalidArgument
	}
	sess := s.store.get(callID)
	if sess == nil {
		return EndResult{}, ErrNotFound
	}

	sess.mu.Lock()
	initiator := sess.call.InitiatorID
	terminal := sess.call.Status.Terminal()
	sess.mu.Unlock()

	if initiator != userID {
		return EndResult{}, ErrForbidden
	}
	if terminal {
		return EndResult{}, ErrInvalidState
	}
	return s.End(ctx, userID, callID, EndReasonCancelled)
}

// Snapshot exposes a read-only copy of one call for handlers.
func (s *Service) Snapshot(callID string) (Call, []Participant, error) {
	call, parts, ok := s.store.Snapshot(callID)
	if !ok {
		return Call{}, nil, ErrNotFound
	}
	return call, parts, nil
}

// IsParticipant reports whether userID has a participant row on the call.
func (s *Service) IsParticipant(callID, userID string) bool {
	sess := s.store.get(callID)
	if sess == nil {
		return false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.participants[userID] != nil
}

func (s *Service) releaseGuard(conversationID string) {
	if s.guard == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.guard.Release(ctx, conversationID); err != nil {
		s.log.Error("call guard release failed", "conversation_id", conversationID, "err", err)
	}
}

// terminalResultLocked rebuilds the winner's outcome for late callers.
// Callers must hold sess.mu.
func terminalResultLocked(sess *session) EndResult {
	call, parts := sess.snapshotLocked()
	var missed []string
	for _, p := range parts {
		if p.Status == ParticipantMissed {
			missed = append(missed, p.UserID)
		}
	}
	return EndResult{
		Call:            call,
		Participants:    parts,
		Status:          call.Status,
		DurationSeconds: call.DurationSeconds,
		MissedUserIDs:   missed,
	}
}

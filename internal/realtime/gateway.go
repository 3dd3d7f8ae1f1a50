package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"chat-backend/internal/auth"
	"chat-backend/internal/calls"
	"chat-backend/internal/config"
	"chat-backend/internal/conversations"
	"chat-backend/internal/presence"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const lookupTimeout = 3 * time.Second

// Gateway owns the websocket endpoint: it authenticates the handshake,
// registers the connection, and dispatches inbound events to the presence
// tracker, subscription registry, and call signaling rooms.
type Gateway struct {
	auth    *auth.Manager
	hub     *Hub
	tracker *presence.Tracker
	groups  *presence.GroupIndex
	members conversations.Membership
	calls   *calls.Service
	limiter *EventLimiter

	upgrader websocket.Upgrader
	sendBuf  int
	log      *slog.Logger
}

func NewGateway(
	authManager *auth.Manager,
	hub *Hub,
	tracker *presence.Tracker,
	groups *presence.GroupIndex,
	members conversations.Membership,
	callSvc *calls.Service,
	cfg config.WSConfig,
	log *slog.Logger,
) *Gateway {
	return &Gateway{
		auth:    authManager,
		hub:     hub,
		tracker: tracker,
		groups:  groups,
		members: members,
		calls:   callSvc,
		limiter: NewEventLimiter(cfg.EventBudget, cfg.EventWindow, 10*time.Minute),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin enforcement belongs to the edge proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sendBuf: cfg.SendBuffer,
		log:     log,
	}
}

// Handle upgrades GET /ws. The access token travels in the `token` query
// parameter because browsers cannot set headers on websocket handshakes.
func (g *Gateway) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := g.auth.Verify(token, auth.TokenTypeAccess, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		g.log.Debug("ws upgrade failed", "err", err)
		return
	}

	conn := NewConn(claims.UserID, ws, g.sendBuf)
	conn.Start()
	g.hub.Register(conn)
	g.tracker.Connect(claims.UserID, conn.ID)

	log := g.log.With("user_id", claims.UserID, "conn_id", conn.ID)
	log.Info("ws connected")

	defer func() {
		g.hub.Unregister(conn.ID)
		g.tracker.Disconnect(claims.UserID, conn.ID)
		g.limiter.Forget(conn.ID)
		conn.Close(websocket.CloseNormalClosure, "bye")
		log.Info("ws disconnected")
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if !g.limiter.Allow(conn.ID, time.Now()) {
			// Drop the event, tell the client explicitly, keep the conn.
			_ = conn.SendEvent(EventError, errorPayload{Code: "rate_limited", Message: "event budget exceeded"})
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			_ = conn.SendEvent(EventError, errorPayload{Code: "invalid_payload", Message: "malformed envelope"})
			continue
		}
		g.dispatch(conn, env, log)
	}
}

func (g *Gateway) dispatch(conn *Conn, env Envelope, log *slog.Logger) {
	switch env.Event {
	case EventUserActive:
		g.tracker.Activity(conn.UserID)

	case EventSetManualStatus:
		var p setManualStatusPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || !presence.ValidManualStatus(presence.Status(p.Status)) {
			_ = conn.SendEvent(EventError, errorPayload{Code: "invalid_payload", Message: "unknown status"})
			return
		}
		g.tracker.SetManual(conn.UserID, presence.Status(p.Status))

	case EventClearManualStatus:
		g.tracker.ClearManual(conn.UserID)

	case EventSubscribePresence:
		var p subscribePresencePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.UserID == "" {
			_ = conn.SendEvent(EventError, errorPayload{Code: "invalid_payload", Message: "userId required"})
			return
		}
		g.subscribeDirect(conn, p.UserID)

	case EventSubscribePresenceBulk:
		var p subscribePresenceBulkPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			_ = conn.SendEvent(EventError, errorPayload{Code: "invalid_payload", Message: "userIds required"})
			return
		}
		for _, uid := range p.UserIDs {
			if uid != "" {
				g.subscribeDirect(conn, uid)
			}
		}

	case EventSubscribeGroupPresence:
		var p groupPresencePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationID == "" {
			_ = conn.SendEvent(EventError, errorPayload{Code: "invalid_payload", Message: "conversationId required"})
			return
		}
		g.subscribeGroup(conn, p.ConversationID, log)

	case EventUnsubscribeGroupPresence:
		var p groupPresencePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationID == "" {
			return
		}
		g.hub.Leave(conn.ID, presence.GroupTopic(p.ConversationID))

	case EventJoinCallRoom:
		var p callRoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.CallID == "" {
			_ = conn.SendEvent(EventError, errorPayload{Code: "invalid_payload", Message: "callId required"})
			return
		}
		if !g.calls.IsParticipant(p.CallID, conn.UserID) {
			_ = conn.SendEvent(EventError, errorPayload{Code: "forbidden", Message: "not a call participant"})
			return
		}
		g.hub.Join(conn.ID, CallTopic(p.CallID))

	case EventLeaveCallRoom:
		var p callRoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.CallID == "" {
			return
		}
		g.hub.Leave(conn.ID, CallTopic(p.CallID))

	default:
		_ = conn.SendEvent(EventError, errorPayload{Code: "unknown_event", Message: env.Event})
	}
}

// subscribeDirect joins a target user's presence topic and pushes the
// current snapshot so the subscriber renders immediately.
func (g *Gateway) subscribeDirect(conn *Conn, targetUserID string) {
	g.hub.Join(conn.ID, presence.UserTopic(targetUserID))
	_ = conn.SendEvent(presence.EventPresenceUpdate, g.tracker.Get(targetUserID).ToUpdate())
}

// subscribeGroup verifies membership, rebuilds the group index from the
// conversation collaborator, joins the topic, and pushes a snapshot per
// member. Membership is checked before any subscription state changes.
func (g *Gateway) subscribeGroup(conn *Conn, conversationID string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	ok, err := g.members.IsMember(ctx, conn.UserID, conversationID)
	if err != nil {
		log.Error("membership lookup failed", "conversation_id", conversationID, "err", err)
		_ = conn.SendEvent(EventError, errorPayload{Code: "internal", Message: "membership lookup failed"})
		return
	}
	if !ok {
		_ = conn.SendEvent(EventError, errorPayload{Code: "forbidden", Message: "not a conversation member"})
		return
	}

	memberIDs, err := g.members.MemberIDs(ctx, conversationID)
	if err != nil {
		log.Error("member list failed", "conversation_id", conversationID, "err", err)
		_ = conn.SendEvent(EventError, errorPayload{Code: "internal", Message: "member list failed"})
		return
	}

	g.hub.Join(conn.ID, presence.GroupTopic(conversationID))
	for _, uid := range memberIDs {
		g.groups.Add(conversationID, uid)
		_ = conn.SendEvent(presence.EventPresenceUpdate, g.tracker.Get(uid).ToUpdate())
	}
}

// PruneMembership removes a user's group-presence footprint after the
// conversation collaborator reports a membership removal. Without this a
// removed member would keep receiving the group's presence updates.
func (g *Gateway) PruneMembership(conversationID, userID string) {
	g.groups.Remove(conversationID, userID)
	g.hub.LeaveUser(userID, presence.GroupTopic(conversationID))
}

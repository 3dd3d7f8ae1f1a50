package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"chat-backend/internal/presence"
)

// UserTopic is every connection's personal inbox, joined at registration.
func UserTopic(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

// CallTopic is the per-call signaling room.
func CallTopic(callID string) string {
	return fmt.Sprintf("call:%s", callID)
}

// Hub is the fan-out core: it maps live connections to the topics they are
// subscribed to and delivers each published event exactly once per
// subscribed connection. Delivery is best-effort and non-blocking; a slow
// recipient is dropped by its own Conn, never waited on.
type Hub struct {
	mu sync.RWMutex

	conns      map[string]*Conn               // connID to conn
	byTopic    map[string]map[string]*Conn    // topic to conn set
	connTopics map[string]map[string]struct{} // connID to topic set

	log *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		conns:      make(map[string]*Conn),
		byTopic:    make(map[string]map[string]*Conn),
		connTopics: make(map[string]map[string]struct{}),
		log:        log,
	}
}

// Register adds a connection and auto-joins its personal topics, mirroring
// the per-user room every client implicitly lives in.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.joinLocked(c, UserTopic(c.UserID))
	h.joinLocked(c, presence.UserTopic(c.UserID))
	h.mu.Unlock()
}

// Unregister removes a connection from every topic.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic := range h.connTopics[connID] {
		h.leaveLocked(connID, topic)
	}
	delete(h.connTopics, connID)
	delete(h.conns, connID)
}

// Join subscribes a registered connection to a topic.
func (h *Hub) Join(connID, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.conns[connID]
	if c == nil {
		return
	}
	h.joinLocked(c, topic)
}

// Leave unsubscribes a connection from a topic.
func (h *Hub) Leave(connID, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, topic)
	if set, ok := h.connTopics[connID]; ok {
		delete(set, topic)
	}
}

// LeaveUser removes every connection of a user from a topic. Used to prune
// subscriptions when the user loses conversation membership.
func (h *Hub) LeaveUser(userID, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID, c := range h.byTopic[topic] {
		if c.UserID != userID {
			continue
		}
		h.leaveLocked(connID, topic)
		if set, ok := h.connTopics[connID]; ok {
			delete(set, topic)
		}
	}
}

func (h *Hub) joinLocked(c *Conn, topic string) {
	if h.byTopic[topic] == nil {
		h.byTopic[topic] = make(map[string]*Conn)
	}
	h.byTopic[topic][c.ID] = c
	if h.connTopics[c.ID] == nil {
		h.connTopics[c.ID] = make(map[string]struct{})
	}
	h.connTopics[c.ID][topic] = struct{}{}
}

func (h *Hub) leaveLocked(connID, topic string) {
	if set, ok := h.byTopic[topic]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(h.byTopic, topic)
		}
	}
}

// Publish delivers one event to every connection subscribed to the topic.
// The payload is serialized once; sends never block the caller.
func (h *Hub) Publish(topic, event string, data any) {
	raw, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		h.log.Error("event marshal failed", "event", event, "err", err)
		return
	}

	h.mu.RLock()
	subs := h.byTopic[topic]
	targets := make([]*Conn, 0, len(subs))
	for _, c := range subs {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(raw); err != nil {
			// Best-effort: log and move on, the state change stands.
			h.log.Debug("fan-out drop", "event", event, "conn_id", c.ID, "err", err)
		}
	}
}

// PublishUsers delivers one event to the personal topic of each user.
func (h *Hub) PublishUsers(userIDs []string, event string, data any) {
	for _, uid := range userIDs {
		h.Publish(UserTopic(uid), event, data)
	}
}

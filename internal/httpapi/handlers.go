package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"chat-backend/internal/auth"
	"chat-backend/internal/calls"
	"chat-backend/internal/conversations"
	"chat-backend/internal/history"
	"chat-backend/internal/realtime"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth    *auth.Manager
	Calls   *calls.Service
	History *history.Service
	Members conversations.Membership
	Gateway *realtime.Gateway
}

// abortCallErr maps call-service sentinels to HTTP statuses.
func abortCallErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, calls.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not allowed"})
	case errors.Is(err, calls.ErrInvalidState):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call not active"})
	case errors.Is(err, calls.ErrCallInProgress):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "conversation already has an ongoing call"})
	case errors.Is(err, calls.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid argument"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func identity(c *gin.Context) (string, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil || uid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return "", false
	}
	return uid, true
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Login issues a JWT token pair.
//
// NOTE: credential validation lives in the external identity service; this
// endpoint only mints tokens for an already-verified identity.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Name)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

type startCallRequest struct {
	ConversationID string `json:"conversation_id"`
	Type           string `json:"type"`
}

func (h Handlers) StartCall(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Calls.Start(c.Request.Context(), uid, req.ConversationID, calls.CallType(req.Type))
	if err != nil {
		abortCallErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"call_id":   res.Call.ID,
		"room_name": res.RoomName,
		"token":     res.Token,
		"call":      res.Call,
	})
}

func (h Handlers) JoinCall(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	res, err := h.Calls.Join(c.Request.Context(), uid, c.Param("call_id"))
	if err != nil {
		abortCallErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room_name": res.RoomName,
		"token":     res.Token,
		"call":      res.Call,
	})
}

func (h Handlers) EndCall(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	res, err := h.Calls.End(c.Request.Context(), uid, c.Param("call_id"), calls.EndReasonNormal)
	if err != nil {
		abortCallErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           res.Status,
		"duration_seconds": res.DurationSeconds,
		"missed_user_ids":  res.MissedUserIDs,
	})
}

func (h Handlers) RejectCall(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	if err := h.Calls.Reject(c.Request.Context(), uid, c.Param("call_id")); err != nil {
		abortCallErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (h Handlers) CancelCall(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	res, err := h.Calls.Cancel(c.Request.Context(), uid, c.Param("call_id"))
	if err != nil {
		abortCallErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           res.Status,
		"duration_seconds": res.DurationSeconds,
		"missed_user_ids":  res.MissedUserIDs,
	})
}

// --- History ---

func (h Handlers) rangeFromQuery(c *gin.Context) (history.TimeRange, bool) {
	parse := func(key string, fallback time.Time) (time.Time, bool) {
		v := c.Query(key)
		if v == "" {
			return fallback, true
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be RFC3339"})
			return time.Time{}, false
		}
		return t, true
	}
	now := time.Now().UTC()
	from, ok := parse("from", now.AddDate(0, 0, -30))
	if !ok {
		return history.TimeRange{}, false
	}
	to, ok := parse("to", now)
	if !ok {
		return history.TimeRange{}, false
	}
	return history.TimeRange{From: from, To: to}, true
}

func (h Handlers) requireMembership(c *gin.Context, uid, conversationID string) bool {
	if conversationID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "conversation_id required"})
		return false
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	ok, err := h.Members.IsMember(ctx, uid, conversationID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "membership lookup failed"})
		return false
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not allowed"})
		return false
	}
	return true
}

func (h Handlers) CallHistory(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	conversationID := c.Query("conversation_id")
	if !h.requireMembership(c, uid, conversationID) {
		return
	}
	r, ok := h.rangeFromQuery(c)
	if !ok {
		return
	}
	rows, err := h.History.List(c.Request.Context(), conversationID, r)
	if err != nil {
		if errors.Is(err, history.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows})
}

func (h Handlers) CallsSummary(c *gin.Context) {
	uid, ok := identity(c)
	if !ok {
		return
	}
	conversationID := c.Query("conversation_id")
	if !h.requireMembership(c, uid, conversationID) {
		return
	}
	r, ok := h.rangeFromQuery(c)
	if !ok {
		return
	}
	out, err := h.History.CallsSummary(c.Request.Context(), history.SummaryRequest{ConversationID: conversationID, Range: r})
	if err != nil {
		if errors.Is(err, history.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Membership callbacks ---

type membershipChangedRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// MembershipChanged is invoked by the conversation service when a member is
// removed, so stale presence subscriptions get pruned instead of leaking
// updates to the removed member.
func (h Handlers) MembershipChanged(c *gin.Context) {
	var req membershipChangedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ConversationID == "" || req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "conversation_id and user_id required"})
		return
	}
	h.Gateway.PruneMembership(req.ConversationID, req.UserID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

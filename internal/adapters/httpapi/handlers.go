package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/careloop/signaling/internal/app"
	"github.com/careloop/signaling/internal/core"
	"github.com/careloop/signaling/internal/domain"
)

// Handlers implements the poll-based realtime API. Every operation returns
// immediately; "is anyone listening" is always a boolean in the response,
// never an awaited condition.
type Handlers struct {
	Registry *app.Registry
	Disp     *app.Dispatcher
	Calls    *app.CallManager
	Messages core.MessageStore
	Users    core.UserStore
	Broker   *app.CredentialBroker

	MediaAppID string
	TokenTTL   time.Duration
	Limiter    *UserRateLimiter
}

type disconnectRequest struct {
	ConnectionID string `json:"connectionId" binding:"required"`
}

type sendMessageRequest struct {
	ConnectionID string        `json:"connectionId" binding:"required"`
	TargetUserID domain.UserID `json:"targetUserId" binding:"required"`
	Message      string        `json:"message" binding:"required"`
}

type initiateCallRequest struct {
	ConnectionID string          `json:"connectionId" binding:"required"`
	TargetUserID domain.UserID   `json:"targetUserId" binding:"required"`
	CallType     domain.CallType `json:"callType" binding:"required"`
	ChannelName  string          `json:"channelName"`
}

type acceptCallRequest struct {
	CallID string `json:"callId" binding:"required"`
}

type rejectCallRequest struct {
	ConnectionID string `json:"connectionId" binding:"required"`
	CallID       string `json:"callId" binding:"required"`
}

type endCallRequest struct {
	ConnectionID string `json:"connectionId"`
	CallID       string `json:"callId" binding:"required"`
}

type pollRequest struct {
	ConnectionID string `json:"connectionId" binding:"required"`
}

type historyRequest struct {
	ConnectionID string        `json:"connectionId" binding:"required"`
	OtherUserID  domain.UserID `json:"otherUserId" binding:"required"`
	Limit        int           `json:"limit"`
}

type mediaTokenRequest struct {
	ChannelName       string `json:"channelName" binding:"required"`
	ExpirationSeconds int    `json:"expirationTimeInSeconds"`
}

func (h *Handlers) userID(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetInt64(userIDKey))
}

func unknownSession(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"code": "unknown_session", "message": "session not found, re-register"})
}

// Connect registers a poll-based session. A prior session of the same user
// and transport is replaced, so reconnecting clients never pile up.
func (h *Handlers) Connect(c *gin.Context) {
	user := h.userID(c)
	sess := h.Registry.Register(user, core.PollBased)
	c.JSON(http.StatusOK, gin.H{"connectionId": sess.ID, "message": "Connected successfully"})
}

// Disconnect drops the session. Idempotent: a stale id still acks.
func (h *Handlers) Disconnect(c *gin.Context) {
	var req disconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing connectionId"})
		return
	}
	h.Registry.Unregister(core.SessionID(req.ConnectionID))
	c.JSON(http.StatusOK, gin.H{"message": "Disconnected successfully"})
}

// SendMessage persists the message and best-effort delivers it to the
// target's live sessions. Persistence does not depend on delivery.
func (h *Handlers) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}
	sess, err := h.Registry.Touch(core.SessionID(req.ConnectionID))
	if err != nil {
		unknownSession(c)
		return
	}

	now := time.Now().UTC()
	msgID, err := h.Messages.Append(c.Request.Context(), sess.UserID, req.TargetUserID, req.Message, now)
	if err != nil {
		log.Error().Err(err).Str("module", "httpapi").Msg("persist message")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to send message"})
		return
	}

	sender, uerr := h.Users.GetUser(c.Request.Context(), sess.UserID)
	if uerr != nil {
		log.Warn().Err(uerr).Str("module", "httpapi").Int64("user", int64(sess.UserID)).Msg("sender lookup failed")
	}
	delivered := h.Disp.Deliver(req.TargetUserID, domain.Event{
		Type:       domain.EventNewMessage,
		MessageID:  formatID(msgID),
		SenderID:   sess.UserID,
		TargetID:   req.TargetUserID,
		Text:       req.Message,
		SenderName: domain.DisplayNameOrFallback(sender, sess.UserID),
		Timestamp:  now,
	})

	c.JSON(http.StatusOK, gin.H{
		"message":   "Message sent successfully",
		"delivered": delivered,
		"messageId": msgID,
	})
}

// InitiateCall starts (or idempotently re-returns) a call attempt and tells
// the client whether anyone was reachable.
func (h *Handlers) InitiateCall(c *gin.Context) {
	var req initiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}
	sess, err := h.Registry.Touch(core.SessionID(req.ConnectionID))
	if err != nil {
		unknownSession(c)
		return
	}

	res, err := h.Calls.Initiate(c.Request.Context(), sess.UserID, req.TargetUserID, req.CallType, req.ChannelName)
	if err != nil {
		log.Error().Err(err).Str("module", "httpapi").Msg("initiate call")
		c.JSON(http.StatusBadGateway, gin.H{"message": "failed to initiate call"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"delivered":   res.Delivered,
		"callId":      res.CallID,
		"channelName": res.Channel,
		"credential":  res.Credential,
	})
}

// AcceptCall acks unconditionally; a redundant accept is a no-op, not an
// error.
func (h *Handlers) AcceptCall(c *gin.Context) {
	var req acceptCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing callId"})
		return
	}
	h.Calls.Accept(req.CallID)
	c.JSON(http.StatusOK, gin.H{"message": "Call accepted"})
}

// RejectCall records the rejection on the declining session so the same
// call-signal cannot resurface on a later poll.
func (h *Handlers) RejectCall(c *gin.Context) {
	var req rejectCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}
	sess, err := h.Registry.Touch(core.SessionID(req.ConnectionID))
	if err != nil {
		unknownSession(c)
		return
	}
	h.Calls.Reject(req.CallID, sess)
	c.JSON(http.StatusOK, gin.H{"message": "Call rejected"})
}

// EndCall terminates a call; both participants are notified whoever asks.
func (h *Handlers) EndCall(c *gin.Context) {
	var req endCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing callId"})
		return
	}
	if req.ConnectionID != "" {
		if _, err := h.Registry.Touch(core.SessionID(req.ConnectionID)); err != nil {
			unknownSession(c)
			return
		}
	}
	h.Calls.End(req.CallID)
	c.JSON(http.StatusOK, gin.H{"message": "Call ended"})
}

// Poll drains the session mailbox. A stale id is a distinct 404 so the
// client re-registers instead of treating it as an empty poll.
func (h *Handlers) Poll(c *gin.Context) {
	var req pollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing connectionId"})
		return
	}
	messages, calls, err := h.Disp.Poll(core.SessionID(req.ConnectionID))
	if err != nil {
		unknownSession(c)
		return
	}
	if messages == nil {
		messages = []domain.Event{}
	}
	if calls == nil {
		calls = []domain.Event{}
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":         messages,
		"calls":            calls,
		"connectionStatus": "connected",
	})
}

// History returns persisted chat history between the session user and
// another user, oldest first.
func (h *Handlers) History(c *gin.Context) {
	var req historyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}
	sess, err := h.Registry.Touch(core.SessionID(req.ConnectionID))
	if err != nil {
		unknownSession(c)
		return
	}
	messages, err := h.Messages.History(c.Request.Context(), sess.UserID, req.OtherUserID, req.Limit)
	if err != nil {
		log.Error().Err(err).Str("module", "httpapi").Msg("message history")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to get message history"})
		return
	}
	if messages == nil {
		messages = []domain.StoredMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// MediaToken hands out the shared channel credential directly, for clients
// joining a channel they already know about.
func (h *Handlers) MediaToken(c *gin.Context) {
	var req mediaTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "channel name is required"})
		return
	}
	user := h.userID(c)
	if h.Limiter != nil && !h.Limiter.Allow(user) {
		c.JSON(http.StatusTooManyRequests, gin.H{"message": "too many token requests"})
		return
	}

	ttl := h.TokenTTL
	if req.ExpirationSeconds > 0 {
		ttl = time.Duration(req.ExpirationSeconds) * time.Second
	}
	cred, err := h.Broker.GetOrCreate(c.Request.Context(), req.ChannelName, user, ttl)
	if err != nil {
		log.Error().Err(err).Str("module", "httpapi").Msg("media token")
		c.JSON(http.StatusBadGateway, gin.H{"message": "error generating token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":          cred,
		"appId":          h.MediaAppID,
		"channelName":    req.ChannelName,
		"expirationTime": time.Now().UTC().Add(ttl),
	})
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

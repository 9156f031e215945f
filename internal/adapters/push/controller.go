package push

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/careloop/signaling/internal/app"
	"github.com/careloop/signaling/internal/core"
	"github.com/careloop/signaling/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller owns the websocket endpoint. A successful upgrade registers a
// push-capable session for the authenticated user; inbound frames are the
// same logical operations the poll transport exposes.
type Controller struct {
	Registry *app.Registry
	Disp     *app.Dispatcher
	Calls    *app.CallManager
	Messages core.MessageStore
	Users    core.UserStore

	ReadLimit int64
}

// frame is the inbound envelope. Only the fields relevant to the given type
// are set.
type frame struct {
	Type     string          `json:"type"`
	TargetID domain.UserID   `json:"targetUserId"`
	Text     string          `json:"message"`
	CallID   string          `json:"callId"`
	Channel  string          `json:"channelName"`
	CallType domain.CallType `json:"callType"`
}

// HandleWS upgrades the request and binds a session. The user id comes from
// the auth middleware; the handshake itself is the implicit register.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	user := domain.UserID(c.GetInt64("userID"))
	log.Info().Str("module", "push").Int64("user", int64(user)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "push").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := newConn(ws)
	sess := ctl.Registry.Register(user, core.PushCapable)
	sess.AttachPush(conn)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		ctl.readPump(ctx, sess.ID, conn)
	}()
	go ctl.writePump(ctx, conn)
}

// teardown runs once the read side is gone: drop the session and, if that
// was the user's last one, hang up their calls so the other side is told.
func (ctl *Controller) teardown(sid core.SessionID) {
	sess, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	ctl.Registry.Unregister(sid)
	if !ctl.Registry.Online(sess.UserID) {
		ctl.Calls.HangupUser(sess.UserID)
	}
}

func (ctl *Controller) handleFrame(ctx context.Context, sid core.SessionID, c *Conn, data []byte) {
	sess, err := ctl.Registry.Touch(sid)
	if err != nil {
		ctl.sendJSON(c, gin.H{"type": "error", "message": "unknown session"})
		return
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Error().Err(err).Str("module", "push").Msg("bad json")
		ctl.sendJSON(c, gin.H{"type": "error", "message": "invalid message format"})
		return
	}

	switch f.Type {
	case "ping":
		ctl.sendJSON(c, gin.H{"type": "pong"})
	case "send-message":
		ctl.handleSendMessage(ctx, sess, c, f)
	case "initiate-call":
		ctl.handleInitiateCall(ctx, sess, c, f)
	case "accept-call":
		ctl.Calls.Accept(f.CallID)
	case "reject-call":
		ctl.Calls.Reject(firstNonEmpty(f.CallID, f.Channel), sess)
	case "end-call":
		ctl.Calls.End(firstNonEmpty(f.CallID, f.Channel))
	default:
		log.Warn().Str("module", "push").Str("type", f.Type).Msg("unknown frame type")
		ctl.sendJSON(c, gin.H{"type": "error", "message": "unknown message type"})
	}
}

func (ctl *Controller) handleSendMessage(ctx context.Context, sess *core.Session, c *Conn, f frame) {
	now := time.Now().UTC()
	msgID, err := ctl.Messages.Append(ctx, sess.UserID, f.TargetID, f.Text, now)
	if err != nil {
		log.Error().Err(err).Str("module", "push").Msg("persist message")
		ctl.sendJSON(c, gin.H{"type": "error", "message": "failed to send message"})
		return
	}

	sender, uerr := ctl.Users.GetUser(ctx, sess.UserID)
	if uerr != nil {
		log.Warn().Err(uerr).Str("module", "push").Int64("user", int64(sess.UserID)).Msg("sender lookup failed")
	}
	ev := domain.Event{
		Type:       domain.EventNewMessage,
		MessageID:  formatMessageID(msgID),
		SenderID:   sess.UserID,
		TargetID:   f.TargetID,
		Text:       f.Text,
		SenderName: domain.DisplayNameOrFallback(sender, sess.UserID),
		Timestamp:  now,
	}
	ctl.Disp.Deliver(f.TargetID, ev)

	ack := ev
	ack.Type = domain.EventMessageSent
	ctl.sendJSON(c, ack)
}

func (ctl *Controller) handleInitiateCall(ctx context.Context, sess *core.Session, c *Conn, f frame) {
	res, err := ctl.Calls.Initiate(ctx, sess.UserID, f.TargetID, f.CallType, f.Channel)
	if err != nil {
		log.Error().Err(err).Str("module", "push").Msg("initiate call")
		ctl.sendJSON(c, gin.H{"type": "error", "message": "failed to initiate call"})
		return
	}
	ctl.sendJSON(c, gin.H{
		"type":        "call-initiated",
		"callId":      res.CallID,
		"channelName": res.Channel,
		"credential":  res.Credential,
		"delivered":   res.Delivered,
	})
}

func (ctl *Controller) sendJSON(c *Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "push").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func formatMessageID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

package domain

import "time"

type EventType string

const (
	EventNewMessage   EventType = "new-message"
	EventMessageSent  EventType = "message-sent"
	EventIncomingCall EventType = "incoming-call"
	EventCallAccepted EventType = "call-accepted"
	EventCallRejected EventType = "call-rejected"
	EventCallEnded    EventType = "call-ended"
)

// End reasons carried on call-ended events.
const (
	ReasonHangup       = "hangup"
	ReasonNoAnswer     = "no-answer"
	ReasonDisconnected = "disconnected"
)

// Event is the single envelope pushed over the websocket and queued in
// poll mailboxes. Fields irrelevant to a given type stay zero and are
// omitted on the wire.
type Event struct {
	Type EventType `json:"type"`

	MessageID  string `json:"id,omitempty"`
	SenderID   UserID `json:"senderId,omitempty"`
	TargetID   UserID `json:"targetUserId,omitempty"`
	Text       string `json:"message,omitempty"`
	SenderName string `json:"senderName,omitempty"`

	CallID     string   `json:"callId,omitempty"`
	Channel    string   `json:"channelName,omitempty"`
	CallerID   UserID   `json:"callerId,omitempty"`
	CallerName string   `json:"callerName,omitempty"`
	CallerRole string   `json:"callerRole,omitempty"`
	CallType   CallType `json:"callType,omitempty"`
	Credential string   `json:"credential,omitempty"`
	Reason     string   `json:"reason,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// CallSignal reports whether the event belongs in the calls half of a poll
// response rather than the messages half.
func (e Event) CallSignal() bool {
	switch e.Type {
	case EventIncomingCall, EventCallAccepted, EventCallRejected, EventCallEnded:
		return true
	}
	return false
}

// StoredMessage is a persisted chat message row.
type StoredMessage struct {
	ID         int64     `json:"id"`
	SenderID   UserID    `json:"senderId"`
	ReceiverID UserID    `json:"receiverId"`
	Text       string    `json:"message"`
	SentAt     time.Time `json:"sentAt"`
	Read       bool      `json:"isRead"`
}

package core

import (
	"context"
	"errors"
	"time"

	"github.com/careloop/signaling/internal/domain"
)

type SessionID string

// TransportKind tags how a session can receive events.
type TransportKind int

const (
	// PushCapable sessions hold an open connection the server writes to.
	PushCapable TransportKind = iota
	// PollBased sessions ask periodically; events wait in a mailbox.
	PollBased
)

func (k TransportKind) String() string {
	if k == PushCapable {
		return "push"
	}
	return "poll"
}

// ErrUnknownSession signals a stale or invalid session reference. Clients
// must treat it as "re-register", never as an empty result.
var ErrUnknownSession = errors.New("unknown session")

// PushSender abstracts the writable side of a push transport.
// Owned by the adapter; the adapter must Close() it.
type PushSender interface {
	TrySend(data []byte) error
	Close()
}

// UserStore resolves user records for notification payloads.
type UserStore interface {
	GetUser(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// MessageStore is the durable chat history collaborator. Persistence is
// independent of delivery outcome; the mailbox is never the system of record.
type MessageStore interface {
	Append(ctx context.Context, sender, receiver domain.UserID, text string, at time.Time) (int64, error)
	History(ctx context.Context, a, b domain.UserID, limit int) ([]domain.StoredMessage, error)
}

// TokenCache is a key/value store with per-key TTL. Get reports a miss with
// found=false, not an error.
type TokenCache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// CredentialSigner produces an opaque media-channel credential via the
// external conferencing SDK's scheme.
type CredentialSigner interface {
	Sign(channel string, identity domain.UserID, ttl time.Duration) (string, error)
}

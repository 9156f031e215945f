package core

import (
	"sync"
	"time"

	"github.com/careloop/signaling/internal/domain"
)

// Session is one registered (user, transport-kind) endpoint. Poll-based
// sessions queue events in a bounded mailbox; push-capable sessions carry a
// PushSender and no queue. All methods are safe for concurrent use.
type Session struct {
	ID     SessionID
	UserID domain.UserID
	Kind   TransportKind

	mu           sync.Mutex
	lastActivity time.Time
	mailbox      *ring[domain.Event]
	rejected     map[string]struct{}
	push         PushSender
}

const defaultMailboxCap = 256

func NewSession(id SessionID, user domain.UserID, kind TransportKind, mailboxCap int) *Session {
	if mailboxCap <= 0 {
		mailboxCap = defaultMailboxCap
	}
	s := &Session{
		ID:           id,
		UserID:       user,
		Kind:         kind,
		lastActivity: time.Now(),
		rejected:     make(map[string]struct{}),
	}
	if kind == PollBased {
		s.mailbox = newRing[domain.Event](mailboxCap)
	}
	return s
}

// Touch updates the last-activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// AttachPush binds the open connection of a push-capable session.
func (s *Session) AttachPush(p PushSender) {
	s.mu.Lock()
	s.push = p
	s.mu.Unlock()
}

func (s *Session) Push() PushSender {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.push
}

// Enqueue appends an event to the mailbox. Call signals for calls this
// session already rejected are not queued. Returns true when an older event
// was dropped to make room.
func (s *Session) Enqueue(ev domain.Event) (dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mailbox == nil {
		return false
	}
	if ev.CallSignal() && s.rejectedLocked(ev) {
		return false
	}
	return s.mailbox.push(ev)
}

// rejectedLocked reports whether a call signal refers to a rejected call,
// matched by channel or by call id. Caller holds mu.
func (s *Session) rejectedLocked(ev domain.Event) bool {
	if ev.Channel != "" {
		if _, ok := s.rejected[ev.Channel]; ok {
			return true
		}
	}
	if ev.CallID != "" {
		if _, ok := s.rejected[ev.CallID]; ok {
			return true
		}
	}
	return false
}

// Drain atomically empties the mailbox, splitting events into messages and
// call signals. Pending call signals for calls rejected after they were
// queued are filtered out here, so a declined call never reappears on the
// next poll.
func (s *Session) Drain() (messages, calls []domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mailbox == nil {
		return nil, nil
	}
	for _, ev := range s.mailbox.drain() {
		if ev.CallSignal() {
			if s.rejectedLocked(ev) {
				continue
			}
			calls = append(calls, ev)
			continue
		}
		messages = append(messages, ev)
	}
	return messages, calls
}

// MarkRejected records a call this session explicitly declined, keyed by
// whatever the client sent (channel name or call id). The fact outlives the
// call record itself and lives as long as the session.
func (s *Session) MarkRejected(key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	s.rejected[key] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) Rejected(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rejected[key]
	return ok
}

// Pending returns the current mailbox depth.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mailbox == nil {
		return 0
	}
	return s.mailbox.len()
}

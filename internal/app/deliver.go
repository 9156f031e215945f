package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/careloop/signaling/internal/core"
	"github.com/careloop/signaling/internal/domain"
)

// Dispatcher routes one event to whatever sessions a user currently holds:
// poll mailboxes get an append, push connections get an immediate best-effort
// write. There is no retry and no fallback between the two.
type Dispatcher struct {
	Registry *Registry
}

func NewDispatcher(reg *Registry) *Dispatcher {
	return &Dispatcher{Registry: reg}
}

// Deliver fans the event out to every live session of the user. Delivering
// to both a push and a poll session of the same user is intentional
// multi-device behavior. Returns false when no session was found; that is a
// routing outcome, not an error.
func (d *Dispatcher) Deliver(user domain.UserID, ev domain.Event) bool {
	sessions := d.Registry.Resolve(user)
	if len(sessions) == 0 {
		log.Debug().Str("module", "app.deliver").Int64("user", int64(user)).
			Str("type", string(ev.Type)).Msg("no live session, event dropped")
		return false
	}

	for _, s := range sessions {
		switch s.Kind {
		case core.PollBased:
			if s.Enqueue(ev) {
				log.Warn().Str("module", "app.deliver").Str("sid", string(s.ID)).
					Msg("mailbox full, oldest event dropped")
			}
		case core.PushCapable:
			d.pushTo(s, ev)
		}
	}
	return true
}

// pushTo writes the event to an open push connection. A failed send is
// logged and dropped; at-most-once, best-effort.
func (d *Dispatcher) pushTo(s *core.Session, ev domain.Event) {
	if ev.CallSignal() && (s.Rejected(ev.Channel) || s.Rejected(ev.CallID)) {
		return
	}
	sender := s.Push()
	if sender == nil {
		log.Warn().Str("module", "app.deliver").Str("sid", string(s.ID)).
			Msg("push session without connection, event dropped")
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.deliver").Msg("event marshal")
		return
	}
	if err := sender.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "app.deliver").Str("sid", string(s.ID)).
			Str("type", string(ev.Type)).Msg("push send failed, event dropped")
	}
}

// Poll atomically drains the session's mailbox, split into messages and call
// signals, updating last-activity as a side effect. Stale session ids get
// ErrUnknownSession.
func (d *Dispatcher) Poll(id core.SessionID) (messages, calls []domain.Event, err error) {
	s, err := d.Registry.Touch(id)
	if err != nil {
		return nil, nil, err
	}
	messages, calls = s.Drain()
	return messages, calls, nil
}

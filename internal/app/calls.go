package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/careloop/signaling/internal/core"
	"github.com/careloop/signaling/internal/domain"
)

// CallManager owns the call state machine:
//
//	Ringing -> Accepted | Rejected | Ended
//	Accepted -> Ended
//
// Rejected and Ended are terminal; a transition arriving for a terminal or
// unknown call is a silent no-op, because duplicate client retries and
// cross-transport races make that the common case.
//
// Calls are indexed by channel name (the key shared with the credential
// broker); the opaque call id is a client-facing alias. Either identifies a
// call in Accept/Reject/End.
type CallManager struct {
	mu        sync.Mutex
	byChannel map[string]*callState
	aliases   map[string]string // call id -> channel

	disp   *Dispatcher
	broker *CredentialBroker
	users  core.UserStore

	ringTimeout time.Duration
	credTTL     time.Duration
}

type callState struct {
	call       domain.Call
	credential string
	delivered  bool
	timer      *time.Timer
}

// InitiateResult is what the caller's client needs to join the channel.
type InitiateResult struct {
	CallID     string
	Channel    string
	Credential string
	Delivered  bool
}

func NewCallManager(disp *Dispatcher, broker *CredentialBroker, users core.UserStore, ringTimeout, credTTL time.Duration) *CallManager {
	return &CallManager{
		byChannel:   make(map[string]*callState),
		aliases:     make(map[string]string),
		disp:        disp,
		broker:      broker,
		users:       users,
		ringTimeout: ringTimeout,
		credTTL:     credTTL,
	}
}

// lookup resolves a call id or channel name to its state. Caller holds mu.
func (m *CallManager) lookup(key string) *callState {
	if ch, ok := m.aliases[key]; ok {
		return m.byChannel[ch]
	}
	return m.byChannel[key]
}

// remove drops a call from the active index and disarms its ring timer.
// Caller holds mu.
func (m *CallManager) remove(st *callState) {
	delete(m.byChannel, st.call.Channel)
	delete(m.aliases, st.call.ID)
	if st.timer != nil {
		st.timer.Stop()
	}
}

// Initiate starts a call attempt. When the channel (caller-supplied or
// derived from the user pair) already has an active call, the existing one
// is returned unchanged: duplicate initiate requests must not spawn a second
// ringing state or a second incoming-call delivery. The credential fetch and
// the delivery run outside the manager lock.
func (m *CallManager) Initiate(ctx context.Context, caller, target domain.UserID, callType domain.CallType, channel string) (InitiateResult, error) {
	if channel == "" {
		channel = domain.ChannelFor(caller, target)
	}

	m.mu.Lock()
	if st := m.lookup(channel); st != nil {
		res := InitiateResult{
			CallID:     st.call.ID,
			Channel:    st.call.Channel,
			Credential: st.credential,
			Delivered:  st.delivered,
		}
		m.mu.Unlock()
		log.Info().Str("module", "app.calls").Str("channel", channel).
			Str("call", res.CallID).Msg("duplicate initiate, returning active call")
		return res, nil
	}
	st := &callState{call: domain.Call{
		ID:        uuid.NewString(),
		Channel:   channel,
		CallerID:  caller,
		TargetID:  target,
		Type:      callType,
		Status:    domain.CallRinging,
		StartedAt: time.Now().UTC(),
	}}
	m.byChannel[channel] = st
	m.aliases[st.call.ID] = channel
	m.mu.Unlock()

	cred, err := m.broker.GetOrCreate(ctx, channel, caller, m.credTTL)
	if err != nil {
		// A call cannot usefully proceed without a credential. The channel
		// may already hold a replacement call if this one was rejected during
		// the fetch; only remove our own entry.
		m.mu.Lock()
		if m.byChannel[channel] == st {
			m.remove(st)
		}
		m.mu.Unlock()
		return InitiateResult{}, err
	}

	callerUser, uerr := m.users.GetUser(ctx, caller)
	if uerr != nil {
		log.Warn().Err(uerr).Str("module", "app.calls").Int64("caller", int64(caller)).
			Msg("caller lookup failed, using fallback name")
	}

	ev := domain.Event{
		Type:       domain.EventIncomingCall,
		CallID:     st.call.ID,
		Channel:    channel,
		CallerID:   caller,
		CallerName: domain.DisplayNameOrFallback(callerUser, caller),
		CallType:   callType,
		Credential: cred,
		Timestamp:  st.call.StartedAt,
	}
	if callerUser != nil {
		ev.CallerRole = callerUser.Role
	}
	delivered := m.disp.Deliver(target, ev)

	m.mu.Lock()
	// The call may already have been rejected or ended during delivery.
	if cur := m.byChannel[channel]; cur == st {
		st.credential = cred
		st.delivered = delivered
		if m.ringTimeout > 0 {
			st.timer = time.AfterFunc(m.ringTimeout, func() { m.expire(channel) })
		}
	}
	m.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", st.call.ID).Str("channel", channel).
		Int64("caller", int64(caller)).Int64("target", int64(target)).
		Bool("delivered", delivered).Msg("call initiated")
	return InitiateResult{CallID: st.call.ID, Channel: channel, Credential: cred, Delivered: delivered}, nil
}

// Accept moves a ringing call to Accepted and tells the caller side.
// Anything else (already accepted, terminal, unknown id) is a no-op.
func (m *CallManager) Accept(key string) {
	m.mu.Lock()
	st := m.lookup(key)
	if st == nil || st.call.Status != domain.CallRinging {
		m.mu.Unlock()
		return
	}
	st.call.Status = domain.CallAccepted
	if st.timer != nil {
		st.timer.Stop()
	}
	caller := st.call.CallerID
	ev := domain.Event{
		Type:      domain.EventCallAccepted,
		CallID:    st.call.ID,
		Channel:   st.call.Channel,
		Timestamp: time.Now().UTC(),
	}
	m.mu.Unlock()

	m.disp.Deliver(caller, ev)
	log.Info().Str("module", "app.calls").Str("call", ev.CallID).Msg("call accepted")
}

// Reject declines a ringing or accepted call. The rejected call is recorded
// on the rejecting session so an already-queued duplicate of the same signal
// is filtered on its next poll. An unknown key still best-effort notifies the
// counterpart recoverable from a derived channel name, so the caller's UI
// does not stay stuck ringing.
func (m *CallManager) Reject(key string, rejecting *core.Session) {
	m.mu.Lock()
	st := m.lookup(key)
	if st == nil {
		m.mu.Unlock()
		if rejecting != nil {
			rejecting.MarkRejected(key)
		}
		if a, b, ok := domain.ParseChannel(key); ok && rejecting != nil {
			other := a
			if rejecting.UserID == a {
				other = b
			}
			m.disp.Deliver(other, domain.Event{
				Type:      domain.EventCallRejected,
				Channel:   key,
				Timestamp: time.Now().UTC(),
			})
		}
		log.Warn().Str("module", "app.calls").Str("key", key).Msg("reject for unknown call")
		return
	}
	m.remove(st)
	st.call.Status = domain.CallRejected
	caller := st.call.CallerID
	ev := domain.Event{
		Type:      domain.EventCallRejected,
		CallID:    st.call.ID,
		Channel:   st.call.Channel,
		Timestamp: time.Now().UTC(),
	}
	m.mu.Unlock()

	if rejecting != nil {
		rejecting.MarkRejected(ev.Channel)
	}
	m.disp.Deliver(caller, ev)
	log.Info().Str("module", "app.calls").Str("call", ev.CallID).Msg("call rejected")
}

// End terminates a ringing or accepted call and notifies both participants;
// either party's client may be the one asking.
func (m *CallManager) End(key string) {
	m.mu.Lock()
	st := m.lookup(key)
	if st == nil {
		m.mu.Unlock()
		// Probably already cleaned up; duplicate end requests are expected.
		log.Warn().Str("module", "app.calls").Str("key", key).Msg("end for unknown call")
		return
	}
	m.remove(st)
	st.call.Status = domain.CallEnded
	caller, target := st.call.CallerID, st.call.TargetID
	ev := domain.Event{
		Type:      domain.EventCallEnded,
		CallID:    st.call.ID,
		Channel:   st.call.Channel,
		Reason:    domain.ReasonHangup,
		Timestamp: time.Now().UTC(),
	}
	m.mu.Unlock()

	m.disp.Deliver(caller, ev)
	m.disp.Deliver(target, ev)
	log.Info().Str("module", "app.calls").Str("call", ev.CallID).Msg("call ended")
}

// HangupUser ends every active call involving the user, notifying the other
// party. Used when a user's last session disappears.
func (m *CallManager) HangupUser(user domain.UserID) {
	m.mu.Lock()
	var affected []*callState
	for _, st := range m.byChannel {
		if st.call.CallerID == user || st.call.TargetID == user {
			affected = append(affected, st)
		}
	}
	for _, st := range affected {
		m.remove(st)
		st.call.Status = domain.CallEnded
	}
	m.mu.Unlock()

	for _, st := range affected {
		other := st.call.CallerID
		if other == user {
			other = st.call.TargetID
		}
		m.disp.Deliver(other, domain.Event{
			Type:      domain.EventCallEnded,
			CallID:    st.call.ID,
			Channel:   st.call.Channel,
			Reason:    domain.ReasonDisconnected,
			Timestamp: time.Now().UTC(),
		})
		log.Info().Str("module", "app.calls").Str("call", st.call.ID).
			Int64("user", int64(user)).Msg("call ended by disconnect")
	}
}

// expire fires when a call rings past the configured timeout: the call ends
// and both sides learn nobody answered.
func (m *CallManager) expire(channel string) {
	m.mu.Lock()
	st := m.byChannel[channel]
	if st == nil || st.call.Status != domain.CallRinging {
		m.mu.Unlock()
		return
	}
	m.remove(st)
	st.call.Status = domain.CallEnded
	caller, target := st.call.CallerID, st.call.TargetID
	ev := domain.Event{
		Type:      domain.EventCallEnded,
		CallID:    st.call.ID,
		Channel:   channel,
		Reason:    domain.ReasonNoAnswer,
		Timestamp: time.Now().UTC(),
	}
	m.mu.Unlock()

	m.disp.Deliver(caller, ev)
	m.disp.Deliver(target, ev)
	log.Info().Str("module", "app.calls").Str("call", ev.CallID).Msg("call rang out")
}

// ActiveCalls reports the number of non-terminal calls.
func (m *CallManager) ActiveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byChannel)
}

package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/careloop/signaling/internal/core"
	"github.com/careloop/signaling/internal/domain"
)

// Registry is the presence directory: at most one live session per
// (user, transport-kind) pair. The maps are never exposed; everything goes
// through the operations below.
type Registry struct {
	mu         sync.RWMutex
	byID       map[core.SessionID]*core.Session
	byUser     map[domain.UserID]map[core.TransportKind]*core.Session
	mailboxCap int
}

func NewRegistry(mailboxCap int) *Registry {
	return &Registry{
		byID:       make(map[core.SessionID]*core.Session),
		byUser:     make(map[domain.UserID]map[core.TransportKind]*core.Session),
		mailboxCap: mailboxCap,
	}
}

// Register creates a session for the pair, evicting any prior one
// (last-writer-wins, so a reconnect never leaves a zombie duplicate).
func (r *Registry) Register(user domain.UserID, kind core.TransportKind) *core.Session {
	s := core.NewSession(core.SessionID(uuid.NewString()), user, kind, r.mailboxCap)

	r.mu.Lock()
	kinds, ok := r.byUser[user]
	if !ok {
		kinds = make(map[core.TransportKind]*core.Session)
		r.byUser[user] = kinds
	}
	if prev, ok := kinds[kind]; ok {
		delete(r.byID, prev.ID)
		// An evicted push session still owns an open connection and its
		// pumps; closing the sender unwinds them.
		if p := prev.Push(); p != nil {
			p.Close()
		}
		log.Info().Str("module", "app.registry").Int64("user", int64(user)).
			Str("evicted", string(prev.ID)).Msg("replaced existing session")
	}
	kinds[kind] = s
	r.byID[s.ID] = s
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").Int64("user", int64(user)).
		Str("sid", string(s.ID)).Str("kind", kind.String()).Msg("session registered")
	return s
}

// Unregister removes a session. No-op when already absent; callers may race
// to disconnect.
func (r *Registry) Unregister(id core.SessionID) {
	r.mu.Lock()
	s, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		if kinds, ok := r.byUser[s.UserID]; ok && kinds[s.Kind] == s {
			delete(kinds, s.Kind)
			if len(kinds) == 0 {
				delete(r.byUser, s.UserID)
			}
		}
	}
	r.mu.Unlock()
	if ok {
		log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("session unregistered")
	}
}

// Touch bumps last-activity. A stale id returns ErrUnknownSession so the
// client re-registers instead of polling forever.
func (r *Registry) Touch(id core.SessionID) (*core.Session, error) {
	r.mu.RLock()
	s, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, core.ErrUnknownSession
	}
	s.Touch()
	return s, nil
}

// Get looks a session up without touching it.
func (r *Registry) Get(id core.SessionID) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// Resolve returns all live sessions for a user (0, 1, or 2) for routing.
func (r *Registry) Resolve(user domain.UserID) []*core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds, ok := r.byUser[user]
	if !ok {
		return nil
	}
	out := make([]*core.Session, 0, len(kinds))
	for _, s := range kinds {
		out = append(out, s)
	}
	return out
}

// Online reports whether the user has any live session left.
func (r *Registry) Online(user domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[user]) > 0
}

// EvictStale unregisters every session whose last activity is older than the
// cutoff and returns the evicted sessions.
func (r *Registry) EvictStale(cutoff time.Time) []*core.Session {
	r.mu.RLock()
	var stale []*core.Session
	for _, s := range r.byID {
		if s.LastActivity().Before(cutoff) {
			stale = append(stale, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range stale {
		r.Unregister(s.ID)
	}
	return stale
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

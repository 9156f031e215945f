package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Reaper periodically evicts sessions that stopped showing activity.
// Poll-based clients crash or lose the network without ever calling
// disconnect; this sweep is the only path that removes their sessions.
type Reaper struct {
	Registry *Registry
	Calls    *CallManager

	Interval   time.Duration
	StaleAfter time.Duration

	done chan struct{}
}

func NewReaper(reg *Registry, calls *CallManager, interval, staleAfter time.Duration) *Reaper {
	return &Reaper{
		Registry:   reg,
		Calls:      calls,
		Interval:   interval,
		StaleAfter: staleAfter,
		done:       make(chan struct{}),
	}
}

// Run sweeps on a fixed interval until the context is canceled. Meant to be
// started as a goroutine; Done() reports when the loop has exited.
func (r *Reaper) Run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	log.Info().Str("module", "app.reaper").Dur("interval", r.Interval).
		Dur("stale_after", r.StaleAfter).Msg("reaper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.reaper").Msg("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep evicts every session past the staleness threshold and hangs up calls
// of users who no longer have any session at all.
func (r *Reaper) Sweep() int {
	evicted := r.Registry.EvictStale(time.Now().Add(-r.StaleAfter))
	for _, s := range evicted {
		log.Info().Str("module", "app.reaper").Str("sid", string(s.ID)).
			Int64("user", int64(s.UserID)).Msg("evicted stale session")
		if r.Calls != nil && !r.Registry.Online(s.UserID) {
			r.Calls.HangupUser(s.UserID)
		}
	}
	return len(evicted)
}

// Done is closed once Run has returned.
func (r *Reaper) Done() <-chan struct{} { return r.done }

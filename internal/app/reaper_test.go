package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/signaling/internal/core"
	"github.com/careloop/signaling/internal/domain"
)

func TestSweepEvictsStaleSessions(t *testing.T) {
	reg, m := newTestCallManager()
	r := NewReaper(reg, m, time.Minute, 10*time.Millisecond)

	stale := reg.Register(1, core.PollBased)
	fresh := reg.Register(2, core.PollBased)

	time.Sleep(20 * time.Millisecond)
	fresh.Touch()

	assert.Equal(t, 1, r.Sweep())
	assert.False(t, reg.Online(stale.UserID))
	assert.True(t, reg.Online(fresh.UserID))
}

func TestSweepHangsUpCallsOfOfflineUsers(t *testing.T) {
	reg, m := newTestCallManager()
	r := NewReaper(reg, m, time.Minute, 10*time.Millisecond)

	caller := reg.Register(1, core.PollBased)
	target := reg.Register(2, core.PollBased)
	_, err := m.Initiate(context.Background(), 1, 2, domain.CallVideo, "")
	require.NoError(t, err)
	require.Equal(t, 1, m.ActiveCalls())

	// The caller goes silent; the target keeps polling.
	time.Sleep(20 * time.Millisecond)
	target.Touch()

	assert.Equal(t, 1, r.Sweep())
	assert.False(t, reg.Online(caller.UserID))
	assert.Equal(t, 0, m.ActiveCalls())

	_, calls, err := m.disp.Poll(target.ID)
	require.NoError(t, err)
	// The incoming-call was still queued; the call-ended follows it.
	require.Len(t, calls, 2)
	last := calls[len(calls)-1]
	assert.Equal(t, domain.EventCallEnded, last.Type)
	assert.Equal(t, domain.ReasonDisconnected, last.Reason)
}

func TestSweepKeepsCallsWhileAnotherSessionLives(t *testing.T) {
	reg, m := newTestCallManager()
	r := NewReaper(reg, m, time.Minute, 10*time.Millisecond)

	// User 1 has a stale poll session and a live push session.
	reg.Register(1, core.PollBased)
	push := reg.Register(1, core.PushCapable)
	reg.Register(2, core.PollBased).Touch()

	_, err := m.Initiate(context.Background(), 1, 2, domain.CallVideo, "")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	push.Touch()
	reg.Resolve(2)[0].Touch()

	assert.Equal(t, 1, r.Sweep())
	assert.True(t, reg.Online(1))
	assert.Equal(t, 1, m.ActiveCalls())
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	reg, m := newTestCallManager()
	r := NewReaper(reg, m, 5*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after context cancel")
	}
}

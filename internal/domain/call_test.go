package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelForOrdersIDs(t *testing.T) {
	assert.Equal(t, "call_3_7", ChannelFor(7, 3))
	assert.Equal(t, "call_3_7", ChannelFor(3, 7))
	assert.Equal(t, "call_5_5", ChannelFor(5, 5))
}

func TestParseChannel(t *testing.T) {
	a, b, ok := ParseChannel("call_3_7")
	assert.True(t, ok)
	assert.Equal(t, UserID(3), a)
	assert.Equal(t, UserID(7), b)

	for _, bad := range []string{"", "call_", "call_3", "call_x_7", "call_3_y", "room_3_7"} {
		_, _, ok := ParseChannel(bad)
		assert.False(t, ok, "expected %q to be rejected", bad)
	}
}

func TestCallStatusTerminal(t *testing.T) {
	assert.False(t, CallRinging.Terminal())
	assert.False(t, CallAccepted.Terminal())
	assert.True(t, CallRejected.Terminal())
	assert.True(t, CallEnded.Terminal())
}

func TestEventCallSignal(t *testing.T) {
	assert.True(t, Event{Type: EventIncomingCall}.CallSignal())
	assert.True(t, Event{Type: EventCallRejected}.CallSignal())
	assert.False(t, Event{Type: EventNewMessage}.CallSignal())
	assert.False(t, Event{Type: EventMessageSent}.CallSignal())
}

func TestDisplayNameOrFallback(t *testing.T) {
	assert.Equal(t, "Dr. Chen", DisplayNameOrFallback(&User{ID: 4, DisplayName: "Dr. Chen"}, 4))
	assert.Equal(t, "User 4", DisplayNameOrFallback(nil, 4))
	assert.Equal(t, "User 4", DisplayNameOrFallback(&User{ID: 4}, 4))
}

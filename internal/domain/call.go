package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type CallType string

const (
	CallAudio CallType = "audio"
	CallVideo CallType = "video"
)

type CallStatus string

const (
	CallRinging  CallStatus = "ringing"
	CallAccepted CallStatus = "accepted"
	CallRejected CallStatus = "rejected"
	CallEnded    CallStatus = "ended"
)

// Terminal reports whether no further transition may leave the status.
func (s CallStatus) Terminal() bool {
	return s == CallRejected || s == CallEnded
}

// Call is the lifecycle record of one call attempt between two users.
type Call struct {
	ID        string
	Channel   string
	CallerID  UserID
	TargetID  UserID
	Type      CallType
	Status    CallStatus
	StartedAt time.Time
}

// ChannelFor derives the media channel shared by a pair of users. The ids are
// ordered so both call directions converge on the same channel.
func ChannelFor(a, b UserID) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("call_%d_%d", a, b)
}

// ParseChannel recovers the participant ids from a derived channel name.
// Returns false for caller-supplied channels that do not follow the
// call_<min>_<max> form.
func ParseChannel(channel string) (UserID, UserID, bool) {
	rest, ok := strings.CutPrefix(channel, "call_")
	if !ok {
		return 0, 0, false
	}
	lo, hi, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, 0, false
	}
	a, err := strconv.ParseInt(lo, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.ParseInt(hi, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return UserID(a), UserID(b), true
}

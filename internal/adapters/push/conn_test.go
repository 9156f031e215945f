package push

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrySendBackpressure(t *testing.T) {
	c := newConn(nil)
	for i := 0; i < cap(c.send); i++ {
		assert.NoError(t, c.TrySend([]byte("ev")))
	}
	assert.ErrorIs(t, c.TrySend([]byte("ev")), ErrBackpressure)
}

func TestTrySendAfterClose(t *testing.T) {
	c := newConn(nil)
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	assert.ErrorIs(t, c.TrySend([]byte("ev")), ErrClosed)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", firstNonEmpty("a", "b"))
	assert.Equal(t, "b", firstNonEmpty("", "b"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

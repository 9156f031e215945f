package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingPushDrain(t *testing.T) {
	r := newRing[int](4)
	assert.Equal(t, 0, r.len())

	for i := 1; i <= 3; i++ {
		assert.False(t, r.push(i))
	}
	assert.Equal(t, 3, r.len())
	assert.Equal(t, []int{1, 2, 3}, r.drain())
	assert.Equal(t, 0, r.len())
	assert.Empty(t, r.drain())
}

func TestRingOverwritesOldest(t *testing.T) {
	r := newRing[int](3)
	assert.False(t, r.push(1))
	assert.False(t, r.push(2))
	assert.False(t, r.push(3))
	assert.True(t, r.push(4))
	assert.True(t, r.push(5))

	assert.Equal(t, []int{3, 4, 5}, r.drain())
}

func TestRingReusableAfterDrain(t *testing.T) {
	r := newRing[string](2)
	r.push("a")
	r.drain()
	r.push("b")
	r.push("c")
	assert.Equal(t, []string{"b", "c"}, r.drain())
}

package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerDisabledReturnsEmpty(t *testing.T) {
	signer := &fakeSigner{}
	b := NewCredentialBroker(newFakeCache(), signer, false)

	cred, err := b.GetOrCreate(context.Background(), "call_1_2", 1, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, cred)
	assert.Equal(t, 0, signer.signCount())
}

func TestBrokerSignsOnMissAndCaches(t *testing.T) {
	signer := &fakeSigner{}
	b := NewCredentialBroker(newFakeCache(), signer, true)

	first, err := b.GetOrCreate(context.Background(), "call_1_2", 1, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	// Second request, even from the other participant, hits the cache.
	second, err := b.GetOrCreate(context.Background(), "call_1_2", 2, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, signer.signCount())
}

func TestBrokerDistinctChannelsDistinctCredentials(t *testing.T) {
	b := NewCredentialBroker(newFakeCache(), &fakeSigner{}, true)

	a, err := b.GetOrCreate(context.Background(), "call_1_2", 1, time.Hour)
	require.NoError(t, err)
	c, err := b.GetOrCreate(context.Background(), "call_1_3", 1, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestBrokerCacheReadFailureSignsFresh(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = assert.AnError
	signer := &fakeSigner{}
	b := NewCredentialBroker(cache, signer, true)

	cred, err := b.GetOrCreate(context.Background(), "call_1_2", 1, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, cred)
	assert.Equal(t, 1, signer.signCount())
}

func TestBrokerCacheWriteFailureStillReturnsCredential(t *testing.T) {
	cache := newFakeCache()
	cache.setErr = assert.AnError
	b := NewCredentialBroker(cache, &fakeSigner{}, true)

	cred, err := b.GetOrCreate(context.Background(), "call_1_2", 1, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, cred)
}

func TestBrokerSignerFailure(t *testing.T) {
	b := NewCredentialBroker(newFakeCache(), &fakeSigner{err: assert.AnError}, true)

	_, err := b.GetOrCreate(context.Background(), "call_1_2", 1, time.Hour)
	assert.Error(t, err)
}

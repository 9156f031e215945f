package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/careloop/signaling/internal/domain"
)

type fakeUsers struct {
	users map[domain.UserID]*domain.User
}

func (f *fakeUsers) GetUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
	getErr  error
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.entries[key]
	return v, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = value
	return nil
}

type fakeSigner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSigner) Sign(channel string, identity domain.UserID, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.calls++
	return fmt.Sprintf("cred-%s-%d", channel, f.calls), nil
}

func (f *fakeSigner) signCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// gatedSigner blocks its first Sign call until released; later calls sign
// immediately. Lets a test hold one credential fetch in flight while other
// operations race past it.
type gatedSigner struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan error
}

func newGatedSigner() *gatedSigner {
	return &gatedSigner{entered: make(chan struct{}, 1), release: make(chan error)}
}

func (g *gatedSigner) Sign(channel string, _ domain.UserID, _ time.Duration) (string, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	if n == 1 {
		g.entered <- struct{}{}
		if err := <-g.release; err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("cred-%s-%d", channel, n), nil
}

// newTestCallManager wires a registry, dispatcher and call manager with an
// enabled broker and no ring timeout.
func newTestCallManager() (*Registry, *CallManager) {
	reg := NewRegistry(16)
	disp := NewDispatcher(reg)
	broker := NewCredentialBroker(newFakeCache(), &fakeSigner{}, true)
	users := &fakeUsers{users: map[domain.UserID]*domain.User{
		1: {ID: 1, DisplayName: "Alice", Role: "patient"},
		2: {ID: 2, DisplayName: "Bob", Role: "doctor"},
	}}
	return reg, NewCallManager(disp, broker, users, 0, time.Hour)
}

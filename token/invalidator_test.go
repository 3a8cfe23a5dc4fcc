package token

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubfold/tokend/events"
	"github.com/hubfold/tokend/storage"
)

// faultyBackend fails deletes whose key contains a marker substring
type faultyBackend struct {
	storage.Backend
	failOn string
}

func (b *faultyBackend) Delete(ctx context.Context, key string) error {
	if b.failOn != "" && strings.Contains(key, b.failOn) {
		return errors.New("backend delete failure")
	}
	return b.Backend.Delete(ctx, key)
}

func TestInvalidator_InvalidateAllForUser(t *testing.T) {
	p, _, _ := newTestProvider(t)
	bus := events.NewBus(testLogger())
	inv := NewInvalidator(p, bus, testLogger())
	ctx := context.Background()

	var started, finished int
	bus.Subscribe(events.TypeInvalidationStarted, func(e events.Event) { started++ })
	bus.Subscribe(events.TypeInvalidationFinished, func(e events.Event) { finished++ })

	_, err := p.GenerateToken(ctx, "raw-1", "alice", "alice", nil, "a", KindPermanent, DoNotRemember)
	require.NoError(t, err)
	_, err = p.GenerateToken(ctx, "raw-2", "alice", "alice", nil, "b", KindTemporary, RememberMe)
	require.NoError(t, err)
	_, err = p.GenerateToken(ctx, "raw-3", "bob", "bob", nil, "c", KindPermanent, DoNotRemember)
	require.NoError(t, err)

	require.NoError(t, inv.InvalidateAllForUser(ctx, "alice"))

	assert.Equal(t, 1, started)
	assert.Equal(t, 1, finished)

	remaining, err := p.GetTokensByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// Bob is untouched
	remaining, err = p.GetTokensByUser(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestInvalidator_ContinuesOnError(t *testing.T) {
	backend := &faultyBackend{Backend: storage.NewMemoryBackend()}
	p, store, _ := newTestProviderWithBackend(t, backend)
	bus := events.NewBus(testLogger())
	inv := NewInvalidator(p, bus, testLogger())
	ctx := context.Background()

	var finished int
	bus.Subscribe(events.TypeInvalidationFinished, func(e events.Event) { finished++ })

	poisoned := deviceToken("id-poisoned", "alice", "hash-poisoned")
	require.NoError(t, store.Insert(ctx, poisoned))
	healthy := deviceToken("id-healthy", "alice", "hash-healthy")
	require.NoError(t, store.Insert(ctx, healthy))

	backend.failOn = "id-poisoned"

	err := inv.InvalidateAllForUser(ctx, "alice")
	require.Error(t, err)

	// The healthy token was still revoked and the finished event fired
	// despite the failure.
	_, getErr := store.GetByID(ctx, "id-healthy")
	assert.ErrorIs(t, getErr, ErrTokenNotFound)
	assert.Equal(t, 1, finished)
}

func TestInvalidator_InvalidateLastUsedBefore(t *testing.T) {
	p, store, clock := newTestProvider(t)
	bus := events.NewBus(testLogger())
	inv := NewInvalidator(p, bus, testLogger())
	ctx := context.Background()

	idle := deviceToken("id-idle", "alice", "hash-idle")
	idle.LastActivity = clock.Now().Unix() - 7200
	require.NoError(t, store.Insert(ctx, idle))

	active := deviceToken("id-active", "alice", "hash-active")
	active.LastActivity = clock.Now().Unix()
	require.NoError(t, store.Insert(ctx, active))

	deleted, err := inv.InvalidateLastUsedBefore(ctx, "alice", clock.Now().Unix()-3600)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.GetByID(ctx, "id-idle")
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = store.GetByID(ctx, "id-active")
	assert.NoError(t, err)
}

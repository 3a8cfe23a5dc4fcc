package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_SweepsImmediatelyOnStart(t *testing.T) {
	p, store, clock := newTestProvider(t)
	ctx := context.Background()

	ancient := deviceToken("id-ancient", "alice", "hash-ancient")
	ancient.LastActivity = clock.Now().Add(-2 * 365 * 24 * time.Hour).Unix()
	require.NoError(t, store.Insert(ctx, ancient))

	j := NewJanitor(p, time.Hour, testLogger())
	j.Start(ctx)
	defer j.Stop()

	// The startup sweep runs without waiting for the first tick
	require.Eventually(t, func() bool {
		_, err := store.GetByID(ctx, "id-ancient")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJanitor_StopIsIdempotent(t *testing.T) {
	p, _, _ := newTestProvider(t)

	j := NewJanitor(p, time.Hour, testLogger())
	j.Start(context.Background())

	j.Stop()
	assert.NotPanics(t, j.Stop)
}

func TestJanitor_DefaultInterval(t *testing.T) {
	p, _, _ := newTestProvider(t)

	j := NewJanitor(p, 0, testLogger())
	assert.Equal(t, DefaultSweepInterval, j.interval)
}

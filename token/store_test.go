package token

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubfold/tokend/logger"
	"github.com/hubfold/tokend/storage"
)

func testLogger() logger.Logger {
	return logger.NewZerologLogger(&logger.Config{
		Level:   logger.ErrorLevel,
		Outputs: []io.Writer{io.Discard},
	})
}

// fakeClock is a settable time source for debounce and retention tests
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewMemoryBackend(), testLogger())
}

func deviceToken(id, uid, hash string) *DeviceToken {
	return &DeviceToken{
		ID:           id,
		UID:          uid,
		LoginName:    uid,
		Name:         "test device",
		Hash:         hash,
		Kind:         KindPermanent,
		LastActivity: 1000,
		Scope:        DefaultScope(),
		Version:      CurrentVersion,
	}
}

func TestStore_InsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tok := deviceToken("id-1", "alice", "hash-1")
	require.NoError(t, s.Insert(ctx, tok))

	byHash, err := s.GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "id-1", byHash.ID)
	assert.Equal(t, "alice", byHash.UID)

	byID, err := s.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", byID.Hash)
}

func TestStore_InsertDuplicateHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, deviceToken("id-1", "alice", "hash-1")))

	err := s.Insert(ctx, deviceToken("id-2", "alice", "hash-1"))
	assert.ErrorIs(t, err, ErrUniqueConstraint)

	// The original record is untouched
	tok, err := s.GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "id-1", tok.ID)
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetByHash(ctx, "no-such-hash")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = s.GetByID(ctx, "no-such-id")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestStore_Update(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tok := deviceToken("id-1", "alice", "hash-1")
	require.NoError(t, s.Insert(ctx, tok))

	tok.Name = "renamed"
	require.NoError(t, s.Update(ctx, tok))

	got, err := s.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
}

func TestStore_UpdateMovesHashIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tok := deviceToken("id-1", "alice", "hash-old")
	require.NoError(t, s.Insert(ctx, tok))

	tok.Hash = "hash-new"
	require.NoError(t, s.Update(ctx, tok))

	_, err := s.GetByHash(ctx, "hash-old")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	got, err := s.GetByHash(ctx, "hash-new")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
}

func TestStore_UpdateMissing(t *testing.T) {
	s := newTestStore(t)
	err := s.Update(context.Background(), deviceToken("ghost", "alice", "hash-x"))
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestStore_UpdateActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tok := deviceToken("id-1", "alice", "hash-1")
	tok.Name = "original"
	require.NoError(t, s.Insert(ctx, tok))

	// The caller's struct may have drifted; only the timestamp of the
	// stored record must change.
	drifted := deviceToken("id-1", "alice", "hash-1")
	drifted.Name = "drifted"
	require.NoError(t, s.UpdateActivity(ctx, drifted, 9999))

	got, err := s.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, int64(9999), got.LastActivity)
	assert.Equal(t, "original", got.Name)
}

func TestStore_GetAllByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, deviceToken("id-1", "alice", "hash-1")))
	require.NoError(t, s.Insert(ctx, deviceToken("id-2", "alice", "hash-2")))
	require.NoError(t, s.Insert(ctx, deviceToken("id-3", "bob", "hash-3")))

	tokens, err := s.GetAllByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tokens, 2)

	tokens, err = s.GetAllByUser(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestStore_DeleteByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, deviceToken("id-1", "alice", "hash-1")))
	require.NoError(t, s.DeleteByHash(ctx, "hash-1"))

	_, err := s.GetByHash(ctx, "hash-1")
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = s.GetByID(ctx, "id-1")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// Deleting again is a no-op
	assert.NoError(t, s.DeleteByHash(ctx, "hash-1"))
}

func TestStore_DeleteByID_ScopedToOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, deviceToken("id-1", "alice", "hash-1")))

	// Someone else's uid must not delete the record
	require.NoError(t, s.DeleteByID(ctx, "mallory", "id-1"))
	_, err := s.GetByID(ctx, "id-1")
	require.NoError(t, err)

	require.NoError(t, s.DeleteByID(ctx, "alice", "id-1"))
	_, err = s.GetByID(ctx, "id-1")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// Unknown id is a silent no-op
	assert.NoError(t, s.DeleteByID(ctx, "alice", "ghost"))
}

func TestStore_DeleteOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := deviceToken("id-old", "alice", "hash-old")
	old.Kind = KindTemporary
	old.Remember = DoNotRemember
	old.LastActivity = 100
	require.NoError(t, s.Insert(ctx, old))

	fresh := deviceToken("id-fresh", "alice", "hash-fresh")
	fresh.Kind = KindTemporary
	fresh.Remember = DoNotRemember
	fresh.LastActivity = 5000
	require.NoError(t, s.Insert(ctx, fresh))

	remembered := deviceToken("id-rem", "alice", "hash-rem")
	remembered.Kind = KindTemporary
	remembered.Remember = RememberMe
	remembered.LastActivity = 100
	require.NoError(t, s.Insert(ctx, remembered))

	permanent := deviceToken("id-perm", "alice", "hash-perm")
	permanent.LastActivity = 100
	require.NoError(t, s.Insert(ctx, permanent))

	deleted, err := s.DeleteOlderThan(ctx, 1000, KindTemporary, DoNotRemember)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = s.GetByID(ctx, "id-old")
	assert.ErrorIs(t, err, ErrTokenNotFound)
	for _, id := range []string{"id-fresh", "id-rem", "id-perm"} {
		_, err = s.GetByID(ctx, id)
		assert.NoError(t, err, "token %s must survive", id)
	}

	// RememberAny matches both remember states
	deleted, err = s.DeleteOlderThan(ctx, 1000, KindTemporary, RememberAny)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestStore_DeleteOlderThan_CutoffBoundary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// "Older than" is strict: a token last used exactly at the cutoff
	// is still inside its retention window
	atCutoff := deviceToken("id-at", "alice", "hash-at")
	atCutoff.Kind = KindTemporary
	atCutoff.Remember = DoNotRemember
	atCutoff.LastActivity = 1000
	require.NoError(t, s.Insert(ctx, atCutoff))

	justBefore := deviceToken("id-before", "alice", "hash-before")
	justBefore.Kind = KindTemporary
	justBefore.Remember = DoNotRemember
	justBefore.LastActivity = 999
	require.NoError(t, s.Insert(ctx, justBefore))

	deleted, err := s.DeleteOlderThan(ctx, 1000, KindTemporary, DoNotRemember)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = s.GetByID(ctx, "id-at")
	assert.NoError(t, err)
	_, err = s.GetByID(ctx, "id-before")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestStore_DeleteLastUsedBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	idle := deviceToken("id-idle", "alice", "hash-idle")
	idle.LastActivity = 100
	require.NoError(t, s.Insert(ctx, idle))

	active := deviceToken("id-active", "alice", "hash-active")
	active.LastActivity = 5000
	require.NoError(t, s.Insert(ctx, active))

	other := deviceToken("id-other", "bob", "hash-other")
	other.LastActivity = 100
	require.NoError(t, s.Insert(ctx, other))

	deleted, err := s.DeleteLastUsedBefore(ctx, "alice", 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = s.GetByID(ctx, "id-idle")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// Other users are untouched even when idle
	_, err = s.GetByID(ctx, "id-other")
	assert.NoError(t, err)
}

func TestStore_HasInvalidPasswords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok := deviceToken("id-1", "alice", "hash-1")
	require.NoError(t, s.Insert(ctx, ok))

	stale, err := s.HasInvalidPasswords(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, stale)

	flagged := deviceToken("id-2", "alice", "hash-2")
	flagged.PasswordInvalid = true
	require.NoError(t, s.Insert(ctx, flagged))

	stale, err = s.HasInvalidPasswords(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, stale)
}

package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBackend runs the behavior every Backend must share
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	// Absent keys yield (nil, nil)
	entry, err := b.Get(ctx, "token/id/missing")
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, b.Put(ctx, &Entry{Key: "token/id/abc", Value: []byte("record-a")}))
	require.NoError(t, b.Put(ctx, &Entry{Key: "token/id/def", Value: []byte("record-b")}))
	require.NoError(t, b.Put(ctx, &Entry{Key: "token/user/alice/abc", Value: []byte("abc")}))

	entry, err = b.Get(ctx, "token/id/abc")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []byte("record-a"), entry.Value)

	// Overwrite
	require.NoError(t, b.Put(ctx, &Entry{Key: "token/id/abc", Value: []byte("record-a2")}))
	entry, err = b.Get(ctx, "token/id/abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("record-a2"), entry.Value)

	keys, err := b.List(ctx, "token/id/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"token/id/abc", "token/id/def"}, keys)

	keys, err = b.List(ctx, "token/user/alice/")
	require.NoError(t, err)
	assert.Equal(t, []string{"token/user/alice/abc"}, keys)

	keys, err = b.List(ctx, "token/user/bob/")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, b.Delete(ctx, "token/id/abc"))
	entry, err = b.Get(ctx, "token/id/abc")
	require.NoError(t, err)
	assert.Nil(t, entry)

	// Deleting an absent key is not an error
	assert.NoError(t, b.Delete(ctx, "token/id/abc"))
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestFileBackend(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	exerciseBackend(t, b)
}

func TestFileBackend_RequiresPath(t *testing.T) {
	_, err := NewFileBackend("")
	require.Error(t, err)
}

func TestFileBackend_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := NewFileBackend(dir)
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, &Entry{Key: "token/id/abc", Value: []byte("record")}))
	require.NoError(t, b.Close())

	reopened, err := NewFileBackend(dir)
	require.NoError(t, err)
	entry, err := reopened.Get(ctx, "token/id/abc")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []byte("record"), entry.Value)
}

func TestMemoryBackend_ValueIsolation(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	value := []byte("original")
	require.NoError(t, b.Put(ctx, &Entry{Key: "k", Value: value}))

	// Mutating the caller's slice after Put must not leak into storage
	value[0] = 'X'
	entry, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), entry.Value)

	// Nor may mutating a returned value corrupt the stored copy
	entry.Value[0] = 'Y'
	entry, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), entry.Value)
}

func TestMemoryBackend_ConcurrentAccess(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			key := fmt.Sprintf("token/id/%d", n)
			for j := 0; j < 100; j++ {
				_ = b.Put(ctx, &Entry{Key: key, Value: []byte("v")})
				_, _ = b.Get(ctx, key)
				_, _ = b.List(ctx, "token/id/")
				_ = b.Delete(ctx, key)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}

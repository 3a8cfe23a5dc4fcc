package storage

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubfold/tokend/logger"
)

func factoryLogger() logger.Logger {
	return logger.NewZerologLogger(&logger.Config{
		Level:   logger.ErrorLevel,
		Outputs: []io.Writer{io.Discard},
	})
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(map[string]string{"type": "inmem"}, factoryLogger())
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	// Empty type defaults to inmem
	b, err = NewBackend(map[string]string{}, factoryLogger())
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	b, err = NewBackend(map[string]string{"type": "file", "path": t.TempDir()}, factoryLogger())
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, b)

	_, err = NewBackend(map[string]string{"type": "etcd"}, factoryLogger())
	require.Error(t, err)
}

package logger

import (
	"io"
	"os"
)

// FileConfig configures rotated file output
type FileConfig struct {
	Filename   string
	MaxSize    int // megabytes
	MaxAge     int // days
	MaxBackups int
	Compress   bool
}

// Config holds logger configuration
type Config struct {
	Level  LogLevel
	Format OutputFormat

	// Outputs are the writers log lines are emitted to. When empty,
	// stderr is used.
	Outputs []io.Writer

	// FileConfig enables rotated file output when non-nil
	FileConfig *FileConfig
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Level:   InfoLevel,
		Format:  DefaultFormat,
		Outputs: []io.Writer{os.Stderr},
	}
}

package audit

import (
	"context"
	"time"
)

// LogEntry is a single audit record of a token lifecycle operation.
// Raw token values never appear here; anything derived from one is
// HMAC-salted before the entry is built.
type LogEntry struct {
	Time      time.Time         `json:"time"`
	Operation string            `json:"operation"`
	UID       string            `json:"uid,omitempty"`
	TokenID   string            `json:"token_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Clone creates a deep copy of the LogEntry to avoid data races when
// devices log in parallel.
func (e *LogEntry) Clone() *LogEntry {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Metadata != nil {
		clone.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// Format defines the serialization format for audit entries
type Format interface {
	// FormatEntry serializes an entry
	FormatEntry(ctx context.Context, entry *LogEntry) ([]byte, error)

	// Name returns the format name
	Name() string
}

// Sink is the interface for audit log destinations
type Sink interface {
	// Write writes the formatted entry to the sink
	Write(ctx context.Context, entry []byte) error

	// Close closes the sink and releases resources
	Close() error

	// Name returns the sink name
	Name() string

	// Type returns the sink type
	Type() string
}

// Device combines a format and a sink
type Device interface {
	// Log records an entry
	Log(ctx context.Context, entry *LogEntry) error

	// Close closes the device
	Close() error

	// Name returns the device name
	Name() string

	// Enabled returns whether the device is enabled
	Enabled() bool

	// SetEnabled sets the enabled state
	SetEnabled(enabled bool)
}

// SaltFunc salts sensitive data before it enters an entry
type SaltFunc func(ctx context.Context, data string) (string, error)

// Manager dispatches entries to registered devices
type Manager interface {
	// RegisterDevice registers a new audit device
	RegisterDevice(name string, device Device) error

	// UnregisterDevice unregisters an audit device
	UnregisterDevice(name string) error

	// ListDevices returns all registered device names
	ListDevices() []string

	// Log records an entry on all enabled devices. Returns (continue,
	// error) where continue is true if at least one device succeeded.
	Log(ctx context.Context, entry *LogEntry) (bool, error)

	// Close closes all devices
	Close() error
}

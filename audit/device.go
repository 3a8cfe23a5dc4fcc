package audit

import (
	"context"
	"fmt"
	"sync/atomic"
)

// device combines a format and a sink with an optional salt function
// applied to the token id before serialization.
type device struct {
	name    string
	format  Format
	sink    Sink
	salt    SaltFunc
	enabled atomic.Bool
}

// DeviceConfig configures an audit device
type DeviceConfig struct {
	Name   string
	Format Format
	Sink   Sink

	// Salt, when set, replaces the entry's token id with its salted
	// form before the entry is written.
	Salt SaltFunc
}

// NewDevice creates an enabled audit device
func NewDevice(config DeviceConfig) (Device, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("device name is required")
	}
	if config.Sink == nil {
		return nil, fmt.Errorf("device sink is required")
	}
	if config.Format == nil {
		config.Format = NewJSONFormat()
	}

	d := &device{
		name:   config.Name,
		format: config.Format,
		sink:   config.Sink,
		salt:   config.Salt,
	}
	d.enabled.Store(true)
	return d, nil
}

// Log records an entry
func (d *device) Log(ctx context.Context, entry *LogEntry) error {
	if !d.enabled.Load() {
		return nil
	}

	entry = entry.Clone()
	if d.salt != nil && entry.TokenID != "" {
		salted, err := d.salt(ctx, entry.TokenID)
		if err != nil {
			return fmt.Errorf("failed to salt entry: %w", err)
		}
		entry.TokenID = salted
	}

	data, err := d.format.FormatEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to format entry: %w", err)
	}
	return d.sink.Write(ctx, data)
}

// Close closes the device
func (d *device) Close() error {
	return d.sink.Close()
}

// Name returns the device name
func (d *device) Name() string {
	return d.name
}

// Enabled returns whether the device is enabled
func (d *device) Enabled() bool {
	return d.enabled.Load()
}

// SetEnabled sets the enabled state
func (d *device) SetEnabled(enabled bool) {
	d.enabled.Store(enabled)
}

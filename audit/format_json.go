package audit

import (
	"context"
	"encoding/json"
	"fmt"
)

// JSONFormat serializes audit entries as single-line JSON
type JSONFormat struct{}

// NewJSONFormat creates a new JSON formatter
func NewJSONFormat() *JSONFormat {
	return &JSONFormat{}
}

// FormatEntry serializes an entry
func (f *JSONFormat) FormatEntry(ctx context.Context, entry *LogEntry) ([]byte, error) {
	if entry == nil {
		return nil, fmt.Errorf("cannot format nil entry")
	}
	return json.Marshal(entry)
}

// Name returns the format name
func (f *JSONFormat) Name() string {
	return "json"
}

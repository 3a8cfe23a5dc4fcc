package storage

import "context"

// Entry is a single key/value pair held by a backend
type Entry struct {
	Key   string
	Value []byte
}

// Backend is the physical persistence layer for token records. Keys
// are slash-separated paths; List returns every key under a prefix.
// Get returns (nil, nil) when the key is absent.
type Backend interface {
	Put(ctx context.Context, entry *Entry) error
	Get(ctx context.Context, key string) (*Entry, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

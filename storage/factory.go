package storage

import (
	"fmt"

	"github.com/hubfold/tokend/logger"
)

// NewBackend builds a Backend from a storage configuration map. The
// map comes from the server's storage config block.
func NewBackend(conf map[string]string, log logger.Logger) (Backend, error) {
	backendType := conf["type"]

	switch backendType {
	case "", "inmem":
		log.Info("using in-memory storage backend")
		return NewMemoryBackend(), nil

	case "file":
		backend, err := NewFileBackend(conf["path"])
		if err != nil {
			return nil, err
		}
		log.Info("using file storage backend", logger.String("path", conf["path"]))
		return backend, nil

	default:
		return nil, fmt.Errorf("unknown storage backend type: %q", backendType)
	}
}

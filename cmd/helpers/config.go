package helpers

import (
	"fmt"
	"os"
	"strings"
)

// ResolveFileRefs replaces config values prefixed with "@" with the
// contents of the referenced file, so credentials can live outside the
// config file (e.g. password = "@/run/secrets/storage_password").
func ResolveFileRefs(config map[string]string) (map[string]string, error) {
	for key, value := range config {
		if strings.HasPrefix(value, "@") {
			filePath := value[1:]
			data, err := os.ReadFile(filePath)
			if err != nil {
				return nil, fmt.Errorf("failed to read file for config key %q: %w", key, err)
			}
			config[key] = string(data)
		}
	}
	return config, nil
}

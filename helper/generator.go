package helper

import (
	"crypto/rand"
	"time"

	"github.com/hashicorp/go-secure-stdlib/base62"
	"github.com/hashicorp/go-uuid"
	"github.com/oklog/ulid"
)

// DeviceSecretLength is the length of generated device secrets. The
// secret is the raw bearer value handed to the client; only its salted
// hash is ever persisted.
const DeviceSecretLength = 56

// GenerateDeviceSecret generates a cryptographically secure raw token
// value (e.g. an app password shown once to the user).
func GenerateDeviceSecret() (string, error) {
	return base62.Random(DeviceSecretLength)
}

// GenerateTokenID generates an opaque store-assigned token identifier
func GenerateTokenID() (string, error) {
	return uuid.GenerateUUID()
}

// GenerateRequestID generates a sortable unique request identifier
func GenerateRequestID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

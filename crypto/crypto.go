package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// symmetricPrefix versions the ciphertext format so the key derivation
// can evolve without breaking stored blobs.
const symmetricPrefix = "v1:"

const (
	saltSize = 16
	keySize  = 32
)

// DecryptionError indicates that a ciphertext could not be decrypted
// with the provided key, either because the key is wrong (e.g. the
// instance secret was rotated) or because the blob is corrupt.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decryption failed: %v", e.Err)
	}
	return "decryption failed"
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

func deriveKey(key string, salt []byte) ([]byte, error) {
	derived := make([]byte, keySize)
	reader := hkdf.New(sha256.New, []byte(key), salt, []byte("tokend symmetric v1"))
	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, err
	}
	return derived, nil
}

// Encrypt encrypts plaintext with a key string using AES-256-GCM. The
// salt and nonce are embedded in the returned blob, so the result is a
// single self-contained text field.
func Encrypt(plaintext, key string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	derived, err := deriveKey(key, salt)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	payload := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)

	return symmetricPrefix + base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt reverses Encrypt. Any mismatch between ciphertext and key is
// reported as a DecryptionError; callers treat it as an invalid-token
// condition rather than surfacing the raw crypto failure.
func Decrypt(ciphertext, key string) (string, error) {
	if !strings.HasPrefix(ciphertext, symmetricPrefix) {
		return "", &DecryptionError{Err: errors.New("unknown ciphertext version")}
	}

	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, symmetricPrefix))
	if err != nil {
		return "", &DecryptionError{Err: err}
	}
	if len(payload) < saltSize {
		return "", &DecryptionError{Err: errors.New("ciphertext too short")}
	}

	salt := payload[:saltSize]
	derived, err := deriveKey(key, salt)
	if err != nil {
		return "", &DecryptionError{Err: err}
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return "", &DecryptionError{Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", &DecryptionError{Err: err}
	}

	rest := payload[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return "", &DecryptionError{Err: errors.New("ciphertext too short")}
	}

	nonce := rest[:gcm.NonceSize()]
	plaintext, err := gcm.Open(nil, nonce, rest[gcm.NonceSize():], nil)
	if err != nil {
		return "", &DecryptionError{Err: err}
	}

	return string(plaintext), nil
}

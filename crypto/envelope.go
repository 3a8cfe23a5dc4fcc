package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// envelopePrefix versions the sealed-blob format
const envelopePrefix = "env1:"

// MinKeyBits is the smallest accepted RSA modulus. Anything below this
// cannot OAEP-wrap a 32-byte payload key.
const MinKeyBits = 1024

// GenerateKeyPair generates an RSA key pair and returns both halves
// PEM-encoded. The private half is expected to be encrypted with
// Encrypt before it is persisted.
func GenerateKeyPair(bits int) (privatePEM, publicPEM string, err error) {
	if bits < MinKeyBits {
		return "", "", fmt.Errorf("key size %d below minimum of %d bits", bits, MinKeyBits)
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate key pair: %w", err)
	}

	privateDER := x509.MarshalPKCS1PrivateKey(key)
	privatePEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: privateDER,
	}))

	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	publicPEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicDER,
	}))

	return privatePEM, publicPEM, nil
}

func parsePublicKey(publicPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicPEM))
	if block == nil {
		return nil, errors.New("no PEM block in public key")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return pub, nil
}

func parsePrivateKey(privatePEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privatePEM))
	if block == nil {
		return nil, errors.New("no PEM block in private key")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// Seal encrypts plaintext to a PEM-encoded RSA public key using an
// AES-256-GCM payload key wrapped with RSA-OAEP. Sealing requires only
// the public half, which is what allows stored passwords to be
// re-encrypted for a token without knowing its raw secret.
func Seal(publicPEM string, plaintext []byte) (string, error) {
	pub, err := parsePublicKey(publicPEM)
	if err != nil {
		return "", fmt.Errorf("failed to parse public key: %w", err)
	}

	payloadKey := make([]byte, keySize)
	if _, err := rand.Read(payloadKey); err != nil {
		return "", fmt.Errorf("failed to generate payload key: %w", err)
	}

	block, err := aes.NewCipher(payloadKey)
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
	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, payloadKey, nil)
	if err != nil {
		return "", fmt.Errorf("failed to wrap payload key: %w", err)
	}

	payload := make([]byte, 2, 2+len(wrapped)+len(nonce)+len(sealed))
	binary.BigEndian.PutUint16(payload, uint16(len(wrapped)))
	payload = append(payload, wrapped...)
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)

	return envelopePrefix + base64.StdEncoding.EncodeToString(payload), nil
}

// Open reverses Seal using the PEM-encoded RSA private key. Failures
// are reported as DecryptionError.
func Open(privatePEM, sealed string) ([]byte, error) {
	if !strings.HasPrefix(sealed, envelopePrefix) {
		return nil, &DecryptionError{Err: errors.New("unknown envelope version")}
	}

	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, envelopePrefix))
	if err != nil {
		return nil, &DecryptionError{Err: err}
	}
	if len(payload) < 2 {
		return nil, &DecryptionError{Err: errors.New("envelope too short")}
	}

	wrappedLen := int(binary.BigEndian.Uint16(payload))
	payload = payload[2:]
	if len(payload) < wrappedLen {
		return nil, &DecryptionError{Err: errors.New("envelope too short")}
	}

	priv, err := parsePrivateKey(privatePEM)
	if err != nil {
		return nil, &DecryptionError{Err: err}
	}

	payloadKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, payload[:wrappedLen], nil)
	if err != nil {
		return nil, &DecryptionError{Err: err}
	}

	block, err := aes.NewCipher(payloadKey)
	if err != nil {
		return nil, &DecryptionError{Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &DecryptionError{Err: err}
	}

	rest := payload[wrappedLen:]
	if len(rest) < gcm.NonceSize() {
		return nil, &DecryptionError{Err: errors.New("envelope too short")}
	}

	plaintext, err := gcm.Open(nil, rest[:gcm.NonceSize()], rest[gcm.NonceSize():], nil)
	if err != nil {
		return nil, &DecryptionError{Err: err}
	}
	return plaintext, nil
}

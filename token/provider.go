package token

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	metrics "github.com/hashicorp/go-metrics"
	"github.com/mitchellh/copystructure"

	"github.com/hubfold/tokend/crypto"
	"github.com/hubfold/tokend/helper"
	"github.com/hubfold/tokend/logger"
)

// Config tunes the token provider. Durations of zero disable the
// corresponding retention sweep.
type Config struct {
	// InstanceSecret salts token hashes and keys the private-key
	// encryption together with the raw token. Rotating it invalidates
	// every outstanding token.
	InstanceSecret string

	// SessionLifetime bounds temporary tokens without remember-me
	SessionLifetime time.Duration

	// RememberLifetime bounds temporary tokens with remember-me
	RememberLifetime time.Duration

	// WipeLifetime bounds tokens flagged for remote wipe. They are kept
	// longer than sessions so offline devices still receive the signal.
	WipeLifetime time.Duration

	// PermanentLifetime bounds permanent tokens by inactivity
	PermanentLifetime time.Duration

	// ActivityDebounce suppresses activity writes closer together than
	// this window.
	ActivityDebounce time.Duration

	// KeyBits is the RSA modulus size for new token key pairs
	KeyBits int

	// StoreEncryptedPassword controls whether login passwords are
	// sealed into token records at all.
	StoreEncryptedPassword bool

	// CacheSize caps the number of token records held in memory
	CacheSize int64

	// EnableMetrics emits go-metrics counters for token operations
	EnableMetrics bool
}

// DefaultConfig returns the production defaults
func DefaultConfig() *Config {
	return &Config{
		SessionLifetime:        24 * time.Hour,
		RememberLifetime:       15 * 24 * time.Hour,
		WipeLifetime:           60 * 24 * time.Hour,
		PermanentLifetime:      365 * 24 * time.Hour,
		ActivityDebounce:       60 * time.Second,
		KeyBits:                2048,
		StoreEncryptedPassword: true,
		CacheSize:              8192,
		EnableMetrics:          true,
	}
}

// Provider implements the token lifecycle: generation, lookup by raw
// secret, password handling, rotation and retention sweeps. Raw token
// values pass through but are never persisted; records are addressed
// by their salted hash.
type Provider struct {
	cfg   *Config
	store *Store
	clock Clock
	log   logger.Logger
	cache *ristretto.Cache[string, *DeviceToken]
}

// NewProvider creates a token provider on the given store
func NewProvider(cfg *Config, store *Store, clock Clock, log logger.Logger) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if clock == nil {
		clock = SystemClock()
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 8192
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *DeviceToken]{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}

	return &Provider{
		cfg:   cfg,
		store: store,
		clock: clock,
		log:   log,
		cache: cache,
	}, nil
}

// Close releases the provider's cache resources
func (p *Provider) Close() {
	p.cache.Close()
}

func (p *Provider) incrCounter(name string) {
	if p.cfg.EnableMetrics {
		metrics.IncrCounter([]string{"tokend", "token", name}, 1)
	}
}

func (p *Provider) measureSince(name string, start time.Time) {
	if p.cfg.EnableMetrics {
		metrics.MeasureSince([]string{"tokend", "token", name}, start)
	}
}

// hashToken derives the storage lookup key from a raw token value. The
// instance secret acts as a pepper so a leaked store cannot be probed
// with candidate tokens alone.
func (p *Provider) hashToken(rawToken string) string {
	sum := sha512.Sum512([]byte(rawToken + p.cfg.InstanceSecret))
	return hex.EncodeToString(sum[:])
}

// legacyHashToken is the unsalted hash older deployments wrote.
// Invalidation deletes under both forms so pre-migration rows cannot
// survive a revocation.
func legacyHashToken(rawToken string) string {
	sum := sha512.Sum512([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// privateKeyKey is the symmetric key material protecting a token's
// private key. It requires possession of the raw token, which is what
// binds password decryption to the bearer.
func (p *Provider) privateKeyKey(rawToken string) string {
	return rawToken + p.cfg.InstanceSecret
}

func (p *Provider) cacheGet(hash string) *DeviceToken {
	t, ok := p.cache.Get(hash)
	if !ok || t == nil {
		return nil
	}
	copied, err := copystructure.Copy(t)
	if err != nil {
		return nil
	}
	return copied.(*DeviceToken)
}

func (p *Provider) cacheSet(t *DeviceToken) {
	copied, err := copystructure.Copy(t)
	if err != nil {
		return
	}
	p.cache.Set(t.Hash, copied.(*DeviceToken), 1)
	// Cache writes are buffered; wait so a lookup right after an
	// update (wipe mark, rotation) cannot see the stale record.
	p.cache.Wait()
}

func (p *Provider) cacheDrop(hash string) {
	p.cache.Del(hash)
	p.cache.Wait()
}

// GenerateToken creates and persists a new token record for the given
// raw secret. The password, when present and password storage is
// enabled, is sealed to a fresh per-token key pair; the private half is
// encrypted under the raw token. Generation is idempotent on the raw
// secret: a concurrent insert of the same hash yields the winning
// record instead of an error.
func (p *Provider) GenerateToken(ctx context.Context, rawToken, uid, loginName string, password *string, name string, kind Kind, remember Remember) (*DeviceToken, error) {
	defer p.measureSince("generate_time", time.Now())

	id, err := helper.GenerateTokenID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token id: %w", err)
	}

	privatePEM, publicPEM, err := crypto.GenerateKeyPair(p.cfg.KeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token key pair: %w", err)
	}
	encryptedPrivate, err := crypto.Encrypt(privatePEM, p.privateKeyKey(rawToken))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt private key: %w", err)
	}

	now := p.clock.Now().Unix()
	t := &DeviceToken{
		ID:           id,
		UID:          uid,
		LoginName:    loginName,
		Name:         TruncateName(name),
		Hash:         p.hashToken(rawToken),
		Kind:         kind,
		Remember:     remember,
		LastActivity: now,
		LastCheck:    now,
		Scope:        DefaultScope(),
		PublicKey:    publicPEM,
		PrivateKey:   encryptedPrivate,
		Version:      CurrentVersion,
	}

	if password != nil && p.cfg.StoreEncryptedPassword {
		sealed, err := crypto.Seal(publicPEM, []byte(*password))
		if err != nil {
			return nil, fmt.Errorf("failed to seal password: %w", err)
		}
		t.Password = sealed
	}

	if err := p.store.Insert(ctx, t); err != nil {
		if errors.Is(err, ErrUniqueConstraint) {
			// Concurrent generation for the same raw secret; the
			// winning record is equivalent, use it.
			existing, getErr := p.store.GetByHash(ctx, t.Hash)
			if getErr != nil {
				return nil, getErr
			}
			p.log.Debug("token generation raced, reusing existing record",
				logger.String("token_id", existing.ID),
				logger.String("uid", uid))
			return existing, nil
		}
		return nil, err
	}

	p.incrCounter("generate")
	p.log.Info("generated token",
		logger.String("token_id", t.ID),
		logger.String("uid", uid),
		logger.String("kind", kind.String()))
	p.cacheSet(t)
	return t, nil
}

// GetToken resolves a raw token value to its record. A missing record
// is ErrInvalidToken; a record past its expiry is ExpiredTokenError
// carrying the token so the caller can offer renewal.
func (p *Provider) GetToken(ctx context.Context, rawToken string) (*DeviceToken, error) {
	hash := p.hashToken(rawToken)

	t := p.cacheGet(hash)
	if t == nil {
		var err error
		t, err = p.store.GetByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, ErrTokenNotFound) {
				p.incrCounter("miss")
				return nil, ErrInvalidToken
			}
			return nil, err
		}
		p.cacheSet(t)
	}

	if t.Expires != nil && *t.Expires < p.clock.Now().Unix() {
		return nil, &ExpiredTokenError{Token: t}
	}
	return t, nil
}

// GetTokenByID resolves a store identifier to its record
func (p *Provider) GetTokenByID(ctx context.Context, id string) (*DeviceToken, error) {
	t, err := p.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if t.Expires != nil && *t.Expires < p.clock.Now().Unix() {
		return nil, &ExpiredTokenError{Token: t}
	}
	return t, nil
}

// GetTokensByUser lists every token owned by a user
func (p *Provider) GetTokensByUser(ctx context.Context, uid string) ([]*DeviceToken, error) {
	return p.store.GetAllByUser(ctx, uid)
}

// GetPassword recovers the login password sealed into a token. The raw
// token is required to decrypt the private key. A token without a
// stored password yields ErrPasswordless. When decryption fails the
// record is unrecoverable (secret rotation, corruption); it is revoked
// and ErrInvalidToken returned so the client re-authenticates.
func (p *Provider) GetPassword(ctx context.Context, t PasswordStorer, rawToken string) (string, error) {
	kp, ok := t.(KeyPaired)
	if !ok {
		return "", ErrInvalidToken
	}
	if t.GetPassword() == "" {
		return "", ErrPasswordless
	}

	privatePEM, err := crypto.Decrypt(kp.GetPrivateKey(), p.privateKeyKey(rawToken))
	if err != nil {
		return "", p.handleDecryptionError(ctx, t, rawToken, err)
	}
	password, err := crypto.Open(privatePEM, t.GetPassword())
	if err != nil {
		return "", p.handleDecryptionError(ctx, t, rawToken, err)
	}
	return string(password), nil
}

func (p *Provider) handleDecryptionError(ctx context.Context, t Token, rawToken string, err error) error {
	var decErr *crypto.DecryptionError
	if !errors.As(err, &decErr) {
		return err
	}

	p.log.Warn("token payload cannot be decrypted, revoking",
		logger.String("token_id", t.GetID()),
		logger.String("uid", t.GetUID()),
		logger.Err(decErr))
	p.incrCounter("decrypt_failure")

	if invErr := p.InvalidateToken(ctx, rawToken); invErr != nil {
		p.log.Error("failed to revoke undecryptable token",
			logger.String("token_id", t.GetID()),
			logger.Err(invErr))
	}
	return ErrInvalidToken
}

// SetPassword stores a new password on the token. The raw token must
// hash to the record, which prevents writing a password onto someone
// else's token through a stale handle.
func (p *Provider) SetPassword(ctx context.Context, t PasswordStorer, rawToken, password string) error {
	dt, ok := t.(*DeviceToken)
	if !ok {
		return ErrInvalidToken
	}
	if dt.Hash != p.hashToken(rawToken) {
		return ErrInvalidToken
	}
	if !p.cfg.StoreEncryptedPassword {
		dt.Password = ""
		return p.UpdateToken(ctx, dt)
	}

	sealed, err := crypto.Seal(dt.PublicKey, []byte(password))
	if err != nil {
		return fmt.Errorf("failed to seal password: %w", err)
	}
	dt.Password = sealed
	dt.PasswordInvalid = false
	return p.UpdateToken(ctx, dt)
}

// UpdateToken persists the record and refreshes the cache
func (p *Provider) UpdateToken(ctx context.Context, t *DeviceToken) error {
	if err := p.store.Update(ctx, t); err != nil {
		return err
	}
	p.cacheSet(t)
	p.incrCounter("update")
	return nil
}

// UpdateActivity records that the token was just used. Writes within
// the debounce window of the last recorded activity are skipped, which
// keeps request-path storage traffic bounded.
func (p *Provider) UpdateActivity(ctx context.Context, t *DeviceToken) error {
	now := p.clock.Now()
	if now.Sub(time.Unix(t.LastActivity, 0)) <= p.cfg.ActivityDebounce {
		return nil
	}

	t.LastActivity = now.Unix()
	if err := p.store.UpdateActivity(ctx, t, t.LastActivity); err != nil {
		return err
	}
	p.cacheSet(t)
	return nil
}

// InvalidateToken revokes the token for a raw secret. Both the salted
// and the legacy unsalted hash are removed so records written before
// the hashing change cannot outlive a revocation. Missing records are
// ignored; revocation is idempotent.
func (p *Provider) InvalidateToken(ctx context.Context, rawToken string) error {
	hash := p.hashToken(rawToken)
	legacy := legacyHashToken(rawToken)

	p.cacheDrop(hash)
	p.cacheDrop(legacy)

	if err := p.store.DeleteByHash(ctx, hash); err != nil {
		return err
	}
	if err := p.store.DeleteByHash(ctx, legacy); err != nil {
		return err
	}
	p.incrCounter("invalidate")
	return nil
}

// InvalidateTokenByID revokes a token by identifier, scoped to its
// owning user. Unknown ids and foreign tokens are silent no-ops.
func (p *Provider) InvalidateTokenByID(ctx context.Context, uid, id string) error {
	t, err := p.store.GetByID(ctx, id)
	if err == nil {
		p.cacheDrop(t.Hash)
	} else if !errors.Is(err, ErrTokenNotFound) {
		return err
	}

	if err := p.store.DeleteByID(ctx, uid, id); err != nil {
		return err
	}
	p.incrCounter("invalidate")
	return nil
}

// InvalidateOldTokens runs the retention sweeps: idle sessions, idle
// remember-me sessions, stale wipe flags and idle permanent tokens. A
// zero lifetime disables the corresponding sweep.
func (p *Provider) InvalidateOldTokens(ctx context.Context) error {
	now := p.clock.Now()

	sweeps := []struct {
		name     string
		lifetime time.Duration
		kind     Kind
		remember Remember
	}{
		{"session", p.cfg.SessionLifetime, KindTemporary, DoNotRemember},
		{"remember", p.cfg.RememberLifetime, KindTemporary, RememberMe},
		{"wipe", p.cfg.WipeLifetime, KindWipe, RememberAny},
		{"permanent", p.cfg.PermanentLifetime, KindPermanent, RememberAny},
	}

	for _, sweep := range sweeps {
		if sweep.lifetime <= 0 {
			continue
		}
		cutoff := now.Add(-sweep.lifetime).Unix()
		deleted, err := p.store.DeleteOlderThan(ctx, cutoff, sweep.kind, sweep.remember)
		if err != nil {
			return fmt.Errorf("%s sweep failed: %w", sweep.name, err)
		}
		if deleted > 0 {
			p.log.Info("retention sweep removed tokens",
				logger.String("sweep", sweep.name),
				logger.Int("deleted", deleted))
			if p.cfg.EnableMetrics {
				metrics.IncrCounter([]string{"tokend", "token", "swept", sweep.name}, float32(deleted))
			}
		}
	}
	return nil
}

// InvalidateLastUsedBefore revokes all of a user's tokens idle since
// before the given time. Returns the number of tokens removed.
func (p *Provider) InvalidateLastUsedBefore(ctx context.Context, uid string, before time.Time) (int, error) {
	tokens, err := p.store.GetAllByUser(ctx, uid)
	if err != nil {
		return 0, err
	}
	for _, t := range tokens {
		if t.LastActivity < before.Unix() {
			p.cacheDrop(t.Hash)
		}
	}
	return p.store.DeleteLastUsedBefore(ctx, uid, before.Unix())
}

// RenewSessionToken exchanges an expired session token for a fresh one
// carrying the same identity and password. Only temporary tokens are
// renewable. The old record is revoked once the replacement exists.
func (p *Provider) RenewSessionToken(ctx context.Context, oldRawToken, newRawToken string) (*DeviceToken, error) {
	old, err := p.store.GetByHash(ctx, p.hashToken(oldRawToken))
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if old.Kind != KindTemporary {
		return nil, ErrInvalidToken
	}

	var password *string
	if old.Password != "" {
		recovered, err := p.GetPassword(ctx, old, oldRawToken)
		if err != nil && !errors.Is(err, ErrPasswordless) {
			return nil, err
		}
		if err == nil {
			password = &recovered
		}
	}

	renewed, err := p.GenerateToken(ctx, newRawToken, old.UID, old.LoginName, password, old.Name, KindTemporary, old.Remember)
	if err != nil {
		return nil, err
	}
	renewed.Scope = old.GetScope()
	if err := p.UpdateToken(ctx, renewed); err != nil {
		return nil, err
	}

	if err := p.InvalidateToken(ctx, oldRawToken); err != nil {
		return nil, err
	}
	p.incrCounter("renew")
	p.log.Info("renewed session token",
		logger.String("uid", old.UID),
		logger.String("old_token_id", old.ID),
		logger.String("new_token_id", renewed.ID))
	return renewed, nil
}

// Rotate moves a token onto a new raw secret. The private key is
// re-encrypted under the new secret and the lookup hash rewritten in
// place, so the record identity and sealed password survive.
func (p *Provider) Rotate(ctx context.Context, t *DeviceToken, oldRawToken, newRawToken string) (*DeviceToken, error) {
	privatePEM, err := crypto.Decrypt(t.PrivateKey, p.privateKeyKey(oldRawToken))
	if err != nil {
		return nil, p.handleDecryptionError(ctx, t, oldRawToken, err)
	}
	encryptedPrivate, err := crypto.Encrypt(privatePEM, p.privateKeyKey(newRawToken))
	if err != nil {
		return nil, fmt.Errorf("failed to re-encrypt private key: %w", err)
	}

	oldHash := t.Hash
	t.PrivateKey = encryptedPrivate
	t.Hash = p.hashToken(newRawToken)
	t.Version = CurrentVersion

	if err := p.store.Update(ctx, t); err != nil {
		return nil, err
	}
	p.cacheDrop(oldHash)
	p.cacheSet(t)
	p.incrCounter("rotate")
	return t, nil
}

// MarkPasswordInvalid flags the token's stored password as stale, e.g.
// after an upstream password change was detected. The sealed blob is
// kept so UpdatePasswords can replace it wholesale.
func (p *Provider) MarkPasswordInvalid(ctx context.Context, t PasswordStorer) error {
	dt, ok := t.(*DeviceToken)
	if !ok {
		return ErrInvalidToken
	}
	dt.PasswordInvalid = true
	return p.UpdateToken(ctx, dt)
}

// UpdatePasswords re-seals a user's new password onto every one of
// their password-carrying tokens. Sealing needs only each token's
// public key, so no raw token values are required. The pass is skipped
// entirely when no token is flagged invalid.
func (p *Provider) UpdatePasswords(ctx context.Context, uid, password string) error {
	stale, err := p.store.HasInvalidPasswords(ctx, uid)
	if err != nil {
		return err
	}
	if !stale {
		return nil
	}

	tokens, err := p.store.GetAllByUser(ctx, uid)
	if err != nil {
		return err
	}

	updated := 0
	for _, t := range tokens {
		if t.Password == "" || t.PublicKey == "" {
			continue
		}
		sealed, err := crypto.Seal(t.PublicKey, []byte(password))
		if err != nil {
			return fmt.Errorf("failed to seal password for token %s: %w", t.ID, err)
		}
		t.Password = sealed
		t.PasswordInvalid = false
		if err := p.UpdateToken(ctx, t); err != nil {
			return err
		}
		updated++
	}

	p.log.Info("re-sealed user passwords",
		logger.String("uid", uid),
		logger.Int("updated", updated))
	return nil
}

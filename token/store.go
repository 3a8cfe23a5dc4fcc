package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hubfold/tokend/logger"
	"github.com/hubfold/tokend/storage"
)

// Storage key layout. The hash index is the lookup path for bearer
// secrets; the user index serves per-user listings and scoped deletes.
const (
	tokenStorePath  = "token/"
	tokenIDPrefix   = tokenStorePath + "id/"
	tokenHashPrefix = tokenStorePath + "hash/"
	tokenUserPrefix = tokenStorePath + "user/"
)

// Store persists token records on a storage.Backend. A single mutex
// serializes mutations, standing in for the unique constraint a
// relational store would put on the hash column: Insert observes an
// existing hash atomically and reports ErrUniqueConstraint.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend
	log     logger.Logger
}

// NewStore creates a token store on the given backend
func NewStore(backend storage.Backend, log logger.Logger) *Store {
	return &Store{
		backend: backend,
		log:     log,
	}
}

func idKey(id string) string            { return tokenIDPrefix + id }
func hashKey(hash string) string        { return tokenHashPrefix + hash }
func userKey(uid, id string) string     { return tokenUserPrefix + uid + "/" + id }

func encodeToken(t *DeviceToken) ([]byte, error) {
	if t == nil {
		return nil, errors.New("cannot encode nil token")
	}
	return json.Marshal(t)
}

func decodeToken(data []byte) (*DeviceToken, error) {
	if len(data) == 0 {
		return nil, errors.New("cannot decode empty token record")
	}
	var t DeviceToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Insert writes a new record. It fails with ErrUniqueConstraint when
// the token hash is already indexed, which callers resolve by reading
// the existing record.
func (s *Store) Insert(ctx context.Context, t *DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.backend.Get(ctx, hashKey(t.Hash))
	if err != nil {
		return fmt.Errorf("failed to check hash index: %w", err)
	}
	if existing != nil {
		return ErrUniqueConstraint
	}

	return s.putLocked(ctx, t)
}

// Update rewrites an existing record. When the hash changed (rotation,
// session renewal in place) the old hash index entry is removed.
func (s *Store) Update(ctx context.Context, t *DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getByIDLocked(ctx, t.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrTokenNotFound
	}

	if current.Hash != t.Hash {
		if err := s.backend.Delete(ctx, hashKey(current.Hash)); err != nil {
			return fmt.Errorf("failed to drop old hash index: %w", err)
		}
	}

	return s.putLocked(ctx, t)
}

// UpdateActivity is the partial-update path for the debounced activity
// tracker: only the activity timestamp of the stored record changes.
func (s *Store) UpdateActivity(ctx context.Context, t *DeviceToken, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getByIDLocked(ctx, t.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrTokenNotFound
	}

	current.LastActivity = timestamp

	data, err := encodeToken(current)
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, &storage.Entry{Key: idKey(current.ID), Value: data})
}

func (s *Store) putLocked(ctx context.Context, t *DeviceToken) error {
	data, err := encodeToken(t)
	if err != nil {
		return err
	}

	if err := s.backend.Put(ctx, &storage.Entry{Key: idKey(t.ID), Value: data}); err != nil {
		return fmt.Errorf("failed to store token record: %w", err)
	}
	if err := s.backend.Put(ctx, &storage.Entry{Key: hashKey(t.Hash), Value: []byte(t.ID)}); err != nil {
		return fmt.Errorf("failed to store hash index: %w", err)
	}
	if err := s.backend.Put(ctx, &storage.Entry{Key: userKey(t.UID, t.ID), Value: []byte(t.ID)}); err != nil {
		return fmt.Errorf("failed to store user index: %w", err)
	}
	return nil
}

func (s *Store) getByIDLocked(ctx context.Context, id string) (*DeviceToken, error) {
	entry, err := s.backend.Get(ctx, idKey(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read token record: %w", err)
	}
	if entry == nil {
		return nil, nil
	}
	return decodeToken(entry.Value)
}

// GetByHash looks a record up by its salted hash
func (s *Store) GetByHash(ctx context.Context, hash string) (*DeviceToken, error) {
	entry, err := s.backend.Get(ctx, hashKey(hash))
	if err != nil {
		return nil, fmt.Errorf("failed to read hash index: %w", err)
	}
	if entry == nil {
		return nil, ErrTokenNotFound
	}

	t, err := s.getByIDLocked(ctx, string(entry.Value))
	if err != nil {
		return nil, err
	}
	if t == nil {
		// Dangling index entry; treat as absent and clean up.
		_ = s.backend.Delete(ctx, hashKey(hash))
		return nil, ErrTokenNotFound
	}
	return t, nil
}

// GetByID looks a record up by its store-assigned identifier
func (s *Store) GetByID(ctx context.Context, id string) (*DeviceToken, error) {
	t, err := s.getByIDLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTokenNotFound
	}
	return t, nil
}

// GetAllByUser returns every token owned by uid
func (s *Store) GetAllByUser(ctx context.Context, uid string) ([]*DeviceToken, error) {
	keys, err := s.backend.List(ctx, tokenUserPrefix+uid+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list user index: %w", err)
	}

	tokens := make([]*DeviceToken, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, tokenUserPrefix+uid+"/")
		t, err := s.getByIDLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

func (s *Store) deleteLocked(ctx context.Context, t *DeviceToken) error {
	if err := s.backend.Delete(ctx, idKey(t.ID)); err != nil {
		return fmt.Errorf("failed to delete token record: %w", err)
	}
	if err := s.backend.Delete(ctx, hashKey(t.Hash)); err != nil {
		return fmt.Errorf("failed to delete hash index: %w", err)
	}
	if err := s.backend.Delete(ctx, userKey(t.UID, t.ID)); err != nil {
		return fmt.Errorf("failed to delete user index: %w", err)
	}
	return nil
}

// DeleteByHash removes the record indexed by hash. A missing record is
// a silent no-op; revocation is idempotent.
func (s *Store) DeleteByHash(ctx context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.backend.Get(ctx, hashKey(hash))
	if err != nil {
		return fmt.Errorf("failed to read hash index: %w", err)
	}
	if entry == nil {
		return nil
	}

	t, err := s.getByIDLocked(ctx, string(entry.Value))
	if err != nil {
		return err
	}
	if t == nil {
		return s.backend.Delete(ctx, hashKey(hash))
	}
	return s.deleteLocked(ctx, t)
}

// DeleteByID removes a record scoped to its owning user. An id that
// exists but belongs to someone else is a silent no-op, not an error.
func (s *Store) DeleteByID(ctx context.Context, uid, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.getByIDLocked(ctx, id)
	if err != nil {
		return err
	}
	if t == nil || t.UID != uid {
		return nil
	}
	return s.deleteLocked(ctx, t)
}

// DeleteOlderThan removes every record of the given kind whose last
// activity predates cutoff. remember narrows the match for temporary
// tokens; pass RememberAny to match both states. Returns the number of
// records removed.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff int64, kind Kind, remember Remember) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.backend.List(ctx, tokenIDPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list token records: %w", err)
	}

	deleted := 0
	for _, key := range keys {
		t, err := s.getByIDLocked(ctx, strings.TrimPrefix(key, tokenIDPrefix))
		if err != nil || t == nil {
			continue
		}
		if t.Kind != kind {
			continue
		}
		if remember != RememberAny && t.Remember != remember {
			continue
		}
		if t.LastActivity >= cutoff {
			continue
		}
		if err := s.deleteLocked(ctx, t); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// DeleteLastUsedBefore removes all of a user's tokens whose last
// activity predates cutoff. Returns the number of records removed.
func (s *Store) DeleteLastUsedBefore(ctx context.Context, uid string, cutoff int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.backend.List(ctx, tokenUserPrefix+uid+"/")
	if err != nil {
		return 0, fmt.Errorf("failed to list user index: %w", err)
	}

	deleted := 0
	for _, key := range keys {
		t, err := s.getByIDLocked(ctx, strings.TrimPrefix(key, tokenUserPrefix+uid+"/"))
		if err != nil || t == nil {
			continue
		}
		if t.LastActivity >= cutoff {
			continue
		}
		if err := s.deleteLocked(ctx, t); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// HasInvalidPasswords reports whether any of the user's tokens carries
// a password flagged invalid. UpdatePasswords uses this to skip the
// re-encryption pass when nothing is stale.
func (s *Store) HasInvalidPasswords(ctx context.Context, uid string) (bool, error) {
	tokens, err := s.GetAllByUser(ctx, uid)
	if err != nil {
		return false, err
	}
	for _, t := range tokens {
		if t.PasswordInvalid {
			return true, nil
		}
	}
	return false, nil
}

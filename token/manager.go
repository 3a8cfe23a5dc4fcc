package token

import (
	"context"
	"errors"

	"github.com/hubfold/tokend/logger"
)

// Manager is the front door for token operations. It narrows the
// provider's concrete records to capability interfaces and converts
// wipe-flagged tokens into the wipe protocol signal, so callers never
// inspect token internals themselves.
type Manager struct {
	provider *Provider
	log      logger.Logger
}

// NewManager creates a manager over the given provider
func NewManager(provider *Provider, log logger.Logger) *Manager {
	return &Manager{
		provider: provider,
		log:      log,
	}
}

// GenerateToken creates a token for the raw secret
func (m *Manager) GenerateToken(ctx context.Context, rawToken, uid, loginName string, password *string, name string, kind Kind, remember Remember) (Token, error) {
	return m.provider.GenerateToken(ctx, rawToken, uid, loginName, password, name, kind, remember)
}

// GetToken resolves a raw secret to its token. A token flagged for
// remote wipe is not handed out as a session; the caller receives a
// WipeRequestError carrying it and must run the wipe protocol.
func (m *Manager) GetToken(ctx context.Context, rawToken string) (Token, error) {
	t, err := m.provider.GetToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if t.Kind == KindWipe {
		return nil, &WipeRequestError{Token: t}
	}
	return t, nil
}

// GetTokenByID resolves a store identifier to its token
func (m *Manager) GetTokenByID(ctx context.Context, id string) (Token, error) {
	t, err := m.provider.GetTokenByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Kind == KindWipe {
		return nil, &WipeRequestError{Token: t}
	}
	return t, nil
}

// GetUserTokenByID resolves one of a user's tokens by identifier. A
// token owned by someone else is reported the same way as a missing
// one, so callers cannot probe for other users' token ids.
func (m *Manager) GetUserTokenByID(ctx context.Context, uid, id string) (Token, error) {
	t, err := m.provider.GetTokenByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UID != uid {
		return nil, ErrInvalidToken
	}
	if t.Kind == KindWipe {
		return nil, &WipeRequestError{Token: t}
	}
	return t, nil
}

// GetTokensByUser lists a user's tokens
func (m *Manager) GetTokensByUser(ctx context.Context, uid string) ([]Token, error) {
	tokens, err := m.provider.GetTokensByUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t)
	}
	return out, nil
}

// GetPassword recovers the password stored on the token. Variants
// without password capability are rejected with ErrInvalidToken.
func (m *Manager) GetPassword(ctx context.Context, t Token, rawToken string) (string, error) {
	ps, ok := t.(PasswordStorer)
	if !ok {
		return "", ErrInvalidToken
	}
	return m.provider.GetPassword(ctx, ps, rawToken)
}

// SetPassword stores a new password on the token
func (m *Manager) SetPassword(ctx context.Context, t Token, rawToken, password string) error {
	ps, ok := t.(PasswordStorer)
	if !ok {
		return ErrInvalidToken
	}
	return m.provider.SetPassword(ctx, ps, rawToken, password)
}

// UpdateToken persists the token record
func (m *Manager) UpdateToken(ctx context.Context, t Token) error {
	dt, ok := t.(*DeviceToken)
	if !ok {
		return ErrInvalidToken
	}
	return m.provider.UpdateToken(ctx, dt)
}

// UpdateActivity records token use, subject to the debounce window
func (m *Manager) UpdateActivity(ctx context.Context, t Token) error {
	dt, ok := t.(*DeviceToken)
	if !ok {
		return ErrInvalidToken
	}
	return m.provider.UpdateActivity(ctx, dt)
}

// RenewSessionToken exchanges an expired session token for a new one
func (m *Manager) RenewSessionToken(ctx context.Context, oldRawToken, newRawToken string) (Token, error) {
	return m.provider.RenewSessionToken(ctx, oldRawToken, newRawToken)
}

// Rotate moves a token onto a new raw secret. Variants without a key
// pair cannot be rotated.
func (m *Manager) Rotate(ctx context.Context, t Token, oldRawToken, newRawToken string) (Token, error) {
	dt, ok := t.(*DeviceToken)
	if !ok {
		return nil, ErrInvalidToken
	}
	return m.provider.Rotate(ctx, dt, oldRawToken, newRawToken)
}

// MarkPasswordInvalid flags the token's stored password as stale
func (m *Manager) MarkPasswordInvalid(ctx context.Context, t Token) error {
	ps, ok := t.(PasswordStorer)
	if !ok {
		return ErrInvalidToken
	}
	return m.provider.MarkPasswordInvalid(ctx, ps)
}

// UpdatePasswords re-seals a changed password onto the user's tokens
func (m *Manager) UpdatePasswords(ctx context.Context, uid, password string) error {
	return m.provider.UpdatePasswords(ctx, uid, password)
}

// InvalidateToken revokes the token for a raw secret
func (m *Manager) InvalidateToken(ctx context.Context, rawToken string) error {
	return m.provider.InvalidateToken(ctx, rawToken)
}

// InvalidateTokenByID revokes one of a user's tokens by identifier
func (m *Manager) InvalidateTokenByID(ctx context.Context, uid, id string) error {
	return m.provider.InvalidateTokenByID(ctx, uid, id)
}

// InvalidateOldTokens runs the retention sweeps
func (m *Manager) InvalidateOldTokens(ctx context.Context) error {
	return m.provider.InvalidateOldTokens(ctx)
}

// IsWipeRequest reports whether err signals the wipe protocol
func IsWipeRequest(err error) bool {
	var wipeErr *WipeRequestError
	return errors.As(err, &wipeErr)
}

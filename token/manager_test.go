package token

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bareToken implements only the read surface, none of the capabilities
type bareToken struct{}

func (bareToken) GetID() string          { return "bare" }
func (bareToken) GetUID() string         { return "alice" }
func (bareToken) GetLoginName() string   { return "alice" }
func (bareToken) GetName() string        { return "bare token" }
func (bareToken) GetKind() Kind          { return KindPermanent }
func (bareToken) GetRemember() Remember  { return DoNotRemember }
func (bareToken) GetLastActivity() int64 { return 0 }
func (bareToken) GetLastCheck() int64    { return 0 }
func (bareToken) GetExpires() *int64     { return nil }
func (bareToken) GetScope() Scope        { return DefaultScope() }

func newTestManager(t *testing.T) (*Manager, *Provider) {
	t.Helper()
	p, _, _ := newTestProvider(t)
	return NewManager(p, testLogger()), p
}

func TestManager_GetToken(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	generated, err := m.GenerateToken(ctx, "raw-secret", "alice", "alice", nil, "device", KindPermanent, DoNotRemember)
	require.NoError(t, err)

	got, err := m.GetToken(ctx, "raw-secret")
	require.NoError(t, err)
	assert.Equal(t, generated.GetID(), got.GetID())
}

func TestManager_GetToken_WipeFlagged(t *testing.T) {
	m, p := newTestManager(t)
	ctx := context.Background()

	tok, err := p.GenerateToken(ctx, "raw-secret", "alice", "alice", nil, "stolen phone", KindPermanent, DoNotRemember)
	require.NoError(t, err)
	tok.Wipe()
	require.NoError(t, p.UpdateToken(ctx, tok))

	// A wipe-flagged token must not come back as a usable session
	_, err = m.GetToken(ctx, "raw-secret")
	var wipeErr *WipeRequestError
	require.ErrorAs(t, err, &wipeErr)
	assert.Equal(t, tok.ID, wipeErr.Token.GetID())
	assert.True(t, IsWipeRequest(err))

	_, err = m.GetTokenByID(ctx, tok.ID)
	assert.True(t, IsWipeRequest(err))
}

func TestManager_GetUserTokenByID(t *testing.T) {
	m, p := newTestManager(t)
	ctx := context.Background()

	tok, err := p.GenerateToken(ctx, "raw-secret", "alice", "alice", nil, "device", KindPermanent, DoNotRemember)
	require.NoError(t, err)

	got, err := m.GetUserTokenByID(ctx, "alice", tok.ID)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, got.GetID())

	// Someone else's token looks just like a missing one
	_, err = m.GetUserTokenByID(ctx, "bob", tok.ID)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.GetUserTokenByID(ctx, "alice", "no-such-id")
	assert.ErrorIs(t, err, ErrInvalidToken)

	tok.Wipe()
	require.NoError(t, p.UpdateToken(ctx, tok))
	_, err = m.GetUserTokenByID(ctx, "alice", tok.ID)
	assert.True(t, IsWipeRequest(err))
}

func TestManager_CapabilityRejections(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	bare := bareToken{}

	_, err := m.GetPassword(ctx, bare, "raw")
	assert.ErrorIs(t, err, ErrInvalidToken)

	err = m.SetPassword(ctx, bare, "raw", "pass")
	assert.ErrorIs(t, err, ErrInvalidToken)

	err = m.UpdateToken(ctx, bare)
	assert.ErrorIs(t, err, ErrInvalidToken)

	err = m.UpdateActivity(ctx, bare)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Rotate(ctx, bare, "old", "new")
	assert.ErrorIs(t, err, ErrInvalidToken)

	err = m.MarkPasswordInvalid(ctx, bare)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_GetTokensByUser(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.GenerateToken(ctx, "raw-1", "alice", "alice", nil, "a", KindPermanent, DoNotRemember)
	require.NoError(t, err)
	_, err = m.GenerateToken(ctx, "raw-2", "alice", "alice", nil, "b", KindPermanent, DoNotRemember)
	require.NoError(t, err)

	tokens, err := m.GetTokensByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestManager_PasswordRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	tok, err := m.GenerateToken(ctx, "raw-secret", "alice", "alice", strptr("hunter2"), "device", KindPermanent, DoNotRemember)
	require.NoError(t, err)

	password, err := m.GetPassword(ctx, tok, "raw-secret")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", password)
}

func TestIsWipeRequest(t *testing.T) {
	assert.False(t, IsWipeRequest(nil))
	assert.False(t, IsWipeRequest(ErrInvalidToken))
	assert.False(t, IsWipeRequest(errors.New("unrelated")))
	assert.True(t, IsWipeRequest(&WipeRequestError{}))
}

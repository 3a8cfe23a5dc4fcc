package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubfold/tokend/crypto"
	"github.com/hubfold/tokend/events"
	"github.com/hubfold/tokend/helper"
	"github.com/hubfold/tokend/logger"
	"github.com/hubfold/tokend/storage"
	"github.com/hubfold/tokend/token"
)

func newTestHandler(t *testing.T) (http.Handler, *token.Provider) {
	t.Helper()

	log, _ := logger.NewGatedLogger(&logger.Config{
		Level:   logger.ErrorLevel,
		Outputs: []io.Writer{io.Discard},
	}, logger.GatedWriterConfig{
		Underlying:   io.Discard,
		InitialState: logger.GateOpen,
	})

	cfg := token.DefaultConfig()
	cfg.InstanceSecret = "test-instance-secret"
	cfg.KeyBits = crypto.MinKeyBits
	cfg.EnableMetrics = false

	store := token.NewStore(storage.NewMemoryBackend(), log)
	provider, err := token.NewProvider(cfg, store, nil, log)
	require.NoError(t, err)
	t.Cleanup(provider.Close)

	bus := events.NewBus(log)
	handler := Handler(&HandlerProperties{
		Manager:     token.NewManager(provider, log),
		Invalidator: token.NewInvalidator(provider, bus, log),
		RemoteWipe:  token.NewRemoteWipe(provider, bus, log),
		Logger:      log,
	})
	return handler, provider
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func createToken(t *testing.T, handler http.Handler, body map[string]any) createTokenResponse {
	t.Helper()

	w := doJSON(t, handler, http.MethodPost, "/v1/tokens", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp createTokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandler_CreateToken(t *testing.T) {
	handler, provider := newTestHandler(t)

	resp := createToken(t, handler, map[string]any{
		"uid":      "alice",
		"name":     "alice's phone",
		"password": "hunter2",
	})

	assert.Len(t, resp.Token, helper.DeviceSecretLength)
	require.NotNil(t, resp.TokenEntry)
	assert.Equal(t, "alice", resp.TokenEntry.UID)
	assert.Equal(t, "alice", resp.TokenEntry.LoginName)
	assert.Equal(t, "permanent", resp.TokenEntry.Kind)

	// The returned raw token resolves server-side
	stored, err := provider.GetToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.TokenEntry.ID, stored.ID)
}

func TestHandler_CreateToken_Validation(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := doJSON(t, handler, http.MethodPost, "/v1/tokens", map[string]any{"name": "no uid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, handler, http.MethodPost, "/v1/tokens", map[string]any{"uid": "alice", "kind": "eternal"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, handler, http.MethodPost, "/v1/tokens", map[string]any{"uid": "alice", "scope": []string{"telepathy"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_CreateToken_WithScope(t *testing.T) {
	handler, provider := newTestHandler(t)

	resp := createToken(t, handler, map[string]any{
		"uid":   "alice",
		"name":  "restricted",
		"scope": []string{"filesystem"},
	})

	stored, err := provider.GetToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, token.Scope{"filesystem": true}, stored.Scope)
}

func TestHandler_ListTokens(t *testing.T) {
	handler, _ := newTestHandler(t)

	createToken(t, handler, map[string]any{"uid": "alice", "name": "a"})
	createToken(t, handler, map[string]any{"uid": "alice", "name": "b"})
	createToken(t, handler, map[string]any{"uid": "bob", "name": "c"})

	w := doJSON(t, handler, http.MethodGet, "/v1/tokens?uid=alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tokens []*tokenSummary `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Tokens, 2)

	// Secret material never appears in the listing
	assert.NotContains(t, w.Body.String(), "hash")
	assert.NotContains(t, w.Body.String(), "private_key")

	w = doJSON(t, handler, http.MethodGet, "/v1/tokens", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_UpdateToken(t *testing.T) {
	handler, _ := newTestHandler(t)

	created := createToken(t, handler, map[string]any{"uid": "alice", "name": "old name"})

	w := doJSON(t, handler, http.MethodPatch, "/v1/tokens/"+created.TokenEntry.ID, map[string]any{
		"name": "new name",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp tokenSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "new name", resp.Name)
}

func TestHandler_UpdateToken_NotFound(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := doJSON(t, handler, http.MethodPatch, "/v1/tokens/no-such-id", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_DeleteToken(t *testing.T) {
	handler, provider := newTestHandler(t)

	created := createToken(t, handler, map[string]any{"uid": "alice", "name": "doomed"})

	w := doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/v1/tokens/%s?uid=alice", created.TokenEntry.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := provider.GetToken(context.Background(), created.Token)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestHandler_InvalidateAll(t *testing.T) {
	handler, provider := newTestHandler(t)

	createToken(t, handler, map[string]any{"uid": "alice", "name": "a"})
	createToken(t, handler, map[string]any{"uid": "alice", "name": "b"})

	w := doJSON(t, handler, http.MethodDelete, "/v1/tokens?uid=alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	remaining, err := provider.GetTokensByUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestHandler_WipeFlow(t *testing.T) {
	handler, _ := newTestHandler(t)

	created := createToken(t, handler, map[string]any{"uid": "alice", "name": "stolen phone"})

	// Flag the token for wipe
	w := doJSON(t, handler, http.MethodPost, "/v1/tokens/"+created.TokenEntry.ID+"/wipe", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	// The device acknowledges and completes the wipe
	w = doJSON(t, handler, http.MethodPost, "/v1/wipe/start", map[string]any{"token": created.Token})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, handler, http.MethodPost, "/v1/wipe/finish", map[string]any{"token": created.Token})
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Confirming twice fails; the token is gone
	w = doJSON(t, handler, http.MethodPost, "/v1/wipe/finish", map[string]any{"token": created.Token})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_WipeStart_UnflaggedToken(t *testing.T) {
	handler, _ := newTestHandler(t)

	created := createToken(t, handler, map[string]any{"uid": "alice", "name": "healthy"})

	w := doJSON(t, handler, http.MethodPost, "/v1/wipe/start", map[string]any{"token": created.Token})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, handler, http.MethodPost, "/v1/wipe/start", map[string]any{"token": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Health(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := doJSON(t, handler, http.MethodGet, "/v1/sys/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHandler_RequestID(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := doJSON(t, handler, http.MethodGet, "/v1/sys/health", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	// A client-supplied id is echoed back
	req := httptest.NewRequest(http.MethodGet, "/v1/sys/health", nil)
	req.Header.Set("X-Request-Id", "client-chosen-id")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "client-chosen-id", w.Header().Get("X-Request-Id"))
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubfold/tokend/token"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRespondError(t *testing.T) {
	w := httptest.NewRecorder()

	respondError(w, http.StatusBadRequest, "invalid input")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	resp := decodeError(t, w)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "invalid input", resp.Errors[0])
}

func TestRespondOk(t *testing.T) {
	w := httptest.NewRecorder()

	respondOk(w, map[string]any{"status": "ok"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRespondOk_NilData(t *testing.T) {
	w := httptest.NewRecorder()

	respondOk(w, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestRespondNoContent(t *testing.T) {
	w := httptest.NewRecorder()

	respondNoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestRespondTokenError(t *testing.T) {
	expired := int64(0)
	carrier := &token.DeviceToken{ID: "id-1", Expires: &expired}

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"wipe request", &token.WipeRequestError{Token: carrier}, http.StatusForbidden},
		{"expired", &token.ExpiredTokenError{Token: carrier}, http.StatusUnauthorized},
		{"invalid", token.ErrInvalidToken, http.StatusNotFound},
		{"not found", token.ErrTokenNotFound, http.StatusNotFound},
		{"passwordless", token.ErrPasswordless, http.StatusConflict},
		{"unexpected", errors.New("backend exploded"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			respondTokenError(w, nil, tc.err)

			assert.Equal(t, tc.status, w.Code)
			resp := decodeError(t, w)
			require.Len(t, resp.Errors, 1)
			// Internal details never leak to the client
			assert.NotContains(t, resp.Errors[0], "exploded")
		})
	}
}

func TestRespondTokenError_WrappedErrors(t *testing.T) {
	w := httptest.NewRecorder()

	wrapped := errors.Join(errors.New("context"), token.ErrInvalidToken)
	respondTokenError(w, nil, wrapped)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

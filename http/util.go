package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hubfold/tokend/logger"
	"github.com/hubfold/tokend/token"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Errors []string `json:"errors"`
}

// respondError writes an error response with the given status code and message.
func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := &ErrorResponse{
		Errors: []string{message},
	}

	json.NewEncoder(w).Encode(resp)
}

// respondOk writes a successful JSON response with status 200.
func respondOk(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// respondTokenError maps token lifecycle errors onto HTTP status
// codes. Wipe-flagged and expired tokens get distinct statuses so
// clients can branch without parsing messages.
func respondTokenError(w http.ResponseWriter, log *logger.GatedLogger, err error) {
	var wipeErr *token.WipeRequestError
	var expErr *token.ExpiredTokenError

	switch {
	case errors.As(err, &wipeErr):
		respondError(w, http.StatusForbidden, "token is marked for remote wipe")
	case errors.As(err, &expErr):
		respondError(w, http.StatusUnauthorized, "token has expired")
	case errors.Is(err, token.ErrInvalidToken), errors.Is(err, token.ErrTokenNotFound):
		respondError(w, http.StatusNotFound, "token not found")
	case errors.Is(err, token.ErrPasswordless):
		respondError(w, http.StatusConflict, "token has no password stored")
	default:
		if log != nil {
			log.Error("request failed", logger.Err(err))
		}
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

package http

import (
	"encoding/json"
	"net/http"
)

type wipeRequest struct {
	Token string `json:"token"`
}

// The wipe endpoints are called by the device itself, authenticating
// with the raw token that was flagged. A token that is not flagged
// yields 404 so probing cannot distinguish unknown from unflagged.
func handleWipeStart(props *HandlerProperties) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wipeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			respondError(w, http.StatusBadRequest, "token is required")
			return
		}

		ok, err := props.RemoteWipe.Start(r.Context(), req.Token)
		auditLog(r, props, "wipe.start", "", "", err)
		if err != nil {
			respondTokenError(w, props.Logger, err)
			return
		}
		if !ok {
			respondError(w, http.StatusNotFound, "no wipe pending for this token")
			return
		}
		respondNoContent(w)
	}
}

func handleWipeFinish(props *HandlerProperties) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wipeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			respondError(w, http.StatusBadRequest, "token is required")
			return
		}

		ok, err := props.RemoteWipe.Finish(r.Context(), req.Token)
		auditLog(r, props, "wipe.finish", "", "", err)
		if err != nil {
			respondTokenError(w, props.Logger, err)
			return
		}
		if !ok {
			respondError(w, http.StatusNotFound, "no wipe pending for this token")
			return
		}
		respondNoContent(w)
	}
}

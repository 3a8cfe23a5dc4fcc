package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-secure-stdlib/strutil"

	"github.com/hubfold/tokend/helper"
	"github.com/hubfold/tokend/logger"
	"github.com/hubfold/tokend/token"
)

// knownScopes are the scope names the API accepts. Unknown names are
// rejected rather than silently stored.
var knownScopes = []string{"filesystem"}

type createTokenRequest struct {
	UID       string   `json:"uid"`
	LoginName string   `json:"login_name"`
	Password  *string  `json:"password,omitempty"`
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Remember  bool     `json:"remember"`
	Scope     []string `json:"scope,omitempty"`
}

type createTokenResponse struct {
	Token      string        `json:"token"`
	TokenEntry *tokenSummary `json:"token_entry"`
}

// tokenSummary is the API view of a token record. Secret material
// (hash, keys, sealed password) never leaves the server.
type tokenSummary struct {
	ID           string      `json:"id"`
	UID          string      `json:"uid"`
	LoginName    string      `json:"login_name"`
	Name         string      `json:"name"`
	Kind         string      `json:"kind"`
	Remember     bool        `json:"remember"`
	LastActivity int64       `json:"last_activity"`
	Scope        token.Scope `json:"scope"`
}

func summarize(t token.Token) *tokenSummary {
	return &tokenSummary{
		ID:           t.GetID(),
		UID:          t.GetUID(),
		LoginName:    t.GetLoginName(),
		Name:         t.GetName(),
		Kind:         t.GetKind().String(),
		Remember:     t.GetRemember() == token.RememberMe,
		LastActivity: t.GetLastActivity(),
		Scope:        t.GetScope(),
	}
}

func parseKind(kind string) (token.Kind, bool) {
	switch kind {
	case "", "permanent":
		return token.KindPermanent, true
	case "temporary":
		return token.KindTemporary, true
	default:
		return 0, false
	}
}

func parseScope(names []string) (token.Scope, error) {
	if len(names) == 0 {
		return nil, nil
	}
	scope := make(token.Scope, len(names))
	for _, name := range names {
		if !strutil.StrListContains(knownScopes, name) {
			return nil, errors.New("unknown scope: " + name)
		}
		scope[name] = true
	}
	return scope, nil
}

func handleCreateToken(props *HandlerProperties) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UID == "" {
			respondError(w, http.StatusBadRequest, "uid is required")
			return
		}
		kind, ok := parseKind(req.Kind)
		if !ok {
			respondError(w, http.StatusBadRequest, "kind must be temporary or permanent")
			return
		}
		scope, err := parseScope(req.Scope)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		rawToken, err := helper.GenerateDeviceSecret()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to generate token")
			return
		}

		remember := token.DoNotRemember
		if req.Remember {
			remember = token.RememberMe
		}
		loginName := req.LoginName
		if loginName == "" {
			loginName = req.UID
		}

		t, err := props.Manager.GenerateToken(r.Context(), rawToken, req.UID, loginName, req.Password, req.Name, kind, remember)
		if err != nil {
			auditLog(r, props, "token.generate", req.UID, "", err)
			respondTokenError(w, props.Logger, err)
			return
		}
		auditLog(r, props, "token.generate", req.UID, t.GetID(), nil)

		if scope != nil {
			if dt, ok := t.(*token.DeviceToken); ok {
				dt.Scope = scope
				if err := props.Manager.UpdateToken(r.Context(), dt); err != nil {
					respondTokenError(w, props.Logger, err)
					return
				}
			}
		}

		respondOk(w, &createTokenResponse{
			Token:      rawToken,
			TokenEntry: summarize(t),
		})
	}
}

func handleListTokens(props *HandlerProperties) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := r.URL.Query().Get("uid")
		if uid == "" {
			respondError(w, http.StatusBadRequest, "uid query parameter is required")
			return
		}

		tokens, err := props.Manager.GetTokensByUser(r.Context(), uid)
		if err != nil {
			respondTokenError(w, props.Logger, err)
			return
		}

		summaries := make([]*tokenSummary, 0, len(tokens))
		for _, t := range tokens {
			summaries = append(summaries, summarize(t))
		}
		respondOk(w, map[string]any{"tokens": summaries})
	}
}

type updateTokenRequest struct {
	Name  *string  `json:"name,omitempty"`
	Scope []string `json:"scope,omitempty"`
}

func handleUpdateToken(props *HandlerProperties) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req updateTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		scope, err := parseScope(req.Scope)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		t, err := props.Manager.GetTokenByID(r.Context(), id)
		if err != nil {
			respondTokenError(w, props.Logger, err)
			return
		}
		dt, ok := t.(*token.DeviceToken)
		if !ok {
			respondError(w, http.StatusConflict, "token cannot be updated")
			return
		}

		if req.Name != nil {
			dt.Name = token.TruncateName(*req.Name)
		}
		if scope != nil {
			dt.Scope = scope
		}
		if err := props.Manager.UpdateToken(r.Context(), dt); err != nil {
			respondTokenError(w, props.Logger, err)
			return
		}
		respondOk(w, summarize(dt))
	}
}

func handleDeleteToken(props *HandlerProperties) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		uid := r.URL.Query().Get("uid")
		if uid == "" {
			respondError(w, http.StatusBadRequest, "uid query parameter is required")
			return
		}

		err := props.Manager.InvalidateTokenByID(r.Context(), uid, id)
		auditLog(r, props, "token.invalidate", uid, id, err)
		if err != nil {
			respondTokenError(w, props.Logger, err)
			return
		}
		respondNoContent(w)
	}
}

func handleInvalidateAll(props *HandlerProperties) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := r.URL.Query().Get("uid")
		if uid == "" {
			respondError(w, http.StatusBadRequest, "uid query parameter is required")
			return
		}

		err := props.Invalidator.InvalidateAllForUser(r.Context(), uid)
		auditLog(r, props, "token.invalidate_all", uid, "", err)
		if err != nil {
			props.Logger.Error("bulk invalidation failed",
				logger.String("uid", uid),
				logger.Err(err))
			respondError(w, http.StatusInternalServerError, "failed to invalidate tokens")
			return
		}
		respondNoContent(w)
	}
}

func handleMarkWipe(props *HandlerProperties) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		t, err := props.Manager.GetTokenByID(r.Context(), id)
		if err != nil {
			respondTokenError(w, props.Logger, err)
			return
		}
		err = props.RemoteWipe.MarkTokenForWipe(r.Context(), t)
		auditLog(r, props, "wipe.mark", t.GetUID(), id, err)
		if err != nil {
			respondTokenError(w, props.Logger, err)
			return
		}
		respondNoContent(w)
	}
}

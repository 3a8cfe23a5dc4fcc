package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hubfold/tokend/audit"
	"github.com/hubfold/tokend/helper"
	"github.com/hubfold/tokend/logger"
	"github.com/hubfold/tokend/token"
)

// HandlerProperties contains configuration for the HTTP handler
type HandlerProperties struct {
	Manager     *token.Manager
	Invalidator *token.Invalidator
	RemoteWipe  *token.RemoteWipe
	Audit       audit.Manager
	Logger      *logger.GatedLogger
}

type requestIDKey struct{}

// RequestID returns the request identifier injected by the handler
// middleware, or an empty string outside a request context.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Handler creates and returns the main HTTP handler for tokend.
func Handler(props *HandlerProperties) http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(requestLogger(props.Logger))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/tokens", func(r chi.Router) {
			r.Get("/", handleListTokens(props))
			r.Post("/", handleCreateToken(props))
			r.Delete("/", handleInvalidateAll(props))
			r.Patch("/{id}", handleUpdateToken(props))
			r.Delete("/{id}", handleDeleteToken(props))
			r.Post("/{id}/wipe", handleMarkWipe(props))
		})

		r.Route("/wipe", func(r chi.Router) {
			r.Post("/start", handleWipeStart(props))
			r.Post("/finish", handleWipeFinish(props))
		})

		r.Get("/sys/health", handleHealth())
	})

	return r
}

// requestIDMiddleware tags every request with a sortable identifier
// and echoes it back so clients can correlate log lines.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = helper.GenerateRequestID()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(log *logger.GatedLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if log != nil {
				log.Debug("handled request",
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path),
					logger.String("request_id", RequestID(r.Context())))
			}
		})
	}
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondOk(w, map[string]any{"status": "ok"})
	}
}

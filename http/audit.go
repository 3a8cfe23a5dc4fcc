package http

import (
	"net/http"
	"time"

	"github.com/hubfold/tokend/audit"
	"github.com/hubfold/tokend/logger"
)

// auditLog records a token lifecycle operation on the audit trail.
// Audit failures never fail the request; they are logged and dropped.
func auditLog(r *http.Request, props *HandlerProperties, operation, uid, tokenID string, opErr error) {
	if props.Audit == nil {
		return
	}

	entry := &audit.LogEntry{
		Time:      time.Now().UTC(),
		Operation: operation,
		UID:       uid,
		TokenID:   tokenID,
		RequestID: RequestID(r.Context()),
		ClientIP:  r.RemoteAddr,
		Success:   opErr == nil,
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}

	if _, err := props.Audit.Log(r.Context(), entry); err != nil && props.Logger != nil {
		props.Logger.Error("failed to write audit entry",
			logger.String("operation", operation),
			logger.Err(err))
	}
}

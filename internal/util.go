package internal

import (
	"context"
	"log/slog"
)

type auditLogger interface {
	LogAction(ctx context.Context, actorID *string, action, details string) error
}

// logAction writes an audit row. Failures are logged and never fail the request.
func logAction(ctx context.Context, st auditLogger, logger *slog.Logger, actorID *string, action, details string) {
	if err := st.LogAction(ctx, actorID, action, details); err != nil {
		logger.Warn("audit log write failed", "action", action, "error", err)
	}
}

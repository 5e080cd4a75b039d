package middleware

import (
	"context"
	"log/slog"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/outbox"
)

// OutboxFlush flushes the outbox after a successful command. The command has
// already committed, so a flush failure is logged and the result still returned;
// unflushed records stay for the next flush or the relay worker.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil && logger != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}

package usecase

import (
	"context"
	"log/slog"
	"time"

	"torrentsession/internal/domain"
	"torrentsession/internal/domain/ports"
	"torrentsession/internal/metrics"
)

const journalWriteTimeout = 3 * time.Second

// recordEvent appends a lifecycle event to the journal. The command has
// already succeeded, so failures are only logged.
func recordEvent(ctx context.Context, journal ports.Journal, logger *slog.Logger, event domain.LifecycleEvent) {
	if journal == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalWriteTimeout)
	defer cancel()
	if err := journal.Record(writeCtx, event); err != nil {
		loggerOrDefault(logger).Warn("journal write failed",
			slog.Uint64("transferId", uint64(event.TransferID)),
			slog.String("action", string(event.Action)),
			slog.String("error", err.Error()),
		)
	}
}

func observeCommand(command string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CommandsTotal.WithLabelValues(command, result).Inc()
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func nowFunc(now func() time.Time) func() time.Time {
	if now == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return now
}

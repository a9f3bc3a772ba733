// Package monitoring provides the observability surface of the audit
// subsystem: operation hooks, a metrics interface, and slog-based
// structured logging. Hook metadata must never contain raw identifiers or
// secret material; callers pass tokens and epoch IDs only.
package monitoring

import (
	"context"
	"time"
)

// ObservabilityHook defines hooks for monitoring audit operations.
type ObservabilityHook interface {
	// Called before an operation starts.
	OnProcessStart(ctx context.Context, operation string, metadata map[string]any)

	// Called after an operation completes, success or failure.
	OnProcessComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any)

	// Called when errors occur.
	OnError(ctx context.Context, operation string, err error, metadata map[string]any)

	// Called for epoch lifecycle operations (activate, rotate).
	OnEpochOperation(ctx context.Context, operation string, epochID int64, metadata map[string]any)
}

// NoOpObservabilityHook is a no-op implementation of ObservabilityHook.
type NoOpObservabilityHook struct{}

func (n *NoOpObservabilityHook) OnProcessStart(ctx context.Context, operation string, metadata map[string]any) {
}
func (n *NoOpObservabilityHook) OnProcessComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any) {
}
func (n *NoOpObservabilityHook) OnError(ctx context.Context, operation string, err error, metadata map[string]any) {
}
func (n *NoOpObservabilityHook) OnEpochOperation(ctx context.Context, operation string, epochID int64, metadata map[string]any) {
}

// LoggingObservabilityHook logs all operations through a Logger.
type LoggingObservabilityHook struct {
	logger Logger
}

// NewLoggingObservabilityHook creates a hook that logs every operation.
func NewLoggingObservabilityHook(logger Logger) *LoggingObservabilityHook {
	if logger == nil {
		logger = NewStructuredLogger(LoggerConfig{Component: "phiaudit"})
	}
	return &LoggingObservabilityHook{logger: logger}
}

func (h *LoggingObservabilityHook) OnProcessStart(ctx context.Context, operation string, metadata map[string]any) {
	h.logger.Debug("operation started", "operation", operation, "metadata", metadata)
}

func (h *LoggingObservabilityHook) OnProcessComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any) {
	if err != nil {
		h.logger.Error("operation failed", "operation", operation, "duration", duration, "error", err)
		return
	}
	h.logger.Debug("operation completed", "operation", operation, "duration", duration)
}

func (h *LoggingObservabilityHook) OnError(ctx context.Context, operation string, err error, metadata map[string]any) {
	h.logger.Error("operation error", "operation", operation, "error", err, "metadata", metadata)
}

func (h *LoggingObservabilityHook) OnEpochOperation(ctx context.Context, operation string, epochID int64, metadata map[string]any) {
	h.logger.Info("epoch operation", "operation", operation, "epoch_id", epochID)
}

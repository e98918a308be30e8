// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// SetLogger replaces the logger used by RepoLogger and WorkflowLogger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		GlobalLogger = &Logger{Logger: l}
	}
}

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// CorrelationID is the context key under which the correlation ID is stored.
const CorrelationID LogContextKey = "correlation_id"

// GenerateCorrelationID creates a new unique correlation ID.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// EnsureCorrelationID returns ctx unchanged if it already carries a
// correlation ID, otherwise a child context with a fresh one.
func EnsureCorrelationID(ctx context.Context) context.Context {
	if ExtractCorrelationID(ctx) != "" {
		return ctx
	}
	return WithCorrelationID(ctx, GenerateCorrelationID())
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	tableName string
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{tableName: tableName}
}

// LogUpdate logs a repository update operation.
func (l *RepoLogger) LogUpdate(ctx context.Context, fields map[string]interface{}) {
	attrs := []any{
		slog.String("table", l.tableName),
		slog.String("operation", "update"),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	GlobalLogger.InfoContext(ctx, "repository update", attrs...)
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	GlobalLogger.ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
		slog.String("error", err.Error()),
	)
}

// WorkflowLogger records approval workflow transitions.
type WorkflowLogger struct{}

// NewWorkflowLogger creates a WorkflowLogger.
func NewWorkflowLogger() *WorkflowLogger {
	return &WorkflowLogger{}
}

// LogSubmitted logs a newly opened approval.
func (*WorkflowLogger) LogSubmitted(ctx context.Context, approvalID uint, actionType string, entityID, requesterID uint) {
	GlobalLogger.InfoContext(ctx, "approval submitted",
		slog.Uint64("approval_id", uint64(approvalID)),
		slog.String("action_type", actionType),
		slog.Uint64("entity_id", uint64(entityID)),
		slog.Uint64("requester_id", uint64(requesterID)),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	)
}

// LogDecision logs one reviewer vote and the resulting approval status.
func (*WorkflowLogger) LogDecision(ctx context.Context, approvalID, approverID uint, action, status string) {
	GlobalLogger.InfoContext(ctx, "approval decision",
		slog.Uint64("approval_id", uint64(approvalID)),
		slog.Uint64("approver_id", uint64(approverID)),
		slog.String("action", action),
		slog.String("status", status),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	)
}

// LogRejected logs a decision or submission refused by the workflow.
func (*WorkflowLogger) LogRejected(ctx context.Context, operation string, err error, fields map[string]interface{}) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("error", err.Error()),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	GlobalLogger.WarnContext(ctx, "approval request refused", attrs...)
}

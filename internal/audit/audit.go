// Package audit implements the sinks that receive the audit entries of
// authorization requests.
package audit

import (
	"context"
	"log/slog"

	"github.com/luikyv/go-authorize/pkg/goidc"
)

var (
	_ goidc.AuditSink = (*LogSink)(nil)
	_ goidc.AuditSink = (*AMQPSink)(nil)
)

// LogSink writes every entry as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, entry goidc.AuditEntry) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("kind", "audit"),
		slog.String("audit_id", entry.ID),
		slog.String("action", string(entry.Action)),
		slog.String("ip", entry.IP),
		slog.String("client_id", entry.ClientID),
		slog.String("scope", entry.Scope),
		slog.String("username", entry.Username),
		slog.Bool("success", entry.Success),
		slog.Int("timestamp", entry.Timestamp),
	)
	return nil
}

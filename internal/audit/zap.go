package audit

import (
	"context"

	"go.uber.org/zap"
)

// ZapSink forwards audit events to a zap logger, one entry per event with the
// event type as the message. Failures log at Warn, successes at Info.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{
		logger: logger,
	}
}

func (s *ZapSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.logger == nil {
		return
	}

	fields := make([]zap.Field, 0, 9)
	fields = append(fields, zap.Time("timestamp", event.Timestamp))
	if event.SubjectID != "" {
		fields = append(fields, zap.String("subject_id", event.SubjectID))
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session_id", event.SessionID))
	}
	if event.TokenID != "" {
		fields = append(fields, zap.String("token_id", event.TokenID))
	}
	if event.TokenKind != "" {
		fields = append(fields, zap.String("token_kind", event.TokenKind))
	}
	if event.NetworkAddress != "" {
		fields = append(fields, zap.String("network_address", event.NetworkAddress))
	}
	fields = append(fields, zap.Bool("success", event.Success))
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}

	if event.Success {
		s.logger.Info(event.EventType, fields...)
	} else {
		s.logger.Warn(event.EventType, fields...)
	}
}

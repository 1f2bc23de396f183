package audit

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapSinkLogsSuccessAtInfo(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{
		Timestamp:      time.Now().UTC(),
		EventType:      "token_issued",
		SubjectID:      "subj-1",
		SessionID:      "sess-1",
		TokenID:        "tok-1",
		TokenKind:      "access",
		NetworkAddress: "203.0.113.9",
		Success:        true,
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Message != "token_issued" {
		t.Fatalf("expected event type as message, got %q", entry.Message)
	}
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for success, got %v", entry.Level)
	}

	fields := entry.ContextMap()
	if fields["subject_id"] != "subj-1" {
		t.Fatalf("expected subject_id field, got %v", fields["subject_id"])
	}
	if fields["token_kind"] != "access" {
		t.Fatalf("expected token_kind field, got %v", fields["token_kind"])
	}
	if fields["network_address"] != "203.0.113.9" {
		t.Fatalf("expected network_address field, got %v", fields["network_address"])
	}
}

func TestZapSinkLogsFailureAtWarn(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{
		Timestamp: time.Now().UTC(),
		EventType: "verify_denied",
		Success:   false,
		Error:     "token_revoked",
		Metadata:  map[string]string{"kind": "access"},
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for failure, got %v", entries[0].Level)
	}
	fields := entries[0].ContextMap()
	if fields["error"] != "token_revoked" {
		t.Fatalf("expected error field, got %v", fields["error"])
	}
}

func TestZapSinkNilReceiverAndLoggerSafe(t *testing.T) {
	var sink *ZapSink
	sink.Emit(context.Background(), Event{EventType: "e1"})

	sink = NewZapSink(nil)
	sink.Emit(context.Background(), Event{EventType: "e2"})
}

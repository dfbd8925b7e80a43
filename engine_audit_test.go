package accounts

import (
	"context"
	"testing"
	"time"

	internalaudit "github.com/clipstream/accounts/internal/audit"
)

func waitForEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()
	select {
	case event := <-sink.Events():
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}

func TestEngineEmitsAuditEvents(t *testing.T) {
	sink := NewChannelSink(16)

	cfg := testEngineConfig()
	cfg.Audit = AuditConfig{Enabled: true, BufferSize: 16}

	store := newMemStore()
	engine, err := New().
		WithConfig(cfg).
		WithUserStore(store).
		WithUploader(&memUploader{}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	ctx = WithUserAgent(ctx, "test-agent/1.0")

	registered, err := engine.Register(ctx, registerRequest())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	event := waitForEvent(t, sink)
	if event.EventType != internalaudit.TypeRegister {
		t.Fatalf("event type = %q, want %q", event.EventType, internalaudit.TypeRegister)
	}
	if !event.Success || event.UserID != registered.ID {
		t.Fatalf("unexpected register event: %+v", event)
	}
	if event.IP != "203.0.113.7" || event.UserAgent != "test-agent/1.0" {
		t.Fatalf("request context not propagated: %+v", event)
	}
	if event.Timestamp.IsZero() {
		t.Fatal("event timestamp not set")
	}

	if _, err := engine.Login(ctx, Credentials{Identifier: "alice", Password: "hunter22"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	event = waitForEvent(t, sink)
	if event.EventType != internalaudit.TypeLogin || !event.Success {
		t.Fatalf("unexpected login event: %+v", event)
	}

	// Failed logins are audited too, without a user ID.
	if _, err := engine.Login(ctx, Credentials{Identifier: "alice", Password: "wrong"}); err == nil {
		t.Fatal("expected login failure")
	}
	event = waitForEvent(t, sink)
	if event.EventType != internalaudit.TypeLogin || event.Success {
		t.Fatalf("unexpected failed-login event: %+v", event)
	}
	if event.UserID != "" {
		t.Fatalf("failed login should not attribute a user, got %q", event.UserID)
	}
	if event.Error == "" {
		t.Fatal("failed login event should carry the error")
	}

	if got := engine.AuditDropped(); got != 0 {
		t.Fatalf("AuditDropped = %d, want 0", got)
	}
}

func TestAuditDisabledByDefault(t *testing.T) {
	f := newTestEngine(t)
	mustRegister(t, f)

	// No dispatcher exists; Dropped and Close are still safe.
	if got := f.engine.AuditDropped(); got != 0 {
		t.Fatalf("AuditDropped = %d, want 0", got)
	}
}

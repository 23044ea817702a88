package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/salonflow/salonflow-sessions/internal/model"
)

func TestMessageLogCapAndOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		entry := model.MessageLogEntry{
			Sender: model.SenderUser,
			Text:   fmt.Sprintf("msg %d", i),
		}
		if i%2 == 1 {
			entry.Sender = model.SenderAssistant
		}
		if err := s.AddMessage(ctx, testPhone, testTenant, entry); err != nil {
			t.Fatalf("AddMessage %d: %v", i, err)
		}
	}

	msgs, err := s.GetMessages(ctx, testPhone, testTenant, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 50 {
		t.Fatalf("cap: want exactly 50 entries, got %d", len(msgs))
	}
	// Chronological: oldest surviving entry first.
	if msgs[0].Text != "msg 10" {
		t.Fatalf("first entry: %q", msgs[0].Text)
	}
	if msgs[49].Text != "msg 59" {
		t.Fatalf("last entry: %q", msgs[49].Text)
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Fatalf("entries out of chronological order at %d", i)
		}
	}
}

func TestGetMessagesLimit(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := s.AddMessage(ctx, testPhone, testTenant, model.MessageLogEntry{
			Sender: model.SenderUser,
			Text:   fmt.Sprintf("m%d", i),
		}); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	msgs, err := s.GetMessages(ctx, testPhone, testTenant, 3)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("limit: got %d", len(msgs))
	}
	// The newest three, still chronological.
	if msgs[0].Text != "m7" || msgs[2].Text != "m9" {
		t.Fatalf("window: %q .. %q", msgs[0].Text, msgs[2].Text)
	}
}

func TestAddMessageAssignsTimestamp(t *testing.T) {
	s, _ := newTestStore(t)
	base := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	ctx := context.Background()

	if err := s.AddMessage(ctx, testPhone, testTenant, model.MessageLogEntry{Text: "hello"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	msgs, err := s.GetMessages(ctx, testPhone, testTenant, 1)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("GetMessages: n=%d err=%v", len(msgs), err)
	}
	if !msgs[0].Timestamp.Equal(base) {
		t.Fatalf("server timestamp not assigned: %v", msgs[0].Timestamp)
	}
	if msgs[0].Sender != model.SenderUser {
		t.Fatalf("default sender: %q", msgs[0].Sender)
	}
}

func TestMessagesForInvalidIdentity(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.AddMessage(context.Background(), "123", testTenant, model.MessageLogEntry{Text: "x"}); err == nil {
		t.Fatalf("want error for invalid identity")
	}
}

func TestMessageLogIsolatedPerTenant(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.AddMessage(ctx, testPhone, 1, model.MessageLogEntry{Text: "tenant one"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	msgs, err := s.GetMessages(ctx, testPhone, 2, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("cross-tenant leak: %d entries", len(msgs))
	}
}

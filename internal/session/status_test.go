package session

import (
	"context"
	"testing"
)

func TestProcessingFlagLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	busy, err := s.IsProcessing(ctx, testPhone, testTenant)
	if err != nil || busy {
		t.Fatalf("initial: busy=%v err=%v", busy, err)
	}

	if err := s.SetProcessing(ctx, testPhone, testTenant, "handling_message"); err != nil {
		t.Fatalf("SetProcessing: %v", err)
	}
	busy, err = s.IsProcessing(ctx, testPhone, testTenant)
	if err != nil || !busy {
		t.Fatalf("after set: busy=%v err=%v", busy, err)
	}
	st, err := s.GetProcessingStatus(ctx, testPhone, testTenant)
	if err != nil || st == nil || st.Status != "handling_message" {
		t.Fatalf("status: %+v err=%v", st, err)
	}

	if err := s.ClearProcessing(ctx, testPhone, testTenant); err != nil {
		t.Fatalf("ClearProcessing: %v", err)
	}
	busy, err = s.IsProcessing(ctx, testPhone, testTenant)
	if err != nil || busy {
		t.Fatalf("after clear: busy=%v err=%v", busy, err)
	}
}

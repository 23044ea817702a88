package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/salonflow/salonflow-sessions/internal/kv"
	"github.com/salonflow/salonflow-sessions/internal/kv/memkv"
	"github.com/salonflow/salonflow-sessions/internal/model"
)

func newTestStore(t *testing.T) (*Store, *memkv.Store) {
	t.Helper()
	mem := memkv.New()
	s := New(mem, nil, zerolog.Nop(), Config{})
	return s, mem
}

const (
	testPhone  = "79991234567"
	testTenant = int64(1)
)

func TestUpdateDialogPreservesOmittedSelectionFields(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	err := s.UpdateDialogContext(ctx, testPhone, testTenant, model.DialogUpdate{
		Selection: &model.SelectionUpdate{
			Service: model.Some("haircut"),
			Date:    model.Some("tomorrow"),
		},
	})
	if err != nil {
		t.Fatalf("first update: %v", err)
	}

	// Second update carries only the time; service and date must survive.
	err = s.UpdateDialogContext(ctx, testPhone, testTenant, model.DialogUpdate{
		Selection: &model.SelectionUpdate{Time: model.Some("15:00")},
	})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}

	fc := s.GetFullContext(ctx, testPhone, testTenant)
	sel := fc.CurrentSelection
	if sel.Service == nil || *sel.Service != "haircut" {
		t.Fatalf("service lost: %+v", sel)
	}
	if sel.Date == nil || *sel.Date != "tomorrow" {
		t.Fatalf("date lost: %+v", sel)
	}
	if sel.Time == nil || *sel.Time != "15:00" {
		t.Fatalf("time not applied: %+v", sel)
	}
}

func TestUpdateDialogExplicitNullClears(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.UpdateDialogContext(ctx, testPhone, testTenant, model.DialogUpdate{
		Selection: &model.SelectionUpdate{Service: model.Some("manicure")},
	}); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Omitted key keeps the value.
	if err := s.UpdateDialogContext(ctx, testPhone, testTenant, model.DialogUpdate{
		Selection: &model.SelectionUpdate{Staff: model.Some("anna")},
	}); err != nil {
		t.Fatalf("omit: %v", err)
	}
	fc := s.GetFullContext(ctx, testPhone, testTenant)
	if fc.CurrentSelection.Service == nil {
		t.Fatalf("omitted key cleared the service")
	}

	// Explicit null clears it.
	if err := s.UpdateDialogContext(ctx, testPhone, testTenant, model.DialogUpdate{
		Selection: &model.SelectionUpdate{Service: model.Clear[string]()},
	}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	fc = s.GetFullContext(ctx, testPhone, testTenant)
	if fc.CurrentSelection.Service != nil {
		t.Fatalf("explicit null did not clear the service")
	}
	if fc.CurrentSelection.Staff == nil || *fc.CurrentSelection.Staff != "anna" {
		t.Fatalf("clearing one field disturbed another: %+v", fc.CurrentSelection)
	}
}

func TestUpdateDialogInvalidIdentity(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.UpdateDialogContext(context.Background(), "12", testTenant, model.DialogUpdate{})
	if !errors.Is(err, model.ErrInvalidIdentity) {
		t.Fatalf("want ErrInvalidIdentity, got %v", err)
	}
}

func TestConcurrentDisjointUpdatesBothLand(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = s.UpdateDialogContext(ctx, testPhone, testTenant, model.DialogUpdate{
			Selection: &model.SelectionUpdate{Service: model.Some("haircut")},
		})
	}()
	go func() {
		defer wg.Done()
		errs[1] = s.UpdateDialogContext(ctx, testPhone, testTenant, model.DialogUpdate{
			Selection: &model.SelectionUpdate{Staff: model.Some("anna")},
		})
	}()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}
	fc := s.GetFullContext(ctx, testPhone, testTenant)
	if fc.CurrentSelection.Service == nil || fc.CurrentSelection.Staff == nil {
		t.Fatalf("lost a concurrent field: %+v", fc.CurrentSelection)
	}
}

// conflictingKV wedges a fixed number of conflicts in front of Update
// to exercise the retry loop deterministically.
type conflictingKV struct {
	kv.KV
	mu        sync.Mutex
	conflicts int
}

func (c *conflictingKV) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	c.mu.Lock()
	if c.conflicts > 0 {
		c.conflicts--
		c.mu.Unlock()
		return model.ErrWriteConflict
	}
	c.mu.Unlock()
	return c.KV.Update(ctx, key, fn)
}

func TestUpdateDialogRetriesThenSucceeds(t *testing.T) {
	mem := memkv.New()
	ckv := &conflictingKV{KV: mem, conflicts: 2}
	s := New(ckv, nil, zerolog.Nop(), Config{})

	err := s.UpdateDialogContext(context.Background(), testPhone, testTenant, model.DialogUpdate{
		Selection: &model.SelectionUpdate{Service: model.Some("haircut")},
	})
	if err != nil {
		t.Fatalf("update should succeed on the third attempt: %v", err)
	}
}

func TestUpdateDialogConflictBudgetExhausted(t *testing.T) {
	mem := memkv.New()
	ckv := &conflictingKV{KV: mem, conflicts: maxUpdateAttempts}
	s := New(ckv, nil, zerolog.Nop(), Config{})

	err := s.UpdateDialogContext(context.Background(), testPhone, testTenant, model.DialogUpdate{
		Selection: &model.SelectionUpdate{Service: model.Some("haircut")},
	})
	if !errors.Is(err, model.ErrWriteConflict) {
		t.Fatalf("want ErrWriteConflict after exhausted retries, got %v", err)
	}
}

func TestClearDialogContext(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.UpdateDialogContext(ctx, testPhone, testTenant, model.DialogUpdate{
		Selection: &model.SelectionUpdate{Service: model.Some("haircut")},
		State:     model.Some(model.DialogStateActive),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.ClearDialogContext(ctx, testPhone, testTenant); err != nil {
		t.Fatalf("clear: %v", err)
	}

	fc := s.GetFullContext(ctx, testPhone, testTenant)
	if fc.HasActiveDialog {
		t.Fatalf("dialog survived clear")
	}
	if !fc.CurrentSelection.IsEmpty() {
		t.Fatalf("stale selection leaked past clear: %+v", fc.CurrentSelection)
	}
}

func TestDialogFlagTimestamps(t *testing.T) {
	s, _ := newTestStore(t)
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	ctx := context.Background()

	if err := s.UpdateDialogContext(ctx, testPhone, testTenant, model.DialogUpdate{
		AskedForTimeSelection: model.Some(true),
		ShownSlots:            model.Some(true),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	fc := s.GetFullContext(ctx, testPhone, testTenant)
	d := fc.Dialog
	if d == nil || !d.AskedForTimeSelection {
		t.Fatalf("flag not set: %+v", d)
	}
	if d.AskedForTimeAt == nil || !d.AskedForTimeAt.Equal(base) {
		t.Fatalf("AskedForTimeAt: %v", d.AskedForTimeAt)
	}
	if d.ShownSlotsAt == nil || !d.ShownSlotsAt.Equal(base) {
		t.Fatalf("ShownSlotsAt: %v", d.ShownSlotsAt)
	}

	// Explicit false clears both flag and timestamp.
	if err := s.UpdateDialogContext(ctx, testPhone, testTenant, model.DialogUpdate{
		AskedForTimeSelection: model.Some(false),
	}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	fc = s.GetFullContext(ctx, testPhone, testTenant)
	if fc.Dialog.AskedForTimeSelection || fc.Dialog.AskedForTimeAt != nil {
		t.Fatalf("flag reset did not stick: %+v", fc.Dialog)
	}
}

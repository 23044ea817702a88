package model

import (
	"encoding/json"
	"testing"
)

func TestOptTriState(t *testing.T) {
	type payload struct {
		Service Opt[string] `json:"service"`
		Staff   Opt[string] `json:"staff"`
	}

	var p payload
	if err := json.Unmarshal([]byte(`{"service":null}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.Service.Set || p.Service.Value != nil {
		t.Fatalf("explicit null must decode as set-and-clear: %+v", p.Service)
	}
	if p.Staff.Set {
		t.Fatalf("absent key must stay unset: %+v", p.Staff)
	}

	p = payload{}
	if err := json.Unmarshal([]byte(`{"staff":"anna"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.Staff.Set || p.Staff.Value == nil || *p.Staff.Value != "anna" {
		t.Fatalf("value not decoded: %+v", p.Staff)
	}
}

// A DialogUpdate built in Go and sent over the wire must decode back
// to the same tri-state: fields the caller never set have to stay
// absent, not resurface as explicit clears.
func TestDialogUpdateRoundTripPreservesAbsence(t *testing.T) {
	upd := DialogUpdate{
		Selection: &SelectionUpdate{Time: Some("15:00")},
	}
	b, err := json.Marshal(upd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got DialogUpdate
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Selection == nil {
		t.Fatal("selection lost in round trip")
	}
	if got.Selection.Service.Set || got.Selection.Staff.Set || got.Selection.Date.Set {
		t.Fatalf("untouched selection fields decoded as set: %s", b)
	}
	if !got.Selection.Time.Set || got.Selection.Time.Value == nil || *got.Selection.Time.Value != "15:00" {
		t.Fatalf("time not preserved: %+v", got.Selection.Time)
	}
	if got.ClientName.Set || got.State.Set || got.PendingAction.Set ||
		got.AskedForTimeSelection.Set || got.ShownSlots.Set {
		t.Fatalf("untouched top-level fields decoded as set: %s", b)
	}

	// An explicit clear still survives the same trip.
	upd = DialogUpdate{Selection: &SelectionUpdate{Service: Clear[string]()}}
	b, err = json.Marshal(upd)
	if err != nil {
		t.Fatalf("marshal clear: %v", err)
	}
	got = DialogUpdate{}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal clear: %v", err)
	}
	if !got.Selection.Service.Set || got.Selection.Service.Value != nil {
		t.Fatalf("explicit clear lost in round trip: %+v", got.Selection.Service)
	}
}

func TestOptApply(t *testing.T) {
	prev := "haircut"

	if got := (Opt[string]{}).Apply(&prev); got == nil || *got != "haircut" {
		t.Fatalf("unset Opt must keep previous: %v", got)
	}
	if got := Clear[string]().Apply(&prev); got != nil {
		t.Fatalf("clear Opt must drop previous: %v", got)
	}
	if got := Some("coloring").Apply(&prev); got == nil || *got != "coloring" {
		t.Fatalf("set Opt must replace: %v", got)
	}
}

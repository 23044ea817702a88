package model

import "encoding/json"

// Opt is a tri-state update field. The zero value means "leave the
// stored field unchanged"; Set with a nil Value means "clear the stored
// field"; Set with a non-nil Value means "replace it".
//
// UnmarshalJSON only runs when the key is present in the payload, which
// is exactly the distinction the dialog merge rules need: an absent key
// stays a zero Opt.
type Opt[T any] struct {
	Set   bool
	Value *T
}

// Some returns an Opt that replaces the stored field with v.
func Some[T any](v T) Opt[T] { return Opt[T]{Set: true, Value: &v} }

// Clear returns an Opt that explicitly clears the stored field.
func Clear[T any]() Opt[T] { return Opt[T]{Set: true} }

// IsZero reports whether the field was absent. Combined with the
// omitzero struct tag it keeps absent fields off the wire entirely,
// so re-marshaling an update never turns "absent" into "clear".
func (o Opt[T]) IsZero() bool { return !o.Set }

func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// Apply resolves the update against the previous value: absent keeps
// prev, explicit null clears, a value replaces.
func (o Opt[T]) Apply(prev *T) *T {
	if !o.Set {
		return prev
	}
	return o.Value
}

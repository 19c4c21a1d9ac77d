package models

import (
	"bytes"
	"encoding/json"
)

// Optional is one field of a partial update. It separates three states:
//
//	absent        Set == false              (keep the stored value)
//	explicit null Set == true, Null == true (clear the stored value)
//	value         Set == true, Null == false
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns an explicit null Optional.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// IsZero lets `json:",omitzero"` drop absent fields.
func (o Optional[T]) IsZero() bool { return !o.Set }

// UnmarshalJSON is only invoked for keys present in the document, which is
// what makes an absent key distinguishable from null.
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		var zero T
		o.Null = true
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(b, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Ptr returns nil for null, a pointer to a copy of the value otherwise.
func (o Optional[T]) Ptr() *T {
	if o.Null {
		return nil
	}
	v := o.Value
	return &v
}

package domain

import "encoding/json"

// Optional is a value that may be undefined.
// Statistics such as a payout ratio with no losses or a median of an empty set
// are undefined; they are carried as Optional rather than a sentinel number.
type Optional[T any] struct {
	value T
	valid bool
}

// Some returns a defined Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, valid: true}
}

// None returns an undefined Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// FromPtr converts a nullable pointer into an Optional.
func FromPtr[T any](p *T) Optional[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// Get returns the value and whether it is defined.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.valid
}

// Defined reports whether the value is defined.
func (o Optional[T]) Defined() bool {
	return o.valid
}

// Ptr returns a pointer to a copy of the value, or nil when undefined.
// Used for nullable storage columns.
func (o Optional[T]) Ptr() *T {
	if !o.valid {
		return nil
	}
	v := o.value
	return &v
}

// MarshalJSON encodes an undefined value as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON decodes null as undefined.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

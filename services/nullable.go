package services

import (
	"bytes"
	"encoding/json"
)

// Nullable is an optional update field that tells an absent key apart from
// an explicit null. Present is true whenever the key was in the payload;
// Value is nil when that key was null.
type Nullable[T any] struct {
	Present bool
	Value   *T
}

// SetTo returns a present field holding v.
func SetTo[T any](v T) Nullable[T] {
	return Nullable[T]{Present: true, Value: &v}
}

// SetNull returns a present field that clears the column.
func SetNull[T any]() Nullable[T] {
	return Nullable[T]{Present: true}
}

func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

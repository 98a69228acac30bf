package todo

import (
	"bytes"
	"encoding/json"
)

type patchState uint8

const (
	patchKeep patchState = iota
	patchClear
	patchSet
)

// Patch describes how an update treats one field: leave it alone, clear it, or set a value.
// The zero value keeps the field.
type Patch[T any] struct {
	state patchState
	value T
}

// Keep leaves the field unchanged.
func Keep[T any]() Patch[T] { return Patch[T]{} }

// Clear resets the field to unset.
func Clear[T any]() Patch[T] { return Patch[T]{state: patchClear} }

// Set replaces the field with v.
func Set[T any](v T) Patch[T] { return Patch[T]{state: patchSet, value: v} }

// IsKeep reports whether the field is left alone.
func (p Patch[T]) IsKeep() bool { return p.state == patchKeep }

// IsClear reports whether the field is reset to unset.
func (p Patch[T]) IsClear() bool { return p.state == patchClear }

// Value returns the set value and whether the patch is a Set.
func (p Patch[T]) Value() (T, bool) {
	return p.value, p.state == patchSet
}

// UnmarshalJSON is only invoked for keys present in the document, so an absent key stays Keep.
// A JSON null clears.
func (p *Patch[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = Clear[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Set(v)
	return nil
}

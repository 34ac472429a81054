package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

type optionalState uint8

const (
	stateUndefined optionalState = iota
	stateNull
	stateValue
)

// Optional is a tri-state value distinguishing a member that was not sent,
// one that was sent as null, and one that carries a value. The zero value
// is undefined.
//
// Use it for parameters where "not provided" and "explicitly null" mean
// different things:
//
//	type UpdateParams struct {
//	    ID    int                    `json:"id"`
//	    Email schema.Optional[string] `json:"email,omitzero"`
//	}
type Optional[T any] struct {
	state optionalState
	value T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{state: stateValue, value: v}
}

// NullOf returns an Optional explicitly set to null.
func NullOf[T any]() Optional[T] {
	return Optional[T]{state: stateNull}
}

// IsUndefined reports whether no value was provided.
func (o Optional[T]) IsUndefined() bool { return o.state == stateUndefined }

// IsNull reports whether null was provided.
func (o Optional[T]) IsNull() bool { return o.state == stateNull }

// IsZero reports whether the Optional is undefined, so that `omitzero`
// drops it when encoding.
func (o Optional[T]) IsZero() bool { return o.state == stateUndefined }

// Get returns the value and whether one is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.state == stateValue
}

// Or returns the value, or fallback if none is present.
func (o Optional[T]) Or(fallback T) T {
	if o.state == stateValue {
		return o.value
	}
	return fallback
}

// MarshalJSON implements json.Marshaler. Undefined encodes as null when the
// field is not omitted.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.state != stateValue {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.state, o.value = stateNull, zero
		return nil
	}
	if err := json.Unmarshal(data, &o.value); err != nil {
		return err
	}
	o.state = stateValue
	return nil
}

func (o Optional[T]) String() string {
	switch o.state {
	case stateNull:
		return "null"
	case stateValue:
		return fmt.Sprint(o.value)
	default:
		return "undefined"
	}
}

func (Optional[T]) optionalElem() reflect.Type { return reflect.TypeFor[T]() }

type optionalType interface{ optionalElem() reflect.Type }

// Either holds a value of one of two types. Decoding tries A first, then B.
type Either[A, B any] struct {
	left    A
	right   B
	isRight bool
}

// Left returns an Either holding a.
func Left[A, B any](a A) Either[A, B] { return Either[A, B]{left: a} }

// Right returns an Either holding b.
func Right[A, B any](b B) Either[A, B] { return Either[A, B]{right: b, isRight: true} }

// Left returns the first member and whether it is the one set.
func (e Either[A, B]) Left() (A, bool) { return e.left, !e.isRight }

// Right returns the second member and whether it is the one set.
func (e Either[A, B]) Right() (B, bool) { return e.right, e.isRight }

// Value returns whichever member is set.
func (e Either[A, B]) Value() any {
	if e.isRight {
		return e.right
	}
	return e.left
}

// MarshalJSON implements json.Marshaler.
func (e Either[A, B]) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Value())
}

// ErrNoUnionMember is returned when a value matches no member of an Either.
var ErrNoUnionMember = errors.New("schema: value matches no union member")

// UnmarshalJSON implements json.Unmarshaler.
func (e *Either[A, B]) UnmarshalJSON(data []byte) error {
	var a A
	if err := strictUnmarshal(data, &a); err == nil {
		*e = Left[A, B](a)
		return nil
	}
	var b B
	if err := strictUnmarshal(data, &b); err == nil {
		*e = Right[A, B](b)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNoUnionMember, data)
}

func (Either[A, B]) unionMembers() []reflect.Type {
	return []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B]()}
}

type unionType interface{ unionMembers() []reflect.Type }

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// IsNullable reports whether values of t may be absent or null: pointers and
// Optional types.
func IsNullable(t reflect.Type) bool {
	if t == nil {
		return true
	}
	if t.Kind() == reflect.Pointer {
		return true
	}
	_, ok := optionalElem(t)
	return ok
}

func optionalElem(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() == reflect.Interface || t.Kind() == reflect.Pointer || !t.Implements(reflect.TypeFor[optionalType]()) {
		return nil, false
	}
	return reflect.Zero(t).Interface().(optionalType).optionalElem(), true
}

// unionMembers returns the member types of a union, with nested unions
// flattened so Either[A, Either[B, C]] yields A, B and C.
func unionMembers(t reflect.Type) ([]reflect.Type, bool) {
	if t.Kind() == reflect.Interface || t.Kind() == reflect.Pointer || !t.Implements(reflect.TypeFor[unionType]()) {
		return nil, false
	}
	var flat []reflect.Type
	for _, m := range reflect.Zero(t).Interface().(unionType).unionMembers() {
		if nested, ok := unionMembers(m); ok {
			flat = append(flat, nested...)
			continue
		}
		flat = append(flat, m)
	}
	return flat, true
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// TypeDescriptor is a runtime handle for a type registered under a stable name.
// The zero value means "no type".
type TypeDescriptor struct {
	Name string
	Type reflect.Type
	// New returns a pointer to a fresh zero value of Type.
	New func() any
}

// IsZero reports whether the descriptor is absent.
func (d TypeDescriptor) IsZero() bool { return d.Name == "" }

// IsError reports whether values of the type implement error.
func (d TypeDescriptor) IsError() bool {
	return d.Type != nil && d.Type.Implements(errorType)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// TypeRegistry maps stable type names to descriptors. It is populated by
// explicit Register calls and is safe for concurrent use.
type TypeRegistry struct {
	mu     sync.RWMutex
	byName map[string]TypeDescriptor
	byType map[reflect.Type]string
}

// NewTypeRegistry returns a registry pre-populated with the builtin scalar types.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{
		byName: make(map[string]TypeDescriptor),
		byType: make(map[reflect.Type]string),
	}
	MustRegister[string](r, "string")
	MustRegister[bool](r, "bool")
	MustRegister[int](r, "int")
	MustRegister[int32](r, "int32")
	MustRegister[int64](r, "int64")
	MustRegister[uint32](r, "uint32")
	MustRegister[uint64](r, "uint64")
	MustRegister[float64](r, "float64")
	MustRegister[[]byte](r, "bytes")
	return r
}

// Register adds T under name. Registering the same name for the same type
// again is a no-op; any other reuse of a name or type fails with ErrDuplicateType.
func Register[T any](r *TypeRegistry, name string) (TypeDescriptor, error) {
	if name == "" {
		return TypeDescriptor{}, fmt.Errorf("%w: empty type name", ErrProtocolViolation)
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	d := TypeDescriptor{
		Name: name,
		Type: t,
		New:  func() any { return new(T) },
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byName[name]; ok {
		if existing.Type == t {
			return existing, nil
		}
		return TypeDescriptor{}, fmt.Errorf("%w: %q is bound to %s", ErrDuplicateType, name, existing.Type)
	}
	if other, ok := r.byType[t]; ok {
		return TypeDescriptor{}, fmt.Errorf("%w: %s is registered as %q", ErrDuplicateType, t, other)
	}
	r.byName[name] = d
	r.byType[t] = name
	return d, nil
}

// MustRegister is like Register but panics on error. Intended for startup code.
func MustRegister[T any](r *TypeRegistry, name string) TypeDescriptor {
	d, err := Register[T](r, name)
	if err != nil {
		panic(err)
	}
	return d
}

// Lookup resolves a name, failing with ErrUnknownType.
func (r *TypeRegistry) Lookup(name string) (TypeDescriptor, error) {
	r.mu.RLock()
	d, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return TypeDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return d, nil
}

// NameOf returns the registered name of t.
func (r *TypeRegistry) NameOf(t reflect.Type) (string, bool) {
	if t == nil {
		return "", false
	}
	r.mu.RLock()
	name, ok := r.byType[t]
	r.mu.RUnlock()
	return name, ok
}

// TypeOf returns the descriptor registered for T.
func TypeOf[T any](r *TypeRegistry) (TypeDescriptor, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	name, ok := r.NameOf(t)
	if !ok {
		return TypeDescriptor{}, fmt.Errorf("%w: %s is not registered", ErrUnknownType, t)
	}
	return r.Lookup(name)
}

// Names returns the registered names in sorted order.
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

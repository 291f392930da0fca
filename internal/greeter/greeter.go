// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package greeter is a singleton actor used by the actorrpc executable and
// as an end-to-end exercise of the runtime.
package greeter

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/luxfi/actorrpc"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("greeter")

// TypeName is the actor type name, and therefore its singleton identity.
const TypeName = "Greeter"

// Method identifiers.
const (
	TargetHello    = "hello()"
	TargetGreet    = "greet(name:)"
	TargetDescribe = "describe(value:)"
)

// GreetError is thrown by greet(name:) for names it refuses.
type GreetError struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func (e *GreetError) Error() string {
	return fmt.Sprintf("cannot greet %q: %s", e.Name, e.Reason)
}

// RegisterTypes registers the types the Greeter puts on the wire. Both the
// host and its callers must call it on their registries.
func RegisterTypes(r *actorrpc.TypeRegistry) error {
	_, err := actorrpc.Register[*GreetError](r, "GreetError")
	return err
}

// Greeter answers greetings. It lives under its singleton identity.
type Greeter struct {
	id      actorrpc.ActorID
	methods actorrpc.Methods
	hellos  atomic.Int64
}

// Host registers the Greeter types with sys and makes the singleton reachable.
func Host(sys *actorrpc.System) (*Greeter, error) {
	if err := RegisterTypes(sys.Types()); err != nil {
		return nil, err
	}
	id, err := sys.AssignSingletonID(TypeName)
	if err != nil {
		return nil, err
	}
	g := &Greeter{id: id}
	g.methods = actorrpc.Methods{
		TargetHello:    actorrpc.NullaryVoid(g.hello),
		TargetGreet:    actorrpc.Unary(g.greet),
		TargetDescribe: g.describe,
	}
	if err := sys.ActorReady(g); err != nil {
		sys.ResignID(id)
		return nil, err
	}
	return g, nil
}

// ID implements actorrpc.Actor.
func (g *Greeter) ID() actorrpc.ActorID { return g.id }

// ExecuteTarget implements actorrpc.Actor.
func (g *Greeter) ExecuteTarget(ctx context.Context, target string, dec *actorrpc.InvocationDecoder, rh *actorrpc.ResultHandler) error {
	return g.methods.ExecuteTarget(ctx, target, dec, rh)
}

// Hellos returns how many times hello() ran.
func (g *Greeter) Hellos() int64 { return g.hellos.Load() }

func (g *Greeter) hello(context.Context) error {
	g.hellos.Add(1)
	log.Infof("Hello, Distributed World! My id is %s", g.id)
	return nil
}

func (g *Greeter) greet(_ context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &GreetError{Name: name, Reason: "name is empty"}
	}
	return "Hello, " + name, nil
}

// describe takes one generic parameter T and a value of type T.
func (g *Greeter) describe(_ context.Context, dec *actorrpc.InvocationDecoder, rh *actorrpc.ResultHandler) error {
	types, err := dec.DecodeGenericSubstitutions()
	if err != nil {
		return err
	}
	if len(types) != 1 {
		return fmt.Errorf("%w: %s expects 1 generic substitution, got %d", actorrpc.ErrProtocolViolation, TargetDescribe, len(types))
	}
	ptr := types[0].New()
	if err := dec.DecodeNextArgumentInto(ptr); err != nil {
		return err
	}
	return rh.OnReturn(fmt.Sprintf("%s: %v", types[0].Name, reflect.ValueOf(ptr).Elem().Interface()))
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"context"
	"fmt"
)

// Actor is a locally hosted, identity-addressed receiver of invocations.
type Actor interface {
	ID() ActorID
	// ExecuteTarget decodes the arguments of target from dec, runs it and
	// reports exactly one outcome to rh.
	ExecuteTarget(ctx context.Context, target string, dec *InvocationDecoder, rh *ResultHandler) error
}

// MethodFunc executes one distributed method.
type MethodFunc func(ctx context.Context, dec *InvocationDecoder, rh *ResultHandler) error

// Methods dispatches invocations by target identifier.
type Methods map[string]MethodFunc

// ExecuteTarget runs the method registered for target.
func (m Methods) ExecuteTarget(ctx context.Context, target string, dec *InvocationDecoder, rh *ResultHandler) error {
	fn, ok := m[target]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	return fn(ctx, dec, rh)
}

// BaseActor binds an identity to a method table.
type BaseActor struct {
	id      ActorID
	methods Methods
}

// NewBaseActor returns an actor serving methods under id.
func NewBaseActor(id ActorID, methods Methods) *BaseActor {
	return &BaseActor{id: id, methods: methods}
}

// ID returns the actor identity.
func (a *BaseActor) ID() ActorID { return a.id }

// ExecuteTarget implements Actor.
func (a *BaseActor) ExecuteTarget(ctx context.Context, target string, dec *InvocationDecoder, rh *ResultHandler) error {
	return a.methods.ExecuteTarget(ctx, target, dec, rh)
}

// complete reports the outcome of a method returning (value, error).
func complete[R any](rh *ResultHandler, v R, err error) error {
	if err != nil {
		return rh.OnThrow(err)
	}
	return rh.OnReturn(v)
}

func completeVoid(rh *ResultHandler, err error) error {
	if err != nil {
		return rh.OnThrow(err)
	}
	return rh.OnReturnVoid()
}

// Nullary adapts a method without parameters.
func Nullary[R any](fn func(context.Context) (R, error)) MethodFunc {
	return func(ctx context.Context, _ *InvocationDecoder, rh *ResultHandler) error {
		v, err := fn(ctx)
		return complete(rh, v, err)
	}
}

// Unary adapts a method with one parameter.
func Unary[A, R any](fn func(context.Context, A) (R, error)) MethodFunc {
	return func(ctx context.Context, dec *InvocationDecoder, rh *ResultHandler) error {
		a, err := DecodeNextArgument[A](dec)
		if err != nil {
			return err
		}
		v, err := fn(ctx, a)
		return complete(rh, v, err)
	}
}

// Binary adapts a method with two parameters, decoded in declaration order.
func Binary[A, B, R any](fn func(context.Context, A, B) (R, error)) MethodFunc {
	return func(ctx context.Context, dec *InvocationDecoder, rh *ResultHandler) error {
		a, err := DecodeNextArgument[A](dec)
		if err != nil {
			return err
		}
		b, err := DecodeNextArgument[B](dec)
		if err != nil {
			return err
		}
		v, err := fn(ctx, a, b)
		return complete(rh, v, err)
	}
}

// NullaryVoid adapts a method without parameters or result.
func NullaryVoid(fn func(context.Context) error) MethodFunc {
	return func(ctx context.Context, _ *InvocationDecoder, rh *ResultHandler) error {
		return completeVoid(rh, fn(ctx))
	}
}

// UnaryVoid adapts a method with one parameter and no result.
func UnaryVoid[A any](fn func(context.Context, A) error) MethodFunc {
	return func(ctx context.Context, dec *InvocationDecoder, rh *ResultHandler) error {
		a, err := DecodeNextArgument[A](dec)
		if err != nil {
			return err
		}
		return completeVoid(rh, fn(ctx, a))
	}
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package greeter

import (
	"context"

	"github.com/luxfi/actorrpc"
)

// Client calls a Greeter through a System.
type Client struct {
	sys *actorrpc.System
	id  actorrpc.ActorID
}

// NewClient returns a client for the Greeter singleton. RegisterTypes must
// have been called on the registry of sys.
func NewClient(sys *actorrpc.System) *Client {
	return &Client{sys: sys, id: actorrpc.SingletonID(TypeName)}
}

// Hello runs hello() on the Greeter.
func (c *Client) Hello(ctx context.Context) error {
	return c.sys.RemoteCallVoid(ctx, c.id, TargetHello, nil, actorrpc.TypeDescriptor{})
}

// Greet runs greet(name:). A refused name comes back as a *GreetError.
func (c *Client) Greet(ctx context.Context, name string) (string, error) {
	errType, _ := actorrpc.TypeOf[*GreetError](c.sys.Types())
	returnType, _ := actorrpc.TypeOf[string](c.sys.Types())
	var reply string
	err := c.sys.RemoteCall(ctx, c.id, TargetGreet, actorrpc.Args(name), errType, returnType, &reply)
	return reply, err
}

// Describe runs describe(value:) with T bound to the registered type of v.
func Describe[T any](ctx context.Context, c *Client, v T) (string, error) {
	t, err := actorrpc.TypeOf[T](c.sys.Types())
	if err != nil {
		return "", err
	}
	record := func(enc *actorrpc.InvocationEncoder) error {
		if err := enc.RecordGenericSubstitution(t); err != nil {
			return err
		}
		return enc.RecordArgument(v)
	}
	var reply string
	if err := c.sys.RemoteCall(ctx, c.id, TargetDescribe, record, actorrpc.TypeDescriptor{}, actorrpc.TypeDescriptor{}, &reply); err != nil {
		return "", err
	}
	return reply, nil
}

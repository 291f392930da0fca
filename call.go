// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import "context"

// Args returns a RecordFunc recording args in order.
func Args(args ...any) RecordFunc {
	return func(enc *InvocationEncoder) error {
		for _, a := range args {
			if err := enc.RecordArgument(a); err != nil {
				return err
			}
		}
		return nil
	}
}

// Call invokes target on actor with args and returns its result as R. The
// declared return type is recorded when R is registered with the system.
func Call[R any](ctx context.Context, s *System, actor ActorID, target string, args ...any) (R, error) {
	var reply R
	returnType, _ := TypeOf[R](s.types)
	if err := s.RemoteCall(ctx, actor, target, Args(args...), TypeDescriptor{}, returnType, &reply); err != nil {
		var zero R
		return zero, err
	}
	return reply, nil
}

// CallVoid invokes target on actor with args, discarding any result.
func CallVoid(ctx context.Context, s *System, actor ActorID, target string, args ...any) error {
	return s.RemoteCallVoid(ctx, actor, target, Args(args...), TypeDescriptor{})
}

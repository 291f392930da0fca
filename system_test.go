// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/sync/errgroup"
)

// fakeTransport records every envelope it is handed and answers through reply.
type fakeTransport struct {
	mu    sync.Mutex
	sent  []*Envelope
	reply func(ctx context.Context, env *Envelope) ([]byte, error)
}

func (f *fakeTransport) Send(ctx context.Context, env *Envelope, _ ActorID) ([]byte, error) {
	f.mu.Lock()
	f.sent = append(f.sent, env.clone())
	f.mu.Unlock()
	return f.reply(ctx, env)
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) last() *Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

// loopback delivers envelopes to a Handler in-process through the wire format.
type loopback struct {
	h Handler
}

func (l loopback) Send(ctx context.Context, env *Envelope, _ ActorID) ([]byte, error) {
	frame, err := env.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return l.h.HandleEnvelope(ctx, frame)
}

func (loopback) Close() error { return nil }

func greetReply(_ context.Context, env *Envelope) ([]byte, error) {
	var name string
	if err := json.Unmarshal(env.Arguments[0], &name); err != nil {
		return nil, err
	}
	rh := NewResultHandler(env.CallID, nil, nil)
	if err := rh.OnReturn("Hello, " + name); err != nil {
		return nil, err
	}
	return rh.Response()
}

// newHost returns a system hosting one test actor with a few methods.
func newHost(t testing.TB, opts ...SystemOption) (*System, ActorID) {
	t.Helper()
	sys := NewSystem(opts...)
	id := sys.AssignID("Tester")
	actor := NewBaseActor(id, Methods{
		"greet(name:)": Unary(func(_ context.Context, name string) (string, error) {
			return "Hello, " + name, nil
		}),
		"add(_:_:)": Binary(func(_ context.Context, a, b int) (int, error) {
			return a + b, nil
		}),
		"reset()": NullaryVoid(func(context.Context) error { return nil }),
		"charge(_:)": UnaryVoid(func(_ context.Context, n int) error {
			if n > 3 {
				return &quotaError{Limit: 3}
			}
			return nil
		}),
		"describe(value:)": func(_ context.Context, dec *InvocationDecoder, rh *ResultHandler) error {
			types, err := dec.DecodeGenericSubstitutions()
			if err != nil {
				return err
			}
			if len(types) != 1 {
				return fmt.Errorf("%w: want one substitution, got %d", ErrProtocolViolation, len(types))
			}
			ptr := types[0].New()
			if err := dec.DecodeNextArgumentInto(ptr); err != nil {
				return err
			}
			return rh.OnReturn(fmt.Sprintf("%s(%v)", types[0].Name, reflect.ValueOf(ptr).Elem().Interface()))
		},
		"panic()": func(context.Context, *InvocationDecoder, *ResultHandler) error {
			panic("boom")
		},
		"silent()": func(context.Context, *InvocationDecoder, *ResultHandler) error {
			return nil
		},
		"twice()": func(_ context.Context, _ *InvocationDecoder, rh *ResultHandler) error {
			if err := rh.OnReturn(1); err != nil {
				return err
			}
			return rh.OnReturn(2)
		},
	})
	if err := sys.ActorReady(actor); err != nil {
		t.Fatalf("ActorReady: %v", err)
	}
	return sys, id
}

func TestRemoteCallGreetScenario(t *testing.T) {
	ft := &fakeTransport{reply: greetReply}
	sys := NewSystem(WithTransportClient(ft))

	got, err := Call[string](context.Background(), sys, "actor-42", "greet(name:)", "Ada")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "Hello, Ada" {
		t.Errorf("got %q, want %q", got, "Hello, Ada")
	}

	env := ft.last()
	if env.Recipient != "actor-42" || env.Target != "greet(name:)" {
		t.Errorf("envelope addressed to %s %s", env.Recipient, env.Target)
	}
	if len(env.Arguments) != 1 || string(env.Arguments[0]) != `"Ada"` {
		t.Errorf("arguments = %q", env.Arguments)
	}
	if env.ReturnType != "string" || env.ErrorType != "" {
		t.Errorf("declared types: error %q return %q", env.ErrorType, env.ReturnType)
	}
}

func TestRemoteCallTransportFailure(t *testing.T) {
	fail := true
	ft := &fakeTransport{reply: func(ctx context.Context, env *Envelope) ([]byte, error) {
		if fail {
			return nil, errors.New("dial tcp 10.0.0.1:9000: connection refused")
		}
		return greetReply(ctx, env)
	}}
	sys := NewSystem(WithTransportClient(ft))

	_, err := Call[string](context.Background(), sys, "actor-42", "greet(name:)", "Ada")
	if !errors.Is(err, ErrTransportFailure) {
		t.Fatalf("got %v, want ErrTransportFailure", err)
	}
	failed := ft.last()

	fail = false
	got, err := Call[string](context.Background(), sys, "actor-7", "greet(name:)", "Grace")
	if err != nil {
		t.Fatalf("Call after failure: %v", err)
	}
	if got != "Hello, Grace" {
		t.Errorf("got %q", got)
	}
	next := ft.last()
	if next.Recipient != "actor-7" || len(next.Arguments) != 1 || string(next.Arguments[0]) != `"Grace"` {
		t.Errorf("state leaked into the next call: %+v", next)
	}
	if next.CallID == failed.CallID {
		t.Errorf("call id %d reused", next.CallID)
	}
}

func TestRemoteCallNoTransport(t *testing.T) {
	sys := NewSystem()
	if err := CallVoid(context.Background(), sys, "elsewhere", "reset()"); !errors.Is(err, ErrTransportFailure) {
		t.Errorf("got %v, want ErrTransportFailure", err)
	}
}

func TestRemoteCallCancelled(t *testing.T) {
	ft := &fakeTransport{reply: func(ctx context.Context, _ *Envelope) ([]byte, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("send: %w", ctx.Err())
	}}
	sys := NewSystem(WithTransportClient(ft))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Call[string](ctx, sys, "actor-42", "greet(name:)", "Ada")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}
	if errors.Is(err, ErrTransportFailure) {
		t.Errorf("cancellation reported as transport failure: %v", err)
	}
}

func TestRemoteCallMismatchedCallID(t *testing.T) {
	ft := &fakeTransport{reply: func(_ context.Context, env *Envelope) ([]byte, error) {
		rh := NewResultHandler(env.CallID+100, nil, nil)
		if err := rh.OnReturnVoid(); err != nil {
			return nil, err
		}
		return rh.Response()
	}}
	sys := NewSystem(WithTransportClient(ft))
	if err := CallVoid(context.Background(), sys, "actor-42", "reset()"); !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("got %v, want ErrProtocolViolation", err)
	}
}

func TestLocalDispatch(t *testing.T) {
	sys, id := newHost(t)
	ctx := context.Background()

	got, err := Call[string](ctx, sys, id, "greet(name:)", "Ada")
	if err != nil || got != "Hello, Ada" {
		t.Fatalf("greet = %q, %v", got, err)
	}
	sum, err := Call[int](ctx, sys, id, "add(_:_:)", 2, 3)
	if err != nil || sum != 5 {
		t.Fatalf("add = %d, %v", sum, err)
	}
	if err := CallVoid(ctx, sys, id, "reset()"); err != nil {
		t.Fatalf("reset: %v", err)
	}
}

func TestDispatchOverLoopback(t *testing.T) {
	types := NewTypeRegistry()
	MustRegister[*quotaError](types, "QuotaError")

	host, id := newHost(t, WithTypeRegistry(types))
	caller := NewSystem(WithTypeRegistry(types), WithTransportClient(loopback{h: host}))
	ctx := context.Background()

	t.Run("value", func(t *testing.T) {
		got, err := Call[string](ctx, caller, id, "greet(name:)", "Ada")
		if err != nil || got != "Hello, Ada" {
			t.Errorf("greet = %q, %v", got, err)
		}
	})

	t.Run("generic", func(t *testing.T) {
		var got string
		record := func(enc *InvocationEncoder) error {
			if err := enc.RecordGenericSubstitution(mustLookup(t, types, "int")); err != nil {
				return err
			}
			return enc.RecordArgument(42)
		}
		if err := caller.RemoteCall(ctx, id, "describe(value:)", record, TypeDescriptor{}, TypeDescriptor{}, &got); err != nil {
			t.Fatal(err)
		}
		if got != "int(42)" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("registered error", func(t *testing.T) {
		errType := mustLookup(t, types, "QuotaError")
		err := caller.RemoteCallVoid(ctx, id, "charge(_:)", Args(5), errType)
		var qe *quotaError
		if !errors.As(err, &qe) || qe.Limit != 3 {
			t.Errorf("got %v, want a decoded *quotaError", err)
		}
		if err := caller.RemoteCallVoid(ctx, id, "charge(_:)", Args(1), errType); err != nil {
			t.Errorf("charge(1): %v", err)
		}
	})

	t.Run("void answered to value call", func(t *testing.T) {
		var v int
		err := caller.RemoteCall(ctx, id, "reset()", nil, TypeDescriptor{}, TypeDescriptor{}, &v)
		if !errors.Is(err, ErrProtocolViolation) {
			t.Errorf("got %v, want ErrProtocolViolation", err)
		}
	})

	t.Run("unknown actor", func(t *testing.T) {
		err := CallVoid(ctx, caller, "nobody", "reset()")
		if !errors.Is(err, ErrActorNotFound) {
			t.Errorf("got %v, want ErrActorNotFound", err)
		}
	})

	t.Run("unknown target", func(t *testing.T) {
		err := CallVoid(ctx, caller, id, "fly()")
		if !errors.Is(err, ErrUnknownTarget) {
			t.Errorf("got %v, want ErrUnknownTarget", err)
		}
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := Call[string](ctx, caller, id, "greet(name:)")
		if !errors.Is(err, ErrTruncatedData) {
			t.Errorf("got %v, want ErrTruncatedData", err)
		}
	})

	t.Run("panic", func(t *testing.T) {
		err := CallVoid(ctx, caller, id, "panic()")
		if err == nil || !strings.Contains(err.Error(), "panic in panic()") {
			t.Errorf("got %v", err)
		}
	})

	t.Run("no outcome", func(t *testing.T) {
		err := CallVoid(ctx, caller, id, "silent()")
		if !errors.Is(err, ErrProtocolViolation) {
			t.Errorf("got %v, want ErrProtocolViolation", err)
		}
	})

	t.Run("two outcomes", func(t *testing.T) {
		_, err := Call[int](ctx, caller, id, "twice()")
		if !errors.Is(err, ErrProtocolViolation) {
			t.Errorf("got %v, want ErrProtocolViolation", err)
		}
	})
}

func TestConcurrentCalls(t *testing.T) {
	host, id := newHost(t)
	caller := NewSystem(WithTransportClient(loopback{h: host}))

	var g errgroup.Group
	for i := 0; i < 64; i++ {
		name := fmt.Sprintf("caller-%d", i)
		g.Go(func() error {
			got, err := Call[string](context.Background(), caller, id, "greet(name:)", name)
			if err != nil {
				return err
			}
			if want := "Hello, " + name; got != want {
				return fmt.Errorf("got %q, want %q", got, want)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestHandleEnvelopeUnreadable(t *testing.T) {
	sys := NewSystem()
	if _, err := sys.HandleEnvelope(context.Background(), []byte{wireVersion, 0, 0}); !errors.Is(err, ErrTruncatedData) {
		t.Errorf("got %v, want ErrTruncatedData", err)
	}
}

func TestCallsAreTraced(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	sys, id := newHost(t, WithTracerProvider(tp))
	if _, err := Call[string](context.Background(), sys, id, "greet(name:)", "Ada"); err != nil {
		t.Fatal(err)
	}

	names := make(map[string]bool)
	for _, s := range sr.Ended() {
		names[s.Name()] = true
	}
	for _, want := range []string{"actorrpc.RemoteCall", "actorrpc.HandleEnvelope"} {
		if !names[want] {
			t.Errorf("span %q not recorded (got %v)", want, names)
		}
	}
}

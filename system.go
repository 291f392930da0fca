// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/luxfi/actorrpc"

// RecordFunc records the generic substitutions and arguments of one call,
// in call-site order.
type RecordFunc func(enc *InvocationEncoder) error

// SystemOption configures a System
type SystemOption func(*systemOptions)

type systemOptions struct {
	codec          Codec
	transport      Transport
	types          *TypeRegistry
	directory      *ActorDirectory
	tracerProvider trace.TracerProvider
	strict         bool
}

// WithCodec sets the codec used for arguments, results and thrown errors
func WithCodec(c Codec) SystemOption {
	return func(o *systemOptions) { o.codec = c }
}

// WithTransportClient sets the transport used for actors not hosted locally.
func WithTransportClient(t Transport) SystemOption {
	return func(o *systemOptions) { o.transport = t }
}

// WithTypeRegistry shares a registry instead of creating a private one.
func WithTypeRegistry(r *TypeRegistry) SystemOption {
	return func(o *systemOptions) { o.types = r }
}

// WithDirectory shares an actor directory instead of creating a private one.
func WithDirectory(d *ActorDirectory) SystemOption {
	return func(o *systemOptions) { o.directory = d }
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) SystemOption {
	return func(o *systemOptions) { o.tracerProvider = tp }
}

// WithStrictGenerics makes inbound decoding fail on malformed generic substitutions.
func WithStrictGenerics(strict bool) SystemOption {
	return func(o *systemOptions) { o.strict = strict }
}

// System turns outgoing calls into envelopes sent over a Transport and
// dispatches incoming envelopes to local actors. It holds no global lock;
// the registry and directory synchronize themselves.
type System struct {
	codec     Codec
	transport Transport
	types     *TypeRegistry
	directory *ActorDirectory
	tracer    trace.Tracer
	strict    bool

	nextCallID atomic.Uint64
}

// NewSystem creates a System. Without options it uses the JSON codec, a fresh
// registry and directory, and no transport (local actors only).
func NewSystem(opts ...SystemOption) *System {
	o := &systemOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.codec == nil {
		o.codec = defaultCodec
	}
	if o.types == nil {
		o.types = NewTypeRegistry()
	}
	if o.directory == nil {
		o.directory = NewActorDirectory()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	return &System{
		codec:     o.codec,
		transport: o.transport,
		types:     o.types,
		directory: o.directory,
		tracer:    o.tracerProvider.Tracer(instrumentationName),
		strict:    o.strict,
	}
}

// Types returns the type registry.
func (s *System) Types() *TypeRegistry { return s.types }

// Directory returns the actor directory.
func (s *System) Directory() *ActorDirectory { return s.directory }

// Codec returns the value codec.
func (s *System) Codec() Codec { return s.codec }

// AssignID mints an identity for a new local actor.
func (s *System) AssignID(typeName string) ActorID { return s.directory.AssignID(typeName) }

// AssignSingletonID claims the well-known identity of a singleton actor.
func (s *System) AssignSingletonID(typeName string) (ActorID, error) {
	return s.directory.AssignSingletonID(typeName)
}

// ActorReady makes a local actor reachable.
func (s *System) ActorReady(a Actor) error { return s.directory.ActorReady(a) }

// Resolve returns the local actor for id, or false when it is remote or unknown.
func (s *System) Resolve(id ActorID, typeName string) (Actor, bool) {
	return s.directory.Resolve(id, typeName)
}

// ResignID releases a local identity.
func (s *System) ResignID(id ActorID) { s.directory.ResignID(id) }

// NewInvocationEncoder returns an encoder bound to the system codec.
func (s *System) NewInvocationEncoder() *InvocationEncoder { return NewInvocationEncoder(s.codec) }

// RemoteCall invokes target on actor and decodes the returned value into reply.
// The envelope is sent exactly once; retries are left to the caller.
func (s *System) RemoteCall(ctx context.Context, actor ActorID, target string, record RecordFunc, errorType, returnType TypeDescriptor, reply any) error {
	resp, err := s.invoke(ctx, actor, target, record, errorType, returnType)
	if err != nil {
		return err
	}
	switch resp.kind {
	case responseError:
		return resp.err
	case responseVoid:
		return fmt.Errorf("%w: %s returned no value", ErrProtocolViolation, target)
	}
	if reply == nil {
		return nil
	}
	if err := s.codec.Decode(resp.value, reply); err != nil {
		return decodingFailed(err)
	}
	return nil
}

// RemoteCallVoid invokes target on actor when only success or failure matters.
func (s *System) RemoteCallVoid(ctx context.Context, actor ActorID, target string, record RecordFunc, errorType TypeDescriptor) error {
	resp, err := s.invoke(ctx, actor, target, record, errorType, TypeDescriptor{})
	if err != nil {
		return err
	}
	if resp.kind == responseError {
		return resp.err
	}
	return nil
}

func (s *System) invoke(ctx context.Context, actor ActorID, target string, record RecordFunc, errorType, returnType TypeDescriptor) (_ *response, err error) {
	ctx, span := s.tracer.Start(ctx, "actorrpc.RemoteCall",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "actorrpc"),
			attribute.String("rpc.method", target),
			attribute.String("actorrpc.recipient", string(actor)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	env, err := s.buildEnvelope(actor, target, record, errorType, returnType)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("actorrpc.call_id", int64(env.CallID)))

	var frame []byte
	if _, local := s.directory.Resolve(actor, ""); local {
		data, err := env.MarshalBinary()
		if err != nil {
			return nil, err
		}
		if frame, err = s.HandleEnvelope(ctx, data); err != nil {
			return nil, err
		}
	} else {
		if s.transport == nil {
			return nil, transportFailure(fmt.Errorf("no transport configured for remote actor %s", actor))
		}
		log.Debugf("call %d: sending %s to %s", env.CallID, target, actor)
		frame, err = s.transport.Send(ctx, env, actor)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, transportFailure(err)
		}
	}

	resp, err := decodeResponse(frame, s.codec, s.types)
	if err != nil {
		return nil, err
	}
	if resp.callID != env.CallID {
		return nil, fmt.Errorf("%w: response for call %d answered call %d", ErrProtocolViolation, resp.callID, env.CallID)
	}
	return resp, nil
}

func (s *System) buildEnvelope(actor ActorID, target string, record RecordFunc, errorType, returnType TypeDescriptor) (*Envelope, error) {
	if actor == "" || target == "" {
		return nil, fmt.Errorf("%w: call needs a recipient and a target", ErrProtocolViolation)
	}
	enc := s.NewInvocationEncoder()
	if record != nil {
		if err := record(enc); err != nil {
			return nil, err
		}
	}
	if !errorType.IsZero() {
		if err := enc.RecordErrorType(errorType); err != nil {
			return nil, err
		}
	}
	if !returnType.IsZero() {
		if err := enc.RecordReturnType(returnType); err != nil {
			return nil, err
		}
	}
	if err := enc.DoneRecording(); err != nil {
		return nil, err
	}
	env, err := enc.Envelope()
	if err != nil {
		return nil, err
	}
	env.Recipient = actor
	env.Target = target
	env.CallID = s.nextCallID.Add(1)
	return env, nil
}

// HandleEnvelope dispatches one inbound envelope frame to a local actor and
// returns the response frame. Failures of the call itself are encoded in the
// response; an error is returned only when the frame header is unreadable.
func (s *System) HandleEnvelope(ctx context.Context, frame []byte) ([]byte, error) {
	dec, err := NewInvocationDecoder(frame, s.codec, s.types, WithStrictGenericDecoding(s.strict))
	if err != nil {
		log.Warningf("dropping unreadable envelope: %v", err)
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "actorrpc.HandleEnvelope",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "actorrpc"),
			attribute.String("rpc.method", dec.Target()),
			attribute.String("actorrpc.recipient", string(dec.Recipient())),
			attribute.Int64("actorrpc.call_id", int64(dec.CallID())),
		),
	)
	defer span.End()

	rh := NewResultHandler(dec.CallID(), s.codec, s.types)
	actor, ok := s.directory.Resolve(dec.Recipient(), "")
	if !ok {
		err = fmt.Errorf("%w: %s", ErrActorNotFound, dec.Recipient())
	} else {
		err = s.execute(ctx, actor, dec, rh)
	}
	if err != nil {
		span.RecordError(err)
		if rh.settled() {
			log.Warningf("%s on %s failed after reporting an outcome: %v", dec.Target(), dec.Recipient(), err)
		} else if throwErr := rh.OnThrow(err); throwErr != nil {
			return nil, throwErr
		}
	}

	out, err := rh.Response()
	if err != nil {
		log.Errorf("%s on %s: %v", dec.Target(), dec.Recipient(), err)
		span.SetStatus(codes.Error, err.Error())
		violation := NewResultHandler(dec.CallID(), s.codec, s.types)
		if throwErr := violation.OnThrow(err); throwErr != nil {
			return nil, throwErr
		}
		return violation.Response()
	}
	return out, nil
}

func (s *System) execute(ctx context.Context, actor Actor, dec *InvocationDecoder, rh *ResultHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic executing %s on %s: %v\n%s", dec.Target(), actor.ID(), r, debug.Stack())
			err = &PanicError{Target: dec.Target(), Value: r}
		}
	}()
	return actor.ExecuteTarget(ctx, dec.Target(), dec, rh)
}

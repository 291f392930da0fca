// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const (
	grpcServiceName   = "actorrpc.Envelopes"
	grpcDeliverMethod = "/actorrpc.Envelopes/Deliver"
	frameCodecName    = "actorrpc-frame"
	grpcConnPoolSize  = 64
)

func init() {
	encoding.RegisterCodec(frameCodec{})
	registerTransport(TransportGRPC, dialGRPC, listenGRPC)
}

// grpcFrame carries an already encoded envelope or response frame.
type grpcFrame struct {
	Data []byte
}

// frameCodec passes grpcFrame payloads through untouched. It is selected per
// call by content subtype so the health service keeps using protobuf.
type frameCodec struct{}

func (frameCodec) Name() string { return frameCodecName }

func (frameCodec) Marshal(v any) ([]byte, error) {
	f, ok := v.(*grpcFrame)
	if !ok {
		return nil, fmt.Errorf("%s codec: cannot marshal %T", frameCodecName, v)
	}
	return f.Data, nil
}

func (frameCodec) Unmarshal(data []byte, v any) error {
	f, ok := v.(*grpcFrame)
	if !ok {
		return fmt.Errorf("%s codec: cannot unmarshal into %T", frameCodecName, v)
	}
	f.Data = append([]byte(nil), data...)
	return nil
}

// DialStage describes where a dial attempt failed.
type DialStage string

const (
	// DialStageConnect indicates a dial connection failure.
	DialStageConnect DialStage = "connect"
	// DialStageHealth indicates the health check failed.
	DialStageHealth DialStage = "health"
)

// DialError wraps dial and health check failures with a stage indicator.
type DialError struct {
	Stage DialStage
	Err   error
}

// Error implements the error interface.
func (e *DialError) Error() string {
	if e == nil {
		return "gRPC dial error"
	}
	return fmt.Sprintf("gRPC %s error: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *DialError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// grpcTransport sends envelopes with unary gRPC calls. Connections are pooled
// per address; an evicted connection is closed.
type grpcTransport struct {
	addr      string
	locations map[ActorID]string

	mu    sync.Mutex
	conns *lru.Cache // addr -> *grpc.ClientConn
}

func dialGRPC(_ context.Context, addr string, o *dialOptions) (Transport, error) {
	conns, err := lru.NewWithEvict(grpcConnPoolSize, func(key, value interface{}) {
		log.Debugf("grpc: closing connection to %v", key)
		_ = value.(*grpc.ClientConn).Close()
	})
	if err != nil {
		return nil, err
	}
	t := &grpcTransport{
		addr:      addr,
		locations: o.locations,
		conns:     conns,
	}
	if _, err := t.conn(addr); err != nil {
		return nil, err
	}
	return t, nil
}

func grpcClientOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

func (t *grpcTransport) conn(addr string) (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns.Get(addr); ok {
		return c.(*grpc.ClientConn), nil
	}
	cc, err := grpc.NewClient(addr, grpcClientOptions()...)
	if err != nil {
		return nil, &DialError{Stage: DialStageConnect, Err: err}
	}
	t.conns.Add(addr, cc)
	return cc, nil
}

func (t *grpcTransport) addrFor(recipient ActorID) string {
	if addr, ok := t.locations[recipient]; ok {
		return addr
	}
	return t.addr
}

func (t *grpcTransport) Send(ctx context.Context, env *Envelope, recipient ActorID) ([]byte, error) {
	if env.Recipient == "" {
		env.Recipient = recipient
	}
	frame, err := env.MarshalBinary()
	if err != nil {
		return nil, err
	}
	cc, err := t.conn(t.addrFor(recipient))
	if err != nil {
		return nil, err
	}
	out := &grpcFrame{}
	if err := cc.Invoke(ctx, grpcDeliverMethod, &grpcFrame{Data: frame}, out, grpc.CallContentSubtype(frameCodecName)); err != nil {
		return nil, fmt.Errorf("grpc deliver: %w", err)
	}
	return out.Data, nil
}

func (t *grpcTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns.Purge()
	return nil
}

// envelopeDeliverer is the service interface behind the hand-written ServiceDesc.
type envelopeDeliverer interface {
	Deliver(ctx context.Context, in *grpcFrame) (*grpcFrame, error)
}

// grpcServer serves envelopes and the standard gRPC health service.
type grpcServer struct {
	lis     net.Listener
	server  *grpc.Server
	health  *health.Server
	handler Handler
}

func listenGRPC(addr string, h Handler, _ *serverOptions) (Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &grpcServer{
		lis:     lis,
		server:  grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler())),
		health:  health.NewServer(),
		handler: h,
	}
	s.server.RegisterService(&grpc.ServiceDesc{
		ServiceName: grpcServiceName,
		HandlerType: (*envelopeDeliverer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "Deliver",
				Handler:    deliverHandler,
			},
		},
		Streams:  nil,
		Metadata: frameCodecName,
	}, s)
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(grpcServiceName, healthpb.HealthCheckResponse_SERVING)
	return s, nil
}

func deliverHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(grpcFrame)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(envelopeDeliverer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: grpcDeliverMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(envelopeDeliverer).Deliver(ctx, req.(*grpcFrame))
	}
	return interceptor(ctx, in, info, handler)
}

// Deliver hands one envelope to the handler.
func (s *grpcServer) Deliver(ctx context.Context, in *grpcFrame) (*grpcFrame, error) {
	out, err := s.handler.HandleEnvelope(ctx, in.Data)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return &grpcFrame{Data: out}, nil
}

func (s *grpcServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()
	err := s.server.Serve(s.lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

func (s *grpcServer) Close() error {
	s.health.Shutdown()
	s.server.Stop()
	if err := s.lis.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *grpcServer) Addr() string {
	return s.lis.Addr().String()
}

// WaitForHealth blocks until the gRPC health service at addr reports SERVING
// or ctx ends.
func WaitForHealth(ctx context.Context, addr string) error {
	cc, err := grpc.NewClient(addr, grpcClientOptions()...)
	if err != nil {
		return &DialError{Stage: DialStageConnect, Err: err}
	}
	defer cc.Close()

	healthClient := healthpb.NewHealthClient(cc)
	backoff := 50 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, GRPCDial)
		resp, err := healthClient.Check(callCtx, &healthpb.HealthCheckRequest{Service: grpcServiceName})
		cancel()
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			return nil
		}
		if err != nil {
			log.Debugf("waiting for gRPC health at %s: %v", addr, err)
		} else {
			log.Debugf("waiting for gRPC health at %s: status %s", addr, resp.GetStatus())
		}

		select {
		case <-ctx.Done():
			return &DialError{Stage: DialStageHealth, Err: ctx.Err()}
		case <-time.After(backoff):
		}
		if backoff < time.Second {
			backoff *= 2
		}
	}
}

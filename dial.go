// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"context"
	"fmt"
	"net"
)

// Dial connects a client transport to addr using the default transport (ZAP).
// Use WithTransport for transport selection.
func Dial(ctx context.Context, addr string, opts ...DialOption) (Transport, error) {
	o := &dialOptions{
		transport: DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}
	t, err := lookupTransport(o.transport)
	if err != nil {
		return nil, err
	}
	return t.dial(ctx, addr, o)
}

// Listen creates a server delivering inbound envelopes to h, using the
// default transport (ZAP).
func Listen(addr string, h Handler, opts ...ServerOption) (Server, error) {
	if h == nil {
		return nil, fmt.Errorf("listen %s: nil handler", addr)
	}
	o := &serverOptions{
		transport: DefaultTransport,
	}
	for _, opt := range opts {
		opt(o)
	}
	t, err := lookupTransport(o.transport)
	if err != nil {
		return nil, err
	}
	return t.listen(addr, h, o)
}

// dialZAP creates a ZAP client transport
func dialZAP(ctx context.Context, addr string, _ *dialOptions) (Transport, error) {
	conn, err := ZAPDial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &zapTransport{conn: conn}, nil
}

// listenZAP creates a ZAP server
func listenZAP(addr string, h Handler, _ *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &zapServer{server: NewZAPServer(listener, h)}, nil
}

// zapTransport implements Transport over a single ZAP connection
type zapTransport struct {
	conn *ZAPConn
}

func (t *zapTransport) Send(ctx context.Context, env *Envelope, recipient ActorID) ([]byte, error) {
	if env.Recipient == "" {
		env.Recipient = recipient
	}
	frame, err := env.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return t.conn.Call(ctx, frame)
}

func (t *zapTransport) Close() error {
	return t.conn.Close()
}

// zapServer implements Server using ZAP transport
type zapServer struct {
	server *ZAPServer
}

func (s *zapServer) Serve(ctx context.Context) error {
	return s.server.Serve(ctx)
}

func (s *zapServer) Close() error {
	return s.server.Close()
}

func (s *zapServer) Addr() string {
	return s.server.Addr().String()
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// Transport moves an envelope to the host of an actor and returns the raw
// response frame. Implementations correlate concurrent requests themselves.
type Transport interface {
	io.Closer
	// Send delivers env to the host of recipient and waits for its response
	Send(ctx context.Context, env *Envelope, recipient ActorID) ([]byte, error)
}

// Handler processes one inbound envelope frame and returns the response frame.
type Handler interface {
	HandleEnvelope(ctx context.Context, frame []byte) ([]byte, error)
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc func(ctx context.Context, frame []byte) ([]byte, error)

func (f HandlerFunc) HandleEnvelope(ctx context.Context, frame []byte) ([]byte, error) {
	return f(ctx, frame)
}

// Server exposes a Handler to remote peers.
type Server interface {
	// Serve starts serving requests (blocks until closed or context cancelled)
	Serve(ctx context.Context) error

	// Close stops the server
	Close() error

	// Addr returns the server's listen address
	Addr() string
}

// Codec encodes/decodes argument, return and error values
type Codec interface {
	Name() string
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// DialOption configures client transports
type DialOption func(*dialOptions)

type dialOptions struct {
	transport   string // "zap", "grpc", "http"
	locations   map[ActorID]string
	httpOptions []Option
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithLocation routes calls for id to addr instead of the dialed address.
// Only the gRPC transport honors per-actor locations.
func WithLocation(id ActorID, addr string) DialOption {
	return func(o *dialOptions) {
		if o.locations == nil {
			o.locations = make(map[ActorID]string)
		}
		o.locations[id] = addr
	}
}

// WithHTTPOptions passes request options to the HTTP transport.
func WithHTTPOptions(opts ...Option) DialOption {
	return func(o *dialOptions) { o.httpOptions = append(o.httpOptions, opts...) }
}

// ServerOption configures servers
type ServerOption func(*serverOptions)

type serverOptions struct {
	transport string
}

// WithServerTransport explicitly sets the transport type for the server
func WithServerTransport(t string) ServerOption {
	return func(o *serverOptions) { o.transport = t }
}

// Option configures a single HTTP JSON-RPC request.
type Option func(*Options)

// Options holds the per-request HTTP settings.
type Options struct {
	headers     http.Header
	queryParams url.Values
	retries     int
}

// NewOptions applies opts over empty defaults. Retries default to zero:
// every call sends exactly one request unless the caller opts in.
func NewOptions(opts []Option) *Options {
	o := &Options{
		headers:     http.Header{},
		queryParams: url.Values{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithHeader adds a request header.
func WithHeader(key, value string) Option {
	return func(o *Options) { o.headers.Add(key, value) }
}

// WithQueryParam adds a query parameter to the request URI.
func WithQueryParam(key, value string) Option {
	return func(o *Options) { o.queryParams.Add(key, value) }
}

// WithRetries retries transient connection errors up to n extra times.
func WithRetries(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.retries = n
		}
	}
}

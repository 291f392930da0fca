// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	gorillarpc "github.com/gorilla/rpc/v2"
	rpc "github.com/gorilla/rpc/v2/json2"
)

const (
	// HTTPEndpoint is the path the JSON-RPC handler is served under.
	HTTPEndpoint = "/actorrpc"
	// httpInvokeMethod is the JSON-RPC method delivering one envelope.
	httpInvokeMethod = "Actor.Invoke"
)

func init() {
	registerTransport(TransportHTTP, dialHTTP, listenHTTP)
}

// InvokeArgs carries an encoded Envelope.
type InvokeArgs struct {
	Envelope []byte `json:"envelope"`
}

// InvokeReply carries an encoded response frame.
type InvokeReply struct {
	Response []byte `json:"response"`
}

// newHTTPClient creates a fresh HTTP client with disabled connection reuse.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: HTTPClient,
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body.
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// isRetryableError checks if an error is transient and worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	if errors.Is(err, io.EOF) || strings.Contains(errStr, "EOF") {
		return true
	}
	if strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") {
		return true
	}
	return false
}

// SendJSONRequest issues one JSON-RPC 2.0 call to uri. Transient connection
// errors are retried only when WithRetries is given.
func SendJSONRequest(
	ctx context.Context,
	uri *url.URL,
	method string,
	params interface{},
	reply interface{},
	options ...Option,
) error {
	log.Debugf("json-rpc: %s -> %s", method, uri)
	requestBodyBytes, err := rpc.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}

	ops := NewOptions(options)
	target := *uri
	target.RawQuery = ops.queryParams.Encode()

	attempts := ops.retries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			waitTime := retryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}

		// the body buffer is consumed by each attempt
		request, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			target.String(),
			bytes.NewBuffer(requestBodyBytes),
		)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		request.Header = ops.headers.Clone()
		request.Header.Set("Content-Type", "application/json")

		resp, err := newHTTPClient().Do(request)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			lastErr = err
			retryable := isRetryableError(err)
			log.Debugf("json-rpc: attempt %d failed: %v (retryable=%v)", attempt+1, err, retryable)
			if retryable {
				continue
			}
			return fmt.Errorf("failed to issue request: %w", err)
		}
		if attempt > 0 {
			log.Infof("json-rpc: request succeeded on attempt %d", attempt+1)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			CleanlyCloseBody(resp.Body)
			return fmt.Errorf("received status code: %d", resp.StatusCode)
		}

		err = rpc.DecodeClientResponse(resp.Body, reply)
		CleanlyCloseBody(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to decode client response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("failed to issue request after %d attempts: %w", attempts, lastErr)
}

// httpTransport sends envelopes as JSON-RPC 2.0 requests.
type httpTransport struct {
	uri     *url.URL
	options []Option
}

func dialHTTP(_ context.Context, addr string, o *dialOptions) (Transport, error) {
	uri, err := httpURI(addr)
	if err != nil {
		return nil, err
	}
	return &httpTransport{uri: uri, options: o.httpOptions}, nil
}

// httpURI accepts either host:port or a full URL.
func httpURI(addr string) (*url.URL, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	uri, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid http address %q: %w", addr, err)
	}
	if uri.Path == "" || uri.Path == "/" {
		uri.Path = HTTPEndpoint
	}
	return uri, nil
}

func (t *httpTransport) Send(ctx context.Context, env *Envelope, recipient ActorID) ([]byte, error) {
	if env.Recipient == "" {
		env.Recipient = recipient
	}
	frame, err := env.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var reply InvokeReply
	if err := SendJSONRequest(ctx, t.uri, httpInvokeMethod, &InvokeArgs{Envelope: frame}, &reply, t.options...); err != nil {
		return nil, err
	}
	return reply.Response, nil
}

func (t *httpTransport) Close() error { return nil }

// ActorService is the JSON-RPC receiver behind "Actor.Invoke".
type ActorService struct {
	handler Handler
}

// Invoke hands one envelope to the handler.
func (s *ActorService) Invoke(r *http.Request, args *InvokeArgs, reply *InvokeReply) error {
	resp, err := s.handler.HandleEnvelope(r.Context(), args.Envelope)
	if err != nil {
		return err
	}
	reply.Response = resp
	return nil
}

// NewHTTPHandler returns a JSON-RPC 2.0 handler delivering envelopes to h,
// for mounting under HTTPEndpoint on an existing mux.
func NewHTTPHandler(h Handler) (http.Handler, error) {
	server := gorillarpc.NewServer()
	server.RegisterCodec(rpc.NewCodec(), "application/json")
	if err := server.RegisterService(&ActorService{handler: h}, "Actor"); err != nil {
		return nil, err
	}
	return server, nil
}

type httpServer struct {
	lis    net.Listener
	server *http.Server
}

func listenHTTP(addr string, h Handler, _ *serverOptions) (Server, error) {
	rpcHandler, err := NewHTTPHandler(h)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(HTTPEndpoint, rpcHandler)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &httpServer{
		lis: lis,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: HTTPClient,
		},
	}, nil
}

func (s *httpServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()
	err := s.server.Serve(s.lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close also releases the listener when Serve never ran.
func (s *httpServer) Close() error {
	err := s.server.Close()
	if lerr := s.lis.Close(); lerr != nil && !errors.Is(lerr, net.ErrClosed) && err == nil {
		err = lerr
	}
	return err
}

func (s *httpServer) Addr() string {
	return s.lis.Addr().String()
}

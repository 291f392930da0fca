// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrZAPClosed      = errors.New("zap: connection closed")
	ErrZAPInvalidResp = errors.New("zap: invalid response")
	ErrZAPRemote      = errors.New("zap: remote handler failed")
)

// MessageType identifies ZAP message types
type MessageType uint8

const (
	MsgRequest  MessageType = 0x01
	MsgResponse MessageType = 0x02
	MsgError    MessageType = 0x03
)

// maxZAPFrame caps a single frame on the wire (64MB).
const maxZAPFrame = 64 * 1024 * 1024

// ZAP frame: [4 len][1 type][4 reqID][payload]. The request payload is an
// encoded Envelope; the response payload is a ResultHandler frame, or an
// error message for MsgError.
func encodeZAPFrame(msgType MessageType, requestID uint32, payload []byte) []byte {
	msgLen := 1 + 4 + len(payload)
	buf := make([]byte, 4+msgLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(msgLen))
	buf[4] = byte(msgType)
	binary.BigEndian.PutUint32(buf[5:9], requestID)
	copy(buf[9:], payload)
	return buf
}

// readZAPFrame reads one frame and returns its type, request id and payload.
func readZAPFrame(r io.Reader, header []byte) (MessageType, uint32, []byte, error) {
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, 0, nil, err
	}
	msgLen := binary.BigEndian.Uint32(header)
	if msgLen < 5 || msgLen > maxZAPFrame {
		return 0, 0, nil, fmt.Errorf("zap: invalid frame length %d", msgLen)
	}
	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(r, msg); err != nil {
		return 0, 0, nil, err
	}
	return MessageType(msg[0]), binary.BigEndian.Uint32(msg[1:5]), msg[5:], nil
}

// ZAPConn is a client connection multiplexing concurrent calls by request id
type ZAPConn struct {
	conn     net.Conn
	writeMu  sync.Mutex
	pending  sync.Map // requestID -> chan *ZAPResponse
	nextID   atomic.Uint32
	closed   atomic.Bool
	readDone chan struct{}
}

// ZAPResponse holds a response from a ZAP call
type ZAPResponse struct {
	Data []byte
	Err  error
}

// ZAPDial connects to a ZAP server
func ZAPDial(ctx context.Context, addr string) (*ZAPConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("zap dial: %w", err)
	}

	zc := &ZAPConn{
		conn:     conn,
		readDone: make(chan struct{}),
	}
	go zc.readLoop()
	log.Debugf("zap: connected to %s", addr)
	return zc, nil
}

// Call sends one request frame and waits for its response. A call abandoned
// through ctx drops its pending slot, so a late response is discarded.
func (z *ZAPConn) Call(ctx context.Context, payload []byte) ([]byte, error) {
	if z.closed.Load() {
		return nil, ErrZAPClosed
	}

	requestID := z.nextID.Add(1)
	respCh := make(chan *ZAPResponse, 1)
	z.pending.Store(requestID, respCh)
	defer z.pending.Delete(requestID)

	buf := encodeZAPFrame(MsgRequest, requestID, payload)
	z.writeMu.Lock()
	_, err := z.conn.Write(buf)
	z.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("zap write: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respCh:
		if resp.Err != nil {
			return nil, resp.Err
		}
		return resp.Data, nil
	case <-z.readDone:
		return nil, ErrZAPClosed
	}
}

func (z *ZAPConn) readLoop() {
	defer close(z.readDone)

	header := make([]byte, 4)
	for {
		msgType, requestID, payload, err := readZAPFrame(z.conn, header)
		if err != nil {
			if !z.closed.Load() {
				log.Debugf("zap: read loop stopped: %v", err)
			}
			return
		}

		ch, ok := z.pending.Load(requestID)
		if !ok {
			log.Debugf("zap: discarding response for abandoned request %d", requestID)
			continue
		}
		respCh := ch.(chan *ZAPResponse)
		switch msgType {
		case MsgResponse:
			respCh <- &ZAPResponse{Data: payload}
		case MsgError:
			respCh <- &ZAPResponse{Err: fmt.Errorf("%w: %s", ErrZAPRemote, payload)}
		default:
			respCh <- &ZAPResponse{Err: fmt.Errorf("%w: message type %d", ErrZAPInvalidResp, msgType)}
		}
	}
}

// Close closes the connection
func (z *ZAPConn) Close() error {
	if z.closed.Swap(true) {
		return nil
	}
	return z.conn.Close()
}

// ZAPServer reads envelope frames from connections and answers them through a Handler
type ZAPServer struct {
	listener net.Listener
	handler  Handler
	conns    sync.Map
	closed   atomic.Bool
}

// NewZAPServer creates a new ZAP server
func NewZAPServer(listener net.Listener, handler Handler) *ZAPServer {
	return &ZAPServer{
		listener: listener,
		handler:  handler,
	}
}

// Serve accepts connections until the server is closed or ctx is done
func (s *ZAPServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("zap accept: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

// zapServerConn serializes response writes of concurrently handled requests.
type zapServerConn struct {
	net.Conn
	writeMu sync.Mutex
}

func (s *ZAPServer) handleConn(ctx context.Context, c net.Conn) {
	conn := &zapServerConn{Conn: c}
	defer conn.Close()
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)
	log.Debugf("zap: accepted %s", c.RemoteAddr())

	header := make([]byte, 4)
	for {
		msgType, requestID, payload, err := readZAPFrame(conn, header)
		if err != nil {
			return
		}
		if msgType != MsgRequest {
			log.Warningf("zap: ignoring message type %d from %s", msgType, c.RemoteAddr())
			continue
		}

		go func() {
			respData, err := s.handler.HandleEnvelope(ctx, payload)
			s.sendResponse(conn, requestID, respData, err)
		}()
	}
}

func (s *ZAPServer) sendResponse(conn *zapServerConn, requestID uint32, data []byte, err error) {
	msgType, payload := MsgResponse, data
	if err != nil {
		msgType, payload = MsgError, []byte(err.Error())
	}
	buf := encodeZAPFrame(msgType, requestID, payload)

	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(WriteDeadline))
	if _, werr := conn.Write(buf); werr != nil {
		log.Debugf("zap: response %d not written: %v", requestID, werr)
	}
}

// Close closes the server and all of its connections
func (s *ZAPServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.conns.Range(func(key, _ interface{}) bool {
		key.(*zapServerConn).Close()
		return true
	})
	return s.listener.Close()
}

// Addr returns the listener address
func (s *ZAPServer) Addr() net.Addr {
	return s.listener.Addr()
}

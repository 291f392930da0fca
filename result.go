// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

type responseKind uint8

const (
	responseValue responseKind = 0x01
	responseVoid  responseKind = 0x02
	responseError responseKind = 0x03
)

// ResultHandler captures the single outcome of a dispatched call and encodes
// the response frame:
//
//	[1 version][8 callID][1 kind] value:[blob] | void: - | error:[str code][str type][str message][blob]
//
// Exactly one of OnReturn, OnThrow or OnReturnVoid must succeed.
type ResultHandler struct {
	codec    Codec
	registry *TypeRegistry
	callID   uint64

	mu       sync.Mutex
	outcomes int
	frame    []byte
}

// NewResultHandler returns a handler for the call identified by callID.
func NewResultHandler(callID uint64, codec Codec, registry *TypeRegistry) *ResultHandler {
	if codec == nil {
		codec = defaultCodec
	}
	if registry == nil {
		registry = NewTypeRegistry()
	}
	return &ResultHandler{codec: codec, registry: registry, callID: callID}
}

// OnReturn encodes a successful value. An encoding failure is returned as
// ErrEncodingFailed and does not count as the call's outcome.
func (h *ResultHandler) OnReturn(v any) error {
	b, err := h.codec.Encode(v)
	if err != nil {
		return encodingFailed(err)
	}
	w := h.header(responseValue)
	if err := w.bytes(b); err != nil {
		return err
	}
	return h.settle(w.buf)
}

// OnReturnVoid records success with no value.
func (h *ResultHandler) OnReturnVoid() error {
	return h.settle(h.header(responseVoid).buf)
}

// OnThrow records a failure. Known sentinels keep their identity through a
// code; the first error in the tree whose type is registered is also
// encoded by value.
func (h *ResultHandler) OnThrow(err error) error {
	if err == nil {
		return fmt.Errorf("%w: OnThrow with nil error", ErrProtocolViolation)
	}
	var typeName string
	var payload []byte
	if name, e := h.registeredError(err); e != nil {
		if b, encErr := h.codec.Encode(e); encErr == nil {
			typeName, payload = name, b
		} else {
			log.Warningf("error type %s not encodable, sending message only: %v", name, encErr)
		}
	}
	w := h.header(responseError)
	for _, s := range []string{codeOf(err), typeName, err.Error()} {
		if werr := w.string(s); werr != nil {
			return werr
		}
	}
	if werr := w.bytes(payload); werr != nil {
		return werr
	}
	return h.settle(w.buf)
}

// registeredError walks the error tree depth first, through both
// Unwrap() error and Unwrap() []error, and returns the first error whose
// dynamic type is registered, or nil.
func (h *ResultHandler) registeredError(err error) (string, error) {
	if err == nil {
		return "", nil
	}
	if name, ok := h.registry.NameOf(reflect.TypeOf(err)); ok {
		return name, err
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return h.registeredError(u.Unwrap())
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if name, found := h.registeredError(e); found != nil {
				return name, found
			}
		}
	}
	return "", nil
}

// Response returns the encoded frame, or ErrProtocolViolation unless exactly
// one outcome was recorded.
func (h *ResultHandler) Response() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.outcomes == 0:
		return nil, fmt.Errorf("%w: call %d completed without an outcome", ErrProtocolViolation, h.callID)
	case h.outcomes > 1:
		return nil, fmt.Errorf("%w: call %d reported %d outcomes", ErrProtocolViolation, h.callID, h.outcomes)
	}
	return h.frame, nil
}

// settled reports whether an outcome has already been recorded.
func (h *ResultHandler) settled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcomes > 0
}

func (h *ResultHandler) header(kind responseKind) *wireWriter {
	w := &wireWriter{}
	w.uint8(wireVersion)
	w.uint64(h.callID)
	w.uint8(byte(kind))
	return w
}

func (h *ResultHandler) settle(frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes++
	if h.outcomes > 1 {
		h.frame = nil
		return fmt.Errorf("%w: call %d already has an outcome", ErrProtocolViolation, h.callID)
	}
	h.frame = frame
	return nil
}

// response is the caller-side view of a response frame.
type response struct {
	callID uint64
	kind   responseKind
	value  []byte
	err    error
}

func decodeResponse(frame []byte, codec Codec, registry *TypeRegistry) (*response, error) {
	r := &wireReader{data: frame}
	v, err := r.uint8()
	if err != nil {
		return nil, err
	}
	if v != wireVersion {
		return nil, fmt.Errorf("%w: unsupported response version %d", ErrProtocolViolation, v)
	}
	resp := &response{}
	if resp.callID, err = r.uint64(); err != nil {
		return nil, err
	}
	kind, err := r.uint8()
	if err != nil {
		return nil, err
	}
	resp.kind = responseKind(kind)

	switch resp.kind {
	case responseValue:
		if resp.value, err = r.bytes(); err != nil {
			return nil, err
		}
	case responseVoid:
	case responseError:
		var fields [3]string
		for i := range fields {
			if fields[i], err = r.string(); err != nil {
				return nil, err
			}
		}
		payload, err := r.bytes()
		if err != nil {
			return nil, err
		}
		resp.err = remoteError(fields[0], fields[1], fields[2], payload, codec, registry)
	default:
		return nil, fmt.Errorf("%w: unknown response kind %d", ErrProtocolViolation, kind)
	}
	return resp, nil
}

func remoteError(code, typeName, message string, payload []byte, codec Codec, registry *TypeRegistry) error {
	re := &RemoteError{Code: code, Type: typeName, Message: message}
	if typeName == "" || len(payload) == 0 {
		return re
	}
	d, err := registry.Lookup(typeName)
	if err != nil || !d.IsError() {
		return re
	}
	ptr := d.New()
	if err := codec.Decode(payload, ptr); err != nil {
		log.Debugf("remote error %s kept opaque: %v", typeName, err)
		return re
	}
	if decoded, ok := reflect.ValueOf(ptr).Elem().Interface().(error); ok && decoded != nil {
		re.Err = decoded
	}
	return re
}

// AsRemote returns the RemoteError in err's chain, if any.
func AsRemote(err error) (*RemoteError, bool) {
	var re *RemoteError
	ok := errors.As(err, &re)
	return re, ok
}

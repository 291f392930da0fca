// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"errors"
	"fmt"
)

var (
	// ErrEncodingFailed is returned when a value cannot be serialized by the codec.
	ErrEncodingFailed = errors.New("actorrpc: encoding failed")
	// ErrDecodingFailed is returned when a blob cannot be decoded into the expected type.
	ErrDecodingFailed = errors.New("actorrpc: decoding failed")
	// ErrTruncatedData is returned when a frame is shorter than its framing declares.
	ErrTruncatedData = errors.New("actorrpc: truncated data")
	// ErrUnknownType is returned when a type name is not in the TypeRegistry.
	ErrUnknownType = errors.New("actorrpc: unknown type")
	// ErrProtocolViolation signals a broken invocation or result contract.
	ErrProtocolViolation = errors.New("actorrpc: protocol violation")
	// ErrTransportFailure wraps any error reported by a Transport.
	ErrTransportFailure = errors.New("actorrpc: transport failure")

	ErrActorNotFound     = errors.New("actorrpc: actor not found")
	ErrUnknownTarget     = errors.New("actorrpc: unknown target")
	ErrIdentityInUse     = errors.New("actorrpc: identity already in use")
	ErrRecordingFinished = errors.New("actorrpc: invocation already finished recording")
	ErrDecodeOrder       = errors.New("actorrpc: decode called out of order")
	ErrDuplicateType     = errors.New("actorrpc: type name already registered")
)

// errorCodes tags sentinels so they survive a round trip through a response frame.
var errorCodes = []struct {
	code string
	err  error
}{
	{"actor_not_found", ErrActorNotFound},
	{"unknown_target", ErrUnknownTarget},
	{"truncated_data", ErrTruncatedData},
	{"unknown_type", ErrUnknownType},
	{"decoding_failed", ErrDecodingFailed},
	{"encoding_failed", ErrEncodingFailed},
	{"decode_order", ErrDecodeOrder},
	{"protocol_violation", ErrProtocolViolation},
}

func codeOf(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

func errorForCode(code string) error {
	for _, c := range errorCodes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}

// RemoteError is the caller-side form of an error thrown by a remote actor.
// Unwrap exposes both the sentinel matching Code and the decoded error value,
// when the remote error type was registered on both sides.
type RemoteError struct {
	Code    string
	Type    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("remote %s: %s", e.Type, e.Message)
	}
	return "remote: " + e.Message
}

// Unwrap returns the sentinel for Code and the decoded error, if any.
func (e *RemoteError) Unwrap() []error {
	var errs []error
	if sentinel := errorForCode(e.Code); sentinel != nil {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// PanicError reports a panic recovered while an actor executed a target.
type PanicError struct {
	Target string
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("actorrpc: panic in %s: %v", e.Target, e.Value)
}

func encodingFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrEncodingFailed, err)
}

func decodingFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrDecodingFailed, err)
}

func transportFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrTransportFailure, err)
}

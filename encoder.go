// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import "fmt"

// InvocationEncoder records one outgoing call into an Envelope. It is owned
// by a single call site and must not be shared between goroutines.
type InvocationEncoder struct {
	codec Codec
	env   Envelope
	done  bool
}

// NewInvocationEncoder returns an encoder that serializes arguments with codec.
// A nil codec selects the default JSON codec.
func NewInvocationEncoder(codec Codec) *InvocationEncoder {
	if codec == nil {
		codec = defaultCodec
	}
	return &InvocationEncoder{codec: codec}
}

// RecordGenericSubstitution appends the name of a bound generic parameter.
func (e *InvocationEncoder) RecordGenericSubstitution(t TypeDescriptor) error {
	if e.done {
		return ErrRecordingFinished
	}
	if t.IsZero() {
		return fmt.Errorf("%w: generic substitution without a type", ErrProtocolViolation)
	}
	e.env.GenericSubstitutions = append(e.env.GenericSubstitutions, t.Name)
	return nil
}

// RecordArgument encodes v and appends it after the previously recorded arguments.
func (e *InvocationEncoder) RecordArgument(v any) error {
	if e.done {
		return ErrRecordingFinished
	}
	b, err := e.codec.Encode(v)
	if err != nil {
		return encodingFailed(err)
	}
	e.env.Arguments = append(e.env.Arguments, b)
	return nil
}

// RecordErrorType sets the declared error type. Last write wins.
func (e *InvocationEncoder) RecordErrorType(t TypeDescriptor) error {
	if e.done {
		return ErrRecordingFinished
	}
	e.env.ErrorType = t.Name
	return nil
}

// RecordReturnType sets the declared return type. Last write wins.
func (e *InvocationEncoder) RecordReturnType(t TypeDescriptor) error {
	if e.done {
		return ErrRecordingFinished
	}
	e.env.ReturnType = t.Name
	return nil
}

// DoneRecording finalizes the invocation; no Record call is accepted afterwards.
func (e *InvocationEncoder) DoneRecording() error {
	if e.done {
		return ErrRecordingFinished
	}
	e.done = true
	return nil
}

// Envelope returns a copy of the recorded envelope. It fails until DoneRecording.
func (e *InvocationEncoder) Envelope() (*Envelope, error) {
	if !e.done {
		return nil, fmt.Errorf("%w: envelope requested while still recording", ErrProtocolViolation)
	}
	return e.env.clone(), nil
}

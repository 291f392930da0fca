// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"fmt"
	"unicode/utf8"
)

type decodeStage uint8

const (
	stageGenerics decodeStage = iota
	stageArgCount
	stageArguments
	stageErrorType
	stageReturnType
	stageDone
)

// DecoderOption configures an InvocationDecoder.
type DecoderOption func(*InvocationDecoder)

// WithStrictGenericDecoding makes a malformed generic substitution fail with
// ErrTruncatedData instead of being skipped.
func WithStrictGenericDecoding(strict bool) DecoderOption {
	return func(d *InvocationDecoder) { d.strict = strict }
}

// InvocationDecoder reads an encoded Envelope back into typed values on the
// receiving side. Sections are read in recording order: generic
// substitutions, arguments, error type, return type. Asking for a later
// section skips whatever was left unread before it; going back fails with
// ErrDecodeOrder.
type InvocationDecoder struct {
	codec    Codec
	registry *TypeRegistry
	strict   bool

	hdr   envelopeHeader
	r     wireReader
	stage decodeStage
	args  uint32
}

// NewInvocationDecoder reads the envelope header from frame. The remaining
// sections are decoded on demand.
func NewInvocationDecoder(frame []byte, codec Codec, registry *TypeRegistry, opts ...DecoderOption) (*InvocationDecoder, error) {
	if codec == nil {
		codec = defaultCodec
	}
	if registry == nil {
		registry = NewTypeRegistry()
	}
	d := &InvocationDecoder{
		codec:    codec,
		registry: registry,
		r:        wireReader{data: frame},
	}
	for _, opt := range opts {
		opt(d)
	}
	hdr, err := readHeader(&d.r)
	if err != nil {
		return nil, err
	}
	d.hdr = hdr
	return d, nil
}

// CallID returns the correlation id of the call.
func (d *InvocationDecoder) CallID() uint64 { return d.hdr.callID }

// Recipient returns the addressed actor.
func (d *InvocationDecoder) Recipient() ActorID { return d.hdr.recipient }

// Target returns the method identifier.
func (d *InvocationDecoder) Target() string { return d.hdr.target }

// DecodeGenericSubstitutions resolves the recorded generic parameters in order.
//
// A missing count fails with ErrTruncatedData. A malformed entry (unreadable
// length or name bytes, empty or non UTF-8 name) is skipped unless strict
// decoding is enabled, so callers must accept a result shorter than the
// recorded count. A well-formed name that is not registered fails with
// ErrUnknownType.
func (d *InvocationDecoder) DecodeGenericSubstitutions() ([]TypeDescriptor, error) {
	if d.stage != stageGenerics {
		return nil, fmt.Errorf("%w: generic substitutions already consumed", ErrDecodeOrder)
	}
	var types []TypeDescriptor
	err := d.readGenerics(func(name string) error {
		t, err := d.registry.Lookup(name)
		if err != nil {
			return err
		}
		types = append(types, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return types, nil
}

func (d *InvocationDecoder) readGenerics(visit func(name string) error) error {
	n, err := d.r.uint32()
	if err != nil {
		return err
	}
	d.stage = stageArgCount
	var visitErr error
	for i := uint32(0); i < n; i++ {
		name, err := d.r.string()
		if err == nil && (name == "" || !utf8.ValidString(name)) {
			err = fmt.Errorf("%w: malformed type name", ErrTruncatedData)
		}
		if err != nil {
			if d.strict {
				return fmt.Errorf("generic substitution %d of %d: %w", i+1, n, err)
			}
			log.Debugf("skipping generic substitution %d of %d for %s: %v", i+1, n, d.hdr.target, err)
			continue
		}
		// later entries are still consumed so argument decoding stays aligned
		if visit != nil && visitErr == nil {
			visitErr = visit(name)
		}
	}
	return visitErr
}

// advance skips unread sections until the decoder reaches stage.
func (d *InvocationDecoder) advance(stage decodeStage) error {
	for d.stage < stage {
		switch d.stage {
		case stageGenerics:
			if err := d.readGenerics(nil); err != nil {
				return err
			}
		case stageArgCount:
			n, err := d.r.uint32()
			if err != nil {
				return err
			}
			d.args = n
			d.stage = stageArguments
		case stageArguments:
			for ; d.args > 0; d.args-- {
				if _, err := d.r.bytes(); err != nil {
					return err
				}
			}
			d.stage = stageErrorType
		case stageErrorType:
			if _, err := d.r.string(); err != nil {
				return err
			}
			d.stage = stageReturnType
		case stageReturnType:
			if _, err := d.r.string(); err != nil {
				return err
			}
			d.stage = stageDone
		}
	}
	return nil
}

// DecodeNextArgumentInto decodes the next argument into ptr, which must be a
// pointer to the statically expected parameter type.
func (d *InvocationDecoder) DecodeNextArgumentInto(ptr any) error {
	if d.stage > stageArguments {
		return fmt.Errorf("%w: arguments already consumed", ErrDecodeOrder)
	}
	if err := d.advance(stageArguments); err != nil {
		return err
	}
	if d.args == 0 {
		return fmt.Errorf("%w: no arguments left for %s", ErrTruncatedData, d.hdr.target)
	}
	b, err := d.r.bytes()
	if err != nil {
		return err
	}
	d.args--
	if err := d.codec.Decode(b, ptr); err != nil {
		return decodingFailed(err)
	}
	return nil
}

// RemainingArguments reports how many recorded arguments have not been read.
// It is only meaningful once argument decoding has started.
func (d *InvocationDecoder) RemainingArguments() int {
	if d.stage != stageArguments {
		return 0
	}
	return int(d.args)
}

// DecodeNextArgument decodes the next argument as T.
func DecodeNextArgument[T any](d *InvocationDecoder) (T, error) {
	var v T
	if err := d.DecodeNextArgumentInto(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// DecodeErrorType returns the declared error type; false means none was recorded.
func (d *InvocationDecoder) DecodeErrorType() (TypeDescriptor, bool, error) {
	if d.stage > stageErrorType {
		return TypeDescriptor{}, false, fmt.Errorf("%w: error type already consumed", ErrDecodeOrder)
	}
	if err := d.advance(stageErrorType); err != nil {
		return TypeDescriptor{}, false, err
	}
	return d.readOptionalType(stageReturnType)
}

// DecodeReturnType returns the declared return type; false means none was recorded.
func (d *InvocationDecoder) DecodeReturnType() (TypeDescriptor, bool, error) {
	if d.stage > stageReturnType {
		return TypeDescriptor{}, false, fmt.Errorf("%w: return type already consumed", ErrDecodeOrder)
	}
	if err := d.advance(stageReturnType); err != nil {
		return TypeDescriptor{}, false, err
	}
	return d.readOptionalType(stageDone)
}

// readOptionalType reads one optional type name and moves to next once the
// field has been consumed, even if the name does not resolve.
func (d *InvocationDecoder) readOptionalType(next decodeStage) (TypeDescriptor, bool, error) {
	n, err := d.r.uint32()
	if err != nil {
		return TypeDescriptor{}, false, err
	}
	if n == 0 {
		d.stage = next
		return TypeDescriptor{}, false, nil
	}
	b, err := d.r.take(n)
	if err != nil {
		return TypeDescriptor{}, false, err
	}
	d.stage = next
	t, err := d.registry.Lookup(string(b))
	if err != nil {
		return TypeDescriptor{}, false, err
	}
	return t, true, nil
}

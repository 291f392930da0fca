// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"fmt"
	"unicode/utf8"
)

// ActorID identifies one addressable actor instance, local or remote.
type ActorID string

// Envelope is the wire unit of one call.
//
// Arguments and GenericSubstitutions are kept in recording order; that order
// is the only link between encoder and decoder slots. An empty ErrorType or
// ReturnType is absent and goes on the wire as a zero length prefix.
type Envelope struct {
	CallID               uint64
	Recipient            ActorID
	Target               string
	GenericSubstitutions []string
	Arguments            [][]byte
	ErrorType            string
	ReturnType           string
}

// MarshalBinary encodes the envelope:
//
//	[1 version][8 callID][str recipient][str target]
//	[4 n][str]*n generics [4 m][blob]*m arguments [str errorType][str returnType]
func (e *Envelope) MarshalBinary() ([]byte, error) {
	if e.Recipient == "" {
		return nil, fmt.Errorf("%w: envelope has no recipient", ErrProtocolViolation)
	}
	if e.Target == "" {
		return nil, fmt.Errorf("%w: envelope has no target", ErrProtocolViolation)
	}

	size := 1 + 8 + 4 + len(e.Recipient) + 4 + len(e.Target) + 4 + 4 + 4 + len(e.ErrorType) + 4 + len(e.ReturnType)
	for _, g := range e.GenericSubstitutions {
		size += 4 + len(g)
	}
	for _, a := range e.Arguments {
		size += 4 + len(a)
	}

	w := &wireWriter{buf: make([]byte, 0, size)}
	w.uint8(wireVersion)
	w.uint64(e.CallID)
	if err := w.string(string(e.Recipient)); err != nil {
		return nil, err
	}
	if err := w.string(e.Target); err != nil {
		return nil, err
	}
	w.uint32(uint32(len(e.GenericSubstitutions)))
	for _, g := range e.GenericSubstitutions {
		if err := w.string(g); err != nil {
			return nil, err
		}
	}
	w.uint32(uint32(len(e.Arguments)))
	for _, a := range e.Arguments {
		if err := w.bytes(a); err != nil {
			return nil, err
		}
	}
	if err := w.string(e.ErrorType); err != nil {
		return nil, err
	}
	if err := w.string(e.ReturnType); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// UnmarshalBinary strictly decodes a frame produced by MarshalBinary. Unlike
// InvocationDecoder it never skips malformed generic substitutions and does
// not resolve type names.
func (e *Envelope) UnmarshalBinary(data []byte) error {
	r := &wireReader{data: data}
	hdr, err := readHeader(r)
	if err != nil {
		return err
	}

	var out Envelope
	out.CallID = hdr.callID
	out.Recipient = hdr.recipient
	out.Target = hdr.target

	n, err := r.uint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		g, err := r.string()
		if err != nil {
			return err
		}
		out.GenericSubstitutions = append(out.GenericSubstitutions, g)
	}

	m, err := r.uint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < m; i++ {
		a, err := r.bytes()
		if err != nil {
			return err
		}
		out.Arguments = append(out.Arguments, append([]byte(nil), a...))
	}

	if out.ErrorType, err = r.string(); err != nil {
		return err
	}
	if out.ReturnType, err = r.string(); err != nil {
		return err
	}
	if r.remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes after envelope", ErrProtocolViolation, r.remaining())
	}
	*e = out
	return nil
}

// clone returns a deep copy so recorded state never aliases a sent envelope.
func (e *Envelope) clone() *Envelope {
	c := *e
	c.GenericSubstitutions = append([]string(nil), e.GenericSubstitutions...)
	c.Arguments = make([][]byte, len(e.Arguments))
	for i, a := range e.Arguments {
		c.Arguments[i] = append([]byte(nil), a...)
	}
	return &c
}

type envelopeHeader struct {
	callID    uint64
	recipient ActorID
	target    string
}

func readHeader(r *wireReader) (envelopeHeader, error) {
	var hdr envelopeHeader
	v, err := r.uint8()
	if err != nil {
		return hdr, err
	}
	if v != wireVersion {
		return hdr, fmt.Errorf("%w: unsupported wire version %d", ErrProtocolViolation, v)
	}
	if hdr.callID, err = r.uint64(); err != nil {
		return hdr, err
	}
	recipient, err := r.string()
	if err != nil {
		return hdr, err
	}
	hdr.recipient = ActorID(recipient)
	if hdr.target, err = r.string(); err != nil {
		return hdr, err
	}
	if hdr.recipient == "" || hdr.target == "" {
		return hdr, fmt.Errorf("%w: envelope missing recipient or target", ErrProtocolViolation)
	}
	if !utf8.ValidString(hdr.target) {
		return hdr, fmt.Errorf("%w: target is not valid UTF-8", ErrProtocolViolation)
	}
	return hdr, nil
}

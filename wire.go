// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// wireVersion is the first byte of every envelope and response frame.
const wireVersion byte = 0x01

// maxFieldLen caps a single length-prefixed field (64MB, same as ZAP frames).
const maxFieldLen = 64 * 1024 * 1024

// wireWriter appends big-endian, length-prefixed fields.
type wireWriter struct {
	buf []byte
}

func (w *wireWriter) uint8(v byte) { w.buf = append(w.buf, v) }

func (w *wireWriter) uint32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }

func (w *wireWriter) uint64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }

func (w *wireWriter) bytes(b []byte) error {
	if len(b) > maxFieldLen || uint64(len(b)) > math.MaxUint32 {
		return fmt.Errorf("%w: field of %d bytes exceeds limit", ErrEncodingFailed, len(b))
	}
	w.uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
	return nil
}

func (w *wireWriter) string(s string) error { return w.bytes([]byte(s)) }

// wireReader consumes fields written by wireWriter. Every short read
// reports ErrTruncatedData and leaves the offset untouched.
type wireReader struct {
	data []byte
	off  int
}

func (r *wireReader) remaining() int { return len(r.data) - r.off }

func (r *wireReader) uint8() (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("%w: reading u8 at offset %d", ErrTruncatedData, r.off)
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

func (r *wireReader) uint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("%w: reading u32 at offset %d", ErrTruncatedData, r.off)
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *wireReader) uint64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, fmt.Errorf("%w: reading u64 at offset %d", ErrTruncatedData, r.off)
	}
	v := binary.BigEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v, nil
}

// take returns the next n raw bytes.
func (r *wireReader) take(n uint32) ([]byte, error) {
	if uint64(n) > uint64(r.remaining()) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedData, n, r.off, r.remaining())
	}
	b := r.data[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

func (r *wireReader) bytes() ([]byte, error) {
	start := r.off
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	b, err := r.take(n)
	if err != nil {
		r.off = start
		return nil, err
	}
	return b, nil
}

func (r *wireReader) string() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestCodecsRoundTrip(t *testing.T) {
	for _, c := range []Codec{JSONCodec{}, GobCodec{}, CBORCodec{}} {
		t.Run(c.Name(), func(t *testing.T) {
			in := point{X: 3, Y: -4}
			b, err := c.Encode(in)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			var out point
			if err := c.Decode(b, &out); err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if out != in {
				t.Errorf("got %+v, want %+v", out, in)
			}
		})
	}
}

func TestCBORDeterministic(t *testing.T) {
	m := map[string]int{"b": 2, "a": 1, "c": 3}
	first, err := CBORCodec{}.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := CBORCodec{}.Encode(m)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding changed between runs: %x vs %x", first, again)
		}
	}
}

func TestProtoCodecArguments(t *testing.T) {
	enc := NewInvocationEncoder(ProtoCodec{})
	if err := enc.RecordArgument(wrapperspb.String("Ada")); err != nil {
		t.Fatal(err)
	}
	if err := enc.RecordArgument("not a message"); err == nil {
		t.Errorf("encoding a plain string with the proto codec succeeded")
	}
	dec, err := NewInvocationDecoder(encodeFrame(t, enc, "greet(name:)"), ProtoCodec{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := DecodeNextArgument[*wrapperspb.StringValue](dec)
	if err != nil {
		t.Fatalf("DecodeNextArgument: %v", err)
	}
	if msg.GetValue() != "Ada" {
		t.Errorf("got %q", msg.GetValue())
	}
}

func TestBinaryCodecPassthrough(t *testing.T) {
	raw := []byte{0x00, 0xff, 0x10}
	b, err := BinaryCodec{}.Encode(raw)
	if err != nil || !bytes.Equal(b, raw) {
		t.Fatalf("Encode = %x, %v", b, err)
	}
	var out []byte
	if err := (BinaryCodec{}).Decode(b, &out); err != nil || !bytes.Equal(out, raw) {
		t.Errorf("Decode = %x, %v", out, err)
	}
}

func TestCodecByName(t *testing.T) {
	for _, name := range []string{CodecJSON, CodecGob, CodecCBOR, CodecProto, CodecBinary} {
		c, err := CodecByName(name)
		if err != nil {
			t.Errorf("CodecByName(%q): %v", name, err)
			continue
		}
		if c.Name() != name {
			t.Errorf("CodecByName(%q) returned %q", name, c.Name())
		}
	}
	if c, err := CodecByName(""); err != nil || c.Name() != CodecJSON {
		t.Errorf("default codec = %v, %v", c, err)
	}
	if _, err := CodecByName("yaml"); err == nil {
		t.Errorf("unknown codec accepted")
	}
}

func TestSystemWithCBORCodec(t *testing.T) {
	sys, id := newHost(t, WithCodec(CBORCodec{}))
	got, err := Call[string](t.Context(), sys, id, "greet(name:)", "Ada")
	if err != nil || got != "Hello, Ada" {
		t.Errorf("greet = %q, %v", got, err)
	}
}

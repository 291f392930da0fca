// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"google.golang.org/protobuf/proto"
)

// Codec names
const (
	CodecJSON   = "json"
	CodecGob    = "gob"
	CodecCBOR   = "cbor"
	CodecProto  = "proto"
	CodecBinary = "binary"
)

// JSONCodec is a JSON-based codec
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = JSONCodec{}

// GobCodec encodes values with encoding/gob. Only Go peers can read it.
type GobCodec struct{}

func (GobCodec) Name() string { return CodecGob }

func (GobCodec) Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec) Decode(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// CBORCodec encodes values as RFC 8949 CBOR using core deterministic encoding.
type CBORCodec struct{}

var cborEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

func (CBORCodec) Name() string { return CodecCBOR }

func (CBORCodec) Encode(v interface{}) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

func (CBORCodec) Decode(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}

// ProtoCodec encodes protobuf messages. Decode targets must be pointers to
// generated message types, or pointers to pointers of them.
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return CodecProto }

func (ProtoCodec) Encode(v interface{}) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("proto codec: %T is not a proto.Message", v)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(m)
}

func (ProtoCodec) Decode(data []byte, v interface{}) error {
	switch m := v.(type) {
	case proto.Message:
		return proto.Unmarshal(data, m)
	default:
		// **T where *T is a message, as produced by DecodeNextArgument[*T].
		if pm, ok := allocProto(v); ok {
			return proto.Unmarshal(data, pm)
		}
		return fmt.Errorf("proto codec: cannot decode into %T", v)
	}
}

func allocProto(v interface{}) (proto.Message, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Ptr {
		return nil, false
	}
	elem := rv.Elem()
	if elem.IsNil() {
		elem.Set(reflect.New(elem.Type().Elem()))
	}
	m, ok := elem.Interface().(proto.Message)
	return m, ok
}

// BinaryCodec passes bytes through unchanged (for pre-encoded data)
type BinaryCodec struct{}

func (BinaryCodec) Name() string { return CodecBinary }

func (BinaryCodec) Encode(v interface{}) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	if b, ok := v.(*[]byte); ok {
		return *b, nil
	}
	return json.Marshal(v)
}

func (BinaryCodec) Decode(data []byte, v interface{}) error {
	if b, ok := v.(*[]byte); ok {
		*b = append([]byte(nil), data...)
		return nil
	}
	return json.Unmarshal(data, v)
}

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecGob:
		return GobCodec{}, nil
	case CodecCBOR:
		return CBORCodec{}, nil
	case CodecProto:
		return ProtoCodec{}, nil
	case CodecBinary:
		return BinaryCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec: %s", name)
	}
}

/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package builtin is the catalog of primitive/collection codecs that
// back the default resolvers in package registry. The engine only
// depends on the Codec contract (package codec); nothing in this package
// is special-cased by the engine, only its codecs' conformance to that
// contract matters.
//
// Wire shapes here follow a Thrift-binary-protocol style: big-endian
// fixed-width fields, u16-length prefixed strings, i32-length prefixed
// bytes, and counts
// expressed as signed i32, the same as Thrift's list/map/set sizes.
package builtin

import (
	"encoding/binary"
	"math"
	"reflect"

	"github.com/bgloeckle/catalyst/buf"
	"github.com/bgloeckle/catalyst/codec"
)

func writeUint64(out buf.Writer, v uint64) error {
	b, err := out.Malloc(8)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint64(b, v)
	return nil
}

func readUint64(in buf.Reader) (uint64, error) {
	b, err := in.Next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// BoolCodec codes bool as a single byte, 1 or 0.
type BoolCodec struct{}

func (BoolCodec) Write(v any, out buf.Writer, _ codec.Engine) error {
	if v.(bool) {
		return out.WriteByte(1)
	}
	return out.WriteByte(0)
}

func (BoolCodec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	b, err := in.ReadByte()
	if err != nil {
		return nil, err
	}
	return b != 0, nil
}

// Int8Codec codes int8 as a single byte.
type Int8Codec struct{}

func (Int8Codec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return out.WriteByte(byte(v.(int8)))
}

func (Int8Codec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	b, err := in.ReadByte()
	return int8(b), err
}

// Uint8Codec codes uint8 as a single byte.
type Uint8Codec struct{}

func (Uint8Codec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return out.WriteByte(v.(uint8))
}

func (Uint8Codec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	return in.ReadUint8()
}

// Int16Codec codes int16 as a big-endian u16.
type Int16Codec struct{}

func (Int16Codec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return out.WriteUint16(uint16(v.(int16)))
}

func (Int16Codec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	u, err := in.ReadUint16()
	return int16(u), err
}

// Uint16Codec codes uint16 as a big-endian u16.
type Uint16Codec struct{}

func (Uint16Codec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return out.WriteUint16(v.(uint16))
}

func (Uint16Codec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	return in.ReadUint16()
}

// Int32Codec codes int32 as a big-endian i32.
type Int32Codec struct{}

func (Int32Codec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return out.WriteInt32(v.(int32))
}

func (Int32Codec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	return in.ReadInt32()
}

// Uint32Codec codes uint32 as a big-endian u32 (via the i32 wire field).
type Uint32Codec struct{}

func (Uint32Codec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return out.WriteInt32(int32(v.(uint32)))
}

func (Uint32Codec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	v, err := in.ReadInt32()
	return uint32(v), err
}

// Int64Codec codes int64 as a big-endian 8-byte field.
type Int64Codec struct{}

func (Int64Codec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return writeUint64(out, uint64(v.(int64)))
}

func (Int64Codec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	v, err := readUint64(in)
	return int64(v), err
}

// Uint64Codec codes uint64 as a big-endian 8-byte field.
type Uint64Codec struct{}

func (Uint64Codec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return writeUint64(out, v.(uint64))
}

func (Uint64Codec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	return readUint64(in)
}

// Float32Codec codes float32 via its IEEE-754 bit pattern in a u32 field.
type Float32Codec struct{}

func (Float32Codec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return out.WriteInt32(int32(math.Float32bits(v.(float32))))
}

func (Float32Codec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	v, err := in.ReadInt32()
	if err != nil {
		return nil, err
	}
	return math.Float32frombits(uint32(v)), nil
}

// Float64Codec codes float64 via its IEEE-754 bit pattern in a u64 field.
type Float64Codec struct{}

func (Float64Codec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return writeUint64(out, math.Float64bits(v.(float64)))
}

func (Float64Codec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	bits, err := readUint64(in)
	if err != nil {
		return nil, err
	}
	return math.Float64frombits(bits), nil
}

// StringCodec codes string as a u16-length-prefixed UTF-8 field.
type StringCodec struct{}

func (StringCodec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return out.WriteString(v.(string))
}

func (StringCodec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	return in.ReadString()
}

// BytesCodec codes []byte as an i32-length-prefixed raw field.
type BytesCodec struct{}

func (BytesCodec) Write(v any, out buf.Writer, _ codec.Engine) error {
	b := v.([]byte)
	if err := out.WriteInt32(int32(len(b))); err != nil {
		return err
	}
	_, err := out.WriteBinary(b)
	return err
}

func (BytesCodec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	n, err := in.ReadInt32()
	if err != nil {
		return nil, err
	}
	dst := make([]byte, n)
	if _, err := in.ReadBinary(dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// PtrCodec is a single factory-backed codec serving every registered
// "boxed" pointer-to-primitive type: it recurses into the engine for
// the pointee, so the pointee's own registered codec/id still applies.
// One PtrCodec instance is shared across every boxed type — the
// Factory/codec split exists precisely so one factory can serve many
// types this way.
type PtrCodec struct{}

func (PtrCodec) Write(v any, out buf.Writer, eng codec.Engine) error {
	rv := reflect.ValueOf(v)
	return eng.WriteObject(rv.Elem().Interface(), out)
}

func (PtrCodec) Read(t reflect.Type, in buf.Reader, eng codec.Engine) (any, error) {
	elem, err := eng.ReadObject(in)
	if err != nil {
		return nil, err
	}
	rv := reflect.New(t.Elem())
	rv.Elem().Set(reflect.ValueOf(elem))
	return rv.Interface(), nil
}

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

package serializer

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgloeckle/catalyst/buf"
	"github.com/bgloeckle/catalyst/codec"
	"github.com/bgloeckle/catalyst/registry"
	"github.com/bgloeckle/catalyst/wire"
)

func newTestEngine(opts ...Option) *Engine {
	return New(registry.New(), buf.NewPoolAllocator(), opts...)
}

func TestEngine_NullEncodesToOneByte(t *testing.T) {
	e := newTestEngine()
	out := buf.NewBuffer(8, 0)

	require.NoError(t, e.WriteObject(nil, out))
	assert.Equal(t, []byte{0x00}, out.Bytes())

	out.Flip()
	v, err := e.ReadObject(out)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestEngine_PrimitiveRoundTrip_AutoAssignedID(t *testing.T) {
	e := newTestEngine()
	type Int int32
	_, err := e.Registry().Register(reflect.TypeOf(Int(0)), codec.Single(int32Codec{}))
	require.NoError(t, err)

	id, ok := e.Registry().Types()[reflect.TypeOf(Int(0))]
	require.True(t, ok)

	out := buf.NewBuffer(8, 0)
	require.NoError(t, e.WriteObject(Int(42), out))

	expected := append([]byte{byte(wire.TagForID(id))}, idBytes(wire.TagForID(id), id)...)
	expected = append(expected, 0x00, 0x00, 0x00, 0x2A)
	assert.Equal(t, expected, out.Bytes())

	out.Flip()
	v, err := e.ReadObject(out)
	require.NoError(t, err)
	assert.Equal(t, Int(42), v)
}

func TestEngine_PrimitiveRoundTrip_ExplicitIDExactBytes(t *testing.T) {
	e := newTestEngine()
	type Int int32
	// An id well clear of the builtin catalog's range, so this doesn't
	// collide with the ids PrimitiveResolver/StdlibResolver already claim.
	require.NoError(t, e.Registry().RegisterID(reflect.TypeOf(Int(0)), 500, codec.Single(int32Codec{})))

	out := buf.NewBuffer(8, 0)
	require.NoError(t, e.WriteObject(Int(42), out))
	assert.Equal(t, []byte{0x03, 0x01, 0xF4, 0x00, 0x00, 0x00, 0x2A}, out.Bytes())
}

func TestEngine_ClassFraming(t *testing.T) {
	e := newTestEngine()
	type Foo struct{ N int }
	require.NoError(t, e.Registry().RegisterClass(reflect.TypeOf(Foo{}), codec.Single(fourByteCodec{})))

	out := buf.NewBuffer(32, 0)
	require.NoError(t, e.WriteObject(Foo{N: 1}, out))

	b := out.Bytes()
	require.Equal(t, byte(wire.TagClass), b[0])
	// u16 name length, name bytes, then the codec's fixed 4-byte payload.
	nameLen := int(b[1])<<8 | int(b[2])
	require.Equal(t, len(b)-3-4, nameLen)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, b[len(b)-4:])

	out.Flip()
	v, err := e.ReadObject(out)
	require.NoError(t, err)
	// fourByteCodec never reads N back; the round trip returns the zero
	// value of Foo, which is still the contract this test checks.
	assert.Equal(t, Foo{}, v)
}

func TestEngine_ReservedIDRejectedKeepsRegistryClean(t *testing.T) {
	e := newTestEngine()
	type T struct{}
	before := len(e.Registry().IDs())

	bindErr := e.Registry().RegisterID(reflect.TypeOf(T{}), 200, codec.Single(fourByteCodec{}))
	require.Error(t, bindErr)
	assert.ErrorIs(t, bindErr, wire.ErrReservedID)
	assert.Equal(t, before, len(e.Registry().IDs()))
	_, ok := e.Registry().Types()[reflect.TypeOf(T{})]
	assert.False(t, ok)
}

func TestEngine_WidthSelection_PicksNarrowestIDTag(t *testing.T) {
	e := newTestEngine()
	type A struct{}
	type B struct{}
	type C struct{}

	require.NoError(t, e.Registry().RegisterID(reflect.TypeOf(A{}), 60, codec.Single(fourByteCodec{})))
	require.NoError(t, e.Registry().RegisterID(reflect.TypeOf(B{}), 1000, codec.Single(fourByteCodec{})))
	require.NoError(t, e.Registry().RegisterID(reflect.TypeOf(C{}), 1000000, codec.Single(fourByteCodec{})))

	for _, tc := range []struct {
		v         any
		wantFirst byte
	}{
		{A{}, 0x02},
		{B{}, 0x03},
		{C{}, 0x04},
	} {
		out := buf.NewBuffer(16, 0)
		require.NoError(t, e.WriteObject(tc.v, out))
		assert.Equal(t, tc.wantFirst, out.Bytes()[0])
	}
}

func TestEngine_FallbackDisabledByDefault(t *testing.T) {
	e := newTestEngine()
	type Unknown struct{}
	out := buf.NewBuffer(8, 0)
	err := e.WriteObject(Unknown{}, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, wire.ErrUnregisteredType)
}

func TestEngine_WithFallback(t *testing.T) {
	e := newTestEngine(WithFallback(fourByteCodec{}))
	type Unknown struct{}

	out := buf.NewBuffer(16, 0)
	require.NoError(t, e.WriteObject(Unknown{}, out))
	assert.Equal(t, byte(wire.TagSerializable), out.Bytes()[0])

	out.Flip()
	v, err := e.ReadObject(out)
	require.NoError(t, err)
	// SERIALIZABLE carries no type id on the wire — the fallback codec
	// gets no reflect.Type hint on decode, only the raw payload.
	assert.Equal(t, struct{}{}, v)
}

// enumValue mimics a per-constant enum override: its own type is never
// registered, only its declared base is, and CatalystEnumBase redirects
// dispatch to that base.
type enumBase int

type enumValue struct{ enumBase }

func (v enumValue) CatalystEnumBase() any { return v.enumBase }

func TestEngine_EnumBaseNormalization_MatchesDeclaringEnumEncoding(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.Registry().RegisterID(reflect.TypeOf(enumBase(0)), 50, codec.Single(enumCodec{})))

	plain := buf.NewBuffer(8, 0)
	require.NoError(t, e.WriteObject(enumBase(3), plain))

	override := buf.NewBuffer(8, 0)
	require.NoError(t, e.WriteObject(enumValue{enumBase(3)}, override))

	assert.Equal(t, plain.Bytes(), override.Bytes())
}

func TestEngine_Fork_IndependentCodecCache(t *testing.T) {
	e := newTestEngine()
	type T struct{}
	require.NoError(t, e.Registry().RegisterID(reflect.TypeOf(T{}), 1000, codec.Single(fourByteCodec{})))

	out := buf.NewBuffer(8, 0)
	require.NoError(t, e.WriteObject(T{}, out))
	_, cached := e.codecCache[reflect.TypeOf(T{})]
	require.True(t, cached)

	fork := e.Fork()
	_, forkCached := fork.codecCache[reflect.TypeOf(T{})]
	assert.False(t, forkCached)

	out2 := buf.NewBuffer(8, 0)
	require.NoError(t, fork.WriteObject(T{}, out2))
	assert.Equal(t, out.Bytes(), out2.Bytes())
}

func TestEngine_Copy(t *testing.T) {
	e := newTestEngine()
	type Int int32
	require.NoError(t, e.Registry().RegisterID(reflect.TypeOf(Int(0)), 500, codec.Single(int32Codec{})))

	v, err := e.Copy(Int(7))
	require.NoError(t, err)
	assert.Equal(t, Int(7), v)
}

// --- test-local codecs ---

type int32Codec struct{}

func (int32Codec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return out.WriteInt32(reflect.ValueOf(v).Convert(reflect.TypeOf(int32(0))).Interface().(int32))
}

func (int32Codec) Read(t reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	v, err := in.ReadInt32()
	if err != nil {
		return nil, err
	}
	return reflect.ValueOf(v).Convert(t).Interface(), nil
}

// fourByteCodec always writes a fixed 4-byte payload, ignoring the value
// entirely, and returns a zero value of t on read.
type fourByteCodec struct{}

func (fourByteCodec) Write(_ any, out buf.Writer, _ codec.Engine) error {
	_, err := out.WriteBinary([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	return err
}

func (fourByteCodec) Read(t reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	if _, err := in.Next(4); err != nil {
		return nil, err
	}
	if t == nil {
		return struct{}{}, nil
	}
	return reflect.Zero(t).Interface(), nil
}

type enumCodec struct{}

func (enumCodec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return out.WriteInt32(int32(v.(enumBase)))
}

func (enumCodec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	v, err := in.ReadInt32()
	return enumBase(v), err
}

func idBytes(tag wire.Tag, id uint32) []byte {
	switch tag {
	case wire.TagID8:
		return []byte{byte(id)}
	case wire.TagID16:
		return []byte{byte(id >> 8), byte(id)}
	case wire.TagID24:
		return []byte{byte(id >> 16), byte(id >> 8), byte(id)}
	default:
		return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
	}
}

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

package registry

import (
	"reflect"
	"time"

	"github.com/bgloeckle/catalyst/builtin"
	"github.com/bgloeckle/catalyst/codec"
)

// Fixed ids for the builtin catalog. Each primitive's boxed pointer
// variant sits at the next id, so the pair is easy to read off this
// table; nothing below may fall in wire.ReservedIDMin..ReservedIDMax.
const (
	idBool = 1 + iota
	idBoolPtr
	idInt8
	idInt8Ptr
	idUint8
	idUint8Ptr
	idInt16
	idInt16Ptr
	idUint16
	idUint16Ptr
	idInt32
	idInt32Ptr
	idUint32
	idUint32Ptr
	idInt64
	idInt64Ptr
	idUint64
	idUint64Ptr
	idFloat32
	idFloat32Ptr
	idFloat64
	idFloat64Ptr
	idString
	idStringPtr
	idBytes
)

const (
	idTime = 40 + iota
	idDuration
	idStringSlice
	idInt32Slice
	idInt64Slice
	idFloat64Slice
	idMapStringString
	idMapStringInt64
	idByteSlices
)

// PrimitiveResolver registers bool/int8/16/32/64/uint8/16/32/64/
// float32/64/string/[]byte, each with a boxed pointer-to-value variant
// one id above it, sharing a single builtin.PtrCodec factory instance
// across every boxed type.
func PrimitiveResolver(r *Registry) error {
	ptrFactory := codec.Single(builtin.PtrCodec{})

	type binding struct {
		id      uint32
		sample  any
		codec   codec.Codec
		ptrID   uint32
		ptrType reflect.Type
	}

	bindings := []binding{
		{idBool, false, builtin.BoolCodec{}, idBoolPtr, reflect.TypeOf((*bool)(nil))},
		{idInt8, int8(0), builtin.Int8Codec{}, idInt8Ptr, reflect.TypeOf((*int8)(nil))},
		{idUint8, uint8(0), builtin.Uint8Codec{}, idUint8Ptr, reflect.TypeOf((*uint8)(nil))},
		{idInt16, int16(0), builtin.Int16Codec{}, idInt16Ptr, reflect.TypeOf((*int16)(nil))},
		{idUint16, uint16(0), builtin.Uint16Codec{}, idUint16Ptr, reflect.TypeOf((*uint16)(nil))},
		{idInt32, int32(0), builtin.Int32Codec{}, idInt32Ptr, reflect.TypeOf((*int32)(nil))},
		{idUint32, uint32(0), builtin.Uint32Codec{}, idUint32Ptr, reflect.TypeOf((*uint32)(nil))},
		{idInt64, int64(0), builtin.Int64Codec{}, idInt64Ptr, reflect.TypeOf((*int64)(nil))},
		{idUint64, uint64(0), builtin.Uint64Codec{}, idUint64Ptr, reflect.TypeOf((*uint64)(nil))},
		{idFloat32, float32(0), builtin.Float32Codec{}, idFloat32Ptr, reflect.TypeOf((*float32)(nil))},
		{idFloat64, float64(0), builtin.Float64Codec{}, idFloat64Ptr, reflect.TypeOf((*float64)(nil))},
		{idString, "", builtin.StringCodec{}, idStringPtr, reflect.TypeOf((*string)(nil))},
	}

	for _, b := range bindings {
		t := reflect.TypeOf(b.sample)
		if err := r.RegisterID(t, b.id, codec.Single(b.codec)); err != nil {
			return err
		}
		if err := r.RegisterID(b.ptrType, b.ptrID, ptrFactory); err != nil {
			return err
		}
	}

	return r.RegisterID(reflect.TypeOf([]byte(nil)), idBytes, codec.Single(builtin.BytesCodec{}))
}

// StdlibResolver registers the handful of standard-library and
// container types carried by default: time.Time, time.Duration, and a
// small catalog of common slice/map shapes.
func StdlibResolver(r *Registry) error {
	bindings := []struct {
		id    uint32
		t     reflect.Type
		codec codec.Codec
	}{
		{idTime, reflect.TypeOf(time.Time{}), builtin.TimeCodec{}},
		{idDuration, reflect.TypeOf(time.Duration(0)), builtin.DurationCodec{}},
		{idStringSlice, reflect.TypeOf([]string(nil)), builtin.StringSliceCodec{}},
		{idInt32Slice, reflect.TypeOf([]int32(nil)), builtin.Int32SliceCodec{}},
		{idInt64Slice, reflect.TypeOf([]int64(nil)), builtin.Int64SliceCodec{}},
		{idFloat64Slice, reflect.TypeOf([]float64(nil)), builtin.Float64SliceCodec{}},
		{idMapStringString, reflect.TypeOf(map[string]string(nil)), builtin.MapStringStringCodec{}},
		{idMapStringInt64, reflect.TypeOf(map[string]int64(nil)), builtin.MapStringInt64Codec{}},
		{idByteSlices, reflect.TypeOf([][]byte(nil)), builtin.ByteSlicesCodec{}},
	}

	for _, b := range bindings {
		if err := r.RegisterID(b.t, b.id, codec.Single(b.codec)); err != nil {
			return err
		}
	}
	return nil
}

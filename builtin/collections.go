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

package builtin

import (
	"reflect"
	"time"

	"github.com/bgloeckle/catalyst/buf"
	"github.com/bgloeckle/catalyst/codec"
)

// StringSliceCodec codes []string as a count followed by length-prefixed
// strings, the same shape thrift's BinaryProtocol uses for a list of
// binary fields.
type StringSliceCodec struct{}

func (StringSliceCodec) Write(v any, out buf.Writer, _ codec.Engine) error {
	s := v.([]string)
	if err := out.WriteInt32(int32(len(s))); err != nil {
		return err
	}
	for _, e := range s {
		if err := out.WriteString(e); err != nil {
			return err
		}
	}
	return nil
}

func (StringSliceCodec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	n, err := in.ReadInt32()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		s, err := in.ReadString()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// Int32SliceCodec codes []int32 as a count followed by fixed-width i32s.
type Int32SliceCodec struct{}

func (Int32SliceCodec) Write(v any, out buf.Writer, _ codec.Engine) error {
	s := v.([]int32)
	if err := out.WriteInt32(int32(len(s))); err != nil {
		return err
	}
	for _, e := range s {
		if err := out.WriteInt32(e); err != nil {
			return err
		}
	}
	return nil
}

func (Int32SliceCodec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	n, err := in.ReadInt32()
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		v, err := in.ReadInt32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Int64SliceCodec codes []int64 as a count followed by fixed-width i64s.
type Int64SliceCodec struct{}

func (Int64SliceCodec) Write(v any, out buf.Writer, _ codec.Engine) error {
	s := v.([]int64)
	if err := out.WriteInt32(int32(len(s))); err != nil {
		return err
	}
	for _, e := range s {
		if err := writeUint64(out, uint64(e)); err != nil {
			return err
		}
	}
	return nil
}

func (Int64SliceCodec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	n, err := in.ReadInt32()
	if err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := range out {
		v, err := readUint64(in)
		if err != nil {
			return nil, err
		}
		out[i] = int64(v)
	}
	return out, nil
}

// Float64SliceCodec codes []float64 as a count followed by fixed-width
// IEEE-754 bit patterns.
type Float64SliceCodec struct{}

func (Float64SliceCodec) Write(v any, out buf.Writer, _ codec.Engine) error {
	s := v.([]float64)
	if err := out.WriteInt32(int32(len(s))); err != nil {
		return err
	}
	for _, e := range s {
		if err := (Float64Codec{}).Write(e, out, nil); err != nil {
			return err
		}
	}
	return nil
}

func (Float64SliceCodec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	n, err := in.ReadInt32()
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		v, err := (Float64Codec{}).Read(nil, in, nil)
		if err != nil {
			return nil, err
		}
		out[i] = v.(float64)
	}
	return out, nil
}

// ByteSlicesCodec codes [][]byte as a count followed by length-prefixed
// raw fields.
type ByteSlicesCodec struct{}

func (ByteSlicesCodec) Write(v any, out buf.Writer, eng codec.Engine) error {
	s := v.([][]byte)
	if err := out.WriteInt32(int32(len(s))); err != nil {
		return err
	}
	for _, e := range s {
		if err := (BytesCodec{}).Write(e, out, eng); err != nil {
			return err
		}
	}
	return nil
}

func (ByteSlicesCodec) Read(t reflect.Type, in buf.Reader, eng codec.Engine) (any, error) {
	n, err := in.ReadInt32()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, n)
	for i := range out {
		v, err := (BytesCodec{}).Read(t, in, eng)
		if err != nil {
			return nil, err
		}
		out[i] = v.([]byte)
	}
	return out, nil
}

// MapStringStringCodec codes map[string]string as a count followed by
// key/value string pairs.
type MapStringStringCodec struct{}

func (MapStringStringCodec) Write(v any, out buf.Writer, _ codec.Engine) error {
	m := v.(map[string]string)
	if err := out.WriteInt32(int32(len(m))); err != nil {
		return err
	}
	for k, val := range m {
		if err := out.WriteString(k); err != nil {
			return err
		}
		if err := out.WriteString(val); err != nil {
			return err
		}
	}
	return nil
}

func (MapStringStringCodec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	n, err := in.ReadInt32()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for i := int32(0); i < n; i++ {
		k, err := in.ReadString()
		if err != nil {
			return nil, err
		}
		val, err := in.ReadString()
		if err != nil {
			return nil, err
		}
		out[k] = val
	}
	return out, nil
}

// MapStringInt64Codec codes map[string]int64 as a count followed by
// key/value pairs, value fixed-width.
type MapStringInt64Codec struct{}

func (MapStringInt64Codec) Write(v any, out buf.Writer, _ codec.Engine) error {
	m := v.(map[string]int64)
	if err := out.WriteInt32(int32(len(m))); err != nil {
		return err
	}
	for k, val := range m {
		if err := out.WriteString(k); err != nil {
			return err
		}
		if err := writeUint64(out, uint64(val)); err != nil {
			return err
		}
	}
	return nil
}

func (MapStringInt64Codec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	n, err := in.ReadInt32()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, n)
	for i := int32(0); i < n; i++ {
		k, err := in.ReadString()
		if err != nil {
			return nil, err
		}
		val, err := readUint64(in)
		if err != nil {
			return nil, err
		}
		out[k] = int64(val)
	}
	return out, nil
}

// TimeCodec codes time.Time as its UTC UnixNano offset in a fixed-width
// field, matching the wire's preference for fixed-width fields over
// platform-dependent struct layouts.
type TimeCodec struct{}

func (TimeCodec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return writeUint64(out, uint64(v.(time.Time).UTC().UnixNano()))
}

func (TimeCodec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	nanos, err := readUint64(in)
	if err != nil {
		return nil, err
	}
	return time.Unix(0, int64(nanos)).UTC(), nil
}

// DurationCodec codes time.Duration as its int64 nanosecond count.
type DurationCodec struct{}

func (DurationCodec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return writeUint64(out, uint64(v.(time.Duration)))
}

func (DurationCodec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	nanos, err := readUint64(in)
	if err != nil {
		return nil, err
	}
	return time.Duration(nanos), nil
}

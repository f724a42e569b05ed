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

// Package codec defines the per-type encode/decode contract and the
// factory indirection used to construct codec instances lazily: a small
// leaf interface rather than one fat concrete dependency.
package codec

import (
	"reflect"

	"github.com/bgloeckle/catalyst/buf"
)

// Engine is the narrow slice of serializer.Engine that a Codec needs to
// recurse into nested values. Kept as an interface here (rather than
// importing the concrete engine type) so codec has no dependency on
// serializer — a leaf package never imports its own callers.
type Engine interface {
	WriteObject(v any, out buf.Writer) error
	ReadObject(in buf.Reader) (any, error)
}

// Codec is a bound encode/decode pair for one concrete type. Codecs are
// pure with respect to the buffer cursor: Write/Read must advance it by
// exactly the bytes their own encoding defines, and must never write or
// consume the framing tag or identifier header — that's the engine's job.
type Codec interface {
	// Write appends the payload bytes for v. It may recurse into
	// eng.WriteObject for nested values.
	Write(v any, out buf.Writer, eng Engine) error
	// Read consumes the payload bytes for type t. It may recurse into
	// eng.ReadObject for nested values.
	Read(t reflect.Type, in buf.Reader, eng Engine) (any, error)
}

// Factory constructs a Codec instance for a concrete type. One factory
// may serve many types (e.g. a shared slice/map codec parameterized by
// element type); instances are memoized per (engine, type) by the
// engine, not by the factory.
type Factory interface {
	New(t reflect.Type) Codec
}

// FactoryFunc adapts a plain function to a Factory.
type FactoryFunc func(t reflect.Type) Codec

// New implements Factory.
func (f FactoryFunc) New(t reflect.Type) Codec { return f(t) }

// Single wraps an already-constructed Codec as a Factory that always
// returns it, for the common case of one codec per one type.
func Single(c Codec) Factory {
	return FactoryFunc(func(reflect.Type) Codec { return c })
}

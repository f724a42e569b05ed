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

// Package serializer implements the write/read dispatch that ties the
// wire grammar (package wire) to a type registry (package registry) and
// a codec catalog (package codec). It is the engine component: the
// thing every other package in this module is built to be driven by.
package serializer

import (
	"fmt"
	"reflect"

	"github.com/bgloeckle/catalyst/buf"
	"github.com/bgloeckle/catalyst/codec"
	"github.com/bgloeckle/catalyst/registry"
	"github.com/bgloeckle/catalyst/wire"
)

// EnumBase is an opt-in marker a value's type may implement to normalize
// dispatch onto its declaring enum instead of its own concrete type —
// the Go analogue of treating an anonymous enum-constant subclass (one
// carrying per-constant method overrides) as its enclosing enumeration.
// CatalystEnumBase returns the value to actually encode/cache under;
// its reflect.TypeOf supplies the effective dispatch type, so a type
// that normalizes need not itself be convertible to the base type.
type EnumBase interface {
	CatalystEnumBase() any
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithFallback installs a codec used for values whose type has no
// registry binding at all, framed with wire.TagSerializable. Without
// this option, such values fail encoding with wire.ErrUnregisteredType —
// generic object serialization is opt-in, not a built-in fallback.
func WithFallback(c codec.Codec) Option {
	return func(e *Engine) { e.fallback = c }
}

// Engine dispatches encode/decode, owns a per-engine codec cache, and
// consults a Registry for id/factory/class-name resolution. Not safe
// for concurrent use — callers own one Engine per execution context and
// Fork() to hand an independent one to another, exactly as the registry
// is configured once and then treated as read-only.
type Engine struct {
	registry   *registry.Registry
	allocator  buf.Allocator
	codecCache map[reflect.Type]codec.Codec
	nameCache  map[string]reflect.Type
	fallback   codec.Codec
}

// New returns an Engine bound to reg and alloc, with an empty codec
// cache and name cache.
func New(reg *registry.Registry, alloc buf.Allocator, opts ...Option) *Engine {
	e := &Engine{
		registry:   reg,
		allocator:  alloc,
		codecCache: make(map[reflect.Type]codec.Codec),
		nameCache:  make(map[string]reflect.Type),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's bound registry, for callers that need to
// register additional types before first use.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Allocator returns the engine's bound buffer allocator.
func (e *Engine) Allocator() buf.Allocator { return e.allocator }

// Fork returns a new Engine sharing this one's Registry pointer (the
// registry is immutable-by-convention after setup, so sharing it is
// safe) but with an empty codec cache and a copy of the name cache —
// an independent per-consumer view onto an equivalent registry. Named
// Fork rather than Clone since it is a lightweight derived view, not a
// deep copy of engine state.
func (e *Engine) Fork() *Engine {
	nameCopy := make(map[string]reflect.Type, len(e.nameCache))
	for k, v := range e.nameCache {
		nameCopy[k] = v
	}
	return &Engine{
		registry:   e.registry,
		allocator:  e.allocator,
		codecCache: make(map[reflect.Type]codec.Codec),
		nameCache:  nameCopy,
		fallback:   e.fallback,
	}
}

func (e *Engine) codecFor(t reflect.Type, f codec.Factory) codec.Codec {
	if c, ok := e.codecCache[t]; ok {
		return c
	}
	c := f.New(t)
	e.codecCache[t] = c
	return c
}

// normalize resolves the value and type a value dispatches under: itself
// and its own concrete type, unless it implements EnumBase, in which
// case the value and type CatalystEnumBase returns take over.
func normalize(v any) (dispatchV any, t reflect.Type) {
	if eb, ok := v.(EnumBase); ok {
		base := eb.CatalystEnumBase()
		return base, reflect.TypeOf(base)
	}
	return v, reflect.TypeOf(v)
}

// WriteObject implements codec.Engine and the write dispatch: null
// check, buffer passthrough, enum normalization, then id/class/fallback
// framing in that precedence order.
func (e *Engine) WriteObject(v any, out buf.Writer) error {
	if v == nil {
		return out.WriteByte(byte(wire.TagNull))
	}
	if b, ok := v.(*buf.Buffer); ok {
		if err := out.WriteByte(byte(wire.TagBuffer)); err != nil {
			return err
		}
		_, err := out.WriteBinary(b.Readable())
		return err
	}

	dispatchV, t := normalize(v)

	if d, ok := e.registry.Lookup(t); ok {
		switch {
		case d.HasID:
			c := e.codecFor(t, d.Factory)
			tag := wire.TagForID(d.ID)
			if err := out.WriteByte(byte(tag)); err != nil {
				return err
			}
			if err := writeID(out, tag, d.ID); err != nil {
				return err
			}
			return c.Write(dispatchV, out, e)
		case d.Factory != nil:
			c := e.codecFor(t, d.Factory)
			if err := out.WriteByte(byte(wire.TagClass)); err != nil {
				return err
			}
			if err := out.WriteString(qualifiedName(t)); err != nil {
				return err
			}
			return c.Write(dispatchV, out, e)
		}
	}

	if e.fallback != nil {
		if err := out.WriteByte(byte(wire.TagSerializable)); err != nil {
			return err
		}
		return e.writeFallback(v, out)
	}

	return fmt.Errorf("%w: %s", wire.ErrUnregisteredType, t)
}

// writeFallback encodes v via the escape-hatch fallback codec into a
// scratch buffer first, so the u16 length prefix the wire grammar
// requires can be written before the payload, exactly mirroring how the
// SERIALIZABLE tag's raw-bytes block is framed.
func (e *Engine) writeFallback(v any, out buf.Writer) error {
	scratch := e.allocator.Allocate(0, 0)
	defer e.allocator.Release(scratch)

	if err := e.fallback.Write(v, scratch, e); err != nil {
		return fmt.Errorf("%w: %v", wire.ErrPlatformSerialization, err)
	}
	payload := scratch.Bytes()
	if len(payload) > wire.MaxPayloadLen {
		return fmt.Errorf("%w: fallback payload %d bytes", wire.ErrPayloadTooLarge, len(payload))
	}
	if err := out.WriteUint16(uint16(len(payload))); err != nil {
		return err
	}
	_, err := out.WriteBinary(payload)
	return err
}

func writeID(out buf.Writer, tag wire.Tag, id uint32) error {
	switch tag {
	case wire.TagID8:
		return out.WriteUint8(uint8(id))
	case wire.TagID16:
		return out.WriteUint16(uint16(id))
	case wire.TagID24:
		return out.WriteUint24(id)
	default:
		return out.WriteInt32(int32(id))
	}
}

func qualifiedName(t reflect.Type) string {
	if pp := t.PkgPath(); pp != "" {
		return pp + "." + t.Name()
	}
	return t.String()
}

// ReadObject implements codec.Engine and the eight-tag read dispatch.
func (e *Engine) ReadObject(in buf.Reader) (any, error) {
	b, err := in.ReadByte()
	if err != nil {
		return nil, err
	}
	switch wire.Tag(b) {
	case wire.TagNull:
		return nil, nil
	case wire.TagBuffer:
		return e.readBuffer(in)
	case wire.TagID8:
		id, err := in.ReadUint8()
		if err != nil {
			return nil, err
		}
		return e.readByID(uint32(id), in)
	case wire.TagID16:
		id, err := in.ReadUint16()
		if err != nil {
			return nil, err
		}
		return e.readByID(uint32(id), in)
	case wire.TagID24:
		id, err := in.ReadUint24()
		if err != nil {
			return nil, err
		}
		return e.readByID(id, in)
	case wire.TagID32:
		id, err := in.ReadInt32()
		if err != nil {
			return nil, err
		}
		return e.readByID(uint32(id), in)
	case wire.TagClass:
		return e.readByClass(in)
	case wire.TagSerializable:
		return e.readFallback(in)
	default:
		return nil, fmt.Errorf("%w: 0x%02x", wire.ErrUnknownTag, b)
	}
}

func (e *Engine) readBuffer(in buf.Reader) (any, error) {
	// The wire grammar has no explicit length field for BUFFER payloads;
	// the source copies bytes "until the source's reported length is
	// exhausted" — for a nested, self-delimiting reader that means the
	// rest of the current readable region.
	raw, err := in.Next(in.Len())
	if err != nil {
		return nil, err
	}
	out := e.allocator.Allocate(len(raw), 0)
	if _, err := out.WriteBinary(raw); err != nil {
		e.allocator.Release(out)
		return nil, err
	}
	out.Flip()
	return out, nil
}

func (e *Engine) readByID(id uint32, in buf.Reader) (any, error) {
	t, ok := e.registry.TypeByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", wire.ErrUnknownType, id)
	}
	d, ok := e.registry.Lookup(t)
	if !ok || d.Factory == nil {
		return nil, fmt.Errorf("%w: id %d", wire.ErrUnknownType, id)
	}
	c := e.codecFor(t, d.Factory)
	return c.Read(t, in, e)
}

func (e *Engine) readByClass(in buf.Reader) (any, error) {
	name, err := in.ReadString()
	if err != nil {
		return nil, err
	}
	t, ok := e.nameCache[name]
	if !ok {
		t, ok = e.registry.LookupName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", wire.ErrClassNotFound, name)
		}
		e.nameCache[name] = t
	}
	d, ok := e.registry.Lookup(t)
	if !ok || d.Factory == nil {
		return nil, fmt.Errorf("%w: %s", wire.ErrUnknownType, name)
	}
	c := e.codecFor(t, d.Factory)
	return c.Read(t, in, e)
}

func (e *Engine) readFallback(in buf.Reader) (any, error) {
	if e.fallback == nil {
		return nil, fmt.Errorf("%w: SERIALIZABLE tag with no fallback codec configured", wire.ErrUnregisteredType)
	}
	n, err := in.ReadUint16()
	if err != nil {
		return nil, err
	}
	raw, err := in.Next(int(n))
	if err != nil {
		return nil, err
	}
	scratch := e.allocator.Allocate(len(raw), 0)
	defer e.allocator.Release(scratch)
	if _, err := scratch.WriteBinary(raw); err != nil {
		return nil, err
	}
	scratch.Flip()
	v, err := e.fallback.Read(nil, scratch, e)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wire.ErrPlatformSerialization, err)
	}
	return v, nil
}

// Copy round-trips v through a single scratch buffer — WriteObject,
// Flip, ReadObject — allocating and releasing that buffer exactly once.
func (e *Engine) Copy(v any) (any, error) {
	scratch := e.allocator.Allocate(0, 0)
	defer e.allocator.Release(scratch)

	if err := e.WriteObject(v, scratch); err != nil {
		return nil, err
	}
	scratch.Flip()
	return e.ReadObject(scratch)
}

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

// Package registry is the authoritative type <-> id <-> factory map,
// grounded on the Apache Fory type resolver's registerType/typeIdToType
// split: one index keyed by the runtime type, one keyed by the wire id.
package registry

import (
	"fmt"
	"reflect"

	"github.com/bgloeckle/catalyst/codec"
	"github.com/bgloeckle/catalyst/container/strmap"
	"github.com/bgloeckle/catalyst/wire"
)

// Descriptor pairs a type-handle with its codec factory and, optionally,
// its wire id. Ancestry is the explicit, registration-time list of
// supertypes/interfaces to fall back to on lookup miss — captured once
// here rather than walked reflectively on every dispatch, per the design
// note against reflective ancestry traversal.
type Descriptor struct {
	ID       uint32
	HasID    bool
	Factory  codec.Factory
	Ancestry []reflect.Type
}

// Resolver bulk-registers a set of type bindings into a Registry. The
// two defaults (PrimitiveResolver, StdlibResolver) run at New(); more can
// be layered on with Resolve.
type Resolver func(*Registry) error

// Registry owns the byType/byID indices. It is not safe for concurrent
// use: callers configure it at startup and freeze it by convention, the
// way a struct-descriptor table is built once at init and read many
// times thereafter.
type Registry struct {
	byType map[reflect.Type]Descriptor
	byID   map[uint32]reflect.Type

	byNameLive map[string]reflect.Type // mutable during configuration
	byName     *strmap.StrMap[reflect.Type]
	nameStale  bool

	// ifaceOrder preserves the declaration order of registered interface
	// types, so ancestry fallback ties break deterministically instead
	// of on Go's randomized map iteration order.
	ifaceOrder []reflect.Type

	resolvers []Resolver
	autoNext  uint32
}

// New returns a Registry with the primitive and stdlib resolvers already
// applied, so every caller starts from the same baseline catalog of
// built-in types.
func New() *Registry {
	r := &Registry{
		byType:     make(map[reflect.Type]Descriptor),
		byID:       make(map[uint32]reflect.Type),
		byNameLive: make(map[string]reflect.Type),
	}
	// Resolve never fails for the builtin resolvers; a panic here would
	// indicate a programming error in this package, not caller input.
	if err := r.Resolve(PrimitiveResolver, StdlibResolver); err != nil {
		panic(fmt.Sprintf("registry: default resolvers: %v", err))
	}
	return r
}

// Resolve applies additional bulk-registration resolvers. They append to
// existing bindings and are subject to the same reserved-id rule as
// every other registration path.
func (r *Registry) Resolve(rs ...Resolver) error {
	for _, res := range rs {
		if err := res(r); err != nil {
			return err
		}
		r.resolvers = append(r.resolvers, res)
	}
	return nil
}

func qualifiedName(t reflect.Type) string {
	if pp := t.PkgPath(); pp != "" {
		return pp + "." + t.Name()
	}
	return t.String()
}

// nextFreeID returns the next id outside the reserved range and not
// already bound, starting the search from the registry's running
// counter (never revisits ids below it, so auto-assignment is stable
// across a session even as explicit registrations claim ids out of
// order).
func (r *Registry) nextFreeID() uint32 {
	for {
		id := r.autoNext
		r.autoNext++
		if wire.IsReserved(id) {
			continue
		}
		if _, taken := r.byID[id]; taken {
			continue
		}
		return id
	}
}

// Register assigns the next available id outside the reserved range and
// binds it to t with factory f. ancestry is consulted by Lookup when a
// concrete type has no exact binding of its own.
func (r *Registry) Register(t reflect.Type, f codec.Factory, ancestry ...reflect.Type) (uint32, error) {
	id := r.nextFreeID()
	if err := r.bind(t, Descriptor{ID: id, HasID: true, Factory: f, Ancestry: ancestry}); err != nil {
		return 0, err
	}
	return id, nil
}

// RegisterID binds t to an explicit id. It fails if id is reserved or
// already bound to a different type.
func (r *Registry) RegisterID(t reflect.Type, id uint32, f codec.Factory, ancestry ...reflect.Type) error {
	if wire.IsReserved(id) {
		return fmt.Errorf("%w: %d", wire.ErrReservedID, id)
	}
	if existing, ok := r.byID[id]; ok && existing != t {
		return fmt.Errorf("%w: %d already bound to %s", wire.ErrDuplicateID, id, existing)
	}
	return r.bind(t, Descriptor{ID: id, HasID: true, Factory: f, Ancestry: ancestry})
}

// RegisterClass binds t to factory f without an id; values of t are
// framed with the CLASS tag and decoded by a registry-local name lookup
// (see the design note on CLASS framing: never a reflective class
// loader).
func (r *Registry) RegisterClass(t reflect.Type, f codec.Factory, ancestry ...reflect.Type) error {
	if err := r.bind(t, Descriptor{Factory: f, Ancestry: ancestry}); err != nil {
		return err
	}
	r.byNameLive[qualifiedName(t)] = t
	r.nameStale = true
	return nil
}

// bind installs d for t, evicting any prior (t, *) binding and any prior
// (*, id) binding so the two indices never disagree about who owns id.
func (r *Registry) bind(t reflect.Type, d Descriptor) error {
	if prev, ok := r.byType[t]; ok && prev.HasID {
		delete(r.byID, prev.ID)
	}
	if d.HasID {
		if prevType, ok := r.byID[d.ID]; ok && prevType != t {
			if prevDesc, ok := r.byType[prevType]; ok && prevDesc.HasID && prevDesc.ID == d.ID {
				delete(r.byType, prevType)
			}
		}
		r.byID[d.ID] = t
	}
	if t.Kind() == reflect.Interface {
		r.ifaceOrder = append(r.ifaceOrder, t)
	}
	r.byType[t] = d
	return nil
}

// Lookup returns the Descriptor bound to t. Exact hits win outright; if
// t has its own registration with a declared Ancestry, the first entry
// in that list with a binding wins next (declaration order); otherwise
// Lookup checks whether t implements any registered interface type, in
// the order those interfaces were themselves registered — the Go
// analogue of "superclasses and implemented interfaces in declaration
// order", computed here against a list captured at registration time
// rather than walked reflectively over t's full ancestry.
func (r *Registry) Lookup(t reflect.Type) (Descriptor, bool) {
	if d, ok := r.byType[t]; ok && (d.HasID || d.Factory != nil) {
		return d, true
	}
	if d, ok := r.byType[t]; ok {
		for _, anc := range d.Ancestry {
			if ad, ok := r.byType[anc]; ok {
				return ad, true
			}
		}
	}
	for _, iface := range r.ifaceOrder {
		if t.Implements(iface) {
			return r.byType[iface], true
		}
	}
	return Descriptor{}, false
}

// LookupName resolves a CLASS-framed fully qualified name to a type,
// consulting the frozen strmap snapshot (rebuilt lazily after
// RegisterClass calls) — never a reflective class loader.
func (r *Registry) LookupName(name string) (reflect.Type, bool) {
	r.refreshNameIndex()
	return r.byName.Get(name)
}

func (r *Registry) refreshNameIndex() {
	if !r.nameStale && r.byName != nil {
		return
	}
	sm := strmap.New[reflect.Type]()
	// Load even when empty: an unloaded StrMap has no hashtable to probe.
	if err := sm.LoadFromMap(r.byNameLive); err != nil {
		panic(fmt.Sprintf("registry: rebuilding name index: %v", err))
	}
	r.byName = sm
	r.nameStale = false
}

// TypeByID returns the type bound to id without the defensive-copy cost
// of IDs(); the engine's decode hot path uses this directly.
func (r *Registry) TypeByID(id uint32) (reflect.Type, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// IDs returns a read-only snapshot of id -> type.
func (r *Registry) IDs() map[uint32]reflect.Type {
	out := make(map[uint32]reflect.Type, len(r.byID))
	for id, t := range r.byID {
		out[id] = t
	}
	return out
}

// Types returns a read-only snapshot of type -> id, including only
// entries that have an id bound.
func (r *Registry) Types() map[reflect.Type]uint32 {
	out := make(map[reflect.Type]uint32, len(r.byType))
	for t, d := range r.byType {
		if d.HasID {
			out[t] = d.ID
		}
	}
	return out
}

// Clone deep-copies both indices and the resolver chain; mutations to
// the clone never affect the original and vice versa.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		byType:     make(map[reflect.Type]Descriptor, len(r.byType)),
		byID:       make(map[uint32]reflect.Type, len(r.byID)),
		byNameLive: make(map[string]reflect.Type, len(r.byNameLive)),
		resolvers:  append([]Resolver(nil), r.resolvers...),
		ifaceOrder: append([]reflect.Type(nil), r.ifaceOrder...),
		autoNext:   r.autoNext,
	}
	for t, d := range r.byType {
		nd := d
		nd.Ancestry = append([]reflect.Type(nil), d.Ancestry...)
		c.byType[t] = nd
	}
	for id, t := range r.byID {
		c.byID[id] = t
	}
	for name, t := range r.byNameLive {
		c.byNameLive[name] = t
	}
	c.nameStale = true
	return c
}

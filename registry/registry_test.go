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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgloeckle/catalyst/wire"
)

func TestRegistry_PrimitivesRegisteredAtConstruction(t *testing.T) {
	r := New()

	d, ok := r.Lookup(reflect.TypeOf(int32(0)))
	require.True(t, ok)
	assert.True(t, d.HasID)
	assert.EqualValues(t, idInt32, d.ID)

	ids := r.IDs()
	assert.Equal(t, reflect.TypeOf(int32(0)), ids[idInt32])

	types := r.Types()
	assert.EqualValues(t, idString, types[reflect.TypeOf("")])
}

func TestRegistry_ReservedIDRejected(t *testing.T) {
	r := New()
	before := len(r.IDs())

	type custom struct{ X int }
	err := r.RegisterID(reflect.TypeOf(custom{}), 200, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, wire.ErrReservedID)
	assert.Equal(t, before, len(r.IDs()))
}

func TestRegistry_DuplicateIDRejected(t *testing.T) {
	r := New()

	type a struct{}
	type b struct{}
	require.NoError(t, r.RegisterID(reflect.TypeOf(a{}), 1000, nil))
	err := r.RegisterID(reflect.TypeOf(b{}), 1000, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, wire.ErrDuplicateID)
}

func TestRegistry_ReRegisteringSameTypeEvictsPriorID(t *testing.T) {
	r := New()

	type a struct{}
	require.NoError(t, r.RegisterID(reflect.TypeOf(a{}), 1000, nil))
	require.NoError(t, r.RegisterID(reflect.TypeOf(a{}), 1001, nil))

	_, stillThere := r.IDs()[1000]
	assert.False(t, stillThere)
	typ, ok := r.IDs()[1001]
	assert.True(t, ok)
	assert.Equal(t, reflect.TypeOf(a{}), typ)
}

func TestRegistry_Clone_IsIndependent(t *testing.T) {
	r := New()
	c := r.Clone()

	type a struct{}
	require.NoError(t, c.RegisterID(reflect.TypeOf(a{}), 1000, nil))

	_, onOriginal := r.Lookup(reflect.TypeOf(a{}))
	assert.False(t, onOriginal)
	_, onClone := c.Lookup(reflect.TypeOf(a{}))
	assert.True(t, onClone)
}

func TestRegistry_AncestryFallback(t *testing.T) {
	r := New()

	type base struct{}
	type derived struct{ base }

	_, err := r.Register(reflect.TypeOf(base{}), nil)
	require.NoError(t, err)
	require.NoError(t, r.RegisterClass(reflect.TypeOf(derived{}), nil, reflect.TypeOf(base{})))

	d, ok := r.Lookup(reflect.TypeOf(derived{}))
	require.True(t, ok)
	assert.True(t, d.HasID)
}

type greeter interface{ Greet() string }

type greeterImpl struct{}

func (greeterImpl) Greet() string { return "hi" }

func TestRegistry_InterfaceImplementsFallback(t *testing.T) {
	r := New()

	ifaceType := reflect.TypeOf((*greeter)(nil)).Elem()
	_, err := r.Register(ifaceType, nil)
	require.NoError(t, err)

	d, ok := r.Lookup(reflect.TypeOf(greeterImpl{}))
	require.True(t, ok)
	assert.True(t, d.HasID)
}

func TestRegistry_ClassNameRoundTrip(t *testing.T) {
	r := New()

	type widget struct{ Name string }
	require.NoError(t, r.RegisterClass(reflect.TypeOf(widget{}), nil))

	got, ok := r.LookupName(qualifiedName(reflect.TypeOf(widget{})))
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(widget{}), got)

	// A second RegisterClass call must not leave the name index stale.
	type other struct{ V int }
	require.NoError(t, r.RegisterClass(reflect.TypeOf(other{}), nil))
	got2, ok2 := r.LookupName(qualifiedName(reflect.TypeOf(other{})))
	require.True(t, ok2)
	assert.Equal(t, reflect.TypeOf(other{}), got2)
}

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

package buf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAllocator_AllocateReleaseRoundTrip(t *testing.T) {
	p := NewPoolAllocator()

	b := p.Allocate(128, 0)
	require.NotNil(t, b)
	require.NoError(t, b.WriteInt32(42))
	b.Flip()
	v, err := b.ReadInt32()
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)

	p.Release(b)
}

func TestPoolAllocator_DoubleReleaseIsNoop(t *testing.T) {
	p := NewPoolAllocator()
	b := p.Allocate(64, 0)
	p.Release(b)
	assert.NotPanics(t, func() { p.Release(b) })
}

func TestPoolAllocator_ForeignBufferIgnored(t *testing.T) {
	p1 := NewPoolAllocator()
	p2 := NewPoolAllocator()
	b := p1.Allocate(64, 0)
	assert.NotPanics(t, func() { p2.Release(b) })
}

func TestPoolAllocator_ReusesBuffers(t *testing.T) {
	p := NewPoolAllocator()
	b1 := p.Allocate(minPoolSize, 0)
	p.Release(b1)
	b2 := p.Allocate(minPoolSize, 0)
	assert.Equal(t, 0, b2.Len())
}

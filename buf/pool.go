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
	"math/bits"
	"sync"
)

// size classes: same ladder shape as cache/mempool (min 4KB, doubling),
// but pooling *Buffer objects rather than raw footer-tagged []byte, since
// our scoped region is a struct with its own read/write positions, not a
// bare slice threaded through call sites.
const (
	minPoolSize = 4 << 10  // 4KB
	maxPoolSize = 64 << 20 // 64MB; PoolAllocator.Allocate falls back to a plain alloc above this
)

type sizeClass struct {
	sync.Pool
	size int
}

// PoolAllocator is the one concrete buf.Allocator implementation, backed
// by a ladder of size-classed sync.Pools (mempool's approach). Callers
// depend only on the Allocator contract and the Allocate/Release
// discipline it implies, never on this type's internals.
type PoolAllocator struct {
	classes []*sizeClass
	idx     []int // bits.Len(size) -> index into classes, mempool's bits2idx
}

// NewPoolAllocator builds the size-class ladder once, the way mempool's
// init() does at package load.
func NewPoolAllocator() *PoolAllocator {
	p := &PoolAllocator{idx: make([]int, 64)}
	i := 0
	for sz := minPoolSize; sz <= maxPoolSize; sz <<= 1 {
		sc := &sizeClass{size: sz}
		sc.New = func() interface{} { return &Buffer{} }
		p.classes = append(p.classes, sc)
		p.idx[bits.Len(uint(sz))] = i
		i++
	}
	return p
}

func (p *PoolAllocator) classFor(sz int) (*sizeClass, int) {
	if sz <= minPoolSize {
		return p.classes[0], 0
	}
	if sz > maxPoolSize {
		return nil, -1
	}
	i := p.idx[bits.Len(uint(sz))]
	if uint(sz)&(uint(sz)-1) != 0 {
		i++
	}
	return p.classes[i], i
}

// Allocate returns a Buffer with at least `initial` bytes of backing
// capacity (0 defaults to the allocator's minimum size class) and a
// write ceiling of `max` (0 = unbounded).
func (p *PoolAllocator) Allocate(initial, max int) *Buffer {
	if initial <= 0 {
		initial = minPoolSize
	}
	class, idx := p.classFor(initial)
	if class == nil {
		// larger than any size class: allocate directly, not pooled.
		b := NewBuffer(initial, max)
		return b
	}
	b := class.Get().(*Buffer)
	b.Reset()
	if cap(b.data) < initial {
		b.data = make([]byte, 0, class.size)
	}
	b.max = max
	b.owner = p
	b.poolIdx = idx
	return b
}

// Release returns buf to its size class. Double-release and buffers not
// owned by this allocator are rejected by returning silently, matching
// mempool.Free's "ignore anything that isn't clearly ours" stance —
// Release is a cleanup call on an error path too, so it must never panic.
func (p *PoolAllocator) Release(b *Buffer) {
	if b == nil || b.owner != p || b.released {
		return
	}
	b.released = true
	class := p.classes[b.poolIdx]
	class.Put(b)
}

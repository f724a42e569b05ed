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
	"encoding/binary"
	"fmt"

	"github.com/bgloeckle/catalyst/wire"
)

var _ Reader = (*Buffer)(nil)
var _ Writer = (*Buffer)(nil)

// Buffer is a growable byte region with a write tail and an independent
// read position, bracketed by Allocate/Release. Unlike bufiox's separate
// Reader/Writer pipe ends, a scoped buffer here is bidirectional: the
// write side appends at the tail, the read side walks from the front,
// and Flip rewinds the read position to replay what was written — the
// shape `engine.Copy` needs (write, flip, read, release once).
type Buffer struct {
	data []byte
	ri   int
	max  int // 0 means unbounded

	// pool bookkeeping, set by the owning Allocator; zero value means
	// "not pool-owned" so a plain NewBuffer works standalone in tests.
	owner    *PoolAllocator
	poolIdx  int
	released bool
}

// NewBuffer returns a standalone Buffer not tied to any Allocator, with
// initial backing capacity `initial` and a write ceiling of `max` (0 for
// unbounded). Useful in tests and for one-off encodes outside a pool.
func NewBuffer(initial, max int) *Buffer {
	if initial < 0 {
		initial = 0
	}
	return &Buffer{data: make([]byte, 0, initial), max: max}
}

// Reset clears content and rewinds both read and write positions,
// keeping the backing array, for reuse by a pool.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.ri = 0
	b.released = false
}

// Flip rewinds the read position to the start of the written region,
// without discarding it, so the buffer can be read back after being
// written — the building block behind Engine.Copy's write-then-read-back.
func (b *Buffer) Flip() *Buffer {
	b.ri = 0
	return b
}

// Bytes returns the full written region (ignoring the read position).
// Used by the engine for the BUFFER tag's passthrough copy.
func (b *Buffer) Bytes() []byte { return b.data }

// Readable returns the unread suffix of the written region.
func (b *Buffer) Readable() []byte { return b.data[b.ri:] }

// Len returns the number of unread bytes.
func (b *Buffer) Len() int { return len(b.data) - b.ri }

// MaxCapacity returns the write ceiling (0 = unbounded).
func (b *Buffer) MaxCapacity() int { return b.max }

func (b *Buffer) grow(n int) error {
	need := len(b.data) + n
	if b.max > 0 && need > b.max {
		return fmt.Errorf("%w: need %d, max %d", wire.ErrBufferCapacity, need, b.max)
	}
	if need <= cap(b.data) {
		return nil
	}
	ncap := cap(b.data)
	if ncap == 0 {
		ncap = 64
	}
	for ncap < need {
		ncap *= 2
	}
	if b.max > 0 && ncap > b.max {
		ncap = b.max
	}
	nbuf := make([]byte, len(b.data), ncap)
	copy(nbuf, b.data)
	b.data = nbuf
	return nil
}

// Malloc returns a slice of length n at the write tail, growing the
// buffer first if needed.
func (b *Buffer) Malloc(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if err := b.grow(n); err != nil {
		return nil, err
	}
	off := len(b.data)
	b.data = b.data[:off+n]
	return b.data[off : off+n : off+n], nil
}

func (b *Buffer) WriteByte(v byte) error {
	buf, err := b.Malloc(1)
	if err != nil {
		return err
	}
	buf[0] = v
	return nil
}

func (b *Buffer) WriteUint8(v uint8) error { return b.WriteByte(byte(v)) }

func (b *Buffer) WriteUint16(v uint16) error {
	buf, err := b.Malloc(2)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(buf, v)
	return nil
}

func (b *Buffer) WriteUint24(v uint32) error {
	buf, err := b.Malloc(3)
	if err != nil {
		return err
	}
	buf[0] = byte(v >> 16)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v)
	return nil
}

func (b *Buffer) WriteInt32(v int32) error {
	buf, err := b.Malloc(4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(buf, uint32(v))
	return nil
}

func (b *Buffer) WriteBinary(src []byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}
	dst, err := b.Malloc(len(src))
	if err != nil {
		return 0, err
	}
	return copy(dst, src), nil
}

func (b *Buffer) WriteString(s string) error {
	if len(s) > wire.MaxPayloadLen {
		return fmt.Errorf("%w: string len %d", wire.ErrPayloadTooLarge, len(s))
	}
	if err := b.WriteUint16(uint16(len(s))); err != nil {
		return err
	}
	_, err := b.WriteBinary([]byte(s))
	return err
}

func (b *Buffer) ensure(n int) error {
	if b.Len() < n {
		return fmt.Errorf("buf: need %d bytes, have %d", n, b.Len())
	}
	return nil
}

func (b *Buffer) ReadByte() (byte, error) {
	if err := b.ensure(1); err != nil {
		return 0, err
	}
	v := b.data[b.ri]
	b.ri++
	return v, nil
}

func (b *Buffer) ReadUint8() (uint8, error) {
	v, err := b.ReadByte()
	return uint8(v), err
}

func (b *Buffer) ReadUint16() (uint16, error) {
	if err := b.ensure(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(b.data[b.ri:])
	b.ri += 2
	return v, nil
}

func (b *Buffer) ReadUint24() (uint32, error) {
	if err := b.ensure(3); err != nil {
		return 0, err
	}
	v := uint32(b.data[b.ri])<<16 | uint32(b.data[b.ri+1])<<8 | uint32(b.data[b.ri+2])
	b.ri += 3
	return v, nil
}

func (b *Buffer) ReadInt32() (int32, error) {
	if err := b.ensure(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(b.data[b.ri:])
	b.ri += 4
	return int32(v), nil
}

func (b *Buffer) ReadBinary(dst []byte) (int, error) {
	if err := b.ensure(len(dst)); err != nil {
		return 0, err
	}
	n := copy(dst, b.data[b.ri:])
	b.ri += n
	return n, nil
}

func (b *Buffer) ReadString() (string, error) {
	n, err := b.ReadUint16()
	if err != nil {
		return "", err
	}
	buf, err := b.Next(int(n))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (b *Buffer) Next(n int) ([]byte, error) {
	if err := b.ensure(n); err != nil {
		return nil, err
	}
	buf := b.data[b.ri : b.ri+n : b.ri+n]
	b.ri += n
	return buf, nil
}

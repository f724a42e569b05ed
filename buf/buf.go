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

// Package buf is a user-space buffer IO abstraction, shaped after
// bufiox.Reader/bufiox.Writer: a nocopy read side and an auto-growing
// write side, bracketed by explicit Allocate/Release so pooled memory is
// never leaked or double-freed under polymorphic dispatch.
package buf

// Reader is the read side of a scoped buffer.
type Reader interface {
	// ReadByte reads and returns one raw byte.
	ReadByte() (byte, error)
	// ReadUint8 reads one unsigned byte.
	ReadUint8() (uint8, error)
	// ReadUint16 reads a big-endian unsigned 16-bit integer.
	ReadUint16() (uint16, error)
	// ReadUint24 reads a big-endian unsigned 24-bit integer, returned
	// widened into a uint32.
	ReadUint24() (uint32, error)
	// ReadInt32 reads a big-endian signed 32-bit integer.
	ReadInt32() (int32, error)
	// ReadBinary reads exactly len(dst) bytes into dst.
	ReadBinary(dst []byte) (int, error)
	// ReadString reads a u16-length-prefixed UTF-8 string.
	ReadString() (string, error)
	// Next returns a nocopy slice of the next n bytes and advances the
	// read position past them. The slice is only valid until Release.
	Next(n int) ([]byte, error)
	// Len returns the number of unread bytes.
	Len() int
}

// Writer is the write side of a scoped buffer. It auto-grows up to the
// buffer's MaxCapacity; growing past it fails with wire.ErrBufferCapacity.
type Writer interface {
	WriteByte(b byte) error
	WriteUint8(v uint8) error
	WriteUint16(v uint16) error
	WriteUint24(v uint32) error
	WriteInt32(v int32) error
	// WriteBinary appends src verbatim.
	WriteBinary(src []byte) (int, error)
	// WriteString appends a u16-length-prefixed UTF-8 string.
	WriteString(s string) error
	// Malloc returns a slice of length n at the current write tail,
	// growing the buffer as needed, for callers that want to fill bytes
	// directly rather than go through WriteBinary.
	Malloc(n int) ([]byte, error)
}

// Allocator is the external contract for scoped-buffer lifecycle
// management; callers depend only on this interface, never on a concrete
// allocator's internals. Every Buffer obtained from Allocate must be
// passed to Release exactly once.
type Allocator interface {
	// Allocate returns a Buffer with at least `initial` bytes of backing
	// capacity and a hard ceiling of `max` bytes (0 means unbounded).
	Allocate(initial, max int) *Buffer
	// Release returns buf to the allocator. buf must not be used after
	// this call.
	Release(buf *Buffer)
}

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

package wire

import "errors"

// Sentinel errors for every failure kind named in the error-handling
// design. Call sites wrap these with fmt.Errorf("%w: ...", Err...) to add
// detail while staying errors.Is-compatible — the Go analogue of the
// teacher's typed exceptions (ApplicationException/ProtocolException)
// with a stable identity plus a free-form message.
var (
	// Registry / configuration errors.
	ErrReservedID  = errors.New("wire: id in reserved range [128,255]")
	ErrDuplicateID = errors.New("wire: id already bound")
	ErrNegativeID  = errors.New("wire: negative ids are not accepted at registration")

	// Engine errors.
	ErrUnregisteredType      = errors.New("wire: type not registered and not serializable")
	ErrUnknownTag            = errors.New("wire: unknown framing tag")
	ErrUnknownType           = errors.New("wire: id or class name does not resolve to a codec")
	ErrClassNotFound         = errors.New("wire: class name not found in registry")
	ErrPlatformSerialization = errors.New("wire: fallback codec failure")
	ErrPayloadTooLarge       = errors.New("wire: payload exceeds 65535 bytes")
	ErrBufferCapacity        = errors.New("wire: write exceeds buffer max capacity")

	// Connection errors.
	ErrConnectionClosed = errors.New("wire: connection closed")
	ErrNoHandler        = errors.New("wire: no handler registered for type")

	// Allocator contract violations. These are programmer bugs, not
	// recoverable protocol errors, matching mempool.Free's "ignore
	// anything that isn't clearly ours" stance rather than a returned
	// error every caller would have to check.
	ErrDoubleRelease = errors.New("wire: buffer released twice")
	ErrForeignBuffer = errors.New("wire: buffer not owned by this allocator")
)

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

package rpc

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/bgloeckle/catalyst/buf"
	"github.com/bgloeckle/catalyst/wire"
)

// Releasable is implemented by reference-counted request/response values;
// Release is called once a value has been handed off to the wire — after a
// request is encoded for send, and after a response or handler error is
// encoded for reply.
type Releasable interface {
	Release()
}

// HandlerFunc answers a decoded request value with a response value or
// an error. A non-nil error must itself be a value the connection's
// engine can encode (i.e. its dynamic type is registered) — the engine
// has no special-cased "error" framing, only the eight tags the wire
// grammar defines, so a handler's failure value is just another object.
type HandlerFunc func(req any) (any, error)

type handlerBinding struct {
	fn HandlerFunc
}

// Membership is the optional group a set of Connections can belong to;
// Close removes the connection from it.
type Membership struct {
	mu      sync.Mutex
	members map[*Connection]struct{}
}

// NewMembership returns an empty membership set.
func NewMembership() *Membership {
	return &Membership{members: make(map[*Connection]struct{})}
}

func (m *Membership) add(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[c] = struct{}{}
}

func (m *Membership) remove(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, c)
}

// Connection is a bidirectional in-process endpoint bound to one
// Context, providing request/response Send, Handler registration, and
// Close.
type Connection struct {
	name string
	ctx  *Context
	peer *Connection

	member *Membership

	mu       sync.Mutex
	handlers map[reflect.Type]handlerBinding
	closed   bool

	closeListeners     []func()
	exceptionListeners []func(error)
}

// NewConnection returns a Connection bound to ctx. Use Pair to wire two
// Connections as each other's peer, the common case of setting up an
// in-process A<->B link.
func NewConnection(name string, ctx *Context, member *Membership) *Connection {
	c := &Connection{
		name:     name,
		ctx:      ctx,
		member:   member,
		handlers: make(map[reflect.Type]handlerBinding),
	}
	if member != nil {
		member.add(c)
	}
	return c
}

// Pair wires a and b as each other's peer.
func Pair(a, b *Connection) {
	a.peer = b
	b.peer = a
}

// Handle installs fn for request values whose type is t; fn == nil
// removes a prior binding. The handler is always dispatched on this
// Connection's own Context — the Go adaptation of "capturing the current
// thread context," since Go has no ambient current-context lookup.
func (c *Connection) Handle(t reflect.Type, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		delete(c.handlers, t)
		return
	}
	c.handlers[t] = handlerBinding{fn: fn}
}

// OnClose registers a listener run (on this Connection's Context) when
// Close is called.
func (c *Connection) OnClose(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeListeners = append(c.closeListeners, f)
}

// OnException registers a listener run (on this Connection's Context)
// when the peer's handler dispatch fails at the transport level (not
// handler-returned errors, which complete the caller's Send normally).
func (c *Connection) OnException(f func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exceptionListeners = append(c.exceptionListeners, f)
}

// Send serializes req through this Connection's engine, hands it to the
// peer, and waits for the response or error, decoded through this
// Connection's own engine. ctx cancellation aborts the wait but does not
// recall work already scheduled on either Context.
func (c *Connection) Send(ctx context.Context, req any) (any, error) {
	encodeResult := <-c.ctx.Call(func() (any, error) {
		eng := c.ctx.Engine()
		b := eng.Allocator().Allocate(0, 0)
		if err := eng.WriteObject(req, b); err != nil {
			eng.Allocator().Release(b)
			return nil, err
		}
		b.Flip()
		if rel, ok := req.(Releasable); ok {
			rel.Release()
		}
		return b, nil
	})
	if encodeResult.Err != nil {
		return nil, encodeResult.Err
	}
	reqBuf := encodeResult.Value.(*buf.Buffer)

	respCh, err := c.peer.receive(reqBuf)
	if err != nil {
		c.ctx.Engine().Allocator().Release(reqBuf)
		return nil, err
	}

	var respResult Result
	select {
	case respResult = <-respCh:
	case <-ctx.Done():
		// receive's handler goroutine is already running and will still
		// push its Result on respCh; drain it asynchronously and release
		// whatever buffer it carries so abandoning the wait here never
		// leaks it.
		go func() {
			if r := <-respCh; r.Value != nil {
				if b, ok := r.Value.(*buf.Buffer); ok {
					c.peer.ctx.Engine().Allocator().Release(b)
				}
			}
		}()
		return nil, ctx.Err()
	}
	if respResult.Err != nil {
		c.mu.Lock()
		listeners := append([]func(error){}, c.exceptionListeners...)
		c.mu.Unlock()
		dispatchErr := respResult.Err
		c.ctx.Run(func() {
			for _, f := range listeners {
				f(dispatchErr)
			}
		})
		return nil, respResult.Err
	}
	respBuf := respResult.Value.(*buf.Buffer)

	decodeResult := <-c.ctx.Call(func() (any, error) {
		eng := c.ctx.Engine()
		status, err := respBuf.ReadByte()
		if err != nil {
			return nil, err
		}
		val, err := eng.ReadObject(respBuf)
		if err != nil {
			return nil, err
		}
		if status == 0 {
			if e, ok := val.(error); ok {
				return nil, e
			}
			return nil, fmt.Errorf("rpc: error response: %v", val)
		}
		return val, nil
	})
	c.peer.ctx.Engine().Allocator().Release(respBuf)

	return decodeResult.Value, decodeResult.Err
}

// receive decodes reqBuf on c's own Context, dispatches to the
// registered handler (also on c's Context, per Handle's doc comment),
// and encodes the response or handler error into a fresh buffer from
// c's engine. The returned channel carries that response buffer.
func (c *Connection) receive(reqBuf *buf.Buffer) (<-chan Result, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		c.ctx.Engine().Allocator().Release(reqBuf)
		return nil, wire.ErrConnectionClosed
	}

	out := make(chan Result, 1)
	c.ctx.Run(func() {
		eng := c.ctx.Engine()
		req, err := eng.ReadObject(reqBuf)
		// reqBuf was allocated by the sending peer's engine; only that
		// allocator accepts it back.
		c.peer.ctx.Engine().Allocator().Release(reqBuf)
		if err != nil {
			out <- Result{Err: err}
			return
		}
		if rel, ok := req.(Releasable); ok {
			defer rel.Release()
		}

		c.mu.Lock()
		closed := c.closed
		binding, ok := c.handlers[reflect.TypeOf(req)]
		c.mu.Unlock()
		if closed {
			out <- Result{Err: wire.ErrConnectionClosed}
			return
		}
		if !ok {
			out <- Result{Err: fmt.Errorf("%w: %T", wire.ErrNoHandler, req)}
			return
		}

		resp, herr := binding.fn(req)

		respBuf := eng.Allocator().Allocate(0, 0)
		var status byte = 1
		encodeVal := resp
		if herr != nil {
			status = 0
			encodeVal = herr
		}
		if err := respBuf.WriteByte(status); err != nil {
			eng.Allocator().Release(respBuf)
			out <- Result{Err: err}
			return
		}
		if err := eng.WriteObject(encodeVal, respBuf); err != nil {
			eng.Allocator().Release(respBuf)
			out <- Result{Err: err}
			return
		}
		if rel, ok := encodeVal.(Releasable); ok {
			rel.Release()
		}
		respBuf.Flip()
		out <- Result{Value: respBuf}
	})
	return out, nil
}

// Close removes this Connection from its membership set, runs close
// listeners on its own Context, and cascades to the peer so subsequent
// dispatch on either side fails with ErrConnectionClosed.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	listeners := append([]func(){}, c.closeListeners...)
	c.mu.Unlock()

	if c.member != nil {
		c.member.remove(c)
	}
	c.ctx.Run(func() {
		for _, f := range listeners {
			f()
		}
	})

	if c.peer != nil && c.peer != c {
		peer := c.peer
		peer.mu.Lock()
		alreadyClosed := peer.closed
		peer.mu.Unlock()
		if !alreadyClosed {
			peer.Close()
		}
	}
}

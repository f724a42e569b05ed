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

// Package rpc implements a local, in-process request/response transport
// that exercises the codec engine's contracts end to end: Context is a
// single-goroutine execution context bound to one engine, and Connection
// is the bidirectional endpoint built on top of it.
package rpc

import (
	"log"
	"runtime/debug"

	"github.com/bgloeckle/catalyst/serializer"
)

// Option configures a Context.
type Option struct {
	// TaskChanBuffer bounds the queue of pending Run/Call closures.
	TaskChanBuffer int
	// PanicHandler is invoked, if set, when a scheduled closure panics;
	// otherwise the panic is logged and swallowed, matching gopool's
	// runTask default.
	PanicHandler func(name string, r any)
}

// DefaultOption returns Context's default tuning.
func DefaultOption() *Option {
	return &Option{TaskChanBuffer: 64}
}

// Result is what a Call's returned channel delivers.
type Result struct {
	Value any
	Err   error
}

// Context is a single dedicated goroutine bound to one engine. Unlike
// concurrency/gopool.GoPool, which grows and shrinks a worker set
// dynamically, Context runs exactly one permanent worker for its whole
// lifetime: that is what makes "all continuations
// run on the context bound when the wait began" true by construction
// instead of by accident of scheduling.
type Context struct {
	name string
	eng  *serializer.Engine

	tasks chan func()
	done  chan struct{}

	panicHandler func(name string, r any)
}

// NewContext starts the dedicated worker goroutine and returns a Context
// bound to eng. opt may be nil for DefaultOption().
func NewContext(name string, eng *serializer.Engine, opt *Option) *Context {
	if opt == nil {
		opt = DefaultOption()
	}
	c := &Context{
		name:         name,
		eng:          eng,
		tasks:        make(chan func(), opt.TaskChanBuffer),
		done:         make(chan struct{}),
		panicHandler: opt.PanicHandler,
	}
	go c.run()
	return c
}

// Engine returns the engine this Context owns exclusively.
func (c *Context) Engine() *serializer.Engine { return c.eng }

func (c *Context) run() {
	for {
		select {
		case f := <-c.tasks:
			c.runOne(f)
		case <-c.done:
			// Drain whatever is already queued before exiting, so a
			// Close racing with in-flight Run/Call calls never silently
			// drops work that was already accepted.
			for {
				select {
				case f := <-c.tasks:
					c.runOne(f)
				default:
					return
				}
			}
		}
	}
}

func (c *Context) runOne(f func()) {
	defer func() {
		if r := recover(); r != nil {
			if c.panicHandler != nil {
				c.panicHandler(c.name, r)
			} else {
				log.Printf("rpc: panic in context %s: %v: %s", c.name, r, debug.Stack())
			}
		}
	}()
	f()
}

// Run schedules f to run on this Context's goroutine, fire-and-forget,
// FIFO with respect to every other Run/Call already queued.
func (c *Context) Run(f func()) {
	c.tasks <- f
}

// Call schedules f and returns a channel that receives its result once
// f has run on this Context's goroutine. The channel is buffered so the
// worker never blocks handing off the result to an uninterested caller.
func (c *Context) Call(f func() (any, error)) <-chan Result {
	out := make(chan Result, 1)
	c.Run(func() {
		v, err := f()
		out <- Result{Value: v, Err: err}
	})
	return out
}

// Close signals the worker to exit once it has drained what is already
// queued. It does not wait for the worker to exit. Run and Call do not
// check for Close: work queued after the worker has exited never runs.
func (c *Context) Close() {
	close(c.done)
}

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
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgloeckle/catalyst/buf"
	"github.com/bgloeckle/catalyst/codec"
	"github.com/bgloeckle/catalyst/registry"
	"github.com/bgloeckle/catalyst/serializer"
)

type Ping struct{}

type Pong struct{ OK bool }

// ServiceError mirrors a handler-reported failure as a plain encodable
// value, since the engine has no built-in notion of "error" framing.
type ServiceError struct{ Message string }

func (e *ServiceError) Error() string { return e.Message }

type pingCodec struct{}

func (pingCodec) Write(any, buf.Writer, codec.Engine) error { return nil }
func (pingCodec) Read(reflect.Type, buf.Reader, codec.Engine) (any, error) {
	return Ping{}, nil
}

type pongCodec struct{}

func (pongCodec) Write(v any, out buf.Writer, _ codec.Engine) error {
	p := v.(Pong)
	if p.OK {
		return out.WriteByte(1)
	}
	return out.WriteByte(0)
}

func (pongCodec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	b, err := in.ReadByte()
	if err != nil {
		return nil, err
	}
	return Pong{OK: b != 0}, nil
}

type serviceErrorCodec struct{}

func (serviceErrorCodec) Write(v any, out buf.Writer, _ codec.Engine) error {
	return out.WriteString(v.(*ServiceError).Message)
}

func (serviceErrorCodec) Read(_ reflect.Type, in buf.Reader, _ codec.Engine) (any, error) {
	s, err := in.ReadString()
	if err != nil {
		return nil, err
	}
	return &ServiceError{Message: s}, nil
}

func sharedRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.RegisterID(reflect.TypeOf(Ping{}), 20, codec.Single(pingCodec{})))
	require.NoError(t, reg.RegisterID(reflect.TypeOf(Pong{}), 21, codec.Single(pongCodec{})))
	require.NoError(t, reg.RegisterID(reflect.TypeOf(&ServiceError{}), 22, codec.Single(serviceErrorCodec{})))
	return reg
}

func newPair(t *testing.T) (a, b *Connection, member *Membership) {
	t.Helper()
	reg := sharedRegistry(t)

	engA := serializer.New(reg, buf.NewPoolAllocator())
	engB := serializer.New(reg, buf.NewPoolAllocator())

	ctxA := NewContext("A", engA, nil)
	ctxB := NewContext("B", engB, nil)

	member = NewMembership()
	connA := NewConnection("A", ctxA, member)
	connB := NewConnection("B", ctxB, member)
	Pair(connA, connB)
	return connA, connB, member
}

func TestConnection_SendReceivesHandlerResponse(t *testing.T) {
	connA, connB, _ := newPair(t)
	defer connA.ctx.Close()
	defer connB.ctx.Close()

	connA.Handle(reflect.TypeOf(Ping{}), func(req any) (any, error) {
		return Pong{OK: true}, nil
	})

	resp, err := connB.Send(context.Background(), Ping{})
	require.NoError(t, err)
	assert.Equal(t, Pong{OK: true}, resp)
}

func TestConnection_SendSurfacesHandlerError(t *testing.T) {
	connA, connB, _ := newPair(t)
	defer connA.ctx.Close()
	defer connB.ctx.Close()

	connA.Handle(reflect.TypeOf(Ping{}), func(req any) (any, error) {
		return nil, &ServiceError{Message: "boom"}
	})

	resp, err := connB.Send(context.Background(), Ping{})
	require.Nil(t, resp)
	require.Error(t, err)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "boom", svcErr.Message)
}

func TestConnection_NoHandlerRejected(t *testing.T) {
	connA, connB, _ := newPair(t)
	defer connA.ctx.Close()
	defer connB.ctx.Close()

	_, err := connB.Send(context.Background(), Ping{})
	require.Error(t, err)
}

func TestConnection_CloseCascadesToPeer(t *testing.T) {
	connA, connB, member := newPair(t)
	defer connA.ctx.Close()
	defer connB.ctx.Close()

	connA.Handle(reflect.TypeOf(Ping{}), func(req any) (any, error) {
		return Pong{OK: true}, nil
	})

	var closed bool
	connB.OnClose(func() { closed = true })

	connA.Close()
	// Close schedules listeners on the connection's own context; give the
	// single worker goroutine a moment to run them.
	time.Sleep(20 * time.Millisecond)

	assert.True(t, closed)

	_, err := connB.Send(context.Background(), Ping{})
	require.Error(t, err)

	member.mu.Lock()
	_, stillMember := member.members[connA]
	member.mu.Unlock()
	assert.False(t, stillMember)
}

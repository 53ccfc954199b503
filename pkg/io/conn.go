//  
//  Copyright 2023 PayPal Inc.
//  
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//  
//     http://www.apache.org/licenses/LICENSE-2.0
//  
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//  

package io

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
	uuid "github.com/satori/go.uuid"

	"sirena/pkg/logging"
	"sirena/pkg/logging/otel"
)

type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

var ErrNotConnected = errors.New("connection is not established")

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// Connection is one TCP stream to the gateway. Reads and writes are meant to
// be issued by one goroutine at a time; Connect and Disconnect may race with
// them.
type Connection struct {
	endpoint ServiceEndpoint
	config   OutboundConfig
	id       string

	mtx        sync.Mutex
	conn       net.Conn
	ctx        context.Context
	attachment interface{}
	state      atomic.Int32
}

func NewConnection(endpoint ServiceEndpoint, config OutboundConfig) *Connection {
	config.SetDefaultIfNotDefined()
	return &Connection{
		endpoint: endpoint,
		config:   config,
		id:       uuid.NewV4().String(),
	}
}

// Id is a random debug id, unrelated to the protocol.
func (c *Connection) Id() string {
	return c.id
}

func (c *Connection) Endpoint() ServiceEndpoint {
	return c.endpoint
}

func (c *Connection) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

func (c *Connection) newBackOff() backoff.BackOff {
	lo, hi := c.config.BackoffMin.Duration, c.config.BackoffMax.Duration
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = (lo + hi) / 2
	if lo+hi > 0 {
		b.RandomizationFactor = float64(hi-lo) / float64(hi+lo)
	}
	b.Multiplier = 1
	b.MaxInterval = hi
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Connect dials the gateway unless already connected, retrying with backoff
// up to ConnectAttempts times.
func (c *Connection) Connect(ctx context.Context) (err error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.conn != nil {
		return
	}

	timeStart := time.Now()
	c.state.Store(int32(StateConnecting))
	addr := c.endpoint.Addr()
	dialer := &net.Dialer{
		Timeout: c.config.ConnectTimeout.Duration,
		KeepAliveConfig: net.KeepAliveConfig{
			Enable:   true,
			Idle:     c.config.KeepAliveIdle.Duration,
			Interval: c.config.KeepAliveInterval.Duration,
			Count:    c.config.KeepAliveCount,
		},
	}

	attempt := 0
	op := func() error {
		attempt++
		conn, e := dialer.DialContext(ctx, "tcp", addr)
		if e != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(e)
			}
			return e
		}
		c.conn = conn
		return nil
	}
	notify := func(e error, wait time.Duration) {
		glog.Warningf("connect %s attempt %d failed: %s, retry in %s", addr, attempt, e, wait)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.config.ConnectAttempts-1)), ctx)
	err = backoff.RetryNotify(op, b, notify)

	status := otel.StatusSuccess
	if err != nil {
		status = otel.StatusError
		c.state.Store(int32(StateDisconnected))
		glog.Errorf("fail to connect %s after %d attempt(s): %s", addr, attempt, err)
		err = fmt.Errorf("connect %s: %w", addr, err)
	} else {
		c.state.Store(int32(StateConnected))
		if glog.V(2) {
			glog.Infof("connected %s", logging.NewKVBufferForLog().AddAddr(addr).AddConnId(c.id).String())
		}
	}
	otel.RecordConnect(addr, status, time.Since(timeStart))
	return
}

// Bind ties reads and writes to ctx: once ctx is done, blocked I/O is
// interrupted and the connection is torn down. Call the returned func when
// the exchange is over.
func (c *Connection) Bind(ctx context.Context) (release func()) {
	c.mtx.Lock()
	c.ctx = ctx
	c.mtx.Unlock()

	// resolved on cancel: the socket may be redialed while bound
	stop := context.AfterFunc(ctx, func() {
		if conn, _ := c.current(); conn != nil {
			conn.SetDeadline(time.Now())
		}
	})
	return func() {
		stop()
		c.mtx.Lock()
		if c.ctx == ctx {
			c.ctx = nil
		}
		c.mtx.Unlock()
	}
}

func (c *Connection) current() (net.Conn, context.Context) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.conn, c.ctx
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	t := time.Now().Add(timeout)
	if ctx != nil {
		if d, ok := ctx.Deadline(); ok && d.Before(t) {
			t = d
		}
	}
	return t
}

// Write sends b in full. Any failure leaves the connection disconnected.
func (c *Connection) Write(b []byte) (n int, err error) {
	conn, ctx := c.current()
	if conn == nil {
		return 0, ErrNotConnected
	}
	if ctx != nil && ctx.Err() != nil {
		c.Disconnect()
		return 0, ctx.Err()
	}
	conn.SetWriteDeadline(deadline(ctx, c.config.WriteTimeout.Duration))
	if n, err = conn.Write(b); err != nil {
		if ctx != nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		c.Disconnect()
	}
	return
}

// Read returns up to len(p) bytes within the read timeout. On timeout or any
// I/O error the connection is disconnected and must not be reused.
func (c *Connection) Read(p []byte) (n int, err error) {
	conn, ctx := c.current()
	if conn == nil {
		return 0, ErrNotConnected
	}
	if ctx != nil && ctx.Err() != nil {
		c.Disconnect()
		return 0, ctx.Err()
	}
	conn.SetReadDeadline(deadline(ctx, c.config.ReadTimeout.Duration))
	if ctx != nil && ctx.Err() != nil {
		conn.SetReadDeadline(time.Now())
	}
	if n, err = conn.Read(p); err != nil {
		if ctx != nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		c.Disconnect()
	}
	return
}

// Disconnect closes the stream. It is idempotent and close errors are only
// logged.
func (c *Connection) Disconnect() {
	c.mtx.Lock()
	conn := c.conn
	c.conn = nil
	c.state.Store(int32(StateDisconnected))
	c.mtx.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil && glog.V(2) {
			glog.Infof("close %s: %s", c.id, err)
		}
	}
}

// SetAttachment stores per-connection state owned by the caller, such as
// session keys. It survives reconnects.
func (c *Connection) SetAttachment(v interface{}) {
	c.mtx.Lock()
	c.attachment = v
	c.mtx.Unlock()
}

func (c *Connection) Attachment() interface{} {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.attachment
}

func (c *Connection) String() string {
	return fmt.Sprintf("%s(%s,%s)", c.id, c.endpoint.Addr(), c.State())
}

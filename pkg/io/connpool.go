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
	"sync"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

var ErrPoolClosed = errors.New("connection pool is closed")

type PoolStats struct {
	Free      int
	InUse     int
	Acquiring int
}

func (s PoolStats) Size() int {
	return s.Free + s.InUse + s.Acquiring
}

// ConnPool bounds and reuses gateway connections. Connections are created
// lazily on Acquire and kept open across Release. The pool mutex is never
// held while dialing or closing.
type ConnPool struct {
	endpoint ServiceEndpoint
	config   OutboundConfig
	minSize  int
	maxSize  int

	mtx       sync.Mutex
	free      []*Connection
	inUse     map[*Connection]struct{}
	acquiring int
	waiters   []chan struct{}
	closing   bool
	drained   *sync.Cond
	closed    chan struct{}

	newConn func() *Connection
}

func NewConnPool(endpoint ServiceEndpoint, config OutboundConfig, poolConfig PoolConfig) *ConnPool {
	config.SetDefaultIfNotDefined()
	poolConfig.SetDefaultIfNotDefined()
	p := &ConnPool{
		endpoint: endpoint,
		config:   config,
		minSize:  poolConfig.MinSize,
		maxSize:  poolConfig.MaxSize,
		inUse:    make(map[*Connection]struct{}),
		closed:   make(chan struct{}),
	}
	p.drained = sync.NewCond(&p.mtx)
	p.newConn = func() *Connection {
		return NewConnection(p.endpoint, p.config)
	}
	return p
}

func (p *ConnPool) Endpoint() ServiceEndpoint {
	return p.endpoint
}

func (p *ConnPool) size() int {
	return len(p.free) + len(p.inUse) + p.acquiring
}

func (p *ConnPool) Stats() PoolStats {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return PoolStats{Free: len(p.free), InUse: len(p.inUse), Acquiring: p.acquiring}
}

func (p *ConnPool) dropDead() {
	live := p.free[:0]
	for _, c := range p.free {
		if c.IsConnected() {
			live = append(live, c)
		} else {
			glog.Infof("drop dead connection %s", c.Id())
		}
	}
	for i := len(live); i < len(p.free); i++ {
		p.free[i] = nil
	}
	p.free = live
}

// Acquire hands out a live connection. The free list is topped up to the
// minimum size first; past that a connection is created only when none is
// free and the pool is below its maximum. Otherwise Acquire waits for a
// Release, the pool closing, or ctx.
func (p *ConnPool) Acquire(ctx context.Context) (*Connection, error) {
	p.mtx.Lock()
	for {
		if p.closing {
			p.mtx.Unlock()
			return nil, ErrPoolClosed
		}
		p.dropDead()

		if p.size() < p.minSize || (len(p.free) == 0 && p.size() < p.maxSize) {
			p.acquiring++
			p.mtx.Unlock()

			c := p.newConn()
			err := c.Connect(ctx)

			p.mtx.Lock()
			p.acquiring--
			if p.acquiring == 0 {
				p.drained.Broadcast()
			}
			if err != nil {
				p.wakeOne()
				p.mtx.Unlock()
				return nil, err
			}
			if p.closing {
				p.mtx.Unlock()
				c.Disconnect()
				return nil, ErrPoolClosed
			}
			p.free = append(p.free, c)
			continue
		}

		if len(p.free) > 0 {
			c := p.free[0]
			p.free[0] = nil
			p.free = p.free[1:]
			p.inUse[c] = struct{}{}
			p.mtx.Unlock()
			return c, nil
		}

		ch := make(chan struct{})
		p.waiters = append(p.waiters, ch)
		p.mtx.Unlock()

		select {
		case <-ch:
			p.mtx.Lock()
		case <-ctx.Done():
			p.mtx.Lock()
			if !p.removeWaiter(ch) {
				// woken concurrently; pass the wake-up on
				p.wakeOne()
			}
			p.mtx.Unlock()
			return nil, ctx.Err()
		}
	}
}

// Release puts c back on the free list without closing it and wakes one
// waiter.
func (p *ConnPool) Release(c *Connection) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if _, ok := p.inUse[c]; !ok {
		glog.Warningf("release of connection %s not owned by pool", c.Id())
		return
	}
	delete(p.inUse, c)
	if p.closing {
		return
	}
	p.free = append(p.free, c)
	p.wakeOne()
}

func (p *ConnPool) wakeOne() {
	if len(p.waiters) == 0 {
		return
	}
	ch := p.waiters[0]
	p.waiters[0] = nil
	p.waiters = p.waiters[1:]
	close(ch)
}

func (p *ConnPool) removeWaiter(ch chan struct{}) bool {
	for i, w := range p.waiters {
		if w == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Close refuses further acquisitions, waits for connections being created,
// then disconnects every free and in-use connection concurrently. Calling it
// again waits for the first call to finish.
func (p *ConnPool) Close() error {
	p.mtx.Lock()
	if p.closing {
		p.mtx.Unlock()
		<-p.closed
		return nil
	}
	p.closing = true
	for len(p.waiters) > 0 {
		p.wakeOne()
	}
	for p.acquiring > 0 {
		p.drained.Wait()
	}
	conns := make([]*Connection, 0, len(p.free)+len(p.inUse))
	conns = append(conns, p.free...)
	for c := range p.inUse {
		conns = append(conns, c)
	}
	p.free = nil
	p.inUse = make(map[*Connection]struct{})
	p.mtx.Unlock()

	var g errgroup.Group
	for _, c := range conns {
		g.Go(func() error {
			c.Disconnect()
			return nil
		})
	}
	err := g.Wait()
	glog.Infof("connection pool to %s closed, %d connection(s) disconnected", p.endpoint.Addr(), len(conns))
	close(p.closed)
	return err
}

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

package cli

import (
	"context"
	"crypto/rsa"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"sirena/pkg/io"
	"sirena/pkg/keycache"
	"sirena/pkg/logging"
	"sirena/pkg/proto"
	"sirena/pkg/proto/envelope"
	"sirena/pkg/sec"
	"sirena/pkg/stats"
)

const (
	DefaultMaxRequestRetries = 5
)

type Config struct {
	Endpoint          io.ServiceEndpoint
	Outbound          io.OutboundConfig
	ClientId          uint16
	PrivateKey        string
	PrivateKeyPath    string
	CompressRequest   bool
	CompressResponse  bool
	MaxRequestRetries int
	ReadChunkSize     int
}

// Processor carries what the connections of one client share: message ids,
// the private key, the symmetric key cache and the connection source.
type Processor struct {
	endpoint   io.ServiceEndpoint
	outbound   io.OutboundConfig
	pool       *io.ConnPool
	keyCache   keycache.ISymKeyCache
	encoder    proto.Encoder
	maxRetries int
	chunkSize  int

	privateKeyInline string
	privateKeyPath   string
	keyMtx           sync.Mutex
	privateKey       *rsa.PrivateKey

	msgId atomic.Uint32
	stats *stats.Statistics
}

// NewProcessor builds a processor. A nil pool makes every acquisition dial
// a connection of its own that is closed on release. The cache, when not
// nil, sits behind an in-process tier owned by the processor. Even with a nil
// cache that tier shares a negotiated key between the processor's
// connections, so only the first connection handshakes.
func NewProcessor(conf Config, pool *io.ConnPool, cache keycache.ISymKeyCache) *Processor {
	conf.Outbound.SetDefaultIfNotDefined()
	if conf.MaxRequestRetries <= 0 {
		conf.MaxRequestRetries = DefaultMaxRequestRetries
	}
	if conf.ReadChunkSize <= 0 {
		conf.ReadChunkSize = proto.DefaultReadChunkSize
	}
	p := &Processor{
		endpoint: conf.Endpoint,
		outbound: conf.Outbound,
		pool:     pool,
		keyCache: keycache.NewTiered(keycache.NewMemory(), cache),
		encoder: proto.Encoder{
			ClientId:         conf.ClientId,
			CompressRequest:  conf.CompressRequest,
			AcceptCompressed: conf.CompressResponse,
		},
		maxRetries:       conf.MaxRequestRetries,
		chunkSize:        conf.ReadChunkSize,
		privateKeyInline: conf.PrivateKey,
		privateKeyPath:   conf.PrivateKeyPath,
		stats:            stats.NewStatistics(),
	}
	glog.Infof("sirena processor %s", logging.NewKVBufferForLog().
		AddAddr(conf.Endpoint.Addr()).
		AddInt([]byte("client_id"), int(conf.ClientId)).
		AddInt([]byte("pooled"), boolToInt(p.IsPooled())).
		AddInt([]byte("max_retries"), conf.MaxRequestRetries).String())
	return p
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (p *Processor) nextMessageId() uint32 {
	return p.msgId.Add(1)
}

// IsPooled reports whether sessions come from a connection pool.
func (p *Processor) IsPooled() bool {
	return p.pool != nil
}

func (p *Processor) Stats() *stats.Statistics {
	return p.stats
}

func (p *Processor) loadPrivateKey() (*rsa.PrivateKey, error) {
	p.keyMtx.Lock()
	defer p.keyMtx.Unlock()
	if p.privateKey == nil {
		key, err := sec.LoadPrivateKey(p.privateKeyInline, p.privateKeyPath)
		if err != nil {
			return nil, NewError(KindConfig, "load private key", err)
		}
		p.privateKey = key
	}
	return p.privateKey, nil
}

// Acquire returns a session on a connected connection, taken from the pool
// when there is one.
func (p *Processor) Acquire(ctx context.Context) (*Session, error) {
	var c *io.Connection
	if p.IsPooled() {
		var err error
		if c, err = p.pool.Acquire(ctx); err != nil {
			return nil, transportError("acquire connection", err)
		}
	} else {
		c = io.NewConnection(p.endpoint, p.outbound)
		if err := c.Connect(ctx); err != nil {
			return nil, transportError("connect", err)
		}
	}
	return newSession(p, c), nil
}

// Do runs fn on one acquired connection and releases it on every exit path.
func (p *Processor) Do(ctx context.Context, fn func(*Session) error) error {
	s, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer s.Release()
	return fn(s)
}

func (p *Processor) Query(ctx context.Context, request envelope.IRequest) (result *Result, err error) {
	err = p.Do(ctx, func(s *Session) error {
		result, err = s.Query(ctx, request)
		return err
	})
	return
}

func (p *Processor) BatchQuery(ctx context.Context, requests []envelope.IRequest) (results []*Result, err error) {
	err = p.Do(ctx, func(s *Session) error {
		results, err = s.BatchQuery(ctx, requests)
		return err
	})
	return
}

// Close releases the processor's own cache tier. A shared pool and a shared
// external cache are closed by their owner.
func (p *Processor) Close() error {
	return p.keyCache.Close()
}

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

package client

import (
	"context"
	"errors"
	"strconv"

	"github.com/golang/glog"

	"sirena/internal/cli"
	"sirena/pkg/io"
	"sirena/pkg/keycache"
	"sirena/pkg/logging"
	"sirena/pkg/logging/otel"
	"sirena/pkg/proto/envelope"
	"sirena/pkg/stats"
)

// Resources are shared by several clients. A nil field is created from the
// Config and owned by the client.
type Resources struct {
	Pool     *io.ConnPool
	KeyCache keycache.ISymKeyCache
}

type clientImplT struct {
	config    Config
	processor *cli.Processor

	ownedPool  *io.ConnPool
	ownedCache keycache.ISymKeyCache
}

type sessionT struct {
	session *cli.Session
}

func New(conf Config) (IClient, error) {
	return NewWithResources(conf, Resources{})
}

func NewWithResources(conf Config, res Resources) (IClient, error) {
	if err := conf.validate(); err != nil {
		return nil, err
	}
	glog.Infof("client cfg: host=%s port=%d client_id=%d pool=%v cache=%q",
		conf.Host, conf.Port, conf.ClientId, conf.UsePool || res.Pool != nil, conf.KeyCacheURL)

	client := &clientImplT{config: conf}
	pool := res.Pool
	if pool == nil && conf.UsePool {
		pool = io.NewConnPool(conf.endpoint(), conf.Outbound, conf.Pool)
		client.ownedPool = pool
	}
	cache := res.KeyCache
	if cache == nil && conf.KeyCacheURL != "" {
		var err error
		if cache, err = keycache.Open(conf.KeyCacheURL, strconv.Itoa(int(conf.ClientId))); err != nil {
			if client.ownedPool != nil {
				client.ownedPool.Close()
			}
			return nil, cli.NewError(cli.KindConfig, "key cache", err)
		}
		client.ownedCache = cache
	}
	if conf.OTEL.Enabled {
		otel.Initialize(&conf.OTEL)
	}
	client.processor = cli.NewProcessor(cli.Config{
		Endpoint:          conf.endpoint(),
		Outbound:          conf.Outbound,
		ClientId:          conf.ClientId,
		PrivateKey:        conf.PrivateKey,
		PrivateKeyPath:    conf.PrivateKeyPath,
		CompressRequest:   conf.CompressRequest,
		CompressResponse:  conf.CompressResponse,
		MaxRequestRetries: conf.MaxRequestRetries,
		ReadChunkSize:     conf.ReadChunkSize,
	}, pool, cache)
	return client, nil
}

func (c *clientImplT) Query(ctx context.Context, request envelope.IRequest, opts ...IOption) (*Response, error) {
	options := newOptionData(opts...)
	ctx, cancel := options.context(ctx)
	defer cancel()
	result, err := c.processor.Query(ctx, request)
	return toResponse(request.MethodName(), result, err, options)
}

func (c *clientImplT) BatchQuery(ctx context.Context, requests []envelope.IRequest, opts ...IOption) ([]*Response, error) {
	options := newOptionData(opts...)
	ctx, cancel := options.context(ctx)
	defer cancel()
	results, err := c.processor.BatchQuery(ctx, requests)
	return toResponses(results, err)
}

func (c *clientImplT) QueryAsync(ctx context.Context, request envelope.IRequest, opts ...IOption) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		resp, err := c.Query(ctx, request, opts...)
		ch <- AsyncResult{Response: resp, Err: err}
		close(ch)
	}()
	return ch
}

func (c *clientImplT) Do(ctx context.Context, fn func(ISession) error) error {
	return c.processor.Do(ctx, func(s *cli.Session) error {
		return fn(&sessionT{session: s})
	})
}

func (c *clientImplT) Stats() *stats.Statistics {
	return c.processor.Stats()
}

func (c *clientImplT) Close() error {
	errs := []error{c.processor.Close()}
	if c.ownedPool != nil {
		errs = append(errs, c.ownedPool.Close())
	}
	if c.ownedCache != nil {
		errs = append(errs, c.ownedCache.Close())
	}
	return errors.Join(errs...)
}

func (s *sessionT) Query(ctx context.Context, request envelope.IRequest, opts ...IOption) (*Response, error) {
	options := newOptionData(opts...)
	ctx, cancel := options.context(ctx)
	defer cancel()
	result, err := s.session.Query(ctx, request)
	return toResponse(request.MethodName(), result, err, options)
}

func (s *sessionT) BatchQuery(ctx context.Context, requests []envelope.IRequest, opts ...IOption) ([]*Response, error) {
	options := newOptionData(opts...)
	ctx, cancel := options.context(ctx)
	defer cancel()
	results, err := s.session.BatchQuery(ctx, requests)
	return toResponses(results, err)
}

func (s *sessionT) Handshake(ctx context.Context, force bool) error {
	return s.session.Handshake(ctx, force)
}

func newResponse(r *cli.Result) *Response {
	if r == nil {
		return nil
	}
	resp := &Response{Method: r.Method, Answer: r.Answer}
	if r.Response != nil {
		resp.MessageId = r.Response.MessageId
		resp.KeyId = r.Response.SymKeyId
		resp.Payload = r.Response.Payload
	}
	return resp
}

func toResponse(method string, result *cli.Result, err error, options *optionData) (*Response, error) {
	if err != nil {
		logError(method, err)
		return nil, err
	}
	resp := newResponse(result)
	if !options.silent {
		if err = resp.Err(); err != nil {
			logError(method, err)
			return resp, err
		}
	}
	return resp, nil
}

// toResponses keeps the settled answers of an exhausted batch.
func toResponses(results []*cli.Result, err error) ([]*Response, error) {
	if err != nil {
		logError(batchName, err)
		if results == nil {
			return nil, err
		}
	}
	responses := make([]*Response, len(results))
	for i, r := range results {
		responses[i] = newResponse(r)
	}
	return responses, err
}

const batchName = "batch"

func logError(method string, err error) {
	if glog.V(1) {
		glog.Infof("%s", logging.NewKVBufferForLog().AddMethod(method).AddError(err).String())
	}
}

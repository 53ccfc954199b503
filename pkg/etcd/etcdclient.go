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

package etcd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
)

var (
	errNotInitialized = errors.New("etcd client not initialized")
)

// etcd client wrapper. All keys are relative to keyPrefix.
type EtcdClient struct {
	config    Config
	keyPrefix string
	client    *clientv3.Client
}

func NewEtcdClient(cfg *Config, name string) (*EtcdClient, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("etcd: no endpoints configured")
	}

	var client *clientv3.Client
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = cfg.MaxConnectBackoff.Duration
	b.MaxElapsedTime = 0
	b.Reset()

	op := func() (err error) {
		client, err = clientv3.New(cfg.Config)
		return
	}
	notify := func(err error, wait time.Duration) {
		glog.Warningf("etcd: %v. Retry in %s ...", err, wait)
	}
	if err := backoff.RetryNotify(op, backoff.WithMaxRetries(b, uint64(cfg.MaxConnectAttempts-1)), notify); err != nil {
		glog.Warningf("etcd: %v.", err)
		return nil, err
	}

	etcdcli := &EtcdClient{
		client: client,
		config: *cfg,
	}
	etcdcli.keyPrefix = cfg.EtcdKeyPrefix + name + TagCompDelimiter
	etcdcli.client.KV = namespace.NewKV(client.KV, etcdcli.keyPrefix)
	etcdcli.client.Lease = namespace.NewLease(client.Lease, etcdcli.keyPrefix)
	return etcdcli, nil
}

func (e *EtcdClient) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

func (e *EtcdClient) KeyPrefix() string {
	return e.keyPrefix
}

func (e *EtcdClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.RequestTimeout.Duration)
}

// GetValues reads every key under the namespace in one round trip. Missing
// keys are absent from the map.
func (e *EtcdClient) GetValues(ctx context.Context) (values map[string][]byte, err error) {
	if e.client == nil {
		err = errNotInitialized
		return
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var resp *clientv3.GetResponse
	if resp, err = e.client.Get(ctx, "", clientv3.WithPrefix()); err != nil {
		glog.Errorf("etcd get %s: %v", e.keyPrefix, err)
		return
	}
	values = make(map[string][]byte, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		values[string(kv.Key)] = kv.Value
	}
	return
}

// PutValuesWithTTL writes all pairs in one transaction, attached to a lease
// that expires after ttl.
func (e *EtcdClient) PutValuesWithTTL(ctx context.Context, values map[string][]byte, ttl time.Duration) (err error) {
	if e.client == nil {
		err = errNotInitialized
		return
	}
	seconds := int64(ttl / time.Second)
	if seconds <= 0 {
		return fmt.Errorf("etcd put: ttl %s too short", ttl)
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	lease, err := e.client.Grant(ctx, seconds)
	if err != nil {
		glog.Errorf("etcd grant: %v", err)
		return
	}
	ops := make([]clientv3.Op, 0, len(values))
	for k, v := range values {
		ops = append(ops, clientv3.OpPut(k, string(v), clientv3.WithLease(lease.ID)))
	}
	if _, err = e.client.Txn(ctx).Then(ops...).Commit(); err != nil {
		glog.Errorf("etcd txn aborted: %v", err)
		return
	}
	if glog.V(2) {
		glog.Infof("etcd put: prefix=%s keys=%d ttl=%ds", e.keyPrefix, len(values), seconds)
	}
	return
}

// DeleteAll removes every key under the namespace.
func (e *EtcdClient) DeleteAll(ctx context.Context) (err error) {
	if e.client == nil {
		err = errNotInitialized
		return
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if _, err = e.client.Delete(ctx, "", clientv3.WithPrefix()); err != nil {
		glog.Errorf("etcd delete %s: %v", e.keyPrefix, err)
	}
	return
}

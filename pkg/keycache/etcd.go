package keycache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"sirena/pkg/etcd"
	"sirena/pkg/util"
)

// Etcd shares the key between processes through etcd. Entries live on a
// lease that runs out at the entry expiry.
type Etcd struct {
	config    *etcd.Config
	namespace string

	mtx    sync.Mutex
	client *etcd.EtcdClient
}

func NewEtcd(config *etcd.Config, namespace string) *Etcd {
	return &Etcd{config: config, namespace: namespace}
}

func (c *Etcd) SpinUp(context.Context) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.client != nil {
		return nil
	}
	client, err := etcd.NewEtcdClient(c.config, c.namespace)
	if err != nil {
		return fmt.Errorf("key cache: %w", err)
	}
	c.client = client
	return nil
}

func (c *Etcd) getClient() *etcd.EtcdClient {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.client
}

func (c *Etcd) IsAvailable() bool {
	return c.getClient() != nil
}

func (c *Etcd) Get(ctx context.Context) (e Entry, found bool, err error) {
	client := c.getClient()
	if client == nil {
		return
	}
	var values map[string][]byte
	if values, err = client.GetValues(ctx); err != nil {
		return
	}
	seed, ok := values[etcd.TagSymKeySeed]
	if !ok {
		return
	}
	id, err := strconv.ParseUint(string(values[etcd.TagSymKeyId]), 10, 32)
	if err != nil {
		return e, false, fmt.Errorf("key cache: bad key id: %w", err)
	}
	exp, _ := strconv.ParseInt(string(values[etcd.TagExpireAt]), 10, 64)
	if exp != 0 && exp <= time.Now().Unix() {
		return
	}
	return Entry{Seed: seed, KeyId: uint32(id), ExpireAt: exp}, true, nil
}

func (c *Etcd) Set(ctx context.Context, e Entry) error {
	client := c.getClient()
	if client == nil {
		return nil
	}
	ttl := util.TimeToLive(e.ExpireAt)
	if ttl < time.Second {
		return nil
	}
	return client.PutValuesWithTTL(ctx, map[string][]byte{
		etcd.TagSymKeySeed: e.Seed,
		etcd.TagSymKeyId:   []byte(strconv.FormatUint(uint64(e.KeyId), 10)),
		etcd.TagExpireAt:   []byte(strconv.FormatInt(e.ExpireAt, 10)),
	}, ttl)
}

func (c *Etcd) Purge(ctx context.Context) error {
	client := c.getClient()
	if client == nil {
		return nil
	}
	return client.DeleteAll(ctx)
}

func (c *Etcd) Close() error {
	c.mtx.Lock()
	client := c.client
	c.client = nil
	c.mtx.Unlock()
	if client == nil {
		return nil
	}
	return client.Close()
}

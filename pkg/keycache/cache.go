// Package keycache keeps the negotiated symmetric session key outside a
// single connection so that later sessions can skip the handshake.
package keycache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"sirena/pkg/etcd"
)

// KeyTTL expires cached keys before the gateway drops them after 1.5 hours.
const KeyTTL = time.Duration(1.5 * 59 * float64(time.Minute))

var ErrUnsupportedScheme = errors.New("unsupported key cache scheme")

// Entry is a cached symmetric key. ExpireAt is in unix seconds.
type Entry struct {
	Seed     []byte
	KeyId    uint32
	ExpireAt int64
}

type ISymKeyCache interface {
	// SpinUp prepares the backend. It is idempotent.
	SpinUp(ctx context.Context) error
	IsAvailable() bool
	Get(ctx context.Context) (e Entry, found bool, err error)
	Set(ctx context.Context, e Entry) error
	Purge(ctx context.Context) error
	Close() error
}

// Open builds a cache from a URL:
//
//	mem://
//	etcd://host1:2379,host2:2379[/prefix]
//	badger:///path/to/dir   (badger:// keeps the store in memory)
//
// namespace separates the keys of different client ids sharing a backend.
func Open(rawURL string, namespace string) (ISymKeyCache, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("key cache url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "mem", "memory":
		return NewMemory(), nil
	case "etcd":
		if u.Host == "" {
			return nil, fmt.Errorf("key cache url %q: no etcd endpoints", rawURL)
		}
		cfg := etcd.NewConfig(strings.Split(u.Host, ",")...)
		if prefix := strings.Trim(u.Path, "/"); prefix != "" {
			cfg.EtcdKeyPrefix = prefix + "."
		}
		return NewEtcd(cfg, namespace), nil
	case "badger":
		return NewBadger(u.Path, namespace), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
}

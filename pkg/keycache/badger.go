package keycache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/golang/glog"

	"sirena/pkg/util"
)

// Badger keeps the key in a local badger store so that it survives process
// restarts on one host. An empty path keeps the store in memory.
type Badger struct {
	path    string
	keySeed []byte
	keyId   []byte

	mtx sync.Mutex
	db  *badger.DB
}

func NewBadger(path string, namespace string) *Badger {
	return &Badger{
		path:    path,
		keySeed: []byte(namespace + "/sym_key_seed"),
		keyId:   []byte(namespace + "/sym_key_id"),
	}
}

func (c *Badger) SpinUp(context.Context) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.db != nil {
		return nil
	}
	opts := badger.DefaultOptions(c.path)
	if c.path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("key cache: open badger %q: %w", c.path, err)
	}
	glog.Infof("key cache: badger store opened at %q", c.path)
	c.db = db
	return nil
}

func (c *Badger) getDB() *badger.DB {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.db
}

func (c *Badger) IsAvailable() bool {
	return c.getDB() != nil
}

func (c *Badger) Get(context.Context) (e Entry, found bool, err error) {
	db := c.getDB()
	if db == nil {
		return
	}
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.keySeed)
		if err != nil {
			return err
		}
		if e.Seed, err = item.ValueCopy(nil); err != nil {
			return err
		}
		e.ExpireAt = int64(item.ExpiresAt())

		if item, err = txn.Get(c.keyId); err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 4 {
				return fmt.Errorf("key cache: bad key id of %d bytes", len(val))
			}
			e.KeyId = binary.BigEndian.Uint32(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (c *Badger) Set(_ context.Context, e Entry) error {
	db := c.getDB()
	if db == nil {
		return nil
	}
	ttl := util.TimeToLive(e.ExpireAt)
	if ttl < time.Second {
		return nil
	}
	var id [4]byte
	binary.BigEndian.PutUint32(id[:], e.KeyId)
	return db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry(c.keySeed, e.Seed).WithTTL(ttl)); err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(c.keyId, id[:]).WithTTL(ttl))
	})
}

func (c *Badger) Purge(context.Context) error {
	db := c.getDB()
	if db == nil {
		return nil
	}
	return db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(c.keySeed); err != nil {
			return err
		}
		return txn.Delete(c.keyId)
	})
}

func (c *Badger) Close() error {
	c.mtx.Lock()
	db := c.db
	c.db = nil
	c.mtx.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}

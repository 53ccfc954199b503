package keycache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCacheContract(t *testing.T, c ISymKeyCache) {
	ctx := context.Background()
	require.NoError(t, c.SpinUp(ctx))
	require.NoError(t, c.SpinUp(ctx))
	require.True(t, c.IsAvailable())

	_, found, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	exp := time.Now().Add(KeyTTL).Unix()
	require.NoError(t, c.Set(ctx, Entry{Seed: []byte("12345678"), KeyId: 77, ExpireAt: exp}))
	e, found, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("12345678"), e.Seed)
	assert.Equal(t, uint32(77), e.KeyId)
	assert.InDelta(t, exp, e.ExpireAt, 1)

	require.NoError(t, c.Purge(ctx))
	_, found, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	// already expired entries are not kept
	require.NoError(t, c.Set(ctx, Entry{Seed: []byte("87654321"), KeyId: 1, ExpireAt: time.Now().Add(-time.Minute).Unix()}))
	_, found, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Close())
}

func TestKeyTTL(t *testing.T) {
	assert.Equal(t, 5310*time.Second, KeyTTL)
	assert.Less(t, KeyTTL, 90*time.Minute)
}

func TestMemory(t *testing.T) {
	testCacheContract(t, NewMemory())
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, Entry{Seed: []byte("12345678"), KeyId: 1, ExpireAt: 1060}))
	_, found, _ := m.Get(ctx)
	assert.True(t, found)
	now = now.Add(time.Minute)
	_, found, _ = m.Get(ctx)
	assert.False(t, found)
}

func TestBadgerInMemory(t *testing.T) {
	testCacheContract(t, NewBadger("", "client_1"))
}

func TestBadgerOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).Unix()

	c := NewBadger(dir, "client_1")
	require.NoError(t, c.SpinUp(ctx))
	require.NoError(t, c.Set(ctx, Entry{Seed: []byte("12345678"), KeyId: 9, ExpireAt: exp}))
	require.NoError(t, c.Close())

	reopened := NewBadger(dir, "client_1")
	require.NoError(t, reopened.SpinUp(ctx))
	defer reopened.Close()
	e, found, err := reopened.Get(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint32(9), e.KeyId)

	other := NewBadger("", "client_2")
	assert.False(t, other.IsAvailable())
	_, found, err = other.Get(ctx)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestTiered(t *testing.T) {
	testCacheContract(t, NewTiered(NewMemory(), NewBadger("", "client_1")))
}

func TestTieredRefillsFront(t *testing.T) {
	ctx := context.Background()
	front, back := NewMemory(), NewMemory()
	c := NewTiered(front, back)
	require.NoError(t, back.Set(ctx, Entry{Seed: []byte("12345678"), KeyId: 5, ExpireAt: time.Now().Add(time.Hour).Unix()}))

	e, found, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint32(5), e.KeyId)

	e, found, _ = front.Get(ctx)
	assert.True(t, found)
	assert.Equal(t, uint32(5), e.KeyId)

	require.NoError(t, c.Purge(ctx))
	_, found, _ = back.Get(ctx)
	assert.False(t, found)
	assert.Same(t, front, NewTiered(front, nil))
}

func TestOpen(t *testing.T) {
	c, err := Open("mem://", "client_1")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = Open("etcd://10.0.0.1:2379,10.0.0.2:2379/sirena-keys", "client_1")
	require.NoError(t, err)
	ec := c.(*Etcd)
	assert.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"}, ec.config.Endpoints)
	assert.Equal(t, "sirena-keys.", ec.config.EtcdKeyPrefix)
	assert.False(t, ec.IsAvailable())

	c, err = Open("badger:///var/lib/sirena/keys", "client_1")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/sirena/keys", c.(*Badger).path)

	_, err = Open("redis://localhost:6379", "client_1")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	_, err = Open("etcd:///prefix", "client_1")
	assert.Error(t, err)
}

package io

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolTopUpAndReuse(t *testing.T) {
	srv := newEchoServer(t)
	p := NewConnPool(srv.endpoint(), fastConfig(), PoolConfig{MinSize: 2, MaxSize: 4})
	defer p.Close()

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, c.IsConnected())
	assert.Equal(t, PoolStats{Free: 1, InUse: 1}, p.Stats())

	p.Release(c)
	assert.True(t, c.IsConnected(), "release keeps the connection open")
	assert.Equal(t, PoolStats{Free: 2}, p.Stats())

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	c3, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, c2 == c || c3 == c, "released connection is handed out again")
	p.Release(c2)
	p.Release(c3)
	assert.Eventually(t, func() bool { return srv.accepted() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, p.Stats().Free)
}

func TestPoolExhaustion(t *testing.T) {
	srv := newEchoServer(t)
	p := NewConnPool(srv.endpoint(), fastConfig(), PoolConfig{MinSize: 1, MaxSize: 1})
	defer p.Close()

	first, err := p.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan *Connection)
	go func() {
		c, err := p.Acquire(context.Background())
		assert.NoError(t, err)
		acquired <- c
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire completed before release")
	case <-time.After(100 * time.Millisecond):
	}
	assert.LessOrEqual(t, p.Stats().Size(), 1)

	p.Release(first)
	select {
	case second := <-acquired:
		assert.Same(t, first, second)
		p.Release(second)
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire did not complete after release")
	}
}

func TestPoolBound(t *testing.T) {
	srv := newEchoServer(t)
	const max = 3
	p := NewConnPool(srv.endpoint(), fastConfig(), PoolConfig{MinSize: 1, MaxSize: max})
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := p.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			assert.LessOrEqual(t, p.Stats().Size(), max)
			time.Sleep(5 * time.Millisecond)
			p.Release(c)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, srv.accepted(), max)
	assert.LessOrEqual(t, p.Stats().Size(), max)
}

func TestPoolAcquireCancelled(t *testing.T) {
	srv := newEchoServer(t)
	p := NewConnPool(srv.endpoint(), fastConfig(), PoolConfig{MinSize: 1, MaxSize: 1})
	defer p.Close()

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.Release(c)
	c, err = p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c)
}

func TestPoolDropsDeadConnections(t *testing.T) {
	srv := newEchoServer(t)
	p := NewConnPool(srv.endpoint(), fastConfig(), PoolConfig{MinSize: 1, MaxSize: 1})
	defer p.Close()

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	c.Disconnect()
	p.Release(c)

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, c, c2)
	assert.True(t, c2.IsConnected())
	p.Release(c2)
}

func TestPoolClose(t *testing.T) {
	srv := newEchoServer(t)
	p := NewConnPool(srv.endpoint(), fastConfig(), PoolConfig{MinSize: 2, MaxSize: 2})

	inUse, err := p.Acquire(context.Background())
	require.NoError(t, err)
	free, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(free)

	waiting := make(chan error)
	blocker, err := p.Acquire(context.Background())
	require.NoError(t, err)
	go func() {
		_, err := p.Acquire(context.Background())
		waiting <- err
	}()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.ErrorIs(t, <-waiting, ErrPoolClosed)
	assert.False(t, inUse.IsConnected())
	assert.False(t, blocker.IsConnected())

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
	p.Release(inUse)
	assert.Equal(t, PoolStats{}, p.Stats())
}

func TestPoolConnectError(t *testing.T) {
	p := NewConnPool(closedEndpoint(t), fastConfig(), PoolConfig{MinSize: 1, MaxSize: 1})
	defer p.Close()
	_, err := p.Acquire(context.Background())
	assert.Error(t, err)
	assert.Equal(t, PoolStats{}, p.Stats())
}

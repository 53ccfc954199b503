package io

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sirena/pkg/util"
)

func TestConnectionLifecycle(t *testing.T) {
	srv := newEchoServer(t)
	c := NewConnection(srv.endpoint(), fastConfig())
	assert.Equal(t, StateDisconnected, c.State())
	assert.NotEmpty(t, c.Id())

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())
	require.NoError(t, c.Connect(context.Background()))
	assert.Eventually(t, func() bool { return srv.accepted() == 1 }, time.Second, 10*time.Millisecond)

	_, err := c.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping"[:n], string(buf[:n]))

	c.Disconnect()
	c.Disconnect()
	assert.Equal(t, StateDisconnected, c.State())
	_, err = c.Read(buf)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectionConnectFails(t *testing.T) {
	c := NewConnection(closedEndpoint(t), fastConfig())
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestConnectionReadTimeoutDisconnects(t *testing.T) {
	srv := newEchoServer(t)
	conf := fastConfig()
	conf.ReadTimeout = util.Duration{Duration: 50 * time.Millisecond}
	c := NewConnection(srv.endpoint(), conf)
	require.NoError(t, c.Connect(context.Background()))

	_, err := c.Read(make([]byte, 1))
	require.Error(t, err)
	var ne net.Error
	assert.True(t, errors.As(err, &ne) && ne.Timeout())
	assert.False(t, c.IsConnected())
}

func TestConnectionBindCancels(t *testing.T) {
	srv := newEchoServer(t)
	c := NewConnection(srv.endpoint(), fastConfig())
	require.NoError(t, c.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	release := c.Bind(ctx)
	defer release()
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := c.Read(make([]byte, 1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.IsConnected())
}

func TestConnectionBindBeforeConnect(t *testing.T) {
	srv := newEchoServer(t)
	conf := fastConfig()
	conf.ReadTimeout = util.Duration{Duration: 3 * time.Second}
	c := NewConnection(srv.endpoint(), conf)

	ctx, cancel := context.WithCancel(context.Background())
	release := c.Bind(ctx)
	defer release()
	require.NoError(t, c.Connect(context.Background()))
	time.AfterFunc(100*time.Millisecond, cancel)

	timeStart := time.Now()
	_, err := c.Read(make([]byte, 1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(timeStart), time.Second)
	assert.False(t, c.IsConnected())
}

func TestConnectionAttachment(t *testing.T) {
	c := NewConnection(ServiceEndpoint{Host: "localhost", Port: 1}, OutboundConfig{})
	assert.Nil(t, c.Attachment())
	c.SetAttachment("keys")
	assert.Equal(t, "keys", c.Attachment())
}

func TestServiceEndpoint(t *testing.T) {
	var ep ServiceEndpoint
	require.NoError(t, ep.SetFromConnString("gateway.example:34323"))
	assert.Equal(t, "gateway.example", ep.Host)
	assert.Equal(t, 34323, ep.Port)
	assert.Equal(t, "gateway.example:34323", ep.Addr())

	assert.Error(t, ep.SetFromConnString("gateway"))
	assert.Error(t, (&ServiceEndpoint{Host: "h"}).Validate())
	assert.Error(t, (&ServiceEndpoint{Port: 1}).Validate())
}

func TestOutboundConfigDefaults(t *testing.T) {
	var conf OutboundConfig
	assert.True(t, conf.SetDefaultIfNotDefined())
	assert.Equal(t, DefaultOutboundConfig, conf)
	assert.False(t, conf.SetDefaultIfNotDefined())

	pc := PoolConfig{MinSize: 8, MaxSize: 3}
	pc.SetDefaultIfNotDefined()
	assert.Equal(t, PoolConfig{MinSize: 3, MaxSize: 3}, pc)
}

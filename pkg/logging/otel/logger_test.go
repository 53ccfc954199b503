package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	otelCfg "sirena/pkg/logging/otel/config"
	"sirena/pkg/util"
)

func TestRecordWhenDisabled(t *testing.T) {
	require.NoError(t, Initialize(&otelCfg.Config{Enabled: false}))
	assert.False(t, IsEnabled())
	RecordRequest("order", StatusSuccess, time.Millisecond)
	RecordConnect("127.0.0.1:1", StatusError, time.Millisecond)
	RecordRetry("order", RetryNotProcessed)
	RecordHandshake(HandshakeCached)
}

func TestExportToCollector(t *testing.T) {
	var posts int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/v1/metrics" {
			atomic.AddInt32(&posts, 1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	u, err := url.Parse(collector.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	c := &otelCfg.Config{
		Enabled:    true,
		Host:       u.Hostname(),
		Port:       uint32(port),
		Resolution: util.Duration{Duration: time.Hour},
	}
	require.NoError(t, Initialize(c))
	assert.True(t, IsEnabled())

	RecordRequest("order", StatusSuccess, 12*time.Millisecond)
	RecordRetry("order", RetryKeyRejected)
	RecordHandshake(HandshakeNetwork)
	RecordConnect(u.Host, StatusSuccess, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, Shutdown(ctx))
	assert.False(t, IsEnabled())
	assert.GreaterOrEqual(t, atomic.LoadInt32(&posts), int32(1))
}

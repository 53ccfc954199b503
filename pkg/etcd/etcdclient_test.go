package etcd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("10.0.0.1:2379", "10.0.0.2:2379")
	assert.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"}, cfg.Endpoints)
	assert.Equal(t, "sirena.", cfg.EtcdKeyPrefix)
	assert.Equal(t, time.Second, cfg.RequestTimeout.Duration)
	assert.Empty(t, DefaultConfig().Endpoints, "default config is not modified")
}

func TestNewEtcdClientNoEndpoints(t *testing.T) {
	_, err := NewEtcdClient(NewConfig(), "client_1")
	assert.Error(t, err)
}

func TestUninitializedClient(t *testing.T) {
	var e EtcdClient
	ctx := context.Background()
	_, err := e.GetValues(ctx)
	assert.ErrorIs(t, err, errNotInitialized)
	assert.ErrorIs(t, e.PutValuesWithTTL(ctx, map[string][]byte{"k": nil}, time.Minute), errNotInitialized)
	assert.ErrorIs(t, e.DeleteAll(ctx), errNotInitialized)
	assert.NoError(t, e.Close())
}

package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/budget-bot/pkg/config"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestNew_ConnectsAndInstruments(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := New(ctx, config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	before := counterValue(t, redisRequestsTotal.WithLabelValues("get"))
	missesBefore := counterValue(t, redisErrorsTotal.WithLabelValues("get"))

	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	value, err := client.Get(ctx, "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	_, _ = client.Get(ctx, "missing").Result()

	assert.Equal(t, before+2, counterValue(t, redisRequestsTotal.WithLabelValues("get")))
	assert.Equal(t, missesBefore, counterValue(t, redisErrorsTotal.WithLabelValues("get")))
	assert.NoError(t, client.HealthCheck(ctx))
}

func TestNew_FailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

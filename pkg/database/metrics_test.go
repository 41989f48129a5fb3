package database

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollector_DescribeAndCollect(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, client.Set(t.Context(), "k", "v", 0).Err())

	c := NewPoolStatsCollector(client, "storefront")

	descs := make(chan *prometheus.Desc, 10)
	c.Describe(descs)
	close(descs)
	assert.Len(t, descs, 6)

	metrics := make(chan prometheus.Metric, 10)
	c.Collect(metrics)
	close(metrics)
	assert.Len(t, metrics, 6)
}

func TestPoolStatsCollector_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, reg.Register(NewPoolStatsCollector(client, "storefront")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "redis_pool_total_connections")
}

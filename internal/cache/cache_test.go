package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/actuarial-risk-core/pkg/models"
)

type lookups struct {
	hits, misses int
}

func (l *lookups) RecordCacheLookup(_ string, hit bool) {
	if hit {
		l.hits++
	} else {
		l.misses++
	}
}

func sampleModel() *models.QuartileModel {
	return &models.QuartileModel{
		Simulations: 100,
		Alpha:       2,
		Syndicates: []models.QuartileProbability{{
			SyndicateKey:  models.SyndicateKey{ManagingAgent: "Agent", SyndicateCode: 33},
			Probabilities: [4]float64{0.25, 0.25, 0.3, 0.2},
		}},
	}
}

func TestKeyForCoversEveryParameter(t *testing.T) {
	base := Key{ClassOfBiz: "Property", Lookback: 5, CurrentYear: 2023, NetThreshold: 1e6, Alpha: 2, Simulations: 1000, Seed: 7}
	seen := map[string]bool{KeyFor(base): true}

	variants := []func(k *Key){
		func(k *Key) { k.Version = 2 },
		func(k *Key) { k.ClassOfBiz = "Marine" },
		func(k *Key) { k.Lookback = 6 },
		func(k *Key) { k.CurrentYear = 2024 },
		func(k *Key) { k.NetThreshold = 2e6 },
		func(k *Key) { k.Alpha = 2.5 },
		func(k *Key) { k.Simulations = 2000 },
		func(k *Key) { k.Seed = 8 },
		func(k *Key) { k.Weights = map[int]float64{2022: 2} },
	}
	for _, mutate := range variants {
		k := base
		mutate(&k)
		key := KeyFor(k)
		assert.False(t, seen[key], key)
		seen[key] = true
	}
}

func TestKeyForWeightsOrderIndependent(t *testing.T) {
	a := Key{Weights: map[int]float64{2021: 1, 2022: 2, 2023: 3}}
	b := Key{Weights: map[int]float64{2023: 3, 2021: 1, 2022: 2}}
	assert.Equal(t, KeyFor(a), KeyFor(b))
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	rec := &lookups{}
	c := NewMemory(MemoryConfig{})
	c.SetRecorder(rec)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", sampleModel()))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 100, got.Simulations)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Invalidate(ctx))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 2, rec.misses)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(MemoryConfig{MaxEntries: 2})

	require.NoError(t, c.Set(ctx, "a", sampleModel()))
	require.NoError(t, c.Set(ctx, "b", sampleModel()))
	_, ok, _ := c.Get(ctx, "a")
	require.True(t, ok)

	require.NoError(t, c.Set(ctx, "c", sampleModel()))
	assert.Equal(t, 2, c.Len())

	_, ok, _ = c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemoryCacheEntriesExpire(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(MemoryConfig{TTL: 20 * time.Millisecond})

	require.NoError(t, c.Set(ctx, "k", sampleModel()))
	_, ok, _ := c.Get(ctx, "k")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	redisServer := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	defer client.Close()

	rec := &lookups{}
	c := NewRedis(client, "", time.Hour)
	c.SetRecorder(rec)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", sampleModel()))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Syndicates, 1)
	assert.Equal(t, 33, got.Syndicates[0].SyndicateCode)
	assert.InDelta(t, 1, got.Syndicates[0].Sum(), 1e-12)

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// a second instance sees the same generation
	other := NewRedis(client, "", time.Hour)
	require.NoError(t, other.Set(ctx, "k", sampleModel()))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 2, rec.hits)
	assert.Equal(t, 2, rec.misses)
}

func TestRedisCacheEntriesExpire(t *testing.T) {
	ctx := context.Background()
	redisServer := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	defer client.Close()

	c := NewRedis(client, "test", time.Minute)
	require.NoError(t, c.Set(ctx, "k", sampleModel()))
	redisServer.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

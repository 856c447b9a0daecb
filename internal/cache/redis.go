package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rzzdr/actuarial-risk-core/pkg/models"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
)

// DefaultPrefix namespaces the cache keys
const DefaultPrefix = "actuarial:quartiles"

// Redis is a model cache shared between instances. Invalidation bumps a
// generation counter so stale entries become unreachable and age out by TTL.
type Redis struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	recorder Recorder
	log      *logger.Logger
}

var _ ModelCache = (*Redis)(nil)

// NewRedis creates a cache on top of an existing client
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		log:    logger.GetLogger("cache.redis"),
	}
}

// SetRecorder attaches a metrics recorder
func (r *Redis) SetRecorder(rec Recorder) {
	r.recorder = rec
}

func (r *Redis) generationKey() string {
	return r.prefix + ":generation"
}

func (r *Redis) generation(ctx context.Context) (string, error) {
	gen, err := r.client.Get(ctx, r.generationKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "0", nil
		}
		return "", errors.Wrap(err, "failed to read cache generation")
	}
	return gen, nil
}

func (r *Redis) entryKey(gen, key string) string {
	return r.prefix + ":" + gen + ":" + key
}

// Get returns the cached model for key in the current generation
func (r *Redis) Get(ctx context.Context, key string) (*models.QuartileModel, bool, error) {
	gen, err := r.generation(ctx)
	if err != nil {
		return nil, false, err
	}

	data, err := r.client.Get(ctx, r.entryKey(gen, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.record(false)
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "failed to get model from cache")
	}

	var model models.QuartileModel
	if err := json.Unmarshal(data, &model); err != nil {
		r.log.Warnf("Dropping undecodable cache entry %s: %v", key, err)
		r.record(false)
		return nil, false, nil
	}

	r.record(true)
	return &model, true, nil
}

// Set stores model under key in the current generation
func (r *Redis) Set(ctx context.Context, key string, model *models.QuartileModel) error {
	gen, err := r.generation(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(model)
	if err != nil {
		return errors.Wrap(err, "failed to encode model")
	}

	if err := r.client.Set(ctx, r.entryKey(gen, key), data, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to set model in cache")
	}
	return nil
}

// Invalidate moves the cache to a new generation
func (r *Redis) Invalidate(ctx context.Context) error {
	gen, err := r.client.Incr(ctx, r.generationKey()).Result()
	if err != nil {
		return errors.Wrap(err, "failed to bump cache generation")
	}
	r.log.Infof("Cache generation advanced to %d", gen)
	return nil
}

func (r *Redis) record(hit bool) {
	if r.recorder != nil {
		r.recorder.RecordCacheLookup("redis", hit)
	}
}

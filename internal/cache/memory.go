package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rzzdr/actuarial-risk-core/pkg/models"
)

// MemoryConfig bounds the in-memory cache
type MemoryConfig struct {
	// TTL is how long an entry stays valid; zero keeps entries until evicted
	TTL time.Duration
	// MaxEntries caps the cache; the least recently used entry is evicted first
	MaxEntries int
}

// DefaultMemoryConfig returns the bounds used when none are given
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{TTL: time.Hour, MaxEntries: 256}
}

// Memory is a process-local LRU model cache with per-entry expiry
type Memory struct {
	entries  *expirable.LRU[string, *models.QuartileModel]
	recorder Recorder
}

var _ ModelCache = (*Memory)(nil)

// NewMemory creates an empty in-memory cache. A non-positive MaxEntries takes
// the default bound.
func NewMemory(config MemoryConfig) *Memory {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultMemoryConfig().MaxEntries
	}
	if config.TTL < 0 {
		config.TTL = 0
	}
	return &Memory{
		entries: expirable.NewLRU[string, *models.QuartileModel](config.MaxEntries, nil, config.TTL),
	}
}

// SetRecorder attaches a metrics recorder
func (m *Memory) SetRecorder(r Recorder) {
	m.recorder = r
}

// Get returns the cached model for key
func (m *Memory) Get(_ context.Context, key string) (*models.QuartileModel, bool, error) {
	model, ok := m.entries.Get(key)

	if m.recorder != nil {
		m.recorder.RecordCacheLookup("memory", ok)
	}
	return model, ok, nil
}

// Set stores a fully built model under key
func (m *Memory) Set(_ context.Context, key string, model *models.QuartileModel) error {
	m.entries.Add(key, model)
	return nil
}

// Invalidate drops every entry
func (m *Memory) Invalidate(_ context.Context) error {
	m.entries.Purge()
	return nil
}

// Len returns the number of cached models, expired ones included until they
// are reaped
func (m *Memory) Len() int {
	return m.entries.Len()
}

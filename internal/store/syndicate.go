package store

import (
	"context"
	"sync"

	"github.com/rzzdr/actuarial-risk-core/pkg/models"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/validation"
)

// ChangeHook is called after the dataset has been replaced
type ChangeHook func(ctx context.Context, version uint64)

// SyndicateStore owns the historical syndicate dataset. Every replacement
// bumps the version and fires the registered change hooks.
type SyndicateStore struct {
	records []models.SyndicateRecord
	version uint64
	hooks   []ChangeHook
	mu      sync.RWMutex
	log     *logger.Logger
}

// NewSyndicateStore creates an empty syndicate store
func NewSyndicateStore() *SyndicateStore {
	return &SyndicateStore{
		log: logger.GetLogger("store.syndicate"),
	}
}

// Replace swaps in a new dataset and returns its version
func (s *SyndicateStore) Replace(ctx context.Context, records []models.SyndicateRecord) (uint64, error) {
	for i := range records {
		if err := validation.Struct(records[i]); err != nil {
			return 0, errors.Wrapf(err, "record %d", i)
		}
	}

	data := make([]models.SyndicateRecord, len(records))
	copy(data, records)

	s.mu.Lock()
	s.records = data
	s.version++
	version := s.version
	hooks := make([]ChangeHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	s.log.Infof("Replaced syndicate dataset with %d records (version %d)", len(data), version)

	for _, hook := range hooks {
		hook(ctx, version)
	}
	return version, nil
}

// Records returns a copy of the current dataset
func (s *SyndicateStore) Records() []models.SyndicateRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SyndicateRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Snapshot returns the current dataset along with its version
func (s *SyndicateStore) Snapshot() ([]models.SyndicateRecord, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SyndicateRecord, len(s.records))
	copy(out, s.records)
	return out, s.version
}

// Version returns the number of replacements applied so far
func (s *SyndicateStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// OnChange registers a hook fired after every Replace
func (s *SyndicateStore) OnChange(hook ChangeHook) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

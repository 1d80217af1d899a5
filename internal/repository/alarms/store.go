package alarms

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/alarm-clock/internal/config"
	domain "github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/repository/kv"
)

// Repository defines persistence operations for the alarm set.
type Repository interface {
	Load(ctx context.Context) (*LoadResult, error)
	Save(ctx context.Context, alarms []*domain.Alarm) error
}

// LoadResult is the outcome of a Load.
type LoadResult struct {
	// Alarms are the decoded alarms in stored order.
	Alarms []*domain.Alarm
	// Skipped counts records that could not be decoded.
	Skipped int
}

// ErrPersistence wraps failures of the underlying key-value store.
var ErrPersistence = errors.New("alarm persistence failure")

// Store keeps the alarm set under one key of a kv.Store.
type Store struct {
	// kv is the host key-value store.
	kv kv.Store
	// key is the single key holding the list.
	key string
}

// NewStore creates a Store writing under key. An empty key selects config.DefaultStoreKey.
func NewStore(store kv.Store, key string) *Store {
	if key == "" {
		key = config.DefaultStoreKey
	}

	return &Store{
		kv:  store,
		key: key,
	}
}

// Key returns the storage key.
func (s *Store) Key() string {
	return s.key
}

// Save encodes every alarm and overwrites the stored list with the result.
// Nothing is written if any alarm fails to encode.
func (s *Store) Save(ctx context.Context, alarms []*domain.Alarm) error {
	records := make([]string, 0, len(alarms))

	for i, a := range alarms {
		data, err := domain.MarshalRecord(a)
		if err != nil {
			return fmt.Errorf("encode alarm %d: %w", i, err)
		}

		records = append(records, string(data))
	}

	if err := s.kv.SetList(ctx, s.key, records); err != nil {
		return fmt.Errorf("%w: write %q: %w", ErrPersistence, s.key, err)
	}

	logger.DebugKV(ctx, "Alarm set saved", "key", s.key, "count", len(records))

	return nil
}

// Load reads the stored list. An absent key yields an empty result.
// Malformed records are logged, skipped and counted.
func (s *Store) Load(ctx context.Context) (*LoadResult, error) {
	records, ok, err := s.kv.GetList(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %w", ErrPersistence, s.key, err)
	}

	result := &LoadResult{
		Alarms: make([]*domain.Alarm, 0, len(records)),
	}

	if !ok {
		logger.DebugKV(ctx, "No stored alarm set", "key", s.key)

		return result, nil
	}

	for i, record := range records {
		a, err := domain.UnmarshalRecord([]byte(record))
		if err != nil {
			result.Skipped++

			logger.WarnKV(ctx, "Skipping malformed alarm record", "key", s.key, "index", i, "error", err)

			continue
		}

		result.Alarms = append(result.Alarms, a)
	}

	logger.DebugKV(ctx, "Alarm set loaded", "key", s.key, "count", len(result.Alarms), "skipped", result.Skipped)

	return result, nil
}

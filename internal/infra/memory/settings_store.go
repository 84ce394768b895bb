package memory

import (
	"context"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
)

// SettingsStore is an in-memory implementation of app.SettingsStore.
type SettingsStore struct {
	mu     sync.RWMutex
	values map[string]domain.Setting
}

func NewSettingsStore() *SettingsStore {
	return &SettingsStore{values: make(map[string]domain.Setting)}
}

func (s *SettingsStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	setting, ok := s.values[key]
	return setting.Value, ok, nil
}

func (s *SettingsStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = domain.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return nil
}

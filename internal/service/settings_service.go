package service

import (
	"context"
	"fmt"
)

// SettingsStore is the persistence surface for runtime settings.
// Implemented by repository.ConfigRepository.
type SettingsStore interface {
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// SettingsService exposes the system_config escape hatch to admins
type SettingsService struct {
	settings SettingsStore
}

func NewSettingsService(settings SettingsStore) *SettingsService {
	return &SettingsService{settings: settings}
}

// GetAll returns every runtime setting
func (s *SettingsService) GetAll(ctx context.Context) (map[string]string, error) {
	settings, err := s.settings.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

// UpdateAll upserts the given settings
func (s *SettingsService) UpdateAll(ctx context.Context, values map[string]string) error {
	for key, value := range values {
		if err := s.settings.Set(ctx, key, value); err != nil {
			return fmt.Errorf("update setting %s: %w", key, err)
		}
	}
	return nil
}

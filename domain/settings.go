package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/switchyard/types"
)

// SettingsTable is the application settings table name.
const SettingsTable = "app_settings"

// Settings reads and writes application key/value settings.
type Settings struct {
	store Store
}

// NewSettings creates a settings facade.
func NewSettings(store Store) *Settings {
	return &Settings{store: store}
}

// All returns every setting ordered by key.
func (s *Settings) All(ctx context.Context) ([]types.Record, error) {
	return s.store.Read(ctx, SettingsTable, types.ReadOptions{
		Order: []types.Order{types.Asc("key")},
	})
}

// Get returns the value of key.
//
// Returns types.ErrNotFound if the key does not exist. A NULL value is
// returned as an empty string.
func (s *Settings) Get(ctx context.Context, key string) (string, error) {
	row, err := s.row(ctx, key)
	if err != nil {
		return "", err
	}

	switch v := row["value"].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// Set stores value under key, creating the setting if needed.
func (s *Settings) Set(ctx context.Context, key, value string) (types.Record, error) {
	row, err := s.row(ctx, key)
	switch {
	case err == nil:
		id, _ := row.ID()
		return s.store.Update(ctx, SettingsTable, id, types.Record{"value": value})
	case errors.Is(err, types.ErrNotFound):
		return s.store.Create(ctx, SettingsTable, types.Record{"key": key, "value": value})
	default:
		return nil, err
	}
}

func (s *Settings) row(ctx context.Context, key string) (types.Record, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: setting key is required", ErrInvalidArgument)
	}

	rows, err := s.store.Read(ctx, SettingsTable, types.ReadOptions{
		Filters: []types.Filter{types.Eq("key", key)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: setting %q", types.ErrNotFound, key)
	}

	return rows[0], nil
}

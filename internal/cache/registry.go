package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/i474232898/weather-lookup/internal/logger"
)

// RegistryKey is the reserved store key holding the cached-city list.
// Every other key is a city name.
const RegistryKey = "cities"

// Store is the persistent key-value store the cache is built on.
type Store interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Registry is the ordered set of city names believed to have cache entries.
// It is always rewritten in full.
type Registry struct {
	store Store
	log   logger.Logger
}

// NewRegistry returns a Registry over store.
func NewRegistry(store Store, log logger.Logger) *Registry {
	return &Registry{store: store, log: log}
}

// Load returns the registered cities in insertion order. An absent,
// unreadable or malformed registry loads as empty.
func (r *Registry) Load(ctx context.Context) []string {
	cities, err := r.load(ctx)
	if err != nil {
		r.log.Warnf("registry: %v, treating as empty", err)
		return []string{}
	}
	return cities
}

// load is Load without hiding store failures. Absent and malformed values
// load as empty with a nil error.
func (r *Registry) load(ctx context.Context) ([]string, error) {
	raw, ok, err := r.store.GetItem(ctx, RegistryKey)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if !ok {
		return []string{}, nil
	}

	var cities []string
	if err := json.Unmarshal([]byte(raw), &cities); err != nil {
		r.log.Warnf("registry: malformed value, treating as empty: %v", err)
		return []string{}, nil
	}
	if cities == nil {
		return []string{}, nil
	}
	return cities, nil
}

// Save writes cities as the whole registry, or removes the key when empty.
func (r *Registry) Save(ctx context.Context, cities []string) error {
	if len(cities) == 0 {
		if err := r.store.RemoveItem(ctx, RegistryKey); err != nil {
			return fmt.Errorf("remove registry: %w", err)
		}
		return nil
	}

	b, err := json.Marshal(cities)
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := r.store.SetItem(ctx, RegistryKey, string(b)); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// Add appends city unless it is already registered. A registry that
// cannot be read is left untouched.
func (r *Registry) Add(ctx context.Context, city string) error {
	cities, err := r.load(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(cities, city) {
		return nil
	}
	return r.Save(ctx, append(cities, city))
}

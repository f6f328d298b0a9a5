package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/weather"
)

var (
	// ErrMergeTargetMissing is returned by MergeFiveDay when the city has no
	// readable entry to attach the forecast to. Nothing is written.
	ErrMergeTargetMissing = errors.New("no cached entry to merge five-day forecast into")

	// ErrReservedCity is returned by Put for a city named like the registry key.
	ErrReservedCity = errors.New("city name collides with the registry key")
)

var _ weather.Cache = (*Manager)(nil)

// Manager owns the city cache: per-city entries plus the registry that
// tracks them. The registry and an entry live under separate keys and are
// written one after the other, so a registered city may briefly lack an
// entry; readers treat that as stale.
//
// All operations are serialized; the store sees one writer at a time.
type Manager struct {
	mu sync.Mutex

	store    Store
	registry *Registry
	policy   Policy
	ui       weather.Affordances
	log      logger.Logger
}

// NewManager wires a Manager. ui receives create/remove requests for the
// cached-city affordances.
func NewManager(store Store, policy Policy, ui weather.Affordances, log logger.Logger) *Manager {
	log = log.WithField("component", "cache")
	return &Manager{
		store:    store,
		registry: NewRegistry(store, log),
		policy:   policy,
		ui:       ui,
		log:      log,
	}
}

// Get returns the fresh entry for city. Missing, malformed and stale
// entries are all misses; Get never evicts.
func (m *Manager) Get(ctx context.Context, city string) (weather.CacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.get(ctx, city)
}

// Lookup prunes the cache and then reads city.
func (m *Manager) Lookup(ctx context.Context, city string) (weather.CacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneAll(ctx)
	return m.get(ctx, city)
}

// Put writes a fresh entry for city holding current and no forecast.
// A city seen for the first time is registered and announced to the UI;
// repeated puts do neither again. Any previously merged forecast is dropped.
func (m *Manager) Put(ctx context.Context, city string, current weather.Conditions) error {
	if city == RegistryKey {
		return fmt.Errorf("%w: %q", ErrReservedCity, city)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists, err := m.store.GetItem(ctx, city)
	if err != nil {
		return fmt.Errorf("read entry %q: %w", city, err)
	}
	if !exists {
		if err := m.registry.Add(ctx, city); err != nil {
			return fmt.Errorf("register %q: %w", city, err)
		}
		m.ui.CreateAffordance(city)
	}

	entry := weather.CacheEntry{
		Timestamp: m.policy.Now(),
		Current:   current,
	}
	if err := m.store.SetItem(ctx, city, Encode(entry)); err != nil {
		return fmt.Errorf("write entry %q: %w", city, err)
	}
	m.log.Debugf("put: cached current conditions for %q", city)
	return nil
}

// MergeFiveDay attaches days to the existing entry for city. The entry's
// timestamp is left alone, so the forecast is only as fresh as the
// current conditions it was attached to.
func (m *Manager) MergeFiveDay(ctx context.Context, city string, days []weather.ForecastDay) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok, err := m.store.GetItem(ctx, city)
	if err != nil {
		return fmt.Errorf("read entry %q: %w", city, err)
	}
	entry, decoded := Decode(raw)
	if !ok || !decoded {
		return fmt.Errorf("%w: %q", ErrMergeTargetMissing, city)
	}

	entry.FiveDay = days
	if err := m.store.SetItem(ctx, city, Encode(entry)); err != nil {
		return fmt.Errorf("write entry %q: %w", city, err)
	}
	m.log.Debugf("merge: attached %d forecast days for %q", len(days), city)
	return nil
}

// PruneAll evicts every registered city whose entry is missing, malformed
// or stale, asks the UI to drop its affordance, and stores the survivors as
// the new registry. Survivors keep their registration order. Store read
// failures never evict.
func (m *Manager) PruneAll(ctx context.Context) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.pruneAll(ctx)
}

func (m *Manager) get(ctx context.Context, city string) (weather.CacheEntry, bool) {
	entry, ok, err := m.read(ctx, city)
	if err != nil {
		m.log.Warnf("get: %v, treating as miss", err)
		return weather.CacheEntry{}, false
	}
	return entry, ok
}

// read reports whether city holds a fresh entry. Absent, malformed and
// stale entries are misses; err is set only when the store itself fails.
func (m *Manager) read(ctx context.Context, city string) (weather.CacheEntry, bool, error) {
	raw, ok, err := m.store.GetItem(ctx, city)
	if err != nil {
		return weather.CacheEntry{}, false, fmt.Errorf("read entry %q: %w", city, err)
	}
	if !ok {
		return weather.CacheEntry{}, false, nil
	}
	entry, ok := Decode(raw)
	if !ok || !m.policy.IsValid(entry.Timestamp) {
		return weather.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

// pruneAll leaves the store alone when the registry cannot be read, and
// keeps a city whose entry cannot be read; the next prune decides.
func (m *Manager) pruneAll(ctx context.Context) []string {
	cities, err := m.registry.load(ctx)
	if err != nil {
		m.log.Warnf("prune: %v, skipping", err)
		return []string{}
	}
	if len(cities) == 0 {
		// Clears a malformed registry value, if any.
		if err := m.registry.Save(ctx, nil); err != nil {
			m.log.Warnf("prune: %v", err)
		}
		return []string{}
	}

	survivors := make([]string, 0, len(cities))
	for _, city := range cities {
		_, ok, err := m.read(ctx, city)
		if err != nil {
			m.log.Warnf("prune: %v, keeping %q", err, city)
			survivors = append(survivors, city)
			continue
		}
		if ok {
			survivors = append(survivors, city)
			continue
		}
		m.ui.RemoveAffordance(city)
		if err := m.store.RemoveItem(ctx, city); err != nil {
			m.log.Warnf("prune: remove %q failed: %v", city, err)
		}
		m.log.Infof("prune: evicted %q", city)
	}

	if err := m.registry.Save(ctx, survivors); err != nil {
		m.log.Warnf("prune: %v", err)
	}
	return survivors
}

package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/i474232898/weather-lookup/internal/logger"
)

var (
	// ErrEmptyCity is returned when a search is made without a city name.
	ErrEmptyCity = errors.New("you must enter a value for city")

	// ErrNotCached is returned when a cached city has no fresh entry.
	ErrNotCached = errors.New("no fresh cached weather for city")

	// ErrUpstream wraps fetch failures from the weather provider.
	ErrUpstream = errors.New("weather provider request failed")
)

// Service ties the provider, the cache and the UI together.
type Service struct {
	provider Provider
	cache    Cache
	ui       Affordances
	renderer Renderer
	log      logger.Logger

	group singleflight.Group
}

// NewService creates a new Service.
func NewService(provider Provider, cache Cache, ui Affordances, renderer Renderer, log logger.Logger) *Service {
	return &Service{
		provider: provider,
		cache:    cache,
		ui:       ui,
		renderer: renderer,
		log:      log.WithField("component", "weather_service"),
	}
}

// NormalizeCity trims surrounding whitespace from a city name.
func NormalizeCity(city string) string {
	return strings.TrimSpace(city)
}

// Restore prunes the cache and creates an affordance for every surviving
// city. Run once at startup.
func (s *Service) Restore(ctx context.Context) []string {
	survivors := s.cache.PruneAll(ctx)
	for _, city := range survivors {
		s.ui.CreateAffordance(city)
	}
	s.log.Infof("restored %d cached cities", len(survivors))
	return survivors
}

// Prune evicts stale cities without recreating affordances for survivors.
func (s *Service) Prune(ctx context.Context) []string {
	return s.cache.PruneAll(ctx)
}

// Search shows weather for city, from the cache when it holds a fresh
// entry and from the provider otherwise. Concurrent searches for the same
// city share one lookup.
func (s *Service) Search(ctx context.Context, city string) (Result, error) {
	city = NormalizeCity(city)
	if city == "" {
		return Result{}, ErrEmptyCity
	}

	v, err, _ := s.group.Do(city, func() (interface{}, error) {
		return s.search(ctx, city)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (s *Service) search(ctx context.Context, city string) (Result, error) {
	if entry, ok := s.cache.Lookup(ctx, city); ok {
		s.log.Debugf("cache hit for %q", city)
		return s.show(city, entry), nil
	}

	current, coords, err := s.provider.FetchCurrent(ctx, city)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if err := s.cache.Put(ctx, city, current); err != nil {
		s.log.Warnf("cache put failed for %q: %v", city, err)
	}
	s.renderer.RenderCurrent(city, current)

	res := Result{City: city, Current: current}

	days, err := s.provider.FetchFiveDay(ctx, coords)
	if err != nil {
		// The entry keeps no forecast until the next successful search.
		s.log.Warnf("five-day forecast failed for %q: %v", city, err)
		return res, nil
	}

	s.renderer.RenderFiveDay(city, days)
	if err := s.cache.MergeFiveDay(ctx, city, days); err != nil {
		s.log.Warnf("cache merge failed for %q: %v", city, err)
	}

	res.FiveDay = days
	return res, nil
}

// ShowCached renders a cached city, as when its affordance is clicked.
func (s *Service) ShowCached(ctx context.Context, city string) (Result, error) {
	city = NormalizeCity(city)
	if city == "" {
		return Result{}, ErrEmptyCity
	}

	entry, ok := s.cache.Get(ctx, city)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrNotCached, city)
	}
	return s.show(city, entry), nil
}

func (s *Service) show(city string, entry CacheEntry) Result {
	s.renderer.RenderCurrent(city, entry.Current)
	s.renderer.RenderFiveDay(city, entry.FiveDay)
	return Result{
		City:    city,
		Cached:  true,
		Current: entry.Current,
		FiveDay: entry.FiveDay,
	}
}

package weather

import (
	"context"
)

// Provider abstracts the remote weather API.
type Provider interface {
	FetchCurrent(ctx context.Context, city string) (Conditions, Coords, error)
	FetchFiveDay(ctx context.Context, coords Coords) ([]ForecastDay, error)
}

// Cache is the contract the city cache must satisfy.
type Cache interface {
	Get(ctx context.Context, city string) (CacheEntry, bool)
	Lookup(ctx context.Context, city string) (CacheEntry, bool)
	Put(ctx context.Context, city string, current Conditions) error
	MergeFiveDay(ctx context.Context, city string, days []ForecastDay) error
	PruneAll(ctx context.Context) []string
}

// Affordances is the part of the UI that lists cached cities.
type Affordances interface {
	CreateAffordance(city string)
	RemoveAffordance(city string)
}

// Renderer draws weather cards.
type Renderer interface {
	RenderCurrent(city string, current Conditions)
	RenderFiveDay(city string, days []ForecastDay)
}

package weather

import (
	"time"
)

// Conditions is the abbreviated weather record kept for a city and shown on a card.
// Units follow the provider's configured unit system (imperial by default).
type Conditions struct {
	Main     string  `json:"main"`
	Temp     float64 `json:"temp"`
	Wind     float64 `json:"wind"`
	Humidity float64 `json:"humidity"`
}

// ForecastDay is one day of the five-day forecast.
type ForecastDay struct {
	Conditions
	Date time.Time `json:"date"`
}

// Coords locates a city for the five-day forecast request.
type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CacheEntry is everything cached for one city.
//
// Timestamp (milliseconds since epoch) reflects when Current was written.
// FiveDay is attached later and does not refresh Timestamp.
type CacheEntry struct {
	Timestamp int64         `json:"timestamp"`
	Current   Conditions    `json:"current"`
	FiveDay   []ForecastDay `json:"fiveday,omitempty"`
}

// Result is what a search or a cached-city click produces.
type Result struct {
	City    string        `json:"city"`
	Cached  bool          `json:"cached"`
	Current Conditions    `json:"current"`
	FiveDay []ForecastDay `json:"fiveday"`
}

package cache

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/weather-lookup/internal/weather"
)

var validate = validator.New()

// Stored records mirror weather.CacheEntry but use pointers so a missing
// field can be told apart from a zero value during validation.
type storedConditions struct {
	Main     *string  `json:"main" validate:"required"`
	Temp     *float64 `json:"temp" validate:"required"`
	Wind     *float64 `json:"wind" validate:"required"`
	Humidity *float64 `json:"humidity" validate:"required"`
}

type storedDay struct {
	storedConditions
	Date *time.Time `json:"date" validate:"required"`
}

type storedEntry struct {
	Timestamp *int64            `json:"timestamp" validate:"required"`
	Current   *storedConditions `json:"current" validate:"required"`
	FiveDay   []storedDay       `json:"fiveday,omitempty" validate:"omitempty,dive"`
}

// Encode serializes an entry for the store.
func Encode(e weather.CacheEntry) string {
	days := make([]storedDay, 0, len(e.FiveDay))
	for i := range e.FiveDay {
		d := e.FiveDay[i]
		days = append(days, storedDay{
			storedConditions: toStored(d.Conditions),
			Date:             &d.Date,
		})
	}
	ts := e.Timestamp
	cur := toStored(e.Current)
	rec := storedEntry{
		Timestamp: &ts,
		Current:   &cur,
		FiveDay:   days,
	}
	// Only strings, numbers and times are marshalled; this cannot fail.
	b, _ := json.Marshal(rec)
	return string(b)
}

// Decode parses a stored entry. ok is false when raw is empty, not JSON,
// or does not have the entry's shape; callers treat that as a miss.
func Decode(raw string) (weather.CacheEntry, bool) {
	if strings.TrimSpace(raw) == "" {
		return weather.CacheEntry{}, false
	}

	var rec *storedEntry
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec == nil {
		return weather.CacheEntry{}, false
	}
	if err := validate.Struct(rec); err != nil {
		return weather.CacheEntry{}, false
	}

	e := weather.CacheEntry{
		Timestamp: *rec.Timestamp,
		Current:   fromStored(*rec.Current),
	}
	for _, d := range rec.FiveDay {
		e.FiveDay = append(e.FiveDay, weather.ForecastDay{
			Conditions: fromStored(d.storedConditions),
			Date:       *d.Date,
		})
	}
	return e, true
}

func toStored(c weather.Conditions) storedConditions {
	return storedConditions{
		Main:     &c.Main,
		Temp:     &c.Temp,
		Wind:     &c.Wind,
		Humidity: &c.Humidity,
	}
}

func fromStored(s storedConditions) weather.Conditions {
	return weather.Conditions{
		Main:     *s.Main,
		Temp:     *s.Temp,
		Wind:     *s.Wind,
		Humidity: *s.Humidity,
	}
}

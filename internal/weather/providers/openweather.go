package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/weather-lookup/internal/weather"
)

const (
	currentWeatherPath  = "data/2.5/weather"
	fiveDayForecastPath = "data/2.5/forecast"

	// dtTxtLayout is the layout of the forecast list's dt_txt field (UTC).
	dtTxtLayout = "2006-01-02 15:04:05"

	// forecastHour picks one 3-hour slot per day out of the forecast list.
	forecastHour = 9
)

// OpenWeatherConfig configures the OpenWeatherMap client.
type OpenWeatherConfig struct {
	APIKey  string
	BaseURL string
	Units   string
	Backoff BackoffConfig
}

// OpenWeatherProvider implements weather.Provider for OpenWeatherMap.
type OpenWeatherProvider struct {
	apiKey  string
	baseURL string
	units   string
	client  *resilientClient
}

var _ weather.Provider = (*OpenWeatherProvider)(nil)

func NewOpenWeatherProvider(client *http.Client, cfg OpenWeatherConfig) *OpenWeatherProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	units := cfg.Units
	if units == "" {
		units = "imperial"
	}

	return &OpenWeatherProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		units:   units,
		client:  newResilientClient("openweather", client, cfg.Backoff),
	}
}

type owConditions struct {
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (c owConditions) toConditions() weather.Conditions {
	var main string
	if len(c.Weather) > 0 {
		main = c.Weather[0].Main
	}
	return weather.Conditions{
		Main:     main,
		Temp:     c.Main.Temp,
		Wind:     c.Wind.Speed,
		Humidity: c.Main.Humidity,
	}
}

// FetchCurrent returns the current conditions for city and its coordinates.
func (p *OpenWeatherProvider) FetchCurrent(ctx context.Context, city string) (weather.Conditions, weather.Coords, error) {
	values := url.Values{}
	values.Set("q", city)

	var payload struct {
		owConditions
		Coord weather.Coords `json:"coord"`
	}
	if err := p.get(ctx, currentWeatherPath, values, &payload); err != nil {
		return weather.Conditions{}, weather.Coords{}, fmt.Errorf("current weather for %q: %w", city, err)
	}

	return payload.toConditions(), payload.Coord, nil
}

// FetchFiveDay returns one forecast per day, taken from the 09:00 UTC slot
// of the 3-hour forecast list, in list order.
func (p *OpenWeatherProvider) FetchFiveDay(ctx context.Context, coords weather.Coords) ([]weather.ForecastDay, error) {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%g", coords.Lat))
	values.Set("lon", fmt.Sprintf("%g", coords.Lon))

	var payload struct {
		List []struct {
			owConditions
			DtTxt string `json:"dt_txt"`
		} `json:"list"`
	}
	if err := p.get(ctx, fiveDayForecastPath, values, &payload); err != nil {
		return nil, fmt.Errorf("five-day forecast for %g,%g: %w", coords.Lat, coords.Lon, err)
	}

	days := make([]weather.ForecastDay, 0, 5)
	for _, slot := range payload.List {
		ts, err := time.Parse(dtTxtLayout, slot.DtTxt)
		if err != nil || ts.Hour() != forecastHour {
			continue
		}
		days = append(days, weather.ForecastDay{
			Conditions: slot.toConditions(),
			Date:       ts,
		})
	}
	return days, nil
}

func (p *OpenWeatherProvider) get(ctx context.Context, path string, values url.Values, out interface{}) error {
	if p.apiKey == "" {
		return fmt.Errorf("openweather api key is not configured")
	}

	values.Set("units", p.units)
	values.Set("appid", p.apiKey)
	u := fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())

	resp, err := p.client.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Package board holds what the widget shows: the cached-city buttons and
// the current and five-day forecast cards.
package board

import (
	"slices"
	"strconv"
	"sync"

	"github.com/i474232898/weather-lookup/internal/weather"
)

// ForecastSlots is the number of day cards on the board.
const ForecastSlots = 5

// Card is one rendered weather card.
type Card struct {
	Title   string   `json:"title"`
	Icon    string   `json:"icon"`
	Lines   []string `json:"lines"`
	Primary bool     `json:"primary"`
}

// Snapshot is a copy of the board's state.
type Snapshot struct {
	Cities  []string `json:"cities"`
	Current *Card    `json:"current,omitempty"`
	Days    []*Card  `json:"days"`
}

// Board is safe for concurrent use.
type Board struct {
	mu sync.RWMutex

	cities  []string
	current *Card
	days    [ForecastSlots]*Card
}

var (
	_ weather.Affordances = (*Board)(nil)
	_ weather.Renderer    = (*Board)(nil)
)

func New() *Board {
	return &Board{}
}

// CreateAffordance adds a button for city. A city gets at most one button.
func (b *Board) CreateAffordance(city string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if slices.Contains(b.cities, city) {
		return
	}
	b.cities = append(b.cities, city)
}

// RemoveAffordance drops the button for city, if there is one.
func (b *Board) RemoveAffordance(city string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i := slices.Index(b.cities, city); i >= 0 {
		b.cities = slices.Delete(b.cities, i, i+1)
	}
}

// Cities returns the buttons in creation order.
func (b *Board) Cities() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return slices.Clone(b.cities)
}

// RenderCurrent replaces the current-conditions card.
func (b *Board) RenderCurrent(city string, current weather.Conditions) {
	card := newCard(city+": Current", current)
	card.Primary = true

	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = card
}

// RenderFiveDay replaces day cards 1..len(days). Extra days are ignored and
// slots past len(days) keep their previous card.
func (b *Board) RenderFiveDay(city string, days []weather.ForecastDay) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, d := range days {
		if i >= ForecastSlots {
			break
		}
		b.days[i] = newCard(city+": "+FormatDate(d), d.Conditions)
	}
}

// Snapshot copies the board.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Snapshot{
		Cities:  slices.Clone(b.cities),
		Current: b.current.clone(),
		Days:    make([]*Card, 0, ForecastSlots),
	}
	if s.Cities == nil {
		s.Cities = []string{}
	}
	for _, c := range b.days {
		s.Days = append(s.Days, c.clone())
	}
	return s
}

func (c *Card) clone() *Card {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Lines = slices.Clone(c.Lines)
	return &cp
}

func newCard(title string, c weather.Conditions) *Card {
	return &Card{
		Title: title,
		Icon:  Icon(c.Main),
		Lines: []string{
			"Temp: " + formatNumber(c.Temp) + " F",
			"Wind Speed: " + formatNumber(c.Wind) + " mph",
			"Humidity: " + formatNumber(c.Humidity) + "%",
		},
	}
}

// FormatDate renders a forecast day's date as M/D/YYYY.
func FormatDate(d weather.ForecastDay) string {
	return d.Date.Format("1/2/2006")
}

// Icon maps a condition group to a Bootstrap icon class.
func Icon(main string) string {
	switch main {
	case "Thunderstorm":
		return "bi-cloud-lightning-rain"
	case "Drizzle":
		return "bi-cloud-drizzle"
	case "Rain":
		return "bi-cloud-rain"
	case "Snow":
		return "bi-cloud-snow"
	case "Clear":
		return "bi-sun"
	case "Clouds":
		return "bi-clouds"
	default:
		return "bi-cloud-sun"
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

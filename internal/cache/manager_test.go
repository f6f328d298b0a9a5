package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
)

var errStoreDown = errors.New("store down")

type failingStore struct{}

func (failingStore) GetItem(context.Context, string) (string, bool, error) {
	return "", false, errStoreDown
}
func (failingStore) SetItem(context.Context, string, string) error { return errStoreDown }
func (failingStore) RemoveItem(context.Context, string) error      { return errStoreDown }

// flakyStore fails the next n reads of a key, then behaves.
type flakyStore struct {
	*store.MemoryStore
	failGets map[string]int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: store.NewMemoryStore(), failGets: map[string]int{}}
}

func (s *flakyStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	if s.failGets[key] > 0 {
		s.failGets[key]--
		return "", false, errStoreDown
	}
	return s.MemoryStore.GetItem(ctx, key)
}

type uiEvent struct {
	op   string
	city string
}

type recordingUI struct {
	events []uiEvent
}

func (r *recordingUI) CreateAffordance(city string) {
	r.events = append(r.events, uiEvent{"create", city})
}

func (r *recordingUI) RemoveAffordance(city string) {
	r.events = append(r.events, uiEvent{"remove", city})
}

func (r *recordingUI) count(op string) int {
	n := 0
	for _, e := range r.events {
		if e.op == op {
			n++
		}
	}
	return n
}

type fixture struct {
	ctx   context.Context
	clock *clock.Mock
	kv    *store.MemoryStore
	ui    *recordingUI
	m     *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	kv := store.NewMemoryStore()
	ui := &recordingUI{}
	return &fixture{
		ctx:   context.Background(),
		clock: mock,
		kv:    kv,
		ui:    ui,
		m:     NewManager(kv, NewPolicy(mock, 3), ui, logger.Discard()),
	}
}

var rainy = weather.Conditions{Main: "Rain", Temp: 55, Wind: 10, Humidity: 80}

func fiveDays(start time.Time) []weather.ForecastDay {
	days := make([]weather.ForecastDay, 0, 5)
	for i := 0; i < 5; i++ {
		days = append(days, weather.ForecastDay{
			Conditions: weather.Conditions{Main: "Clouds", Temp: 50 + float64(i), Wind: 4, Humidity: 60},
			Date:       start.AddDate(0, 0, i),
		})
	}
	return days
}

func TestManager_PutThenGet(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.m.Put(f.ctx, "Seattle", rainy))

	e, ok := f.m.Get(f.ctx, "Seattle")
	require.True(t, ok)
	assert.Equal(t, rainy, e.Current)
	assert.Empty(t, e.FiveDay)
	assert.Equal(t, f.clock.Now().UnixMilli(), e.Timestamp)
	assert.Equal(t, []string{"Seattle"}, f.m.registry.Load(f.ctx))
	assert.Equal(t, []uiEvent{{"create", "Seattle"}}, f.ui.events)
}

func TestManager_RepeatedPutRegistersOnce(t *testing.T) {
	f := newFixture(t)

	for _, c := range []string{"Seattle", "Austin", "Seattle", "Boston", "Austin", "Seattle"} {
		require.NoError(t, f.m.Put(f.ctx, c, rainy))
	}

	assert.Equal(t, []string{"Seattle", "Austin", "Boston"}, f.m.registry.Load(f.ctx))
	assert.Equal(t, 3, f.ui.count("create"))
}

func TestManager_PutDropsPreviousForecastAndRefreshesTimestamp(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Put(f.ctx, "Seattle", rainy))
	require.NoError(t, f.m.MergeFiveDay(f.ctx, "Seattle", fiveDays(f.clock.Now())))

	f.clock.Add(time.Hour)
	sunny := weather.Conditions{Main: "Clear", Temp: 70, Wind: 2, Humidity: 30}
	require.NoError(t, f.m.Put(f.ctx, "Seattle", sunny))

	e, ok := f.m.Get(f.ctx, "Seattle")
	require.True(t, ok)
	assert.Equal(t, sunny, e.Current)
	assert.Empty(t, e.FiveDay)
	assert.Equal(t, f.clock.Now().UnixMilli(), e.Timestamp)
}

func TestManager_MergeFiveDayKeepsTimestamp(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Put(f.ctx, "Seattle", rainy))
	written, _ := f.m.Get(f.ctx, "Seattle")

	f.clock.Add(30 * time.Minute)
	days := fiveDays(f.clock.Now())
	require.NoError(t, f.m.MergeFiveDay(f.ctx, "Seattle", days))

	e, ok := f.m.Get(f.ctx, "Seattle")
	require.True(t, ok)
	assert.Equal(t, rainy, e.Current)
	assert.Equal(t, written.Timestamp, e.Timestamp)
	require.Len(t, e.FiveDay, len(days))
	for i := range days {
		assert.Equal(t, days[i].Conditions, e.FiveDay[i].Conditions)
		assert.True(t, days[i].Date.Equal(e.FiveDay[i].Date))
	}
}

func TestManager_MergeFiveDayWithoutEntry(t *testing.T) {
	f := newFixture(t)

	err := f.m.MergeFiveDay(f.ctx, "Nowhere", fiveDays(f.clock.Now()))
	assert.ErrorIs(t, err, ErrMergeTargetMissing)
	_, ok, _ := f.kv.GetItem(f.ctx, "Nowhere")
	assert.False(t, ok, "nothing is written for a missing target")

	require.NoError(t, f.kv.SetItem(f.ctx, "Broken", "{oops"))
	err = f.m.MergeFiveDay(f.ctx, "Broken", nil)
	assert.ErrorIs(t, err, ErrMergeTargetMissing)
	raw, _, _ := f.kv.GetItem(f.ctx, "Broken")
	assert.Equal(t, "{oops", raw)
}

func TestManager_GetMisses(t *testing.T) {
	f := newFixture(t)

	_, ok := f.m.Get(f.ctx, "Seattle")
	assert.False(t, ok, "absent")

	require.NoError(t, f.kv.SetItem(f.ctx, "Seattle", "not json"))
	_, ok = f.m.Get(f.ctx, "Seattle")
	assert.False(t, ok, "malformed")

	require.NoError(t, f.m.Put(f.ctx, "Austin", rainy))
	f.clock.Add(3 * time.Hour)
	_, ok = f.m.Get(f.ctx, "Austin")
	assert.False(t, ok, "stale")
	_, present, _ := f.kv.GetItem(f.ctx, "Austin")
	assert.True(t, present, "Get never evicts")

	m := NewManager(failingStore{}, NewPolicy(f.clock, 3), f.ui, logger.Discard())
	_, ok = m.Get(f.ctx, "Austin")
	assert.False(t, ok, "read error")
}

func TestManager_SeattleScenario(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Put(f.ctx, "Seattle", rainy))

	f.clock.Add(2 * time.Hour)
	e, ok := f.m.Get(f.ctx, "Seattle")
	require.True(t, ok)
	assert.Equal(t, rainy, e.Current)

	f.clock.Add(2 * time.Hour)
	_, ok = f.m.Get(f.ctx, "Seattle")
	assert.False(t, ok)

	assert.Empty(t, f.m.PruneAll(f.ctx))
	_, present, _ := f.kv.GetItem(f.ctx, "Seattle")
	assert.False(t, present)
	_, present, _ = f.kv.GetItem(f.ctx, RegistryKey)
	assert.False(t, present)
	assert.Equal(t, []uiEvent{{"create", "Seattle"}, {"remove", "Seattle"}}, f.ui.events)
}

func TestManager_PruneAllKeepsOrderOfSurvivors(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.m.Put(f.ctx, "Old1", rainy))
	f.clock.Add(2 * time.Hour)
	require.NoError(t, f.m.Put(f.ctx, "Fresh1", rainy))
	require.NoError(t, f.m.Put(f.ctx, "Old2", rainy))
	require.NoError(t, f.m.Put(f.ctx, "Fresh2", rainy))
	require.NoError(t, f.m.Put(f.ctx, "Missing", rainy))
	require.NoError(t, f.m.Put(f.ctx, "Broken", rainy))
	require.NoError(t, f.m.Put(f.ctx, "Fresh3", rainy))

	require.NoError(t, f.kv.RemoveItem(f.ctx, "Missing"))
	require.NoError(t, f.kv.SetItem(f.ctx, "Broken", `{"timestamp":1}`))
	// Make Old2 stale by rewriting it with an old timestamp.
	require.NoError(t, f.kv.SetItem(f.ctx, "Old2", Encode(weather.CacheEntry{
		Timestamp: f.clock.Now().Add(-5 * time.Hour).UnixMilli(),
		Current:   rainy,
	})))

	f.clock.Add(90 * time.Minute) // Old1 is now 3.5h old.

	survivors := f.m.PruneAll(f.ctx)
	assert.Equal(t, []string{"Fresh1", "Fresh2", "Fresh3"}, survivors)
	assert.Equal(t, survivors, f.m.registry.Load(f.ctx))

	for _, gone := range []string{"Old1", "Old2", "Missing", "Broken"} {
		_, present, _ := f.kv.GetItem(f.ctx, gone)
		assert.False(t, present, gone)
	}
	assert.Equal(t, 4, f.ui.count("remove"))

	again := f.m.PruneAll(f.ctx)
	assert.Equal(t, survivors, again, "prune is idempotent")
	assert.Equal(t, 4, f.ui.count("remove"))
}

func TestManager_PruneAllWithEmptyOrMalformedRegistry(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{}, f.m.PruneAll(f.ctx))

	require.NoError(t, f.kv.SetItem(f.ctx, RegistryKey, "garbage"))
	assert.Equal(t, []string{}, f.m.PruneAll(f.ctx))
	_, present, _ := f.kv.GetItem(f.ctx, RegistryKey)
	assert.False(t, present)
}

func TestManager_LookupPrunesBeforeReading(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.Put(f.ctx, "Seattle", rainy))
	require.NoError(t, f.m.Put(f.ctx, "Austin", rainy))

	f.clock.Add(4 * time.Hour)
	_, ok := f.m.Lookup(f.ctx, "Seattle")
	assert.False(t, ok)
	assert.Equal(t, []string{}, f.m.registry.Load(f.ctx))
	assert.Equal(t, 2, f.ui.count("remove"))

	// A stale city comes back as new after a lookup pruned it.
	require.NoError(t, f.m.Put(f.ctx, "Seattle", rainy))
	assert.Equal(t, 3, f.ui.count("create"))
	e, ok := f.m.Lookup(f.ctx, "Seattle")
	require.True(t, ok)
	assert.Equal(t, rainy, e.Current)
}

func TestManager_PutRejectsRegistryKey(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.m.Put(f.ctx, RegistryKey, rainy), ErrReservedCity)
	assert.Empty(t, f.ui.events)
}

func TestManager_PutSurfacesStoreErrors(t *testing.T) {
	ui := &recordingUI{}
	m := NewManager(failingStore{}, NewPolicy(clock.NewMock(), 3), ui, logger.Discard())

	err := m.Put(context.Background(), "Seattle", rainy)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, ui.events, "no affordance without a registry write")

	assert.Equal(t, []string{}, m.PruneAll(context.Background()))
	assert.ErrorIs(t, m.MergeFiveDay(context.Background(), "Seattle", nil), errStoreDown)
}

type flakyFixture struct {
	ctx   context.Context
	clock *clock.Mock
	kv    *flakyStore
	ui    *recordingUI
	m     *Manager
}

func newFlakyFixture(t *testing.T) *flakyFixture {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	kv := newFlakyStore()
	ui := &recordingUI{}
	return &flakyFixture{
		ctx:   context.Background(),
		clock: mock,
		kv:    kv,
		ui:    ui,
		m:     NewManager(kv, NewPolicy(mock, 3), ui, logger.Discard()),
	}
}

func TestManager_PruneAllLeavesRegistryWhenItCannotBeRead(t *testing.T) {
	f := newFlakyFixture(t)
	require.NoError(t, f.m.Put(f.ctx, "Seattle", rainy))

	f.kv.failGets[RegistryKey] = 1
	assert.Equal(t, []string{}, f.m.PruneAll(f.ctx))

	raw, present, _ := f.kv.GetItem(f.ctx, RegistryKey)
	require.True(t, present, "registry survives a failed read")
	assert.JSONEq(t, `["Seattle"]`, raw)
	_, present, _ = f.kv.GetItem(f.ctx, "Seattle")
	assert.True(t, present)
	assert.Zero(t, f.ui.count("remove"))

	// Once the store recovers, the city still goes through the normal lifecycle.
	f.clock.Add(4 * time.Hour)
	assert.Equal(t, []string{}, f.m.PruneAll(f.ctx))
	_, present, _ = f.kv.GetItem(f.ctx, "Seattle")
	assert.False(t, present)
	assert.Equal(t, 1, f.ui.count("remove"))

	require.NoError(t, f.m.Put(f.ctx, "Seattle", rainy))
	assert.Equal(t, []string{"Seattle"}, f.m.registry.Load(f.ctx))
	assert.Equal(t, 2, f.ui.count("create"))
}

func TestManager_PruneAllKeepsCityWhoseEntryCannotBeRead(t *testing.T) {
	f := newFlakyFixture(t)
	require.NoError(t, f.m.Put(f.ctx, "Seattle", rainy))
	require.NoError(t, f.m.Put(f.ctx, "Austin", rainy))

	f.kv.failGets["Seattle"] = 1
	assert.Equal(t, []string{"Seattle", "Austin"}, f.m.PruneAll(f.ctx))

	assert.Equal(t, []string{"Seattle", "Austin"}, f.m.registry.Load(f.ctx))
	e, ok := f.m.Get(f.ctx, "Seattle")
	require.True(t, ok, "entry is still there after the read recovers")
	assert.Equal(t, rainy, e.Current)
	assert.Zero(t, f.ui.count("remove"))
}

func TestManager_PutFailsWhenEntryCannotBeRead(t *testing.T) {
	f := newFlakyFixture(t)
	require.NoError(t, f.m.Put(f.ctx, "Seattle", rainy))

	f.kv.failGets["Seattle"] = 1
	err := f.m.Put(f.ctx, "Seattle", rainy)
	assert.ErrorIs(t, err, errStoreDown)

	assert.Equal(t, 1, f.ui.count("create"), "affordance is created once")
	assert.Equal(t, []string{"Seattle"}, f.m.registry.Load(f.ctx))
}

func TestManager_EntryWrittenAtEpochIsFresh(t *testing.T) {
	m := NewManager(store.NewMemoryStore(), NewPolicy(clock.NewMock(), 3), &recordingUI{}, logger.Discard())

	require.NoError(t, m.Put(context.Background(), "Seattle", rainy))
	e, ok := m.Get(context.Background(), "Seattle")
	require.True(t, ok)
	assert.Equal(t, int64(0), e.Timestamp)
}

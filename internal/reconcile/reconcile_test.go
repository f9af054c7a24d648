package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/winqerweb-code/winqerapp-insights/internal/calendar"
	"github.com/winqerweb-code/winqerapp-insights/internal/demo"
	"github.com/winqerweb-code/winqerapp-insights/internal/entity"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

type fakeCache struct {
	entries   []entity.MetricCacheEntry
	readErr   error
	writeErr  error
	reads     int
	readSpans []calendar.Range
	written   map[calendar.Day]entity.RawDailyMetric
}

func (f *fakeCache) ReadRange(ctx context.Context, shopID uuid.UUID, source entity.MetricSource, rng calendar.Range) ([]entity.MetricCacheEntry, error) {
	f.reads++
	f.readSpans = append(f.readSpans, rng)
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []entity.MetricCacheEntry
	for _, e := range f.entries {
		if e.Source == source && e.Date >= rng.From && e.Date <= rng.To {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeCache) UpsertMany(ctx context.Context, shopID uuid.UUID, source entity.MetricSource, rows []entity.MetricUpsert) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.written == nil {
		f.written = make(map[calendar.Day]entity.RawDailyMetric)
	}
	for _, r := range rows {
		f.written[r.Date] = r.Metrics
	}
	return nil
}

type fakeCreds struct {
	creds map[entity.Integration]*entity.IntegrationCredential
	err   error
}

func (f *fakeCreds) Get(ctx context.Context, shopID uuid.UUID, integration entity.Integration) (*entity.IntegrationCredential, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.creds[integration], nil
}

type fakeAds struct {
	rows  []entity.AdsDailyRow
	err   error
	calls int
	spans []calendar.Range
}

func (f *fakeAds) FetchDailySeries(ctx context.Context, cred *entity.IntegrationCredential, accountID string, rng calendar.Range) ([]entity.AdsDailyRow, error) {
	f.calls++
	f.spans = append(f.spans, rng)
	return f.rows, f.err
}

func (f *fakeAds) FetchRegionBreakdown(ctx context.Context, cred *entity.IntegrationCredential, accountID string, rng calendar.Range) ([]entity.RegionMetric, error) {
	return nil, nil
}

func (f *fakeAds) FetchDemographicBreakdown(ctx context.Context, cred *entity.IntegrationCredential, accountID string, rng calendar.Range) ([]entity.DemographicMetric, error) {
	return nil, nil
}

func (f *fakeAds) FetchCreativeSeries(ctx context.Context, cred *entity.IntegrationCredential, accountID string, rng calendar.Range) ([]entity.CreativeMetric, error) {
	return nil, nil
}

type fakeAnalytics struct {
	rows  []entity.AnalyticsDailyRow
	err   error
	calls int
}

func (f *fakeAnalytics) FetchDailyEventCount(ctx context.Context, cred *entity.IntegrationCredential, propertyID, eventName string, rng calendar.Range) ([]entity.AnalyticsDailyRow, error) {
	f.calls++
	return f.rows, f.err
}

type engineFixture struct {
	cache     *fakeCache
	creds     *fakeCreds
	ads       *fakeAds
	analytics *fakeAnalytics
	engine    *Engine
	shop      *entity.Shop
}

// newEngineFixture builds an engine whose clock is pinned to 2024-06-05 12:00
// Tokyo time; with the default two-day window, days up to 2024-06-02 are stable.
func newEngineFixture(t *testing.T) *engineFixture {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	clock := fixedClock{t: time.Date(2024, 6, 5, 12, 0, 0, 0, loc)}

	cal, err := calendar.NewResolver(calendar.DefaultConfig(), clock)
	require.NoError(t, err)

	shopID := uuid.New()
	f := &engineFixture{
		cache: &fakeCache{},
		creds: &fakeCreds{creds: map[entity.Integration]*entity.IntegrationCredential{
			entity.IntegrationAds:       {ShopID: shopID, Integration: entity.IntegrationAds, Secret: "token"},
			entity.IntegrationAnalytics: {ShopID: shopID, Integration: entity.IntegrationAnalytics, Secret: "{}"},
		}},
		ads:       &fakeAds{},
		analytics: &fakeAnalytics{},
		shop: &entity.Shop{
			ID:            shopID,
			Name:          "test shop",
			AdsAccountID:  "123",
			GA4PropertyID: "456",
		},
	}
	f.engine = New(f.cache, f.creds, f.ads, f.analytics, demo.New(demo.DefaultFixture()), cal, DefaultConfig())
	return f
}

func cachedEntry(day calendar.Day, clicks int, refreshedAt time.Time) entity.MetricCacheEntry {
	return entity.MetricCacheEntry{
		Source:      entity.SourceAds,
		Date:        day,
		Metrics:     entity.RawDailyMetric{Clicks: clicks},
		RefreshedAt: refreshedAt,
	}
}

func TestReconcileFullySatisfiedMakesNoProviderCalls(t *testing.T) {
	f := newEngineFixture(t)
	old := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	f.cache.entries = []entity.MetricCacheEntry{
		cachedEntry("2024-05-01", 10, old),
		cachedEntry("2024-05-02", 20, old),
		cachedEntry("2024-05-03", 30, old),
	}

	got, err := f.engine.Reconcile(context.Background(), f.shop, entity.SourceAds, calendar.Range{From: "2024-05-01", To: "2024-05-03"})
	require.NoError(t, err)

	assert.Equal(t, 0, f.ads.calls)
	require.Len(t, got, 3)
	assert.Equal(t, 20, got["2024-05-02"].Clicks)
}

func TestReconcileSingleSpanFetchForGappedMisses(t *testing.T) {
	f := newEngineFixture(t)
	old := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	// 05-02 and 05-04 cached, 05-01, 05-03, 05-05 missing: one span call 05-01..05-05.
	f.cache.entries = []entity.MetricCacheEntry{
		cachedEntry("2024-05-02", 20, old),
		cachedEntry("2024-05-04", 40, old),
	}
	f.ads.rows = []entity.AdsDailyRow{
		{Date: "2024-05-01", Spend: decimal.NewFromInt(100), Clicks: 11},
		{Date: "2024-05-03", Spend: decimal.NewFromInt(300), Clicks: 33},
	}

	got, err := f.engine.Reconcile(context.Background(), f.shop, entity.SourceAds, calendar.Range{From: "2024-05-01", To: "2024-05-05"})
	require.NoError(t, err)

	require.Equal(t, 1, f.ads.calls)
	assert.Equal(t, calendar.Range{From: "2024-05-01", To: "2024-05-05"}, f.ads.spans[0])

	require.Len(t, got, 5)
	assert.Equal(t, 11, got["2024-05-01"].Clicks)
	assert.Equal(t, 20, got["2024-05-02"].Clicks)
	assert.Equal(t, 33, got["2024-05-03"].Clicks)
	assert.Equal(t, 40, got["2024-05-04"].Clicks)
	// provider omitted 05-05: zero-filled, and the zero was cached
	assert.True(t, got["2024-05-05"].IsZero())
	assert.True(t, f.cache.written["2024-05-05"].IsZero())
	assert.Equal(t, 11, f.cache.written["2024-05-01"].Clicks)
}

func TestReconcileVolatileDaysRefetched(t *testing.T) {
	f := newEngineFixture(t)
	// refreshed yesterday: stale for volatile days, fine for stable ones
	yesterday := time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC)
	f.cache.entries = []entity.MetricCacheEntry{
		cachedEntry("2024-06-01", 1, yesterday),
		cachedEntry("2024-06-02", 2, yesterday),
		cachedEntry("2024-06-03", 3, yesterday),
		cachedEntry("2024-06-04", 4, yesterday),
		cachedEntry("2024-06-05", 5, yesterday),
	}
	f.ads.rows = []entity.AdsDailyRow{
		{Date: "2024-06-03", Clicks: 300},
		{Date: "2024-06-04", Clicks: 400},
		{Date: "2024-06-05", Clicks: 500},
	}

	got, err := f.engine.Reconcile(context.Background(), f.shop, entity.SourceAds, calendar.Range{From: "2024-06-01", To: "2024-06-05"})
	require.NoError(t, err)

	// 06-03..05 are volatile and stale, fetched as one span
	require.Equal(t, 1, f.ads.calls)
	assert.Equal(t, calendar.Range{From: "2024-06-03", To: "2024-06-05"}, f.ads.spans[0])

	assert.Equal(t, 1, got["2024-06-01"].Clicks)
	assert.Equal(t, 2, got["2024-06-02"].Clicks)
	assert.Equal(t, 300, got["2024-06-03"].Clicks)
	assert.Equal(t, 500, got["2024-06-05"].Clicks)
}

func TestReconcileVolatileFreshWithinSameDay(t *testing.T) {
	f := newEngineFixture(t)
	loc, _ := time.LoadLocation("Asia/Tokyo")
	// refreshed this morning Tokyo time: volatile days still valid today
	thisMorning := time.Date(2024, 6, 5, 8, 0, 0, 0, loc)
	f.cache.entries = []entity.MetricCacheEntry{
		cachedEntry("2024-06-04", 4, thisMorning),
		cachedEntry("2024-06-05", 5, thisMorning),
	}

	got, err := f.engine.Reconcile(context.Background(), f.shop, entity.SourceAds, calendar.Range{From: "2024-06-04", To: "2024-06-05"})
	require.NoError(t, err)
	assert.Equal(t, 0, f.ads.calls)
	assert.Equal(t, 4, got["2024-06-04"].Clicks)
}

func TestReconcileVolatileTTLOverride(t *testing.T) {
	f := newEngineFixture(t)
	loc, _ := time.LoadLocation("Asia/Tokyo")
	cal, err := calendar.NewResolver(calendar.DefaultConfig(), fixedClock{t: time.Date(2024, 6, 5, 12, 0, 0, 0, loc)})
	require.NoError(t, err)
	f.engine = New(f.cache, f.creds, f.ads, f.analytics, demo.New(demo.DefaultFixture()), cal, Config{
		VolatileRefreshTTL: time.Hour,
		ConversionEvent:    "purchase",
	})

	// refreshed 30 minutes ago: inside the TTL even though it was "yesterday's" refresh rule
	f.cache.entries = []entity.MetricCacheEntry{
		cachedEntry("2024-06-05", 5, time.Date(2024, 6, 5, 11, 30, 0, 0, loc)),
		// refreshed 2 hours ago: outside TTL
		cachedEntry("2024-06-04", 4, time.Date(2024, 6, 5, 10, 0, 0, 0, loc)),
	}
	f.ads.rows = []entity.AdsDailyRow{{Date: "2024-06-04", Clicks: 44}}

	got, err := f.engine.Reconcile(context.Background(), f.shop, entity.SourceAds, calendar.Range{From: "2024-06-04", To: "2024-06-05"})
	require.NoError(t, err)
	require.Equal(t, 1, f.ads.calls)
	assert.Equal(t, calendar.Range{From: "2024-06-04", To: "2024-06-04"}, f.ads.spans[0])
	assert.Equal(t, 44, got["2024-06-04"].Clicks)
	assert.Equal(t, 5, got["2024-06-05"].Clicks)
}

func TestReconcileProviderFailureDegradesToZeroFill(t *testing.T) {
	f := newEngineFixture(t)
	old := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	f.cache.entries = []entity.MetricCacheEntry{
		cachedEntry("2024-05-01", 10, old),
	}
	f.ads.err = fmt.Errorf("rate limited")

	got, err := f.engine.Reconcile(context.Background(), f.shop, entity.SourceAds, calendar.Range{From: "2024-05-01", To: "2024-05-03"})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, 10, got["2024-05-01"].Clicks)
	assert.True(t, got["2024-05-02"].IsZero())
	assert.True(t, got["2024-05-03"].IsZero())
	// degraded days must not be cached as real zeros
	assert.Nil(t, f.cache.written)
}

func TestReconcileMissingCredentialIsFatal(t *testing.T) {
	f := newEngineFixture(t)
	delete(f.creds.creds, entity.IntegrationAds)

	_, err := f.engine.Reconcile(context.Background(), f.shop, entity.SourceAds, calendar.Range{From: "2024-05-01", To: "2024-05-03"})
	require.Error(t, err)

	var mc *MissingCredentialError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, entity.IntegrationAds, mc.Integration)
	assert.Contains(t, err.Error(), "ads")
	assert.Equal(t, 0, f.ads.calls)
}

func TestReconcileCacheReadFailureFetchesEverything(t *testing.T) {
	f := newEngineFixture(t)
	f.cache.readErr = fmt.Errorf("connection refused")
	f.ads.rows = []entity.AdsDailyRow{
		{Date: "2024-05-01", Clicks: 1},
		{Date: "2024-05-02", Clicks: 2},
		{Date: "2024-05-03", Clicks: 3},
	}

	got, err := f.engine.Reconcile(context.Background(), f.shop, entity.SourceAds, calendar.Range{From: "2024-05-01", To: "2024-05-03"})
	require.NoError(t, err)

	require.Equal(t, 1, f.ads.calls)
	assert.Equal(t, calendar.Range{From: "2024-05-01", To: "2024-05-03"}, f.ads.spans[0])
	assert.Equal(t, 3, got["2024-05-03"].Clicks)
}

func TestReconcileCacheWriteFailureStillServes(t *testing.T) {
	f := newEngineFixture(t)
	f.cache.writeErr = fmt.Errorf("disk full")
	f.ads.rows = []entity.AdsDailyRow{{Date: "2024-05-01", Clicks: 1}}

	got, err := f.engine.Reconcile(context.Background(), f.shop, entity.SourceAds, calendar.Range{From: "2024-05-01", To: "2024-05-01"})
	require.NoError(t, err)
	assert.Equal(t, 1, got["2024-05-01"].Clicks)
}

func TestReconcileSkipsMalformedAndOutOfSpanRows(t *testing.T) {
	f := newEngineFixture(t)
	f.ads.rows = []entity.AdsDailyRow{
		{Date: "2024-05-01", Clicks: -5},                            // negative, skipped
		{Date: "2024-04-28", Clicks: 7},                             // outside span, skipped
		{Date: "2024-05-02", Spend: decimal.NewFromInt(-1)},         // negative spend, skipped
		{Date: "2024-05-02", Spend: decimal.NewFromInt(9), Clicks: 2},
	}

	got, err := f.engine.Reconcile(context.Background(), f.shop, entity.SourceAds, calendar.Range{From: "2024-05-01", To: "2024-05-02"})
	require.NoError(t, err)

	assert.True(t, got["2024-05-01"].IsZero())
	assert.Equal(t, 2, got["2024-05-02"].Clicks)
}

func TestReconcileAnalyticsSource(t *testing.T) {
	f := newEngineFixture(t)
	f.analytics.rows = []entity.AnalyticsDailyRow{
		{Date: "2024-05-01", EventCount: 3, Sessions: 120},
	}

	got, err := f.engine.Reconcile(context.Background(), f.shop, entity.SourceAnalytics, calendar.Range{From: "2024-05-01", To: "2024-05-02"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.analytics.calls)
	assert.Equal(t, 0, f.ads.calls)
	assert.Equal(t, 3, got["2024-05-01"].EventCount)
	assert.Equal(t, 120, got["2024-05-01"].Sessions)
	assert.True(t, got["2024-05-02"].IsZero())
}

func TestReconcileDemoShopWithoutCredential(t *testing.T) {
	f := newEngineFixture(t)
	f.creds.creds = nil
	f.shop.Demo = true

	got, err := f.engine.Reconcile(context.Background(), f.shop, entity.SourceAds, calendar.Range{From: "2024-05-01", To: "2024-05-03"})
	require.NoError(t, err)

	assert.Equal(t, 0, f.ads.calls)
	require.Len(t, got, 3)
	for _, d := range []calendar.Day{"2024-05-01", "2024-05-02", "2024-05-03"} {
		assert.False(t, got[d].IsZero(), "demo day %s should carry synthetic data", d)
	}
	// demo output never persists
	assert.Nil(t, f.cache.written)
}

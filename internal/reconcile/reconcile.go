// Package reconcile decides, for a requested date range, which daily values can be
// served from the persisted metric cache and which must be re-fetched upstream,
// executes the minimal batched re-fetch and writes results back.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/winqerweb-code/winqerapp-insights/internal/calendar"
	"github.com/winqerweb-code/winqerapp-insights/internal/demo"
	"github.com/winqerweb-code/winqerapp-insights/internal/dependency"
	"github.com/winqerweb-code/winqerapp-insights/internal/entity"
)

// MissingCredentialError is returned when a non-demo shop has no credential for
// the integration backing the requested source. It is fatal: serving zeros for a
// real campaign would misrepresent it as having no spend.
type MissingCredentialError struct {
	Integration entity.Integration
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("no %s credential configured", e.Integration)
}

// Config holds reconciliation policy.
type Config struct {
	// VolatileRefreshTTL overrides the freshness rule for volatile days. Zero means
	// "refreshed within the current reporting day"; a positive value means
	// "refreshed within the last TTL".
	VolatileRefreshTTL time.Duration `mapstructure:"volatile_refresh_ttl"`
	// ConversionEvent is the analytics event counted as a conversion.
	ConversionEvent string `mapstructure:"conversion_event"`
}

// DefaultConfig returns default reconciliation policy.
func DefaultConfig() Config {
	return Config{ConversionEvent: "purchase"}
}

// Engine reconciles requested ranges against the cache and the upstream providers.
type Engine struct {
	cache     dependency.MetricCache
	creds     dependency.Credentials
	ads       dependency.AdsProvider
	analytics dependency.AnalyticsProvider
	demo      *demo.Generator
	cal       *calendar.Resolver
	c         Config
}

// New creates a reconciliation engine.
func New(
	cache dependency.MetricCache,
	creds dependency.Credentials,
	ads dependency.AdsProvider,
	analytics dependency.AnalyticsProvider,
	demoGen *demo.Generator,
	cal *calendar.Resolver,
	c Config,
) *Engine {
	if c.ConversionEvent == "" {
		c.ConversionEvent = DefaultConfig().ConversionEvent
	}
	return &Engine{
		cache:     cache,
		creds:     creds,
		ads:       ads,
		analytics: analytics,
		demo:      demoGen,
		cal:       cal,
		c:         c,
	}
}

// Reconcile returns one observation per calendar day of the range for the given
// shop and source, reading satisfied days from the cache and re-fetching the rest
// in a single batched provider call. The returned map never has holes; days the
// upstream omitted come back zero-valued. Provider failures degrade to zero-filled
// days; only a missing credential on a non-demo shop is fatal.
func (e *Engine) Reconcile(ctx context.Context, shop *entity.Shop, source entity.MetricSource, rng calendar.Range) (map[calendar.Day]entity.RawDailyMetric, error) {
	days, err := e.cal.ExpandRange(rng)
	if err != nil {
		return nil, err
	}

	cached := e.readCache(ctx, shop, source, rng)
	today := e.cal.Today()

	satisfied := make(map[calendar.Day]entity.RawDailyMetric, len(days))
	var toFetch []calendar.Day
	for _, d := range days {
		entry, ok := cached[d]
		switch {
		case !ok:
			toFetch = append(toFetch, d)
		case e.cal.IsVolatile(d, today) && !e.isFresh(entry.RefreshedAt, today):
			toFetch = append(toFetch, d)
		default:
			satisfied[d] = entry.Metrics
		}
	}

	// Cache-hit fast path: nothing to fetch, zero provider calls.
	if len(toFetch) == 0 {
		return satisfied, nil
	}

	// One contiguous span per provider call, even when toFetch has gaps; a few
	// redundant rows are cheaper than N upstream calls.
	span := calendar.Span(toFetch)

	fetched, err := e.fetch(ctx, shop, source, span)
	if err != nil {
		var mc *MissingCredentialError
		if errors.As(err, &mc) {
			return nil, mc
		}
		slog.Default().WarnContext(ctx, "upstream fetch failed, serving zero-filled days",
			slog.String("shop_id", shop.ID.String()),
			slog.String("source", string(source)),
			slog.String("span_from", string(span.From)),
			slog.String("span_to", string(span.To)),
			slog.String("err", err.Error()))
		return fillResult(days, satisfied, nil), nil
	}

	e.writeBack(ctx, shop, source, toFetch, fetched)

	return fillResult(days, satisfied, fetched), nil
}

func (e *Engine) readCache(ctx context.Context, shop *entity.Shop, source entity.MetricSource, rng calendar.Range) map[calendar.Day]entity.MetricCacheEntry {
	entries, err := e.cache.ReadRange(ctx, shop.ID, source, rng)
	if err != nil {
		// Upstream stays authoritative when the cache layer is down: treat
		// every day as missing and fetch fresh.
		slog.Default().WarnContext(ctx, "metric cache read failed, fetching range fresh",
			slog.String("shop_id", shop.ID.String()),
			slog.String("source", string(source)),
			slog.String("err", err.Error()))
		return nil
	}
	out := make(map[calendar.Day]entity.MetricCacheEntry, len(entries))
	for _, entry := range entries {
		out[entry.Date] = entry
	}
	return out
}

// isFresh reports whether a volatile day's cache entry is still valid.
func (e *Engine) isFresh(refreshedAt time.Time, today calendar.Day) bool {
	if e.c.VolatileRefreshTTL > 0 {
		return e.cal.Now().Sub(refreshedAt) < e.c.VolatileRefreshTTL
	}
	return e.cal.DayOf(refreshedAt) == today
}

// fetch resolves the credential and performs exactly one provider call for the span.
func (e *Engine) fetch(ctx context.Context, shop *entity.Shop, source entity.MetricSource, span calendar.Range) (map[calendar.Day]entity.RawDailyMetric, error) {
	integration := entity.IntegrationFor(source)

	cred, err := e.creds.Get(ctx, shop.ID, integration)
	if err != nil {
		return nil, fmt.Errorf("resolve %s credential: %w", integration, err)
	}
	if cred == nil {
		if shop.Demo {
			days, err := e.cal.ExpandRange(span)
			if err != nil {
				return nil, err
			}
			return e.demo.DailySeries(source, days), nil
		}
		return nil, &MissingCredentialError{Integration: integration}
	}

	switch source {
	case entity.SourceAnalytics:
		rows, err := e.analytics.FetchDailyEventCount(ctx, cred, shop.GA4PropertyID, e.c.ConversionEvent, span)
		if err != nil {
			return nil, err
		}
		return e.analyticsRowsToSeries(ctx, rows, span), nil
	default:
		rows, err := e.ads.FetchDailySeries(ctx, cred, shop.AdsAccountID, span)
		if err != nil {
			return nil, err
		}
		return e.adsRowsToSeries(ctx, rows, span), nil
	}
}

func (e *Engine) adsRowsToSeries(ctx context.Context, rows []entity.AdsDailyRow, span calendar.Range) map[calendar.Day]entity.RawDailyMetric {
	out := make(map[calendar.Day]entity.RawDailyMetric, len(rows))
	for _, row := range rows {
		if row.Spend.IsNegative() || row.Clicks < 0 || row.Impressions < 0 || row.Reach < 0 || row.Conversions < 0 {
			slog.Default().WarnContext(ctx, "skipping malformed ads row",
				slog.String("date", string(row.Date)))
			continue
		}
		if !inSpan(row.Date, span) {
			continue
		}
		out[row.Date] = entity.RawDailyMetric{
			Spend:       row.Spend,
			Clicks:      row.Clicks,
			Impressions: row.Impressions,
			Reach:       row.Reach,
			Conversions: row.Conversions,
		}
	}
	return out
}

func (e *Engine) analyticsRowsToSeries(ctx context.Context, rows []entity.AnalyticsDailyRow, span calendar.Range) map[calendar.Day]entity.RawDailyMetric {
	out := make(map[calendar.Day]entity.RawDailyMetric, len(rows))
	for _, row := range rows {
		if row.EventCount < 0 || row.Sessions < 0 {
			slog.Default().WarnContext(ctx, "skipping malformed analytics row",
				slog.String("date", string(row.Date)))
			continue
		}
		if !inSpan(row.Date, span) {
			continue
		}
		out[row.Date] = entity.RawDailyMetric{
			EventCount: row.EventCount,
			Sessions:   row.Sessions,
		}
	}
	return out
}

// writeBack upserts everything the provider returned plus explicit zero rows for
// requested days it omitted. Caching the zero keeps a genuinely inactive day from
// being re-fetched on every request. Demo series never reach here.
func (e *Engine) writeBack(ctx context.Context, shop *entity.Shop, source entity.MetricSource, toFetch []calendar.Day, fetched map[calendar.Day]entity.RawDailyMetric) {
	if shop.Demo {
		return
	}
	upserts := make([]entity.MetricUpsert, 0, len(fetched)+len(toFetch))
	for d, m := range fetched {
		upserts = append(upserts, entity.MetricUpsert{Date: d, Metrics: m})
	}
	for _, d := range toFetch {
		if _, ok := fetched[d]; !ok {
			upserts = append(upserts, entity.MetricUpsert{Date: d})
		}
	}
	if err := e.cache.UpsertMany(ctx, shop.ID, source, upserts); err != nil {
		slog.Default().WarnContext(ctx, "metric cache write failed",
			slog.String("shop_id", shop.ID.String()),
			slog.String("source", string(source)),
			slog.String("err", err.Error()))
	}
}

// fillResult merges fetched values over satisfied ones and guarantees one entry per
// requested day, synthesizing zero-valued records for any hole.
func fillResult(days []calendar.Day, satisfied, fetched map[calendar.Day]entity.RawDailyMetric) map[calendar.Day]entity.RawDailyMetric {
	out := make(map[calendar.Day]entity.RawDailyMetric, len(days))
	for d, m := range satisfied {
		out[d] = m
	}
	for d, m := range fetched {
		out[d] = m
	}
	for _, d := range days {
		if _, ok := out[d]; !ok {
			out[d] = entity.RawDailyMetric{}
		}
	}
	return out
}

func inSpan(d calendar.Day, span calendar.Range) bool {
	return d >= span.From && d <= span.To
}

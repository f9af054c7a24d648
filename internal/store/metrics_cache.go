package store

import (
	"context"
	"encoding/json"
	"fmt"

	"log/slog"

	"github.com/google/uuid"
	"github.com/winqerweb-code/winqerapp-insights/internal/calendar"
	"github.com/winqerweb-code/winqerapp-insights/internal/dependency"
	"github.com/winqerweb-code/winqerapp-insights/internal/entity"
)

type metricCacheStore struct {
	*MYSQLStore
}

// MetricCache returns an object implementing the MetricCache interface.
func (ms *MYSQLStore) MetricCache() dependency.MetricCache {
	return &metricCacheStore{
		MYSQLStore: ms,
	}
}

// ReadRange bulk-reads cached observations for one shop and source inside the
// range. Rows whose metrics payload fails to decode are skipped, not fatal: a
// skipped row reads as a missing day and gets refetched.
func (ms *MYSQLStore) ReadRange(ctx context.Context, shopID uuid.UUID, source entity.MetricSource, rng calendar.Range) ([]entity.MetricCacheEntry, error) {
	// The DATE column is formatted in SQL so the scan sees the day string
	// regardless of the driver's parseTime setting.
	query := `
		SELECT shop_id, source, DATE_FORMAT(date, '%Y-%m-%d'), metrics, refreshed_at
		FROM daily_metric_cache
		WHERE shop_id = ? AND source = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := ms.db.QueryxContext(ctx, query, shopID.String(), string(source), string(rng.From), string(rng.To))
	if err != nil {
		return nil, fmt.Errorf("failed to read metric cache range: %w", err)
	}
	defer rows.Close()

	var entries []entity.MetricCacheEntry
	for rows.Next() {
		var (
			e          entity.MetricCacheEntry
			shopIDStr  string
			dateStr    string
			metricsRaw []byte
		)
		if err := rows.Scan(&shopIDStr, &e.Source, &dateStr, &metricsRaw, &e.RefreshedAt); err != nil {
			return nil, fmt.Errorf("failed to scan metric cache row: %w", err)
		}

		id, err := uuid.Parse(shopIDStr)
		if err != nil {
			slog.Default().WarnContext(ctx, "skipping metric cache row with malformed shop id",
				slog.String("shop_id", shopIDStr))
			continue
		}
		e.ShopID = id

		day, err := calendar.ParseDay(dateStr)
		if err != nil {
			slog.Default().WarnContext(ctx, "skipping metric cache row with malformed date",
				slog.String("date", dateStr))
			continue
		}
		e.Date = day

		if err := json.Unmarshal(metricsRaw, &e.Metrics); err != nil {
			slog.Default().WarnContext(ctx, "skipping metric cache row with undecodable metrics",
				slog.String("shop_id", shopIDStr),
				slog.String("date", dateStr),
				slog.String("err", err.Error()))
			continue
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metric cache rows: %w", err)
	}

	return entries, nil
}

// UpsertMany writes daily observations, replacing any prior entry for the same
// (shop, source, date). Each row is its own statement; a mid-batch failure
// leaves earlier rows written, which is safe because rows are independent.
func (ms *MYSQLStore) UpsertMany(ctx context.Context, shopID uuid.UUID, source entity.MetricSource, rows []entity.MetricUpsert) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO daily_metric_cache (shop_id, source, date, metrics, refreshed_at)
		VALUES (:shop_id, :source, :date, :metrics, NOW())
		ON DUPLICATE KEY UPDATE
			metrics = VALUES(metrics),
			refreshed_at = NOW()
	`

	for _, r := range rows {
		metricsJSON, err := json.Marshal(r.Metrics)
		if err != nil {
			return fmt.Errorf("failed to encode metrics for %s: %w", r.Date, err)
		}
		params := map[string]any{
			"shop_id": shopID.String(),
			"source":  string(source),
			"date":    string(r.Date),
			"metrics": metricsJSON,
		}
		if err := ExecNamed(ctx, ms.db, query, params); err != nil {
			return fmt.Errorf("failed to upsert metric cache row for %s: %w", r.Date, err)
		}
	}

	return nil
}

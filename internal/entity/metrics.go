package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/winqerweb-code/winqerapp-insights/internal/calendar"
)

// MetricSource identifies which upstream provider produced a daily observation.
type MetricSource string

const (
	SourceAds       MetricSource = "ads"
	SourceAnalytics MetricSource = "analytics"
)

// RawDailyMetric is one upstream observation for one day. Ads rows populate
// spend/clicks/impressions/reach/conversions, analytics rows populate
// event_count/sessions; the other fields stay zero. All values are non-negative.
type RawDailyMetric struct {
	Spend       decimal.Decimal `json:"spend"`
	Clicks      int             `json:"clicks"`
	Impressions int             `json:"impressions"`
	Reach       int             `json:"reach"`
	Conversions int             `json:"conversions"`
	EventCount  int             `json:"event_count"`
	Sessions    int             `json:"sessions"`
}

// IsZero reports whether every field of the observation is zero.
func (m RawDailyMetric) IsZero() bool {
	return m.Spend.IsZero() && m.Clicks == 0 && m.Impressions == 0 &&
		m.Reach == 0 && m.Conversions == 0 && m.EventCount == 0 && m.Sessions == 0
}

// MetricCacheEntry is one persisted daily observation. At most one entry exists per
// (shop, source, date); upserts replace the prior entry for that key.
type MetricCacheEntry struct {
	ShopID      uuid.UUID      `db:"shop_id"`
	Source      MetricSource   `db:"source"`
	Date        calendar.Day   `db:"date"`
	Metrics     RawDailyMetric `db:"-"`
	RefreshedAt time.Time      `db:"refreshed_at"`
}

// MetricUpsert is the write shape for the metric cache; refreshed_at is assigned
// by the store at write time.
type MetricUpsert struct {
	Date    calendar.Day
	Metrics RawDailyMetric
}

// AdsDailyRow is one parsed row of the ads provider's daily series.
type AdsDailyRow struct {
	Date        calendar.Day
	Spend       decimal.Decimal
	Clicks      int
	Impressions int
	Reach       int
	Conversions int
}

// AnalyticsDailyRow is one parsed row of the analytics provider's daily report.
type AnalyticsDailyRow struct {
	Date       calendar.Day
	EventCount int
	Sessions   int
}

// MergedDailyRecord combines both providers' observations for one calendar day
// with the derived ratios. CV carries whichever conversion source the merge chose
// for the whole range.
type MergedDailyRecord struct {
	Date        calendar.Day    `json:"date"`
	Spend       decimal.Decimal `json:"spend"`
	Clicks      int             `json:"clicks"`
	Impressions int             `json:"impressions"`
	Reach       int             `json:"reach"`
	Sessions    int             `json:"sessions"`
	CV          int             `json:"cv"`
	CPA         decimal.Decimal `json:"cpa"`
	CTR         decimal.Decimal `json:"ctr"`
	CVR         decimal.Decimal `json:"cvr"`
}

// PeriodTotals are field sums over a merged series plus ratios derived from the
// sums. Period CTR is total clicks over total impressions, never a mean of daily
// CTRs.
type PeriodTotals struct {
	Spend       decimal.Decimal `json:"spend"`
	Clicks      int             `json:"clicks"`
	Impressions int             `json:"impressions"`
	Reach       int             `json:"reach"`
	Sessions    int             `json:"sessions"`
	CV          int             `json:"cv_count"`
	CPA         decimal.Decimal `json:"cpa"`
	CTR         decimal.Decimal `json:"ctr"`
	CVR         decimal.Decimal `json:"cvr"`
}

// KPIComparison is one month-over-month comparison row. Inverse marks metrics
// where a decrease is favorable; it is a presentation hint only.
type KPIComparison struct {
	Label    string          `json:"label"`
	Current  decimal.Decimal `json:"current"`
	Previous decimal.Decimal `json:"previous"`
	Unit     string          `json:"unit"`
	Inverse  bool            `json:"inverse"`
}

package entity

import (
	"github.com/shopspring/decimal"
	"github.com/winqerweb-code/winqerapp-insights/internal/calendar"
)

// MetricsSummary is the single-period totals payload returned by GetMetrics.
type MetricsSummary struct {
	Period calendar.Range  `json:"period"`
	Spend  decimal.Decimal `json:"spend"`

	Impressions int `json:"impressions"`
	Clicks      int `json:"clicks"`
	CVCount     int `json:"cv_count"`

	CPA decimal.Decimal `json:"cpa"`
	CTR decimal.Decimal `json:"ctr"`
	CVR decimal.Decimal `json:"cvr"`
}

// TimeSeriesPoint is one dated value for chart lines.
type TimeSeriesPoint struct {
	Date  calendar.Day    `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// FunnelStage is one step of the conversion pipeline view.
type FunnelStage struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// KPITrendPoint carries the three derived ratios for one day.
type KPITrendPoint struct {
	Date calendar.Day    `json:"date"`
	CTR  decimal.Decimal `json:"ctr"`
	CVR  decimal.Decimal `json:"cvr"`
	CPA  decimal.Decimal `json:"cpa"`
}

// RegionMetric is an ads-provider regional breakdown row.
type RegionMetric struct {
	Region      string          `json:"region"`
	Spend       decimal.Decimal `json:"spend"`
	Impressions int             `json:"impressions"`
	Clicks      int             `json:"clicks"`
	Conversions int             `json:"conversions"`
}

// DemographicMetric is an ads-provider age/gender breakdown row.
type DemographicMetric struct {
	Age         string          `json:"age"`
	Gender      string          `json:"gender"`
	Spend       decimal.Decimal `json:"spend"`
	Impressions int             `json:"impressions"`
	Clicks      int             `json:"clicks"`
}

// CreativeMetric ranks one ad creative over the requested period.
type CreativeMetric struct {
	CreativeID   string          `json:"creative_id"`
	CreativeName string          `json:"creative_name"`
	Spend        decimal.Decimal `json:"spend"`
	Impressions  int             `json:"impressions"`
	Clicks       int             `json:"clicks"`
	Conversions  int             `json:"conversions"`
	CTR          decimal.Decimal `json:"ctr"`
	CPA          decimal.Decimal `json:"cpa"`
}

// ChartData is the full dashboard payload built from the merged series plus
// best-effort breakdown calls to the ads provider.
type ChartData struct {
	Period         calendar.Range  `json:"period"`
	PreviousPeriod calendar.Range  `json:"previous_period"`
	KpiMoM         []KPIComparison `json:"kpi_mom"`

	SpendTrend []TimeSeriesPoint `json:"spend_trend"`
	DailySpend []TimeSeriesPoint `json:"daily_spend"`
	KpiTrend   []KPITrendPoint   `json:"kpi_trend"`
	Funnel     []FunnelStage     `json:"funnel"`

	RegionPerformance []RegionMetric      `json:"region_performance"`
	Demographics      []DemographicMetric `json:"demographics"`
	TopCreatives      []CreativeMetric    `json:"top_creatives"`
}

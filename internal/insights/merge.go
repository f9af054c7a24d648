// Package insights combines the ads and analytics daily series into unified
// records and derives the funnel ratios.
package insights

import (
	"github.com/shopspring/decimal"
	"github.com/winqerweb-code/winqerapp-insights/internal/calendar"
	"github.com/winqerweb-code/winqerapp-insights/internal/entity"
)

var hundred = decimal.NewFromInt(100)

// Merge combines the two sources into one record per calendar day. The conversion
// source is chosen once for the whole range: analytics event counts when the
// analytics series carries any real signal, otherwise the ads conversion field.
// Deciding per day would let the source flip mid-range and produce incoherent
// trend lines.
func Merge(days []calendar.Day, ads, analytics map[calendar.Day]entity.RawDailyMetric) []entity.MergedDailyRecord {
	useAnalyticsCV := hasAnalyticsSignal(analytics)

	out := make([]entity.MergedDailyRecord, 0, len(days))
	for _, d := range days {
		a := ads[d]
		an := analytics[d]

		cv := a.Conversions
		if useAnalyticsCV {
			cv = an.EventCount
		}

		out = append(out, entity.MergedDailyRecord{
			Date:        d,
			Spend:       a.Spend,
			Clicks:      a.Clicks,
			Impressions: a.Impressions,
			Reach:       a.Reach,
			Sessions:    an.Sessions,
			CV:          cv,
			CPA:         CPA(a.Spend, cv),
			CTR:         CTR(a.Clicks, a.Impressions),
			CVR:         CVR(cv, a.Clicks),
		})
	}
	return out
}

func hasAnalyticsSignal(analytics map[calendar.Day]entity.RawDailyMetric) bool {
	for _, m := range analytics {
		if m.EventCount > 0 || m.Sessions > 0 {
			return true
		}
	}
	return false
}

// Totals sums every field across the records and derives the ratios from the sums.
// Applying the formulas to sums rather than averaging daily ratios keeps a few
// high-volume days from being diluted by many quiet ones.
func Totals(records []entity.MergedDailyRecord) entity.PeriodTotals {
	t := entity.PeriodTotals{Spend: decimal.Zero}
	for _, rec := range records {
		t.Spend = t.Spend.Add(rec.Spend)
		t.Clicks += rec.Clicks
		t.Impressions += rec.Impressions
		t.Reach += rec.Reach
		t.Sessions += rec.Sessions
		t.CV += rec.CV
	}
	t.CPA = CPA(t.Spend, t.CV)
	t.CTR = CTR(t.Clicks, t.Impressions)
	t.CVR = CVR(t.CV, t.Clicks)
	return t
}

// CompareMoM builds the fixed, ordered month-over-month comparison rows. Inverse
// marks metrics where a decrease is favorable; views use it for arrow coloring only.
func CompareMoM(current, previous entity.PeriodTotals) []entity.KPIComparison {
	return []entity.KPIComparison{
		{Label: "spend", Current: current.Spend, Previous: previous.Spend, Unit: "currency", Inverse: true},
		{Label: "cv", Current: decimal.NewFromInt(int64(current.CV)), Previous: decimal.NewFromInt(int64(previous.CV)), Unit: "count"},
		{Label: "cpa", Current: current.CPA, Previous: previous.CPA, Unit: "currency", Inverse: true},
		{Label: "sessions", Current: decimal.NewFromInt(int64(current.Sessions)), Previous: decimal.NewFromInt(int64(previous.Sessions)), Unit: "count"},
	}
}

// CPA is spend per conversion rounded to a whole currency unit, zero when there
// are no conversions.
func CPA(spend decimal.Decimal, cv int) decimal.Decimal {
	if cv <= 0 {
		return decimal.Zero
	}
	return spend.Div(decimal.NewFromInt(int64(cv))).Round(0)
}

// CTR is clicks over impressions as a percentage with two decimals, "0.00" when
// there are no impressions.
func CTR(clicks, impressions int) decimal.Decimal {
	if impressions <= 0 {
		return decimal.Zero.Round(2)
	}
	return decimal.NewFromInt(int64(clicks)).Mul(hundred).
		Div(decimal.NewFromInt(int64(impressions))).Round(2)
}

// CVR is conversions over clicks as a percentage with two decimals, "0.00" when
// there are no clicks.
func CVR(cv, clicks int) decimal.Decimal {
	if clicks <= 0 {
		return decimal.Zero.Round(2)
	}
	return decimal.NewFromInt(int64(cv)).Mul(hundred).
		Div(decimal.NewFromInt(int64(clicks))).Round(2)
}

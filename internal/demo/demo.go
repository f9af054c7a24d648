// Package demo produces synthetic daily series for sandbox shops that have no
// upstream credentials. The output is deterministic and internally consistent so
// dashboard views cannot distinguish it from real data structurally.
package demo

import (
	"github.com/shopspring/decimal"
	"github.com/winqerweb-code/winqerapp-insights/internal/calendar"
	"github.com/winqerweb-code/winqerapp-insights/internal/entity"
)

// Fixture is the monthly baseline the generator scales from.
type Fixture struct {
	MonthlySpend       decimal.Decimal `mapstructure:"monthly_spend"`
	MonthlyImpressions int             `mapstructure:"monthly_impressions"`
	MonthlyReach       int             `mapstructure:"monthly_reach"`
	MonthlyClicks      int             `mapstructure:"monthly_clicks"`
	MonthlyConversions int             `mapstructure:"monthly_conversions"`
	MonthlySessions    int             `mapstructure:"monthly_sessions"`
}

// DefaultFixture returns the built-in sandbox dataset.
func DefaultFixture() Fixture {
	return Fixture{
		MonthlySpend:       decimal.NewFromInt(300000),
		MonthlyImpressions: 450000,
		MonthlyReach:       180000,
		MonthlyClicks:      9000,
		MonthlyConversions: 300,
		MonthlySessions:    12000,
	}
}

// Generator spreads fixture totals across a requested span.
type Generator struct {
	fixture Fixture
}

// New creates a generator. A zero-valued fixture falls back to the default dataset.
func New(fixture Fixture) *Generator {
	if fixture.MonthlyImpressions == 0 {
		fixture = DefaultFixture()
	}
	return &Generator{fixture: fixture}
}

// DailySeries returns one observation per requested day. Monthly totals are divided
// evenly across the day count; division remainders land on the earliest days so the
// period sums stay exact.
func (g *Generator) DailySeries(source entity.MetricSource, days []calendar.Day) map[calendar.Day]entity.RawDailyMetric {
	out := make(map[calendar.Day]entity.RawDailyMetric, len(days))
	if len(days) == 0 {
		return out
	}

	n := len(days)
	impressions := splitEven(g.fixture.MonthlyImpressions, n)
	reach := splitEven(g.fixture.MonthlyReach, n)
	clicks := splitEven(g.fixture.MonthlyClicks, n)
	conversions := splitEven(g.fixture.MonthlyConversions, n)
	sessions := splitEven(g.fixture.MonthlySessions, n)
	spend := splitEvenDecimal(g.fixture.MonthlySpend, n)

	for i, d := range days {
		var m entity.RawDailyMetric
		switch source {
		case entity.SourceAnalytics:
			m.EventCount = conversions[i]
			m.Sessions = sessions[i]
		default:
			m.Spend = spend[i]
			m.Impressions = impressions[i]
			m.Reach = reach[i]
			m.Clicks = clicks[i]
			m.Conversions = conversions[i]
		}
		out[d] = m
	}
	return out
}

func splitEven(total, n int) []int {
	out := make([]int, n)
	base := total / n
	rem := total % n
	for i := range out {
		out[i] = base
		if i < rem {
			out[i]++
		}
	}
	return out
}

func splitEvenDecimal(total decimal.Decimal, n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	base := total.Div(decimal.NewFromInt(int64(n))).RoundDown(0)
	for i := range out {
		out[i] = base
	}
	// Put the rounding remainder on the first day so the span total matches.
	out[0] = out[0].Add(total.Sub(base.Mul(decimal.NewFromInt(int64(n)))))
	return out
}

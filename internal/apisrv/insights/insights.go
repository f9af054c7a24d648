// Package insights exposes the reporting operations: per-period metric
// summaries and the full dashboard chart payload.
package insights

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/winqerweb-code/winqerapp-insights/internal/calendar"
	"github.com/winqerweb-code/winqerapp-insights/internal/dependency"
	"github.com/winqerweb-code/winqerapp-insights/internal/entity"
	"github.com/winqerweb-code/winqerapp-insights/internal/insights"
	"github.com/winqerweb-code/winqerapp-insights/internal/reconcile"
	"golang.org/x/sync/errgroup"
)

// ErrShopNotFound is returned when the requested shop does not exist.
var ErrShopNotFound = errors.New("shop not found")

// TopCreativesLimit caps the creative ranking in the chart payload.
const TopCreativesLimit = 5

// Server implements the insights operations.
type Server struct {
	repo   dependency.Repository
	engine *reconcile.Engine
	ads    dependency.AdsProvider
	cal    *calendar.Resolver
}

// New creates a new insights server.
func New(repo dependency.Repository, engine *reconcile.Engine, ads dependency.AdsProvider, cal *calendar.Resolver) *Server {
	return &Server{
		repo:   repo,
		engine: engine,
		ads:    ads,
		cal:    cal,
	}
}

// GetMetrics returns period totals for one shop over the range.
func (s *Server) GetMetrics(ctx context.Context, shopID uuid.UUID, rng calendar.Range) (*entity.MetricsSummary, error) {
	shop, err := s.getShop(ctx, shopID)
	if err != nil {
		return nil, err
	}

	records, err := s.mergedSeries(ctx, shop, rng)
	if err != nil {
		return nil, err
	}

	totals := insights.Totals(records)
	return &entity.MetricsSummary{
		Period:      rng,
		Spend:       totals.Spend,
		Impressions: totals.Impressions,
		Clicks:      totals.Clicks,
		CVCount:     totals.CV,
		CPA:         totals.CPA,
		CTR:         totals.CTR,
		CVR:         totals.CVR,
	}, nil
}

// GetChartData returns the dashboard payload: month-over-month KPI rows, daily
// and cumulative spend series, ratio trends, the conversion funnel and the ads
// provider breakdowns. The current and previous periods reconcile concurrently;
// breakdowns are best effort and come back empty when their calls fail.
func (s *Server) GetChartData(ctx context.Context, shopID uuid.UUID, rng calendar.Range) (*entity.ChartData, error) {
	shop, err := s.getShop(ctx, shopID)
	if err != nil {
		return nil, err
	}

	prevRng, err := s.cal.PreviousPeriod(rng)
	if err != nil {
		return nil, err
	}

	var current, previous []entity.MergedDailyRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.mergedSeries(gctx, shop, rng)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.mergedSeries(gctx, shop, prevRng)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	curTotals := insights.Totals(current)
	prevTotals := insights.Totals(previous)

	data := &entity.ChartData{
		Period:         rng,
		PreviousPeriod: prevRng,
		KpiMoM:         insights.CompareMoM(curTotals, prevTotals),
		SpendTrend:     spendTrend(current),
		DailySpend:     dailySpend(current),
		KpiTrend:       kpiTrend(current),
		Funnel:         funnel(curTotals),
	}

	s.attachBreakdowns(ctx, shop, rng, data)
	return data, nil
}

func (s *Server) getShop(ctx context.Context, shopID uuid.UUID) (*entity.Shop, error) {
	shop, err := s.repo.Shops().GetShopByID(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("can't get shop: %w", err)
	}
	if shop == nil {
		return nil, ErrShopNotFound
	}
	return shop, nil
}

// mergedSeries reconciles both sources concurrently and merges them into the
// complete daily series for the range.
func (s *Server) mergedSeries(ctx context.Context, shop *entity.Shop, rng calendar.Range) ([]entity.MergedDailyRecord, error) {
	days, err := s.cal.ExpandRange(rng)
	if err != nil {
		return nil, err
	}

	var ads, analytics map[calendar.Day]entity.RawDailyMetric
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ads, err = s.engine.Reconcile(gctx, shop, entity.SourceAds, rng)
		return err
	})
	g.Go(func() error {
		var err error
		analytics, err = s.engine.Reconcile(gctx, shop, entity.SourceAnalytics, rng)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return insights.Merge(days, ads, analytics), nil
}

// attachBreakdowns fills the region, demographic and creative sections from the
// ads provider. Failures log and leave the section empty; demo shops have no
// upstream account to break down.
func (s *Server) attachBreakdowns(ctx context.Context, shop *entity.Shop, rng calendar.Range, data *entity.ChartData) {
	if shop.Demo {
		return
	}

	cred, err := s.repo.Credentials().Get(ctx, shop.ID, entity.IntegrationAds)
	if err != nil || cred == nil {
		slog.Default().WarnContext(ctx, "skipping ads breakdowns, no usable credential",
			slog.String("shop_id", shop.ID.String()))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		regions, err := s.ads.FetchRegionBreakdown(gctx, cred, shop.AdsAccountID, rng)
		if err != nil {
			slog.Default().WarnContext(gctx, "region breakdown failed",
				slog.String("shop_id", shop.ID.String()),
				slog.String("err", err.Error()))
			return nil
		}
		data.RegionPerformance = regions
		return nil
	})
	g.Go(func() error {
		demographics, err := s.ads.FetchDemographicBreakdown(gctx, cred, shop.AdsAccountID, rng)
		if err != nil {
			slog.Default().WarnContext(gctx, "demographic breakdown failed",
				slog.String("shop_id", shop.ID.String()),
				slog.String("err", err.Error()))
			return nil
		}
		data.Demographics = demographics
		return nil
	})
	g.Go(func() error {
		creatives, err := s.ads.FetchCreativeSeries(gctx, cred, shop.AdsAccountID, rng)
		if err != nil {
			slog.Default().WarnContext(gctx, "creative series failed",
				slog.String("shop_id", shop.ID.String()),
				slog.String("err", err.Error()))
			return nil
		}
		data.TopCreatives = rankCreatives(creatives, TopCreativesLimit)
		return nil
	})
	_ = g.Wait()
}

// spendTrend is the cumulative spend line over the period.
func spendTrend(records []entity.MergedDailyRecord) []entity.TimeSeriesPoint {
	points := make([]entity.TimeSeriesPoint, 0, len(records))
	running := decimal.Zero
	for _, r := range records {
		running = running.Add(r.Spend)
		points = append(points, entity.TimeSeriesPoint{Date: r.Date, Value: running})
	}
	return points
}

func dailySpend(records []entity.MergedDailyRecord) []entity.TimeSeriesPoint {
	points := make([]entity.TimeSeriesPoint, 0, len(records))
	for _, r := range records {
		points = append(points, entity.TimeSeriesPoint{Date: r.Date, Value: r.Spend})
	}
	return points
}

func kpiTrend(records []entity.MergedDailyRecord) []entity.KPITrendPoint {
	points := make([]entity.KPITrendPoint, 0, len(records))
	for _, r := range records {
		points = append(points, entity.KPITrendPoint{
			Date: r.Date,
			CTR:  r.CTR,
			CVR:  r.CVR,
			CPA:  r.CPA,
		})
	}
	return points
}

// funnel is the impressions -> reach -> sessions -> conversions pipeline built
// from period totals.
func funnel(t entity.PeriodTotals) []entity.FunnelStage {
	return []entity.FunnelStage{
		{Label: "impressions", Value: t.Impressions},
		{Label: "reach", Value: t.Reach},
		{Label: "sessions", Value: t.Sessions},
		{Label: "conversions", Value: t.CV},
	}
}

// rankCreatives sorts creatives by spend descending, derives their ratios and
// keeps the top n.
func rankCreatives(creatives []entity.CreativeMetric, n int) []entity.CreativeMetric {
	sort.Slice(creatives, func(i, j int) bool {
		return creatives[i].Spend.GreaterThan(creatives[j].Spend)
	})
	if len(creatives) > n {
		creatives = creatives[:n]
	}
	for i := range creatives {
		creatives[i].CTR = insights.CTR(creatives[i].Clicks, creatives[i].Impressions)
		creatives[i].CPA = insights.CPA(creatives[i].Spend, creatives[i].Conversions)
	}
	return creatives
}

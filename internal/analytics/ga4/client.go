// Package ga4 implements the web-analytics provider on the GA4 Data API.
package ga4

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"log/slog"

	"github.com/google/uuid"
	"github.com/winqerweb-code/winqerapp-insights/internal/calendar"
	"github.com/winqerweb-code/winqerapp-insights/internal/entity"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/option"
)

// Config holds GA4 client configuration.
type Config struct {
	Enabled bool `mapstructure:"enabled"`
}

// Client wraps the GA4 Data API. Credentials are per shop, so the underlying
// service is built lazily per credential and cached by shop.
type Client struct {
	enabled bool

	mu       sync.Mutex
	services map[uuid.UUID]*analyticsdata.Service
}

// NewClient creates a new GA4 client.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		slog.Default().InfoContext(ctx, "GA4 analytics disabled")
		return &Client{enabled: false}, nil
	}
	return &Client{
		enabled:  true,
		services: make(map[uuid.UUID]*analyticsdata.Service),
	}, nil
}

// FetchDailyEventCount returns one row per day with recorded activity inside
// the range, sparse: days without traffic are absent from the response. Rows
// carry the count of the named event plus session totals.
func (c *Client) FetchDailyEventCount(ctx context.Context, cred *entity.IntegrationCredential, propertyID, eventName string, rng calendar.Range) ([]entity.AnalyticsDailyRow, error) {
	if !c.enabled {
		return nil, fmt.Errorf("ga4: client disabled")
	}
	if propertyID == "" {
		return nil, fmt.Errorf("ga4: property id is required")
	}

	service, err := c.serviceFor(ctx, cred)
	if err != nil {
		return nil, err
	}

	req := &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{
			{StartDate: string(rng.From), EndDate: string(rng.To)},
		},
		Dimensions: []*analyticsdata.Dimension{
			{Name: "date"},
		},
		Metrics: []*analyticsdata.Metric{
			{Name: "eventCount"},
			{Name: "sessions"},
		},
		DimensionFilter: &analyticsdata.FilterExpression{
			Filter: &analyticsdata.Filter{
				FieldName: "eventName",
				StringFilter: &analyticsdata.StringFilter{
					MatchType: "EXACT",
					Value:     eventName,
				},
			},
		},
		OrderBys: []*analyticsdata.OrderBy{
			{
				Dimension: &analyticsdata.DimensionOrderBy{DimensionName: "date"},
				Desc:      false,
			},
		},
	}

	resp, err := service.Properties.RunReport(fmt.Sprintf("properties/%s", propertyID), req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to run GA4 report: %w", err)
	}

	var rows []entity.AnalyticsDailyRow
	for _, row := range resp.Rows {
		if len(row.DimensionValues) == 0 || len(row.MetricValues) < 2 {
			continue
		}

		day, err := parseGA4Date(row.DimensionValues[0].Value)
		if err != nil {
			slog.Default().WarnContext(ctx, "skipping GA4 row with unparseable date",
				slog.String("date", row.DimensionValues[0].Value),
				slog.String("err", err.Error()))
			continue
		}

		rows = append(rows, entity.AnalyticsDailyRow{
			Date:       day,
			EventCount: parseInt(row.MetricValues[0].Value),
			Sessions:   parseInt(row.MetricValues[1].Value),
		})
	}

	return rows, nil
}

// serviceFor returns a Data API service authenticated with the shop's
// credential. The secret is service-account JSON, or a path to it.
func (c *Client) serviceFor(ctx context.Context, cred *entity.IntegrationCredential) (*analyticsdata.Service, error) {
	if cred == nil || cred.Secret == "" {
		return nil, fmt.Errorf("ga4: no service account credential")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.services[cred.ShopID]; ok {
		return s, nil
	}

	var opts []option.ClientOption
	if cred.Secret[0] == '{' {
		opts = append(opts, option.WithCredentialsJSON([]byte(cred.Secret)))
	} else {
		opts = append(opts, option.WithCredentialsFile(cred.Secret))
	}

	service, err := analyticsdata.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GA4 service: %w", err)
	}

	c.services[cred.ShopID] = service
	return service, nil
}

// parseGA4Date converts the Data API's compact date dimension (20240601) into a Day.
func parseGA4Date(s string) (calendar.Day, error) {
	if len(s) != 8 {
		return "", fmt.Errorf("unexpected GA4 date %q", s)
	}
	day := calendar.Day(s[0:4] + "-" + s[4:6] + "-" + s[6:8])
	if _, err := calendar.ParseDay(string(day)); err != nil {
		return "", err
	}
	return day, nil
}

func parseInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

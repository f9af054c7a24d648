// Package meta implements the advertising provider against the Meta Marketing
// API insights edge.
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/winqerweb-code/winqerapp-insights/internal/calendar"
	"github.com/winqerweb-code/winqerapp-insights/internal/entity"
)

const defaultBaseURL = "https://graph.facebook.com/v19.0/"

// Config holds Meta client configuration.
type Config struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	ConversionAction string        `mapstructure:"conversion_action"`
}

// DefaultConfig returns default Meta client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:          defaultBaseURL,
		Timeout:          10 * time.Second,
		ConversionAction: "offsite_conversion",
	}
}

// Client calls the Meta insights edge. One attempt per request; rate-limit and
// auth failures surface as errors for the caller to degrade on.
type Client struct {
	cli *resty.Client
	c   Config
}

// New creates a Meta client.
func New(c Config) *Client {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultConfig().Timeout
	}
	if c.ConversionAction == "" {
		c.ConversionAction = DefaultConfig().ConversionAction
	}
	cli := resty.New()
	cli.SetBaseURL(c.BaseURL)
	cli.SetTimeout(c.Timeout)
	return &Client{cli: cli, c: c}
}

type insightsResponse struct {
	Data  []insightRow  `json:"data"`
	Error *graphAPIFail `json:"error"`
}

type insightRow struct {
	DateStart   string      `json:"date_start"`
	Spend       string      `json:"spend"`
	Clicks      string      `json:"clicks"`
	Impressions string      `json:"impressions"`
	Reach       string      `json:"reach"`
	Actions     []actionRow `json:"actions"`

	Region string `json:"region"`
	Age    string `json:"age"`
	Gender string `json:"gender"`
	AdID   string `json:"ad_id"`
	AdName string `json:"ad_name"`
}

type actionRow struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

type graphAPIFail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// FetchDailySeries returns one row per day with activity inside the range,
// sparse: days with no delivery are absent from the response.
func (c *Client) FetchDailySeries(ctx context.Context, cred *entity.IntegrationCredential, accountID string, rng calendar.Range) ([]entity.AdsDailyRow, error) {
	rows, err := c.insights(ctx, cred, accountID, rng, map[string]string{
		"fields":         "spend,clicks,impressions,reach,actions",
		"time_increment": "1",
		"level":          "account",
	})
	if err != nil {
		return nil, err
	}

	out := make([]entity.AdsDailyRow, 0, len(rows))
	for _, row := range rows {
		parsed, ok := c.parseDailyRow(ctx, row)
		if !ok {
			continue
		}
		out = append(out, parsed)
	}
	return out, nil
}

// FetchRegionBreakdown returns period aggregates broken down by delivery region.
func (c *Client) FetchRegionBreakdown(ctx context.Context, cred *entity.IntegrationCredential, accountID string, rng calendar.Range) ([]entity.RegionMetric, error) {
	rows, err := c.insights(ctx, cred, accountID, rng, map[string]string{
		"fields":     "spend,clicks,impressions,actions",
		"breakdowns": "region",
		"level":      "account",
	})
	if err != nil {
		return nil, err
	}

	out := make([]entity.RegionMetric, 0, len(rows))
	for _, row := range rows {
		spend, err := decimal.NewFromString(orZero(row.Spend))
		if err != nil || spend.IsNegative() {
			continue
		}
		out = append(out, entity.RegionMetric{
			Region:      row.Region,
			Spend:       spend,
			Impressions: atoi(row.Impressions),
			Clicks:      atoi(row.Clicks),
			Conversions: c.conversions(row.Actions),
		})
	}
	return out, nil
}

// FetchDemographicBreakdown returns period aggregates broken down by age and gender.
func (c *Client) FetchDemographicBreakdown(ctx context.Context, cred *entity.IntegrationCredential, accountID string, rng calendar.Range) ([]entity.DemographicMetric, error) {
	rows, err := c.insights(ctx, cred, accountID, rng, map[string]string{
		"fields":     "spend,clicks,impressions",
		"breakdowns": "age,gender",
		"level":      "account",
	})
	if err != nil {
		return nil, err
	}

	out := make([]entity.DemographicMetric, 0, len(rows))
	for _, row := range rows {
		spend, err := decimal.NewFromString(orZero(row.Spend))
		if err != nil || spend.IsNegative() {
			continue
		}
		out = append(out, entity.DemographicMetric{
			Age:         row.Age,
			Gender:      row.Gender,
			Spend:       spend,
			Impressions: atoi(row.Impressions),
			Clicks:      atoi(row.Clicks),
		})
	}
	return out, nil
}

// FetchCreativeSeries returns period aggregates per ad creative, for ranking.
func (c *Client) FetchCreativeSeries(ctx context.Context, cred *entity.IntegrationCredential, accountID string, rng calendar.Range) ([]entity.CreativeMetric, error) {
	rows, err := c.insights(ctx, cred, accountID, rng, map[string]string{
		"fields": "ad_id,ad_name,spend,clicks,impressions,actions",
		"level":  "ad",
	})
	if err != nil {
		return nil, err
	}

	out := make([]entity.CreativeMetric, 0, len(rows))
	for _, row := range rows {
		spend, err := decimal.NewFromString(orZero(row.Spend))
		if err != nil || spend.IsNegative() {
			continue
		}
		m := entity.CreativeMetric{
			CreativeID:   row.AdID,
			CreativeName: row.AdName,
			Spend:        spend,
			Impressions:  atoi(row.Impressions),
			Clicks:       atoi(row.Clicks),
			Conversions:  c.conversions(row.Actions),
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *Client) insights(ctx context.Context, cred *entity.IntegrationCredential, accountID string, rng calendar.Range, params map[string]string) ([]insightRow, error) {
	if cred == nil || cred.Secret == "" {
		return nil, fmt.Errorf("meta: no access token")
	}

	timeRange := fmt.Sprintf(`{"since":"%s","until":"%s"}`, rng.From, rng.To)

	resp, err := c.cli.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("time_range", timeRange).
		SetQueryParam("access_token", cred.Secret).
		Get(fmt.Sprintf("act_%s/insights", accountID))
	if err != nil {
		return nil, fmt.Errorf("meta insights request: %w", err)
	}

	var res insightsResponse
	if err := json.Unmarshal(resp.Body(), &res); err != nil {
		return nil, fmt.Errorf("meta: could not unmarshal response: %w : body: %v", err, resp.String())
	}
	if res.Error != nil {
		return nil, fmt.Errorf("meta api error %d (%s): %s", res.Error.Code, res.Error.Type, res.Error.Message)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("meta api request failed: %s", resp.Status())
	}
	return res.Data, nil
}

// parseDailyRow validates one row; malformed rows are skipped, never aborting the batch.
func (c *Client) parseDailyRow(ctx context.Context, row insightRow) (entity.AdsDailyRow, bool) {
	day, err := calendar.ParseDay(row.DateStart)
	if err != nil {
		slog.Default().WarnContext(ctx, "skipping meta row with unparseable date",
			slog.String("date_start", row.DateStart))
		return entity.AdsDailyRow{}, false
	}
	spend, err := decimal.NewFromString(orZero(row.Spend))
	if err != nil || spend.IsNegative() {
		slog.Default().WarnContext(ctx, "skipping meta row with malformed spend",
			slog.String("date", string(day)),
			slog.String("spend", row.Spend))
		return entity.AdsDailyRow{}, false
	}
	return entity.AdsDailyRow{
		Date:        day,
		Spend:       spend,
		Clicks:      atoi(row.Clicks),
		Impressions: atoi(row.Impressions),
		Reach:       atoi(row.Reach),
		Conversions: c.conversions(row.Actions),
	}, true
}

// conversions extracts the configured conversion action's count from the actions list.
func (c *Client) conversions(actions []actionRow) int {
	for _, a := range actions {
		if a.ActionType == c.c.ConversionAction {
			return atoi(a.Value)
		}
	}
	return 0
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

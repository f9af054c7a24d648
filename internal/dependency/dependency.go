package dependency

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/winqerweb-code/winqerapp-insights/internal/calendar"
	"github.com/winqerweb-code/winqerapp-insights/internal/entity"
)

type (
	// Shops is the minimal read surface the engine needs over tracked stores.
	// Store CRUD itself lives outside this service.
	Shops interface {
		// GetShopByID returns a shop by its ID, nil when unknown.
		GetShopByID(ctx context.Context, id uuid.UUID) (*entity.Shop, error)
		// ListShops returns all tracked shops.
		ListShops(ctx context.Context) ([]entity.Shop, error)
	}

	// Credentials resolves per-shop upstream secrets. Get returns (nil, nil)
	// when no credential is configured for the integration.
	Credentials interface {
		Get(ctx context.Context, shopID uuid.UUID, integration entity.Integration) (*entity.IntegrationCredential, error)
	}

	// MetricCache is the persisted (shop, source, date) -> metrics store.
	MetricCache interface {
		// ReadRange bulk-reads all cached entries for the shop and source whose
		// date falls inside the range.
		ReadRange(ctx context.Context, shopID uuid.UUID, source entity.MetricSource, rng calendar.Range) ([]entity.MetricCacheEntry, error)
		// UpsertMany writes daily observations, replacing any prior entry for the
		// same (shop, source, date). Each row is atomic on its own; there is no
		// batch transaction.
		UpsertMany(ctx context.Context, shopID uuid.UUID, source entity.MetricSource, rows []entity.MetricUpsert) error
	}

	// AdsProvider is the advertising platform client. Every call may fail on
	// auth, rate limit or network errors; one attempt per request, no retries.
	AdsProvider interface {
		FetchDailySeries(ctx context.Context, cred *entity.IntegrationCredential, accountID string, rng calendar.Range) ([]entity.AdsDailyRow, error)
		FetchRegionBreakdown(ctx context.Context, cred *entity.IntegrationCredential, accountID string, rng calendar.Range) ([]entity.RegionMetric, error)
		FetchDemographicBreakdown(ctx context.Context, cred *entity.IntegrationCredential, accountID string, rng calendar.Range) ([]entity.DemographicMetric, error)
		FetchCreativeSeries(ctx context.Context, cred *entity.IntegrationCredential, accountID string, rng calendar.Range) ([]entity.CreativeMetric, error)
	}

	// AnalyticsProvider is the web-analytics platform client.
	AnalyticsProvider interface {
		FetchDailyEventCount(ctx context.Context, cred *entity.IntegrationCredential, propertyID, eventName string, rng calendar.Range) ([]entity.AnalyticsDailyRow, error)
	}

	// Repository aggregates the persisted collaborators.
	Repository interface {
		Shops() Shops
		Credentials() Credentials
		MetricCache() MetricCache
		Ping(ctx context.Context) error
		Close()
		DB() DB
	}

	// DB represents the database interface.
	DB interface {
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

		// sqlx methods
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
		QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
		QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}
)

package entity

import (
	"time"

	"github.com/google/uuid"
)

// Integration names a connected upstream a shop may hold credentials for.
type Integration string

const (
	IntegrationAds       Integration = "ads"
	IntegrationAnalytics Integration = "analytics"
)

// IntegrationFor maps a metric source to the integration that authorizes it.
func IntegrationFor(source MetricSource) Integration {
	if source == SourceAnalytics {
		return IntegrationAnalytics
	}
	return IntegrationAds
}

// Shop is a tracked store whose performance is aggregated.
type Shop struct {
	ID            uuid.UUID `db:"id"`
	Name          string    `db:"name"`
	Demo          bool      `db:"is_demo"`
	AdsAccountID  string    `db:"ads_account_id"`
	GA4PropertyID string    `db:"ga4_property_id"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// IntegrationCredential is a per-shop upstream secret. Ads holds an access token,
// analytics holds a service-account JSON blob.
type IntegrationCredential struct {
	ShopID      uuid.UUID   `db:"shop_id"`
	Integration Integration `db:"integration"`
	Secret      string      `db:"secret"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

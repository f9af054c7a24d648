package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/winqerweb-code/winqerapp-insights/internal/dependency"
	"github.com/winqerweb-code/winqerapp-insights/internal/entity"
)

type shopStore struct {
	*MYSQLStore
}

// Shops returns an object implementing the Shops interface.
func (ms *MYSQLStore) Shops() dependency.Shops {
	return &shopStore{
		MYSQLStore: ms,
	}
}

type shopRow struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	IsDemo        bool   `db:"is_demo"`
	AdsAccountID  string `db:"ads_account_id"`
	GA4PropertyID string `db:"ga4_property_id"`
}

func (r shopRow) toShop() (entity.Shop, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return entity.Shop{}, fmt.Errorf("malformed shop id %q: %w", r.ID, err)
	}
	return entity.Shop{
		ID:            id,
		Name:          r.Name,
		Demo:          r.IsDemo,
		AdsAccountID:  r.AdsAccountID,
		GA4PropertyID: r.GA4PropertyID,
	}, nil
}

// GetShopByID returns a shop by its ID, nil when unknown.
func (ms *MYSQLStore) GetShopByID(ctx context.Context, id uuid.UUID) (*entity.Shop, error) {
	query := `
		SELECT id, name, is_demo, ads_account_id, ga4_property_id
		FROM shop
		WHERE id = :id
	`

	row, err := QueryNamedOne[shopRow](ctx, ms.db, query, map[string]any{"id": id.String()})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}

	shop, err := row.toShop()
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

// ListShops returns all tracked shops.
func (ms *MYSQLStore) ListShops(ctx context.Context) ([]entity.Shop, error) {
	query := `
		SELECT id, name, is_demo, ads_account_id, ga4_property_id
		FROM shop
		ORDER BY created_at ASC
	`

	rows, err := QueryListNamed[shopRow](ctx, ms.db, query, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}

	shops := make([]entity.Shop, 0, len(rows))
	for _, r := range rows {
		shop, err := r.toShop()
		if err != nil {
			return nil, err
		}
		shops = append(shops, shop)
	}
	return shops, nil
}

type credentialStore struct {
	*MYSQLStore
}

// Credentials returns an object implementing the Credentials interface.
func (ms *MYSQLStore) Credentials() dependency.Credentials {
	return &credentialStore{
		MYSQLStore: ms,
	}
}

// Get returns the shop's credential for the integration, (nil, nil) when none
// is configured.
func (ms *MYSQLStore) Get(ctx context.Context, shopID uuid.UUID, integration entity.Integration) (*entity.IntegrationCredential, error) {
	query := `
		SELECT shop_id, integration, secret, updated_at
		FROM integration_credential
		WHERE shop_id = ? AND integration = ?
	`

	var row struct {
		ShopID      string             `db:"shop_id"`
		Integration entity.Integration `db:"integration"`
		Secret      string             `db:"secret"`
		UpdatedAt   sql.NullTime       `db:"updated_at"`
	}
	err := ms.db.GetContext(ctx, &row, query, shopID.String(), string(integration))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	cred := &entity.IntegrationCredential{
		ShopID:      shopID,
		Integration: row.Integration,
		Secret:      row.Secret,
	}
	if row.UpdatedAt.Valid {
		cred.UpdatedAt = row.UpdatedAt.Time
	}
	return cred, nil
}

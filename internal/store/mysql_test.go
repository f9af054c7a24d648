package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// newTestDB returns a store backed by the database named in TEST_DB_DSN,
// skipping the test when none is configured.
func newTestDB(t *testing.T) *MYSQLStore {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	db, err := New(context.Background(), Config{
		DSN:         dsn,
		Automigrate: true,
	})
	assert.NoError(t, err)

	_, err = db.db.ExecContext(context.Background(), "SET FOREIGN_KEY_CHECKS = 0")
	assert.NoError(t, err)
	_, err = db.db.ExecContext(context.Background(), "DELETE FROM daily_metric_cache")
	assert.NoError(t, err)
	_, err = db.db.ExecContext(context.Background(), "DELETE FROM integration_credential")
	assert.NoError(t, err)
	_, err = db.db.ExecContext(context.Background(), "DELETE FROM shop")
	assert.NoError(t, err)
	_, err = db.db.ExecContext(context.Background(), "SET FOREIGN_KEY_CHECKS = 1")
	assert.NoError(t, err)

	return db
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	assert.NoError(t, db.Ping(context.Background()))
}

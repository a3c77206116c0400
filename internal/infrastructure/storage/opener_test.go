package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/costos-bi/internal/domain"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
	"github.com/jhoicas/costos-bi/internal/domain/tenant"
	"github.com/jhoicas/costos-bi/internal/infrastructure/sqlite"
	"github.com/jhoicas/costos-bi/internal/infrastructure/storage"
	"github.com/jhoicas/costos-bi/pkg/config"
)

func testConfig(driver, path string) *config.Config {
	return &config.Config{
		Costing: config.CostingConfig{Workers: 2, PurchaseClass: "200", SeedExcludedClasses: []string{"601"}},
		Ledger:  config.LedgerConfig{Driver: driver, SQLitePath: path},
	}
}

func TestOpener_SQLiteUsaRutaDeMetadata(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tenantPath := filepath.Join(dir, "acme.db")

	db, err := sqlite.Open(ctx, tenantPath)
	require.NoError(t, err)
	require.NoError(t, sqlite.InsertMovements(ctx, db, []entity.MovementEvent{{
		Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), WarehouseID: "B1", ProductID: "P1",
		MovementClass: "200", UnitPrice: decimal.NewFromInt(5), Quantity: decimal.NewFromInt(10),
	}}))
	require.NoError(t, db.Close())

	opener := storage.NewOpener(testConfig(config.LedgerDriverSQLite, filepath.Join(dir, "default.db")))
	stores, err := opener.Open(ctx, tenant.Config{
		Name:     "acme",
		Metadata: map[string]string{storage.MetadataSQLitePath: tenantPath},
	})
	require.NoError(t, err)
	defer stores.Close()

	dates, err := stores.Ledger.ListEntityDates(ctx, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, dates, 1)
}

func TestOpener_MotorDesconocido(t *testing.T) {
	_, err := storage.NewOpener(testConfig("oracle", "")).Open(context.Background(), tenant.Config{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrConfig)
}

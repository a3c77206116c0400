package bootstrap_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/costos-bi/internal/application/costing"
	"github.com/jhoicas/costos-bi/internal/bootstrap"
	"github.com/jhoicas/costos-bi/internal/domain"
	"github.com/jhoicas/costos-bi/pkg/config"
	"github.com/jhoicas/costos-bi/pkg/logger"
)

func costingRequest() costing.RunRequest {
	return costing.RunRequest{Cutoff: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)}
}

func TestNew_EmpresasDesdeArchivoYSQLite(t *testing.T) {
	dir := t.TempDir()
	tenants := filepath.Join(dir, "tenants.yaml")
	require.NoError(t, os.WriteFile(tenants, []byte(`
tenants:
  - name: Acme
    database: {database_url: "postgres://no-usado"}
`), 0o600))

	cfg := &config.Config{
		Tenants: config.TenantsConfig{Source: config.TenantsSourceFile, File: tenants},
		Costing: config.CostingConfig{Workers: 1, PurchaseClass: "200"},
		Ledger:  config.LedgerConfig{Driver: config.LedgerDriverSQLite, SQLitePath: filepath.Join(dir, "acme.db")},
	}
	app, err := bootstrap.New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer app.Close()

	assert.ElementsMatch(t, []string{"csv", "pdf"}, app.Service.Formats())

	report, err := app.Service.Run(context.Background(), "acme", costingRequest())
	require.NoError(t, err)
	assert.Zero(t, report.Entities, "ledger vacío")

	_, err = app.Service.Run(context.Background(), "otra", costingRequest())
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestNew_ArchivoInexistente(t *testing.T) {
	cfg := &config.Config{
		Tenants: config.TenantsConfig{Source: config.TenantsSourceFile, File: filepath.Join(t.TempDir(), "x.yaml")},
	}
	_, err := bootstrap.New(context.Background(), cfg, logger.Nop())
	assert.ErrorIs(t, err, domain.ErrConfig)
}

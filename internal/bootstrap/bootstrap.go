// Package bootstrap arma el servicio de costos a partir de la configuración (CLI y API).
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jhoicas/costos-bi/internal/application/costing"
	"github.com/jhoicas/costos-bi/internal/domain/tenant"
	"github.com/jhoicas/costos-bi/internal/infrastructure/csvreport"
	"github.com/jhoicas/costos-bi/internal/infrastructure/metrics"
	"github.com/jhoicas/costos-bi/internal/infrastructure/pdf"
	"github.com/jhoicas/costos-bi/internal/infrastructure/postgres"
	"github.com/jhoicas/costos-bi/internal/infrastructure/storage"
	"github.com/jhoicas/costos-bi/internal/infrastructure/tenantfile"
	"github.com/jhoicas/costos-bi/pkg/config"
	"github.com/jhoicas/costos-bi/pkg/logger"
)

// App dependencias armadas. Close libera la base de control si se abrió.
type App struct {
	Service *costing.Service
	Metrics *metrics.Observer
	Close   func()
}

// New resuelve el origen de empresas, el motor de almacenamiento, métricas y formatos de exportación.
// Cualquier error aquí es de configuración.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	resolver, closeFn, err := tenantResolver(ctx, cfg)
	if err != nil {
		return nil, err
	}
	observer := metrics.NewObserver()
	svc := costing.NewService(resolver, storage.NewOpener(cfg), log, costing.ServiceConfig{
		Workers:  cfg.Costing.Workers,
		Observer: observer,
		Writers:  []costing.ReportWriter{csvreport.NewWriter(), pdf.NewValuationWriter()},
	})
	return &App{Service: svc, Metrics: observer, Close: closeFn}, nil
}

func tenantResolver(ctx context.Context, cfg *config.Config) (tenant.Resolver, func(), error) {
	switch cfg.Tenants.Source {
	case config.TenantsSourceDB:
		pool, err := postgres.NewPool(ctx, cfg.DB.ConnectionString(), postgres.PoolOptions{MaxConns: 2})
		if err != nil {
			return nil, nil, fmt.Errorf("base de control: %w", err)
		}
		return postgres.NewTenantResolver(pool), pool.Close, nil
	default:
		r, err := tenantfile.Load(cfg.Tenants.File)
		if err != nil {
			return nil, nil, err
		}
		return r, func() {}, nil
	}
}

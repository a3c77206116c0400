// Package storage abre el ledger y el histórico de una empresa según el motor configurado.
package storage

import (
	"context"
	"fmt"

	"github.com/jhoicas/costos-bi/internal/application/costing"
	"github.com/jhoicas/costos-bi/internal/domain"
	"github.com/jhoicas/costos-bi/internal/domain/tenant"
	"github.com/jhoicas/costos-bi/internal/infrastructure/postgres"
	"github.com/jhoicas/costos-bi/internal/infrastructure/sqlite"
	"github.com/jhoicas/costos-bi/pkg/config"
)

// MetadataSQLitePath llave de metadata que fija el archivo SQLite de una empresa.
const MetadataSQLitePath = "sqlite_path"

var _ costing.StoreOpener = (*Opener)(nil)

// Opener implementa costing.StoreOpener.
type Opener struct {
	driver      string
	sqlitePath  string
	ledgerOpts  postgres.LedgerOptions
	pool        postgres.PoolOptions
	ensureTable bool
}

// NewOpener construye el opener desde la configuración de la aplicación.
func NewOpener(cfg *config.Config) *Opener {
	return &Opener{
		driver:     cfg.Ledger.Driver,
		sqlitePath: cfg.Ledger.SQLitePath,
		ledgerOpts: postgres.LedgerOptions{
			PurchaseClass:       cfg.Costing.PurchaseClass,
			SeedExcludedClasses: cfg.Costing.SeedExcludedClasses,
		},
		// lectores concurrentes + la transacción de escritura
		pool:        postgres.PoolOptions{MaxConns: int32(cfg.Costing.Workers) + 2},
		ensureTable: true,
	}
}

// Open conecta con la base BI de la empresa.
func (o *Opener) Open(ctx context.Context, cfg tenant.Config) (*costing.Stores, error) {
	switch o.driver {
	case config.LedgerDriverSQLite:
		return o.openSQLite(ctx, cfg)
	case config.LedgerDriverPostgres, "":
		return o.openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: motor %q", domain.ErrConfig, o.driver)
	}
}

func (o *Opener) openPostgres(ctx context.Context, cfg tenant.Config) (*costing.Stores, error) {
	pool, err := postgres.NewPool(ctx, cfg.Database.DSN(), o.pool)
	if err != nil {
		return nil, err
	}
	if o.ensureTable {
		if err := postgres.EnsureSnapshotSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return &costing.Stores{
		Ledger:    postgres.NewLedgerRepository(pool, o.ledgerOpts),
		Snapshots: postgres.NewSnapshotRepository(pool),
		Close:     pool.Close,
	}, nil
}

func (o *Opener) openSQLite(ctx context.Context, cfg tenant.Config) (*costing.Stores, error) {
	path := o.sqlitePath
	if p := cfg.Metadata[MetadataSQLitePath]; p != "" {
		path = p
	}
	db, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return &costing.Stores{
		Ledger:    sqlite.NewLedgerRepository(db, o.ledgerOpts.PurchaseClass, o.ledgerOpts.SeedExcludedClasses),
		Snapshots: sqlite.NewSnapshotRepository(db),
		Close:     func() { _ = db.Close() },
	}, nil
}

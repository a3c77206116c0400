package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/costos-bi/internal/domain"
	"github.com/jhoicas/costos-bi/internal/domain/tenant"
)

var _ tenant.Resolver = (*TenantResolver)(nil)

// TenantResolver resuelve la configuración de empresa desde la base de control (tenant_config).
type TenantResolver struct {
	q Querier
}

// NewTenantResolver construye el resolvedor sobre el pool de control.
func NewTenantResolver(q Querier) *TenantResolver {
	return &TenantResolver{q: q}
}

// Resolve busca la empresa activa por nombre normalizado.
func (r *TenantResolver) Resolve(ctx context.Context, name string) (tenant.Config, error) {
	query := `
		SELECT nombre, COALESCE(database_url, ''), COALESCE(host, ''), port,
			COALESCE(usuario, ''), COALESCE(password, ''), COALESCE(base_datos, ''), sslmode,
			procedimientos, metadata
		FROM tenant_config
		WHERE nombre = $1 AND activo`
	var (
		cfg  tenant.Config
		db   tenant.Database
		meta map[string]string
	)
	err := r.q.QueryRow(ctx, query, tenant.NormalizeName(name)).Scan(
		&cfg.Name, &db.DatabaseURL, &db.Host, &db.Port,
		&db.User, &db.Password, &db.Name, &db.SSLMode,
		&cfg.Procedures, &meta,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tenant.Config{}, fmt.Errorf("%w: %s", domain.ErrTenantNotFound, name)
		}
		return tenant.Config{}, fmt.Errorf("%w: resolver empresa %s: %v", domain.ErrConfig, name, err)
	}
	cfg.Database = db
	cfg.Metadata = meta
	if err := cfg.Validate(); err != nil {
		return tenant.Config{}, err
	}
	return cfg, nil
}

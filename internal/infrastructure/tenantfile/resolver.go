// Package tenantfile resuelve la configuración de empresas desde un archivo (yaml, json o toml).
package tenantfile

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jhoicas/costos-bi/internal/domain"
	"github.com/jhoicas/costos-bi/internal/domain/tenant"
)

var _ tenant.Resolver = (*Resolver)(nil)

type fileDatabase struct {
	DatabaseURL string `mapstructure:"database_url"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Name        string `mapstructure:"name"`
	SSLMode     string `mapstructure:"sslmode"`
}

type fileTenant struct {
	Name       string            `mapstructure:"name"`
	Database   fileDatabase      `mapstructure:"database"`
	Procedures any               `mapstructure:"procedures"` // lista o texto "a,b;c"
	Metadata   map[string]string `mapstructure:"metadata"`
}

// Resolver configuraciones cargadas una sola vez desde archivo, indexadas por nombre normalizado.
type Resolver struct {
	tenants map[string]tenant.Config
}

// Load lee el archivo de empresas. Ejemplo (yaml):
//
//	tenants:
//	  - name: Distribuidora Norte
//	    database: {host: db.local, port: 5432, user: bi, password: x, name: bi_norte}
//	    procedures: [sp_ventas, sp_inventario]
func Load(path string) (*Resolver, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: leer %s: %v", domain.ErrConfig, path, err)
	}
	var raw []fileTenant
	if err := v.UnmarshalKey("tenants", &raw); err != nil {
		return nil, fmt.Errorf("%w: decodificar %s: %v", domain.ErrConfig, path, err)
	}
	r := &Resolver{tenants: make(map[string]tenant.Config, len(raw))}
	for _, t := range raw {
		cfg := tenant.Config{
			Name:       strings.TrimSpace(t.Name),
			Database:   tenant.Database(t.Database),
			Procedures: procedures(t.Procedures),
			Metadata:   t.Metadata,
		}
		if cfg.Database.Port == 0 {
			cfg.Database.Port = 5432
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		key := tenant.NormalizeName(cfg.Name)
		if _, dup := r.tenants[key]; dup {
			return nil, fmt.Errorf("%w: empresa duplicada %q", domain.ErrConfig, cfg.Name)
		}
		r.tenants[key] = cfg
	}
	return r, nil
}

// Resolve devuelve la configuración de la empresa o domain.ErrTenantNotFound.
func (r *Resolver) Resolve(_ context.Context, name string) (tenant.Config, error) {
	cfg, ok := r.tenants[tenant.NormalizeName(name)]
	if !ok {
		return tenant.Config{}, fmt.Errorf("%w: %s", domain.ErrTenantNotFound, name)
	}
	return cfg, nil
}

func procedures(raw any) []string {
	switch p := raw.(type) {
	case nil:
		return nil
	case string:
		return tenant.SplitList(p)
	case []any:
		out := make([]string, 0, len(p))
		for _, item := range p {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return tenant.SplitList(fmt.Sprint(p))
	}
}

package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, 1, cfg.Costing.Workers)
	assert.Equal(t, "200", cfg.Costing.PurchaseClass)
	assert.Equal(t, []string{"601", "603"}, cfg.Costing.SeedExcludedClasses)
	assert.Equal(t, TenantsSourceFile, cfg.Tenants.Source)
	assert.Equal(t, LedgerDriverPostgres, cfg.Ledger.Driver)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("COSTING_WORKERS", "4")
	v.Set("COSTING_SEED_EXCLUDED_CLASSES", "601, 603 ,605")
	v.Set("LEDGER_DRIVER", "sqlite")
	v.Set("DB_PASSWORD", "a/b@c")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Costing.Workers)
	assert.Equal(t, []string{"601", "603", "605"}, cfg.Costing.SeedExcludedClasses)
	assert.Equal(t, LedgerDriverSQLite, cfg.Ledger.Driver)
	assert.Contains(t, cfg.DB.ConnectionString(), "a%2Fb%40c")
}

func TestFromViper_Invalid(t *testing.T) {
	for key, val := range map[string]string{
		"COSTING_WORKERS": "0",
		"TENANTS_SOURCE":  "ldap",
		"LEDGER_DRIVER":   "mysql",
	} {
		v := viper.New()
		v.Set(key, val)
		_, err := fromViper(v)
		assert.Error(t, err, key)
	}
}

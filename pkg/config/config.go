package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App     AppConfig
	DB      DBConfig
	HTTP    HTTPConfig
	Tenants TenantsConfig
	Costing CostingConfig
	Ledger  LedgerConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de PostgreSQL de control (tabla de empresas).
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// HTTPConfig configuración del servidor HTTP de administración.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Orígenes de configuración de empresas.
const (
	TenantsSourceFile = "file"
	TenantsSourceDB   = "db"
)

// TenantsConfig de dónde se resuelve la configuración por empresa.
type TenantsConfig struct {
	Source string // file | db
	File   string // ruta del archivo de empresas cuando Source = file
}

// CostingConfig parámetros del cálculo de costo promedio.
type CostingConfig struct {
	Workers             int      // entidades en paralelo dentro de una misma fecha
	PurchaseClass       string   // clase de movimiento de compra
	SeedExcludedClasses []string // clases de entrada que no sirven como costo de arranque
}

// Motores soportados para el ledger y el histórico.
const (
	LedgerDriverPostgres = "postgres"
	LedgerDriverSQLite   = "sqlite"
)

// LedgerConfig motor del ledger/histórico de la empresa.
type LedgerConfig struct {
	Driver     string // postgres | sqlite
	SQLitePath string
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, COSTING_WORKERS, etc.
func Load() (*Config, error) {
	v := viper.New()

	// Opcional: archivo de configuración (.env o config.env)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "costos-bi"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "bi_control"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Tenants: TenantsConfig{
			Source: getString(v, "TENANTS_SOURCE", TenantsSourceFile),
			File:   getString(v, "TENANTS_FILE", "tenants.yaml"),
		},
		Costing: CostingConfig{
			Workers:             getInt(v, "COSTING_WORKERS", 1),
			PurchaseClass:       getString(v, "COSTING_PURCHASE_CLASS", "200"),
			SeedExcludedClasses: getList(v, "COSTING_SEED_EXCLUDED_CLASSES", []string{"601", "603"}),
		},
		Ledger: LedgerConfig{
			Driver:     getString(v, "LEDGER_DRIVER", LedgerDriverPostgres),
			SQLitePath: getString(v, "SQLITE_PATH", "costos.db"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Costing.Workers < 1 {
		return fmt.Errorf("COSTING_WORKERS debe ser >= 1 (recibido %d)", c.Costing.Workers)
	}
	if c.Costing.PurchaseClass == "" {
		return fmt.Errorf("COSTING_PURCHASE_CLASS vacío")
	}
	switch c.Tenants.Source {
	case TenantsSourceFile, TenantsSourceDB:
	default:
		return fmt.Errorf("TENANTS_SOURCE desconocido: %q", c.Tenants.Source)
	}
	switch c.Ledger.Driver {
	case LedgerDriverPostgres, LedgerDriverSQLite:
	default:
		return fmt.Errorf("LEDGER_DRIVER desconocido: %q", c.Ledger.Driver)
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

// getList acepta lista nativa (archivo) o texto separado por comas (env).
func getList(v *viper.Viper, key string, def []string) []string {
	if !v.IsSet(key) {
		return def
	}
	if list, ok := v.Get(key).([]any); ok {
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, strings.TrimSpace(fmt.Sprint(item)))
		}
		return out
	}
	var out []string
	for _, s := range strings.Split(v.GetString(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

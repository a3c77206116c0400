// Package tenant modela la configuración por empresa que resuelve un colaborador externo.
package tenant

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/costos-bi/internal/domain"
)

// Database parámetros de conexión a la base BI de la empresa.
type Database struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
}

// DSN connection string PostgreSQL; DatabaseURL tiene prioridad.
func (d Database) DSN() string {
	if d.DatabaseURL != "" {
		return d.DatabaseURL
	}
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}

// Config configuración inmutable de una empresa para una corrida.
// Se construye una vez por corrida y se pasa por valor a cada componente.
type Config struct {
	Name       string
	Database   Database
	Procedures []string // procedimientos de extracción, ya tipados como lista ordenada
	Metadata   map[string]string
}

// Validate verifica que la configuración permita abrir la base BI.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: nombre de empresa vacío", domain.ErrConfig)
	}
	if c.Database.DatabaseURL == "" && (c.Database.Host == "" || c.Database.Name == "") {
		return fmt.Errorf("%w: empresa %s sin host o base de datos", domain.ErrConfig, c.Name)
	}
	return nil
}

// Resolver obtiene la configuración de una empresa por nombre.
type Resolver interface {
	Resolve(ctx context.Context, name string) (Config, error)
}

// NormalizeName llave canónica de empresa: sin tildes, minúsculas y sin espacios extremos.
// "Distribuidora Ñandú " y "distribuidora nandu" resuelven a la misma empresa.
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, name)
	if err != nil {
		out = name
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// SplitList convierte una lista serializada ("a, b;c") en una secuencia ordenada sin vacíos.
// Solo se usa en la frontera de carga de configuración.
func SplitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

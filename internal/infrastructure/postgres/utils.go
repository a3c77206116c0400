package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
// Ocurre cuando otra corrida insertó la misma llave entre la partición y el COPY.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// nonNil evita que un slice nil se envíe como NULL en parámetros de arreglo.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

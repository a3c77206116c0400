package postgres

import (
	"context"
	"embed"
	"fmt"
)

//go:embed migrations/002_historico_costo_promedio.sql
var migrations embed.FS

// EnsureSnapshotSchema crea la tabla de histórico si no existe. El ledger pertenece al ERP
// y no se toca.
func EnsureSnapshotSchema(ctx context.Context, q Querier) error {
	ddl, err := migrations.ReadFile("migrations/002_historico_costo_promedio.sql")
	if err != nil {
		return fmt.Errorf("leer migración: %w", err)
	}
	if _, err := q.Exec(ctx, string(ddl)); err != nil {
		return fmt.Errorf("crear historico_costo_promedio: %w", err)
	}
	return nil
}

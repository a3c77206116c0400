package repository

import (
	"context"
	"time"

	"github.com/jhoicas/costos-bi/internal/domain/entity"
)

// UpsertResult conteo de filas insertadas y actualizadas en una escritura.
type UpsertResult struct {
	Inserted int
	Updated  int
}

// Add acumula otro resultado.
func (r UpsertResult) Add(o UpsertResult) UpsertResult {
	return UpsertResult{Inserted: r.Inserted + o.Inserted, Updated: r.Updated + o.Updated}
}

// SnapshotRepository puerto de persistencia del histórico de costo promedio.
type SnapshotRepository interface {
	// GetLatestBefore último cierre de la entidad con fecha estrictamente anterior a date (nil si no hay).
	GetLatestBefore(ctx context.Context, key entity.EntityKey, date time.Time) (*entity.CostSnapshot, error)
	// UpsertBatch separa llaves existentes y nuevas, inserta las nuevas y actualiza las existentes
	// en una sola transacción. Es idempotente.
	UpsertBatch(ctx context.Context, snapshots []entity.CostSnapshot) (UpsertResult, error)
	// ListLatestAsOf último cierre de cada entidad con fecha <= asOf (valorización de inventario).
	ListLatestAsOf(ctx context.Context, asOf time.Time) ([]entity.CostSnapshot, error)
}

package repository

import (
	"context"
	"time"

	"github.com/jhoicas/costos-bi/internal/domain/entity"
)

// LedgerRepository puerto de lectura del ledger logístico (mmovlogistico) del ERP.
// Una consulta sin filas no es error: devuelve agregados en cero.
type LedgerRepository interface {
	// ListEntityDates devuelve cada (fecha, bodega, producto) con movimientos hasta cutoff inclusive,
	// ordenado por fecha, bodega y producto.
	ListEntityDates(ctx context.Context, cutoff time.Time) ([]entity.EntityDate, error)
	// ListEntityDatesBetween igual que ListEntityDates restringido a fechas en [from, to].
	ListEntityDatesBetween(ctx context.Context, from, to time.Time) ([]entity.EntityDate, error)
	// Purchases agrega las compras (clase de compra) de la entidad en la fecha exacta.
	Purchases(ctx context.Context, date time.Time, key entity.EntityKey) (entity.DailyPurchase, error)
	// OtherMovements suma con signo los movimientos que no son compra en la fecha exacta.
	OtherMovements(ctx context.Context, date time.Time, key entity.EntityKey) (entity.DailyMovement, error)
	// InitialCostSeed costo de arranque desde la primera fecha con entradas calificadas <= asOf.
	InitialCostSeed(ctx context.Context, key entity.EntityKey, asOf time.Time) (entity.CostSeed, error)
}

package costing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/costos-bi/internal/domain/entity"
	"github.com/jhoicas/costos-bi/internal/domain/repository"
)

// BalanceResolver determina el saldo inicial (costo, unidades) de una entidad para una fecha.
//
// Orden de búsqueda:
//  1. último histórico con fecha estrictamente anterior (costo y unidades finales);
//  2. costo de arranque desde el ledger con unidades en cero;
//  3. cero y cero.
type BalanceResolver struct {
	ledger    repository.LedgerRepository
	snapshots repository.SnapshotRepository
}

// NewBalanceResolver construye el resolvedor.
func NewBalanceResolver(ledger repository.LedgerRepository, snapshots repository.SnapshotRepository) *BalanceResolver {
	return &BalanceResolver{ledger: ledger, snapshots: snapshots}
}

// Resolve devuelve el saldo inicial de key para date.
func (r *BalanceResolver) Resolve(ctx context.Context, key entity.EntityKey, date time.Time) (entity.InitialBalance, error) {
	prior, err := r.snapshots.GetLatestBefore(ctx, key, date)
	if err != nil {
		return entity.InitialBalance{}, fmt.Errorf("histórico previo: %w", err)
	}
	if prior != nil {
		return entity.InitialBalance{
			Cost:     prior.FinalCost,
			Quantity: prior.FinalQty,
			Source:   entity.SeedSourceSnapshot,
		}, nil
	}

	seed, err := r.ledger.InitialCostSeed(ctx, key, date)
	if err != nil {
		return entity.InitialBalance{}, fmt.Errorf("costo de arranque: %w", err)
	}
	if seed.FoundDate != nil {
		return entity.InitialBalance{Cost: seed.Cost, Quantity: decimal.Zero, Source: entity.SeedSourceLedger}, nil
	}
	return entity.InitialBalance{Cost: decimal.Zero, Quantity: decimal.Zero, Source: entity.SeedSourceNone}, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/costos-bi/internal/domain/costing"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
	"github.com/jhoicas/costos-bi/internal/domain/repository"
)

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

// LedgerOptions clases de movimiento relevantes para el cálculo.
type LedgerOptions struct {
	PurchaseClass       string
	SeedExcludedClasses []string
}

// LedgerRepo lee el ledger logístico (mmovlogistico) y las clases de movimiento (cmovimientoclase).
type LedgerRepo struct {
	q    Querier
	opts LedgerOptions
}

// NewLedgerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLedgerRepository(q Querier, opts LedgerOptions) *LedgerRepo {
	if opts.PurchaseClass == "" {
		opts.PurchaseClass = entity.PurchaseClassDefault
	}
	opts.SeedExcludedClasses = nonNil(opts.SeedExcludedClasses)
	return &LedgerRepo{q: q, opts: opts}
}

// ListEntityDates combinaciones distintas (fecha, bodega, producto) hasta cutoff inclusive.
func (r *LedgerRepo) ListEntityDates(ctx context.Context, cutoff time.Time) ([]entity.EntityDate, error) {
	query := `
		SELECT DISTINCT m.dtcontabilizacion::date AS fecha, m.nbalmacen, m.nbproducto
		FROM mmovlogistico m
		WHERE m.dtcontabilizacion::date <= $1
		ORDER BY fecha, m.nbalmacen, m.nbproducto`
	return r.listEntityDates(ctx, query, cutoff)
}

// ListEntityDatesBetween igual que ListEntityDates pero solo con fechas en [from, to].
func (r *LedgerRepo) ListEntityDatesBetween(ctx context.Context, from, to time.Time) ([]entity.EntityDate, error) {
	query := `
		SELECT DISTINCT m.dtcontabilizacion::date AS fecha, m.nbalmacen, m.nbproducto
		FROM mmovlogistico m
		WHERE m.dtcontabilizacion::date BETWEEN $1 AND $2
		ORDER BY fecha, m.nbalmacen, m.nbproducto`
	return r.listEntityDates(ctx, query, from, to)
}

func (r *LedgerRepo) listEntityDates(ctx context.Context, query string, args ...any) ([]entity.EntityDate, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entity dates: %w", err)
	}
	defer rows.Close()
	var list []entity.EntityDate
	for rows.Next() {
		var ed entity.EntityDate
		if err := rows.Scan(&ed.Date, &ed.Key.WarehouseID, &ed.Key.ProductID); err != nil {
			return nil, fmt.Errorf("scan entity date: %w", err)
		}
		ed.Date = entity.TruncateDay(ed.Date)
		list = append(list, ed)
	}
	return list, rows.Err()
}

// Purchases agrega las compras del día: precio promedio ponderado por cantidad y unidades.
func (r *LedgerRepo) Purchases(ctx context.Context, date time.Time, key entity.EntityKey) (entity.DailyPurchase, error) {
	query := `
		SELECT
			(SUM(m.flpreciounitario * m.flcantidad) / NULLIF(SUM(m.flcantidad), 0))::float8,
			SUM(m.flcantidad)::float8
		FROM mmovlogistico m
		WHERE m.nbmovimientoclase = $1
		  AND m.dtcontabilizacion::date = $2
		  AND m.nbalmacen = $3 AND m.nbproducto = $4`
	var price, qty *float64
	err := r.q.QueryRow(ctx, query, r.opts.PurchaseClass, date, key.WarehouseID, key.ProductID).Scan(&price, &qty)
	if err != nil {
		return entity.DailyPurchase{}, fmt.Errorf("purchases %s: %w", key, err)
	}
	return entity.DailyPurchase{
		AvgUnitPrice: costing.SanitizeNullable(price),
		Quantity:     costing.SanitizeNullable(qty),
	}, nil
}

// OtherMovements suma con signo de los movimientos del día que no son compra.
func (r *LedgerRepo) OtherMovements(ctx context.Context, date time.Time, key entity.EntityKey) (entity.DailyMovement, error) {
	query := `
		SELECT SUM(m.flcantidad)::float8
		FROM mmovlogistico m
		WHERE m.nbmovimientoclase <> $1
		  AND m.dtcontabilizacion::date = $2
		  AND m.nbalmacen = $3 AND m.nbproducto = $4`
	var qty *float64
	err := r.q.QueryRow(ctx, query, r.opts.PurchaseClass, date, key.WarehouseID, key.ProductID).Scan(&qty)
	if err != nil {
		return entity.DailyMovement{}, fmt.Errorf("other movements %s: %w", key, err)
	}
	return entity.DailyMovement{Quantity: costing.SanitizeNullable(qty)}, nil
}

// InitialCostSeed promedio del precio unitario de las entradas ('E') en la primera fecha <= asOf,
// sin las clases excluidas. Sin entradas devuelve costo cero y FoundDate nil.
func (r *LedgerRepo) InitialCostSeed(ctx context.Context, key entity.EntityKey, asOf time.Time) (entity.CostSeed, error) {
	query := `
		WITH entradas AS (
			SELECT m.dtcontabilizacion::date AS fecha, m.flpreciounitario
			FROM mmovlogistico m
			INNER JOIN cmovimientoclase c ON c.nbmovimientoclase = m.nbmovimientoclase
			WHERE c.tpmovimientoclase = $1
			  AND NOT (m.nbmovimientoclase = ANY($2::text[]))
			  AND m.nbalmacen = $3 AND m.nbproducto = $4
			  AND m.dtcontabilizacion::date <= $5
		)
		SELECT fecha, AVG(flpreciounitario)::float8
		FROM entradas
		WHERE fecha = (SELECT MIN(fecha) FROM entradas)
		GROUP BY fecha`
	var (
		found time.Time
		cost  *float64
	)
	err := r.q.QueryRow(ctx, query, entity.ClassTypeEntry, r.opts.SeedExcludedClasses,
		key.WarehouseID, key.ProductID, asOf).Scan(&found, &cost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.CostSeed{Cost: costing.SanitizeNullable(nil)}, nil
		}
		return entity.CostSeed{}, fmt.Errorf("initial cost seed %s: %w", key, err)
	}
	found = entity.TruncateDay(found)
	return entity.CostSeed{Cost: costing.SanitizeNullable(cost), FoundDate: &found}, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/costos-bi/internal/domain/costing"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
	"github.com/jhoicas/costos-bi/internal/domain/repository"
)

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo lee mmovlogistico y cmovimientoclase con la misma semántica que el adaptador PostgreSQL.
type LedgerRepo struct {
	db            *sql.DB
	purchaseClass string
	excluded      []string
}

// NewLedgerRepository construye el adaptador.
func NewLedgerRepository(db *sql.DB, purchaseClass string, seedExcluded []string) *LedgerRepo {
	if purchaseClass == "" {
		purchaseClass = entity.PurchaseClassDefault
	}
	return &LedgerRepo{db: db, purchaseClass: purchaseClass, excluded: seedExcluded}
}

func day(t time.Time) string { return t.Format(entity.DateLayout) }

// ListEntityDates combinaciones distintas (fecha, bodega, producto) hasta cutoff inclusive.
func (r *LedgerRepo) ListEntityDates(ctx context.Context, cutoff time.Time) ([]entity.EntityDate, error) {
	query := `
		SELECT DISTINCT date(dtcontabilizacion) AS fecha, nbalmacen, nbproducto
		FROM mmovlogistico
		WHERE date(dtcontabilizacion) <= ?
		ORDER BY fecha, nbalmacen, nbproducto`
	return r.listEntityDates(ctx, query, day(cutoff))
}

// ListEntityDatesBetween igual que ListEntityDates pero solo con fechas en [from, to].
func (r *LedgerRepo) ListEntityDatesBetween(ctx context.Context, from, to time.Time) ([]entity.EntityDate, error) {
	query := `
		SELECT DISTINCT date(dtcontabilizacion) AS fecha, nbalmacen, nbproducto
		FROM mmovlogistico
		WHERE date(dtcontabilizacion) BETWEEN ? AND ?
		ORDER BY fecha, nbalmacen, nbproducto`
	return r.listEntityDates(ctx, query, day(from), day(to))
}

func (r *LedgerRepo) listEntityDates(ctx context.Context, query string, args ...any) ([]entity.EntityDate, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entity dates: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var list []entity.EntityDate
	for rows.Next() {
		var (
			ed    entity.EntityDate
			fecha string
		)
		if err := rows.Scan(&fecha, &ed.Key.WarehouseID, &ed.Key.ProductID); err != nil {
			return nil, fmt.Errorf("scan entity date: %w", err)
		}
		if ed.Date, err = entity.ParseDate(fecha); err != nil {
			return nil, err
		}
		list = append(list, ed)
	}
	return list, rows.Err()
}

// Purchases precio promedio ponderado y unidades compradas en el día.
func (r *LedgerRepo) Purchases(ctx context.Context, date time.Time, key entity.EntityKey) (entity.DailyPurchase, error) {
	query := `
		SELECT
			SUM(flpreciounitario * flcantidad) / NULLIF(SUM(flcantidad), 0),
			SUM(flcantidad)
		FROM mmovlogistico
		WHERE nbmovimientoclase = ? AND date(dtcontabilizacion) = ?
		  AND nbalmacen = ? AND nbproducto = ?`
	var price, qty sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, r.purchaseClass, day(date), key.WarehouseID, key.ProductID).Scan(&price, &qty)
	if err != nil {
		return entity.DailyPurchase{}, fmt.Errorf("purchases %s: %w", key, err)
	}
	return entity.DailyPurchase{
		AvgUnitPrice: costing.SanitizeNullable(nullable(price)),
		Quantity:     costing.SanitizeNullable(nullable(qty)),
	}, nil
}

// OtherMovements suma con signo de los movimientos del día que no son compra.
func (r *LedgerRepo) OtherMovements(ctx context.Context, date time.Time, key entity.EntityKey) (entity.DailyMovement, error) {
	query := `
		SELECT SUM(flcantidad)
		FROM mmovlogistico
		WHERE nbmovimientoclase <> ? AND date(dtcontabilizacion) = ?
		  AND nbalmacen = ? AND nbproducto = ?`
	var qty sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, r.purchaseClass, day(date), key.WarehouseID, key.ProductID).Scan(&qty)
	if err != nil {
		return entity.DailyMovement{}, fmt.Errorf("other movements %s: %w", key, err)
	}
	return entity.DailyMovement{Quantity: costing.SanitizeNullable(nullable(qty))}, nil
}

// InitialCostSeed promedio simple del precio de las entradas en la primera fecha <= asOf.
func (r *LedgerRepo) InitialCostSeed(ctx context.Context, key entity.EntityKey, asOf time.Time) (entity.CostSeed, error) {
	args := []any{entity.ClassTypeEntry, key.WarehouseID, key.ProductID, day(asOf)}
	excluded := ""
	if len(r.excluded) > 0 {
		excluded = "AND m.nbmovimientoclase NOT IN (?" + strings.Repeat(", ?", len(r.excluded)-1) + ")"
		for _, c := range r.excluded {
			args = append(args, c)
		}
	}
	query := `
		WITH entradas AS (
			SELECT date(m.dtcontabilizacion) AS fecha, m.flpreciounitario
			FROM mmovlogistico m
			INNER JOIN cmovimientoclase c ON c.nbmovimientoclase = m.nbmovimientoclase
			WHERE c.tpmovimientoclase = ?
			  AND m.nbalmacen = ? AND m.nbproducto = ?
			  AND date(m.dtcontabilizacion) <= ?
			  ` + excluded + `
		)
		SELECT fecha, AVG(flpreciounitario)
		FROM entradas
		WHERE fecha = (SELECT MIN(fecha) FROM entradas)
		GROUP BY fecha`
	var (
		fecha string
		cost  sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&fecha, &cost)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.CostSeed{Cost: costing.SanitizeNullable(nil)}, nil
		}
		return entity.CostSeed{}, fmt.Errorf("initial cost seed %s: %w", key, err)
	}
	found, err := entity.ParseDate(fecha)
	if err != nil {
		return entity.CostSeed{}, err
	}
	return entity.CostSeed{Cost: costing.SanitizeNullable(nullable(cost)), FoundDate: &found}, nil
}

func nullable(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}

// ErrAlreadyImported el extracto con ese digest ya se cargó en la base.
var ErrAlreadyImported = errors.New("extracto ya importado")

// InsertMovements carga filas al ledger local sin control de duplicados (pruebas y cargas manuales).
func InsertMovements(ctx context.Context, db *sql.DB, events []entity.MovementEvent) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := insertMovements(ctx, tx, events); err != nil {
		return err
	}
	return tx.Commit()
}

// ImportMovements carga un extracto y registra su digest en la misma transacción. El ledger es
// solo de anexar: un digest ya registrado devuelve ErrAlreadyImported sin cargar ninguna fila.
func ImportMovements(ctx context.Context, db *sql.DB, digest, source string, events []entity.MovementEvent) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var prev string
	err = tx.QueryRowContext(ctx, `SELECT importado_en FROM importacion_ledger WHERE digest = ?`, digest).Scan(&prev)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s (cargado el %s)", ErrAlreadyImported, source, prev)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check import: %w", err)
	}
	if err := insertMovements(ctx, tx, events); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO importacion_ledger (digest, archivo, filas, importado_en) VALUES (?, ?, ?, ?)`,
		digest, source, len(events), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record import: %w", err)
	}
	return tx.Commit()
}

func insertMovements(ctx context.Context, tx *sql.Tx, events []entity.MovementEvent) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mmovlogistico
			(dtcontabilizacion, nbalmacen, nbproducto, nbmovimientoclase, flpreciounitario, flcantidad)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert movement: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, e := range events {
		price, _ := e.UnitPrice.Float64()
		qty, _ := e.Quantity.Float64()
		if _, err := stmt.ExecContext(ctx, day(e.Date), e.WarehouseID, e.ProductID, e.MovementClass, price, qty); err != nil {
			return fmt.Errorf("insert movement %s/%s: %w", e.WarehouseID, e.ProductID, err)
		}
	}
	return nil
}

// UpsertMovementClasses registra el tipo ('E'/'S') de cada clase de movimiento.
func UpsertMovementClasses(ctx context.Context, db *sql.DB, classes map[string]string) error {
	for class, tp := range classes {
		_, err := db.ExecContext(ctx, `
			INSERT INTO cmovimientoclase (nbmovimientoclase, tpmovimientoclase) VALUES (?, ?)
			ON CONFLICT (nbmovimientoclase) DO UPDATE SET tpmovimientoclase = excluded.tpmovimientoclase`,
			class, tp)
		if err != nil {
			return fmt.Errorf("upsert movement class %s: %w", class, err)
		}
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/costos-bi/internal/domain/entity"
	"github.com/jhoicas/costos-bi/internal/domain/repository"
)

var _ repository.SnapshotRepository = (*SnapshotRepo)(nil)

const snapshotSelect = `
	SELECT fecha, almacen, producto,
		costo_promedio_inicial, unidades_inicial,
		costo_compra_dia, unidades_compra_dia, unidades_movimiento_dia,
		costo_promedio_final, unidades_final
	FROM historico_costo_promedio h`

// SnapshotRepo histórico de costo promedio en SQLite. Los decimales se guardan como texto
// para no perder precisión.
type SnapshotRepo struct {
	db *sql.DB
}

// NewSnapshotRepository construye el adaptador.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*entity.CostSnapshot, error) {
	var (
		s     entity.CostSnapshot
		fecha string
	)
	err := row.Scan(&fecha, &s.WarehouseID, &s.ProductID,
		&s.InitialCost, &s.InitialQty,
		&s.PurchaseCost, &s.PurchaseQty, &s.MovementQty,
		&s.FinalCost, &s.FinalQty)
	if err != nil {
		return nil, err
	}
	if s.Date, err = entity.ParseDate(fecha); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetLatestBefore último cierre de la entidad con fecha < date.
func (r *SnapshotRepo) GetLatestBefore(ctx context.Context, key entity.EntityKey, date time.Time) (*entity.CostSnapshot, error) {
	query := snapshotSelect + `
		WHERE almacen = ? AND producto = ? AND fecha < ?
		ORDER BY fecha DESC
		LIMIT 1`
	s, err := scanSnapshot(r.db.QueryRowContext(ctx, query, key.WarehouseID, key.ProductID, day(date)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest snapshot %s: %w", key, err)
	}
	return s, nil
}

// ListLatestAsOf último cierre por entidad con fecha <= asOf.
func (r *SnapshotRepo) ListLatestAsOf(ctx context.Context, asOf time.Time) ([]entity.CostSnapshot, error) {
	query := snapshotSelect + `
		WHERE h.fecha = (
			SELECT MAX(x.fecha) FROM historico_costo_promedio x
			WHERE x.almacen = h.almacen AND x.producto = h.producto AND x.fecha <= ?
		)
		ORDER BY almacen, producto`
	rows, err := r.db.QueryContext(ctx, query, day(asOf))
	if err != nil {
		return nil, fmt.Errorf("list latest snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var list []entity.CostSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// UpsertBatch separa llaves existentes y nuevas dentro de una transacción e inserta o actualiza
// según corresponda.
func (r *SnapshotRepo) UpsertBatch(ctx context.Context, snapshots []entity.CostSnapshot) (repository.UpsertResult, error) {
	var res repository.UpsertResult
	if len(snapshots) == 0 {
		return res, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exists, err := tx.PrepareContext(ctx, `
		SELECT 1 FROM historico_costo_promedio WHERE fecha = ? AND almacen = ? AND producto = ?`)
	if err != nil {
		return res, fmt.Errorf("prepare exists: %w", err)
	}
	defer func() { _ = exists.Close() }()
	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO historico_costo_promedio (
			fecha, almacen, producto,
			costo_promedio_inicial, unidades_inicial,
			costo_compra_dia, unidades_compra_dia, unidades_movimiento_dia,
			costo_promedio_final, unidades_final)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return res, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = insert.Close() }()
	update, err := tx.PrepareContext(ctx, `
		UPDATE historico_costo_promedio SET
			costo_promedio_inicial = ?, unidades_inicial = ?,
			costo_compra_dia = ?, unidades_compra_dia = ?, unidades_movimiento_dia = ?,
			costo_promedio_final = ?, unidades_final = ?
		WHERE fecha = ? AND almacen = ? AND producto = ?`)
	if err != nil {
		return res, fmt.Errorf("prepare update: %w", err)
	}
	defer func() { _ = update.Close() }()

	for _, s := range snapshots {
		fecha := day(s.Date)
		var one int
		err := exists.QueryRowContext(ctx, fecha, s.WarehouseID, s.ProductID).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = insert.ExecContext(ctx, fecha, s.WarehouseID, s.ProductID,
				s.InitialCost.String(), s.InitialQty.String(),
				s.PurchaseCost.String(), s.PurchaseQty.String(), s.MovementQty.String(),
				s.FinalCost.String(), s.FinalQty.String())
			if err != nil {
				return repository.UpsertResult{}, fmt.Errorf("insert snapshot %s %s: %w", fecha, s.Key(), err)
			}
			res.Inserted++
		case err != nil:
			return repository.UpsertResult{}, fmt.Errorf("existing snapshot %s %s: %w", fecha, s.Key(), err)
		default:
			_, err = update.ExecContext(ctx,
				s.InitialCost.String(), s.InitialQty.String(),
				s.PurchaseCost.String(), s.PurchaseQty.String(), s.MovementQty.String(),
				s.FinalCost.String(), s.FinalQty.String(),
				fecha, s.WarehouseID, s.ProductID)
			if err != nil {
				return repository.UpsertResult{}, fmt.Errorf("update snapshot %s %s: %w", fecha, s.Key(), err)
			}
			res.Updated++
		}
	}
	if err := tx.Commit(); err != nil {
		return repository.UpsertResult{}, fmt.Errorf("commit transaction: %w", err)
	}
	return res, nil
}

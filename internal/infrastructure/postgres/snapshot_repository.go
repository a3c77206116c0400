package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/costos-bi/internal/domain/entity"
	"github.com/jhoicas/costos-bi/internal/domain/repository"
)

var _ repository.SnapshotRepository = (*SnapshotRepo)(nil)

const snapshotTable = "historico_costo_promedio"

var snapshotColumns = []string{
	"fecha", "almacen", "producto",
	"costo_promedio_inicial", "unidades_inicial",
	"costo_compra_dia", "unidades_compra_dia", "unidades_movimiento_dia",
	"costo_promedio_final", "unidades_final",
}

const snapshotSelect = `
	SELECT fecha, almacen, producto,
		costo_promedio_inicial, unidades_inicial,
		costo_compra_dia, unidades_compra_dia, unidades_movimiento_dia,
		costo_promedio_final, unidades_final
	FROM historico_costo_promedio`

// SnapshotRepo histórico de costo promedio (historico_costo_promedio) sobre PostgreSQL.
type SnapshotRepo struct {
	db TxBeginner
}

// NewSnapshotRepository construye el adaptador sobre el pool de la empresa.
func NewSnapshotRepository(db TxBeginner) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func scanSnapshot(row pgx.Row) (*entity.CostSnapshot, error) {
	var s entity.CostSnapshot
	err := row.Scan(&s.Date, &s.WarehouseID, &s.ProductID,
		&s.InitialCost, &s.InitialQty,
		&s.PurchaseCost, &s.PurchaseQty, &s.MovementQty,
		&s.FinalCost, &s.FinalQty)
	if err != nil {
		return nil, err
	}
	s.Date = entity.TruncateDay(s.Date)
	return &s, nil
}

// GetLatestBefore último cierre de la entidad con fecha < date.
func (r *SnapshotRepo) GetLatestBefore(ctx context.Context, key entity.EntityKey, date time.Time) (*entity.CostSnapshot, error) {
	query := snapshotSelect + `
		WHERE almacen = $1 AND producto = $2 AND fecha < $3
		ORDER BY fecha DESC
		LIMIT 1`
	s, err := scanSnapshot(r.db.QueryRow(ctx, query, key.WarehouseID, key.ProductID, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest snapshot %s: %w", key, err)
	}
	return s, nil
}

// ListLatestAsOf último cierre por entidad con fecha <= asOf.
func (r *SnapshotRepo) ListLatestAsOf(ctx context.Context, asOf time.Time) ([]entity.CostSnapshot, error) {
	query := `
	SELECT DISTINCT ON (almacen, producto) fecha, almacen, producto,
		costo_promedio_inicial, unidades_inicial,
		costo_compra_dia, unidades_compra_dia, unidades_movimiento_dia,
		costo_promedio_final, unidades_final
	FROM historico_costo_promedio
	WHERE fecha <= $1
	ORDER BY almacen, producto, fecha DESC`
	rows, err := r.db.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("list latest snapshots: %w", err)
	}
	defer rows.Close()
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

type snapshotKey struct {
	date time.Time
	key  entity.EntityKey
}

// UpsertBatch en una transacción: consulta qué llaves ya existen, inserta las nuevas con COPY
// y actualiza las existentes con un pgx.Batch.
func (r *SnapshotRepo) UpsertBatch(ctx context.Context, snapshots []entity.CostSnapshot) (repository.UpsertResult, error) {
	if len(snapshots) == 0 {
		return repository.UpsertResult{}, nil
	}
	snapshots = dedupe(snapshots)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return repository.UpsertResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := existingKeys(ctx, tx, snapshots)
	if err != nil {
		return repository.UpsertResult{}, err
	}
	var inserts, updates []entity.CostSnapshot
	for _, s := range snapshots {
		if _, ok := existing[snapshotKey{date: s.Date, key: s.Key()}]; ok {
			updates = append(updates, s)
		} else {
			inserts = append(inserts, s)
		}
	}

	if len(inserts) > 0 {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{snapshotTable}, snapshotColumns,
			pgx.CopyFromSlice(len(inserts), func(i int) ([]any, error) {
				s := inserts[i]
				return []any{
					s.Date, s.WarehouseID, s.ProductID,
					s.InitialCost, s.InitialQty,
					s.PurchaseCost, s.PurchaseQty, s.MovementQty,
					s.FinalCost, s.FinalQty,
				}, nil
			}))
		if err != nil {
			if isUniqueViolation(err) {
				return repository.UpsertResult{}, fmt.Errorf("insert snapshots: llave creada por otra corrida: %w", err)
			}
			return repository.UpsertResult{}, fmt.Errorf("insert snapshots: %w", err)
		}
	}

	if len(updates) > 0 {
		if err := updateSnapshots(ctx, tx, updates); err != nil {
			return repository.UpsertResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return repository.UpsertResult{}, fmt.Errorf("commit transaction: %w", err)
	}
	return repository.UpsertResult{Inserted: len(inserts), Updated: len(updates)}, nil
}

func existingKeys(ctx context.Context, tx pgx.Tx, snapshots []entity.CostSnapshot) (map[snapshotKey]struct{}, error) {
	dates := make([]time.Time, len(snapshots))
	warehouses := make([]string, len(snapshots))
	products := make([]string, len(snapshots))
	for i, s := range snapshots {
		dates[i], warehouses[i], products[i] = s.Date, s.WarehouseID, s.ProductID
	}
	query := `
		SELECT h.fecha, h.almacen, h.producto
		FROM historico_costo_promedio h
		INNER JOIN unnest($1::date[], $2::text[], $3::text[]) AS k(fecha, almacen, producto)
			ON h.fecha = k.fecha AND h.almacen = k.almacen AND h.producto = k.producto`
	rows, err := tx.Query(ctx, query, dates, warehouses, products)
	if err != nil {
		return nil, fmt.Errorf("existing snapshot keys: %w", err)
	}
	defer rows.Close()
	found := make(map[snapshotKey]struct{})
	for rows.Next() {
		var k snapshotKey
		if err := rows.Scan(&k.date, &k.key.WarehouseID, &k.key.ProductID); err != nil {
			return nil, fmt.Errorf("scan snapshot key: %w", err)
		}
		k.date = entity.TruncateDay(k.date)
		found[k] = struct{}{}
	}
	return found, rows.Err()
}

func updateSnapshots(ctx context.Context, tx pgx.Tx, updates []entity.CostSnapshot) error {
	query := `
		UPDATE historico_costo_promedio SET
			costo_promedio_inicial = $4, unidades_inicial = $5,
			costo_compra_dia = $6, unidades_compra_dia = $7, unidades_movimiento_dia = $8,
			costo_promedio_final = $9, unidades_final = $10
		WHERE fecha = $1 AND almacen = $2 AND producto = $3`
	batch := &pgx.Batch{}
	for _, s := range updates {
		batch.Queue(query,
			s.Date, s.WarehouseID, s.ProductID,
			s.InitialCost, s.InitialQty,
			s.PurchaseCost, s.PurchaseQty, s.MovementQty,
			s.FinalCost, s.FinalQty)
	}
	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for _, s := range updates {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("update snapshot %s %s: %w", s.Date.Format(entity.DateLayout), s.Key(), err)
		}
	}
	return nil
}

// dedupe conserva la última fila por llave (fecha, bodega, producto).
func dedupe(snapshots []entity.CostSnapshot) []entity.CostSnapshot {
	idx := make(map[snapshotKey]int, len(snapshots))
	out := make([]entity.CostSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		s.Date = entity.TruncateDay(s.Date)
		k := snapshotKey{date: s.Date, key: s.Key()}
		if i, ok := idx[k]; ok {
			out[i] = s
			continue
		}
		idx[k] = len(out)
		out = append(out, s)
	}
	return out
}

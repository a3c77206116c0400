// Package sqlite implementa el ledger y el histórico de costos sobre un archivo SQLite local
// (driver puro Go). Se usa para cargas de extractos del ERP y pruebas sin servidor.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // driver sqlite puro Go
)

const schema = `
CREATE TABLE IF NOT EXISTS cmovimientoclase (
	nbmovimientoclase TEXT PRIMARY KEY,
	tpmovimientoclase TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS mmovlogistico (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	dtcontabilizacion TEXT NOT NULL,
	nbalmacen         TEXT NOT NULL,
	nbproducto        TEXT NOT NULL,
	nbmovimientoclase TEXT NOT NULL,
	flpreciounitario  REAL,
	flcantidad        REAL
);
CREATE INDEX IF NOT EXISTS idx_mmovlogistico_entidad
	ON mmovlogistico (nbalmacen, nbproducto, dtcontabilizacion);
CREATE TABLE IF NOT EXISTS historico_costo_promedio (
	fecha                   TEXT NOT NULL,
	almacen                 TEXT NOT NULL,
	producto                TEXT NOT NULL,
	costo_promedio_inicial  TEXT NOT NULL,
	unidades_inicial        TEXT NOT NULL,
	costo_compra_dia        TEXT NOT NULL,
	unidades_compra_dia     TEXT NOT NULL,
	unidades_movimiento_dia TEXT NOT NULL,
	costo_promedio_final    TEXT NOT NULL,
	unidades_final          TEXT NOT NULL,
	PRIMARY KEY (fecha, almacen, producto)
);
CREATE TABLE IF NOT EXISTS importacion_ledger (
	digest       TEXT PRIMARY KEY,
	archivo      TEXT NOT NULL,
	filas        INTEGER NOT NULL,
	importado_en TEXT NOT NULL
);`

// Open abre (o crea) la base en path y aplica el esquema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = "costos.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite admite un solo escritor
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

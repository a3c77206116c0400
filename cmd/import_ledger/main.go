// import_ledger carga un extracto CSV del ledger logístico del ERP en la base SQLite local,
// para correr el cálculo de costos sin acceso a la base BI.
//
// Uso: go run ./cmd/import_ledger -movements movimientos.csv [-classes clases.csv]
//
//	[-charset iso-8859-1] [-decimal coma|punto] [-db costos.db]
//
// El ledger solo se anexa: un extracto con el mismo contenido (SHA-256) se rechaza si ya se cargó.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/jhoicas/costos-bi/internal/infrastructure/ledgercsv"
	"github.com/jhoicas/costos-bi/internal/infrastructure/sqlite"
)

func main() {
	movementsPath := pflag.String("movements", "", "CSV de mmovlogistico (obligatorio)")
	classesPath := pflag.String("classes", "", "CSV de cmovimientoclase")
	charset := pflag.String("charset", "iso-8859-1", "codificación de los archivos")
	decimalSep := pflag.String("decimal", "coma", "separador decimal de los números (coma o punto)")
	dbPath := pflag.String("db", "costos.db", "archivo SQLite destino")
	pflag.Parse()

	format, err := ledgercsv.ParseNumberFormat(*decimalSep)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if *movementsPath == "" {
		fmt.Fprintln(os.Stderr, "-movements es obligatorio")
		os.Exit(2)
	}

	ctx := context.Background()
	db, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir SQLite: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if *classesPath != "" {
		var classes map[string]string
		err := readFile(*classesPath, *charset, func(r io.Reader) (err error) {
			classes, err = ledgercsv.ReadClasses(r)
			return err
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Leer clases: %v\n", err)
			os.Exit(1)
		}
		if err := sqlite.UpsertMovementClasses(ctx, db, classes); err != nil {
			fmt.Fprintf(os.Stderr, "Guardar clases: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d clases de movimiento\n", len(classes))
	}

	var n int
	sum := sha256.New()
	err = readFile(*movementsPath, *charset, func(r io.Reader) error {
		events, err := ledgercsv.ReadMovements(io.TeeReader(r, sum), format)
		if err != nil {
			return err
		}
		n = len(events)
		digest := hex.EncodeToString(sum.Sum(nil))
		return sqlite.ImportMovements(ctx, db, digest, filepath.Base(*movementsPath), events)
	})
	if errors.Is(err, sqlite.ErrAlreadyImported) {
		fmt.Fprintf(os.Stderr, "Sin cambios: %v\n", err)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Importar movimientos: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Importados %d movimientos en %s\n", n, *dbPath)
}

func readFile(path, charset string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	r, err := ledgercsv.Decode(f, charset)
	if err != nil {
		return err
	}
	return fn(r)
}

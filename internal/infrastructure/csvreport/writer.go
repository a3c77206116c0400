// Package csvreport escribe la valorización de inventario en CSV (separador ';', decimales con punto).
package csvreport

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jhoicas/costos-bi/internal/application/costing"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
)

var _ costing.ReportWriter = (*Writer)(nil)

var header = []string{
	"fecha_corte", "almacen", "producto", "fecha_cierre",
	"unidades_final", "costo_promedio_final", "valor",
}

// Writer implementa costing.ReportWriter.
type Writer struct {
	Comma rune
}

// NewWriter usa ';' como separador (Excel en es-CO).
func NewWriter() *Writer { return &Writer{Comma: ';'} }

func (w *Writer) Format() string { return "csv" }

func (w *Writer) Write(out io.Writer, report costing.ValuationReport) error {
	cw := csv.NewWriter(out)
	if w.Comma != 0 {
		cw.Comma = w.Comma
	}
	asOf := report.AsOf.Format(entity.DateLayout)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv: encabezado: %w", err)
	}
	for _, s := range report.Rows {
		rec := []string{
			asOf, s.WarehouseID, s.ProductID, s.Date.Format(entity.DateLayout),
			s.FinalQty.String(), s.FinalCost.String(), s.FinalQty.Mul(s.FinalCost).String(),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("csv: fila %s: %w", s.Key(), err)
		}
	}
	if err := cw.Write([]string{asOf, "", "", "", "", "TOTAL", report.TotalValue.String()}); err != nil {
		return fmt.Errorf("csv: total: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

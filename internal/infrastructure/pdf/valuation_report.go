// Package pdf genera el reporte de valorización de inventario a costo promedio.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Empresa               │  Fecha de corte             │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Bodega | Producto | Fecha | Unidades | Costo | Valor │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTAL: valor del inventario                                 │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"io"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/costos-bi/internal/application/costing"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ── Writer ────────────────────────────────────────────────────────────────────

var _ costing.ReportWriter = (*ValuationWriter)(nil)

// ValuationWriter implementa costing.ReportWriter usando Maroto v2.
type ValuationWriter struct{}

// NewValuationWriter construye el generador.
func NewValuationWriter() *ValuationWriter { return &ValuationWriter{} }

func (w *ValuationWriter) Format() string { return "pdf" }

// Write genera el documento y lo copia a out.
func (w *ValuationWriter) Write(out io.Writer, report costing.ValuationReport) error {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Valorización de inventario", true).
		WithAuthor(report.Tenant, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(report))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(tableHeaderRow())
	m.AddRows(tableRows(report.Rows)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalRow(report))

	doc, err := m.Generate()
	if err != nil {
		return fmt.Errorf("pdf: generar documento: %w", err)
	}
	if _, err := out.Write(doc.GetBytes()); err != nil {
		return fmt.Errorf("pdf: escribir documento: %w", err)
	}
	return nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(report costing.ValuationReport) core.Row {
	return row.New(16).Add(
		col.New(7).Add(
			text.New(report.Tenant, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("%d productos valorizados", len(report.Rows)), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("VALORIZACIÓN A COSTO PROMEDIO", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New("Corte: "+report.AsOf.Format("02/01/2006"), props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 7,
			}),
		),
	)
}

var columns = []struct {
	label string
	size  int
	align align.Type
}{
	{"Bodega", 2, align.Left},
	{"Producto", 3, align.Left},
	{"Último cierre", 2, align.Center},
	{"Unidades", 1, align.Right},
	{"Costo prom.", 2, align.Right},
	{"Valor", 2, align.Right},
}

func tableHeaderRow() core.Row {
	cols := make([]core.Col, 0, len(columns))
	for _, c := range columns {
		cols = append(cols, col.New(c.size).Add(text.New(c.label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: c.align,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		})))
	}
	return row.New(8).Add(cols...)
}

// tableRows una fila por entidad (bodega, producto).
func tableRows(rows []entity.CostSnapshot) []core.Row {
	result := make([]core.Row, 0, len(rows))
	for _, s := range rows {
		values := []string{
			s.WarehouseID,
			s.ProductID,
			s.Date.Format(entity.DateLayout),
			s.FinalQty.StringFixed(2),
			"$" + formatMoney(s.FinalCost, 2),
			"$" + formatMoney(s.FinalQty.Mul(s.FinalCost), 0),
		}
		cols := make([]core.Col, 0, len(columns))
		for i, c := range columns {
			cols = append(cols, col.New(c.size).Add(text.New(values[i], props.Text{
				Size: 8, Align: c.align, Top: 1, Left: 1, Right: 1,
			})))
		}
		result = append(result, row.New(6).Add(cols...))
	}
	return result
}

func totalRow(report costing.ValuationReport) core.Row {
	return row.New(10).Add(
		col.New(8),
		col.New(2).Add(text.New("TOTAL:", props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Top: 2, Right: 2,
		})),
		col.New(2).Add(text.New("$"+formatMoney(report.TotalValue, 0), props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Top: 2, Right: 1,
		})),
	)
}

// ── helpers ───────────────────────────────────────────────────────────────────

// formatMoney redondea a places decimales con puntos de miles y coma decimal.
// Ej: 1234567.891, 2 → "1.234.567,89"
func formatMoney(v decimal.Decimal, places int32) string {
	s := v.StringFixed(places)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	n := len(intPart)
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	if hasFrac {
		return sign + string(buf) + "," + frac
	}
	return sign + string(buf)
}

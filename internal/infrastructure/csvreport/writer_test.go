package csvreport_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/costos-bi/internal/application/costing"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
	"github.com/jhoicas/costos-bi/internal/infrastructure/csvreport"
)

func TestWriter_Valorizacion(t *testing.T) {
	asOf := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	report := costing.NewValuationReport("acme", asOf, []entity.CostSnapshot{
		{
			Date: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), WarehouseID: "B1", ProductID: "P1",
			FinalCost: decimal.RequireFromString("6.25"), FinalQty: decimal.RequireFromString("12"),
		},
		{
			Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), WarehouseID: "B1", ProductID: "P;2",
			FinalCost: decimal.RequireFromString("10"), FinalQty: decimal.RequireFromString("0.5"),
		},
	})

	w := csvreport.NewWriter()
	assert.Equal(t, "csv", w.Format())

	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, report))

	want := "fecha_corte;almacen;producto;fecha_cierre;unidades_final;costo_promedio_final;valor\n" +
		"2024-03-31;B1;P1;2024-03-02;12;6.25;75\n" +
		"2024-03-31;B1;\"P;2\";2024-03-05;0.5;10;5\n" +
		"2024-03-31;;;;;TOTAL;80\n"
	assert.Equal(t, want, buf.String())
}

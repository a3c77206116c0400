package costing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/costos-bi/internal/domain/entity"
)

// Etapas en las que puede fallar una entidad.
const (
	StageResolve   = "resolve"
	StagePurchases = "purchases"
	StageMovements = "movements"
	StageValidate  = "validate"
	StageWrite     = "write"
)

// EntityFailure fallo aislado de una (fecha, entidad); la corrida continúa.
type EntityFailure struct {
	Date  time.Time
	Key   entity.EntityKey
	Stage string
	Err   string
}

// RunReport resumen de una corrida de costos.
type RunReport struct {
	RunID      string
	Tenant     string
	Cutoff     time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Dates      int
	Entities   int
	Inserted   int
	Updated    int
	Failures   []EntityFailure
}

// Written filas escritas (insertadas + actualizadas).
func (r *RunReport) Written() int { return r.Inserted + r.Updated }

// Failed cantidad de (fecha, entidad) omitidas por error.
func (r *RunReport) Failed() int { return len(r.Failures) }

// Duration duración de la corrida.
func (r *RunReport) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// ValuationReport valorización de inventario: último cierre de cada entidad a una fecha.
type ValuationReport struct {
	Tenant     string
	AsOf       time.Time
	Rows       []entity.CostSnapshot
	TotalValue decimal.Decimal
}

// NewValuationReport calcula el valor total (unidades * costo) de las filas.
func NewValuationReport(tenant string, asOf time.Time, rows []entity.CostSnapshot) ValuationReport {
	total := decimal.Zero
	for _, s := range rows {
		total = total.Add(s.FinalQty.Mul(s.FinalCost))
	}
	return ValuationReport{Tenant: tenant, AsOf: asOf, Rows: rows, TotalValue: total}
}

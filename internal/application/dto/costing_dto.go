package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/costos-bi/internal/application/costing"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
)

// RunCostsRequest cuerpo de POST /api/costos/:tenant/runs. Fechas YYYY-MM-DD.
// Sin Cutoff se usa hoy; con Date se recalcula desde ese día hasta el corte.
type RunCostsRequest struct {
	Cutoff string `json:"cutoff"`
	Date   string `json:"date"`
}

// EntityFailureResponse entidad omitida en la corrida.
type EntityFailureResponse struct {
	Date        string `json:"date"`
	WarehouseID string `json:"warehouse_id"`
	ProductID   string `json:"product_id"`
	Stage       string `json:"stage"`
	Error       string `json:"error"`
}

// RunCostsResponse resumen de la corrida.
type RunCostsResponse struct {
	RunID      string                  `json:"run_id"`
	Tenant     string                  `json:"tenant"`
	Cutoff     string                  `json:"cutoff"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	DurationMS int64                   `json:"duration_ms"`
	Dates      int                     `json:"dates"`
	Entities   int                     `json:"entities"`
	Inserted   int                     `json:"inserted"`
	Updated    int                     `json:"updated"`
	Failures   []EntityFailureResponse `json:"failures"`
}

// NewRunCostsResponse mapea el reporte de la corrida.
func NewRunCostsResponse(r *costing.RunReport) RunCostsResponse {
	out := RunCostsResponse{
		RunID:      r.RunID,
		Tenant:     r.Tenant,
		Cutoff:     r.Cutoff.Format(entity.DateLayout),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMS: r.Duration().Milliseconds(),
		Dates:      r.Dates,
		Entities:   r.Entities,
		Inserted:   r.Inserted,
		Updated:    r.Updated,
		Failures:   make([]EntityFailureResponse, 0, len(r.Failures)),
	}
	for _, f := range r.Failures {
		out.Failures = append(out.Failures, EntityFailureResponse{
			Date:        f.Date.Format(entity.DateLayout),
			WarehouseID: f.Key.WarehouseID,
			ProductID:   f.Key.ProductID,
			Stage:       f.Stage,
			Error:       f.Err,
		})
	}
	return out
}

// ValuationRowResponse último cierre de una entidad.
type ValuationRowResponse struct {
	WarehouseID string          `json:"warehouse_id"`
	ProductID   string          `json:"product_id"`
	Date        string          `json:"date"`
	Quantity    decimal.Decimal `json:"quantity"`
	AvgCost     decimal.Decimal `json:"avg_cost"`
	Value       decimal.Decimal `json:"value"`
}

// ValuationResponse valorización de inventario a una fecha.
type ValuationResponse struct {
	Tenant     string                 `json:"tenant"`
	AsOf       string                 `json:"as_of"`
	Items      []ValuationRowResponse `json:"items"`
	TotalValue decimal.Decimal        `json:"total_value"`
}

// NewValuationResponse mapea el reporte de valorización.
func NewValuationResponse(r costing.ValuationReport) ValuationResponse {
	out := ValuationResponse{
		Tenant:     r.Tenant,
		AsOf:       r.AsOf.Format(entity.DateLayout),
		Items:      make([]ValuationRowResponse, 0, len(r.Rows)),
		TotalValue: r.TotalValue,
	}
	for _, s := range r.Rows {
		out.Items = append(out.Items, ValuationRowResponse{
			WarehouseID: s.WarehouseID,
			ProductID:   s.ProductID,
			Date:        s.Date.Format(entity.DateLayout),
			Quantity:    s.FinalQty,
			AvgCost:     s.FinalCost,
			Value:       s.FinalQty.Mul(s.FinalCost),
		})
	}
	return out
}

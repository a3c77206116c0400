package costing

import (
	"io"

	"github.com/jhoicas/costos-bi/internal/domain/repository"
)

// Observer recibe los resultados de la corrida (métricas). Implementaciones no deben bloquear.
type Observer interface {
	EntityProcessed(tenant, seedSource string)
	EntityFailed(tenant, stage string)
	SnapshotsWritten(tenant string, res repository.UpsertResult)
	RunFinished(tenant string, report *RunReport)
}

// ReportWriter serializa un reporte de valorización (CSV, PDF, ...).
type ReportWriter interface {
	Format() string
	Write(w io.Writer, report ValuationReport) error
}

type nopObserver struct{}

func (nopObserver) EntityProcessed(string, string)                   {}
func (nopObserver) EntityFailed(string, string)                      {}
func (nopObserver) SnapshotsWritten(string, repository.UpsertResult) {}
func (nopObserver) RunFinished(string, *RunReport)                   {}

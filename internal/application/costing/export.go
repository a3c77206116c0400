package costing

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jhoicas/costos-bi/internal/domain"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
	"github.com/jhoicas/costos-bi/internal/domain/repository"
)

// ExportUseCase genera el reporte de valorización (último cierre por entidad a una fecha)
// y lo entrega a un ReportWriter según el formato pedido.
type ExportUseCase struct {
	tenant    string
	snapshots repository.SnapshotRepository
	writers   map[string]ReportWriter
}

// NewExportUseCase construye el caso de uso con los formatos disponibles.
func NewExportUseCase(tenant string, snapshots repository.SnapshotRepository, writers ...ReportWriter) *ExportUseCase {
	byFormat := make(map[string]ReportWriter, len(writers))
	for _, w := range writers {
		byFormat[strings.ToLower(w.Format())] = w
	}
	return &ExportUseCase{tenant: tenant, snapshots: snapshots, writers: byFormat}
}

// Valuation devuelve el reporte sin serializar.
func (uc *ExportUseCase) Valuation(ctx context.Context, asOf time.Time) (ValuationReport, error) {
	asOf = entity.TruncateDay(asOf)
	rows, err := uc.snapshots.ListLatestAsOf(ctx, asOf)
	if err != nil {
		return ValuationReport{}, fmt.Errorf("valorización al %s: %w", asOf.Format(entity.DateLayout), err)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].WarehouseID != rows[j].WarehouseID {
			return rows[i].WarehouseID < rows[j].WarehouseID
		}
		return rows[i].ProductID < rows[j].ProductID
	})
	return NewValuationReport(uc.tenant, asOf, rows), nil
}

// Export escribe la valorización al asOf en w con el formato indicado (csv, pdf).
func (uc *ExportUseCase) Export(ctx context.Context, asOf time.Time, format string, w io.Writer) error {
	writer, ok := uc.writers[strings.ToLower(format)]
	if !ok {
		return fmt.Errorf("%w: formato de exportación %q", domain.ErrInvalidInput, format)
	}
	report, err := uc.Valuation(ctx, asOf)
	if err != nil {
		return err
	}
	if err := writer.Write(w, report); err != nil {
		return fmt.Errorf("exportar %s: %w", format, err)
	}
	return nil
}

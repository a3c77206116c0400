package costing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	calc "github.com/jhoicas/costos-bi/internal/domain/costing"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
	"github.com/jhoicas/costos-bi/internal/domain/repository"
	"github.com/jhoicas/costos-bi/pkg/logger"
)

// DriverConfig parámetros de una corrida.
type DriverConfig struct {
	Tenant   string
	Workers  int // entidades en paralelo dentro de una fecha; 1 = secuencial
	Observer Observer
}

// BatchDriver recorre todas las (fecha, bodega, producto) hasta la fecha de corte y, por cada
// una, resuelve el saldo inicial, calcula el cierre y lo persiste.
//
// Las fechas se procesan en orden ascendente y cada fecha se escribe completa antes de iniciar
// la siguiente: el cierre de t depende del último cierre anterior a t de la misma entidad.
type BatchDriver struct {
	ledger    repository.LedgerRepository
	snapshots repository.SnapshotRepository
	resolver  *BalanceResolver
	log       *logger.Logger
	cfg       DriverConfig
}

// NewBatchDriver construye el driver.
func NewBatchDriver(
	ledger repository.LedgerRepository,
	snapshots repository.SnapshotRepository,
	log *logger.Logger,
	cfg DriverConfig,
) *BatchDriver {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BatchDriver{
		ledger:    ledger,
		snapshots: snapshots,
		resolver:  NewBalanceResolver(ledger, snapshots),
		log:       log.With(func(c zerolog.Context) zerolog.Context { return c.Str("tenant", cfg.Tenant) }),
		cfg:       cfg,
	}
}

// ProcessAllDates procesa todas las combinaciones con movimientos hasta cutoff inclusive.
// Solo devuelve error si no se pudo enumerar el ledger o si ctx se cancela; los errores por
// entidad quedan en el reporte y en el log.
func (d *BatchDriver) ProcessAllDates(ctx context.Context, cutoff time.Time) (*RunReport, error) {
	cutoff = entity.TruncateDay(cutoff)
	return d.run(ctx, cutoff, func() ([]entity.EntityDate, error) {
		return d.ledger.ListEntityDates(ctx, cutoff)
	})
}

// ProcessDate recalcula la fecha date y luego todas las fechas posteriores con movimientos hasta
// cutoff inclusive, para que el saldo inicial de cada cierre posterior siga siendo el cierre
// recalculado. Un cutoff anterior a date se toma como date.
func (d *BatchDriver) ProcessDate(ctx context.Context, date, cutoff time.Time) (*RunReport, error) {
	date = entity.TruncateDay(date)
	cutoff = entity.TruncateDay(cutoff)
	if cutoff.Before(date) {
		cutoff = date
	}
	return d.run(ctx, cutoff, func() ([]entity.EntityDate, error) {
		return d.ledger.ListEntityDatesBetween(ctx, date, cutoff)
	})
}

func (d *BatchDriver) run(ctx context.Context, cutoff time.Time, list func() ([]entity.EntityDate, error)) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.New().String(),
		Tenant:    d.cfg.Tenant,
		Cutoff:    cutoff,
		StartedAt: time.Now(),
	}
	log := d.log.With(func(c zerolog.Context) zerolog.Context { return c.Str("run_id", report.RunID) })
	log.Info().Str("corte", cutoff.Format(entity.DateLayout)).Int("workers", d.cfg.Workers).Msg("iniciando corrida de costos")

	combos, err := list()
	if err != nil {
		return nil, fmt.Errorf("listar fechas de movimientos: %w", err)
	}

	days := groupByDate(combos)
	report.Dates = len(days)
	for _, day := range days {
		if err = ctx.Err(); err != nil {
			break
		}
		d.processDay(ctx, log, day, report)
	}

	report.FinishedAt = time.Now()
	d.cfg.Observer.RunFinished(d.cfg.Tenant, report)
	var ev *zerolog.Event
	if err != nil {
		ev = log.Warn().Err(err)
	} else {
		ev = log.Info()
	}
	ev.Int("fechas", report.Dates).
		Int("entidades", report.Entities).
		Int("insertados", report.Inserted).
		Int("actualizados", report.Updated).
		Int("fallidos", report.Failed()).
		Dur("duracion", report.Duration()).
		Msg("corrida de costos terminada")
	return report, err
}

type dayBatch struct {
	date time.Time
	keys []entity.EntityKey
}

// groupByDate agrupa por fecha ascendente; una entidad aparece una sola vez por fecha.
func groupByDate(combos []entity.EntityDate) []dayBatch {
	sorted := make([]entity.EntityDate, len(combos))
	copy(sorted, combos)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Key.WarehouseID != b.Key.WarehouseID {
			return a.Key.WarehouseID < b.Key.WarehouseID
		}
		return a.Key.ProductID < b.Key.ProductID
	})

	var days []dayBatch
	seen := make(map[entity.EntityKey]struct{})
	for _, c := range sorted {
		date := entity.TruncateDay(c.Date)
		if len(days) == 0 || !days[len(days)-1].date.Equal(date) {
			days = append(days, dayBatch{date: date})
			seen = make(map[entity.EntityKey]struct{})
		}
		if _, dup := seen[c.Key]; dup {
			continue
		}
		seen[c.Key] = struct{}{}
		days[len(days)-1].keys = append(days[len(days)-1].keys, c.Key)
	}
	return days
}

// processDay calcula todas las entidades de la fecha (en paralelo si Workers > 1) y las escribe.
func (d *BatchDriver) processDay(ctx context.Context, log *logger.Logger, day dayBatch, report *RunReport) {
	dateStr := day.date.Format(entity.DateLayout)
	log.Debug().Str("fecha", dateStr).Int("entidades", len(day.keys)).Msg("procesando fecha")

	results := make([]*entity.CostSnapshot, len(day.keys))
	var (
		mu       sync.Mutex
		failures []EntityFailure
	)
	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)
	for i, key := range day.keys {
		g.Go(func() error {
			snap, stage, err := d.computeEntity(ctx, day.date, key)
			if err != nil {
				log.Error().Err(err).
					Str("fecha", dateStr).
					Str("almacen", key.WarehouseID).
					Str("producto", key.ProductID).
					Str("etapa", stage).
					Msg("entidad omitida")
				d.cfg.Observer.EntityFailed(d.cfg.Tenant, stage)
				mu.Lock()
				failures = append(failures, EntityFailure{Date: day.date, Key: key, Stage: stage, Err: err.Error()})
				mu.Unlock()
				return nil
			}
			results[i] = snap
			return nil
		})
	}
	_ = g.Wait()

	batch := make([]entity.CostSnapshot, 0, len(results))
	for _, s := range results {
		if s != nil {
			batch = append(batch, *s)
		}
	}

	report.Entities += len(day.keys)
	report.Failures = append(report.Failures, sortFailures(failures)...)
	if len(batch) == 0 {
		return
	}
	res, writeFailures := d.write(ctx, log, batch)
	report.Inserted += res.Inserted
	report.Updated += res.Updated
	report.Failures = append(report.Failures, writeFailures...)
	d.cfg.Observer.SnapshotsWritten(d.cfg.Tenant, res)
}

// computeEntity resolver -> ledger -> calculadora para una entidad y fecha.
func (d *BatchDriver) computeEntity(ctx context.Context, date time.Time, key entity.EntityKey) (*entity.CostSnapshot, string, error) {
	initial, err := d.resolver.Resolve(ctx, key, date)
	if err != nil {
		return nil, StageResolve, err
	}
	purchase, err := d.ledger.Purchases(ctx, date, key)
	if err != nil {
		return nil, StagePurchases, fmt.Errorf("compras: %w", err)
	}
	movement, err := d.ledger.OtherMovements(ctx, date, key)
	if err != nil {
		return nil, StageMovements, fmt.Errorf("movimientos: %w", err)
	}

	out := calc.Compute(calc.RollInput{
		InitialCost:  initial.Cost,
		InitialQty:   initial.Quantity,
		PurchaseCost: purchase.AvgUnitPrice,
		PurchaseQty:  purchase.Quantity,
		MovementQty:  movement.Quantity,
	})
	snap := &entity.CostSnapshot{
		Date:         date,
		WarehouseID:  key.WarehouseID,
		ProductID:    key.ProductID,
		InitialCost:  initial.Cost,
		InitialQty:   initial.Quantity,
		PurchaseCost: purchase.AvgUnitPrice,
		PurchaseQty:  purchase.Quantity,
		MovementQty:  movement.Quantity,
		FinalCost:    out.FinalCost,
		FinalQty:     out.FinalQty,
	}
	if err := snap.Validate(); err != nil {
		return nil, StageValidate, fmt.Errorf("%w (inicial=%s@%s compra=%s@%s mov=%s)", err,
			initial.Quantity, initial.Cost, purchase.Quantity, purchase.AvgUnitPrice, movement.Quantity)
	}
	d.cfg.Observer.EntityProcessed(d.cfg.Tenant, initial.Source)
	return snap, "", nil
}

// write intenta la escritura masiva de la fecha; si falla, reintenta fila por fila para aislar
// la fila problemática. Cada fila fallida se registra con el payload completo.
func (d *BatchDriver) write(ctx context.Context, log *logger.Logger, batch []entity.CostSnapshot) (repository.UpsertResult, []EntityFailure) {
	res, err := d.snapshots.UpsertBatch(ctx, batch)
	if err == nil {
		return res, nil
	}
	log.Warn().Err(err).Str("fecha", batch[0].Date.Format(entity.DateLayout)).Int("filas", len(batch)).
		Msg("escritura masiva falló; reintentando fila por fila")

	var (
		total    repository.UpsertResult
		failures []EntityFailure
	)
	for _, s := range batch {
		r, err := d.snapshots.UpsertBatch(ctx, []entity.CostSnapshot{s})
		if err != nil {
			logSnapshotFailure(log, s, err)
			d.cfg.Observer.EntityFailed(d.cfg.Tenant, StageWrite)
			failures = append(failures, EntityFailure{Date: s.Date, Key: s.Key(), Stage: StageWrite, Err: err.Error()})
			continue
		}
		total = total.Add(r)
	}
	return total, failures
}

func logSnapshotFailure(log *logger.Logger, s entity.CostSnapshot, err error) {
	log.Error().Err(err).
		Str("fecha", s.Date.Format(entity.DateLayout)).
		Str("almacen", s.WarehouseID).
		Str("producto", s.ProductID).
		Str("costo_inicial", s.InitialCost.String()).
		Str("unidades_inicial", s.InitialQty.String()).
		Str("costo_compra", s.PurchaseCost.String()).
		Str("unidades_compra", s.PurchaseQty.String()).
		Str("unidades_movimiento", s.MovementQty.String()).
		Str("costo_final", s.FinalCost.String()).
		Str("unidades_final", s.FinalQty.String()).
		Msg("no se pudo guardar el histórico")
}

func sortFailures(f []EntityFailure) []EntityFailure {
	sort.Slice(f, func(i, j int) bool {
		if f[i].Key.WarehouseID != f[j].Key.WarehouseID {
			return f[i].Key.WarehouseID < f[j].Key.WarehouseID
		}
		return f[i].Key.ProductID < f[j].Key.ProductID
	})
	return f
}

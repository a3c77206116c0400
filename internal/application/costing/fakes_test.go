package costing_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/costos-bi/internal/application/costing"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
	"github.com/jhoicas/costos-bi/internal/domain/repository"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(n int) time.Time { return time.Date(2024, time.March, n, 0, 0, 0, 0, time.UTC) }

var errBoom = errors.New("boom")

// memLedger ledger en memoria con la misma semántica que las consultas SQL.
type memLedger struct {
	events        []entity.MovementEvent
	classTypes    map[string]string
	purchaseClass string
	excluded      map[string]bool

	failPurchases map[entity.EntityKey]bool
	// ranges rangos pedidos a ListEntityDatesBetween.
	ranges [][2]time.Time
}

func newMemLedger(events ...entity.MovementEvent) *memLedger {
	return &memLedger{
		events:        events,
		classTypes:    map[string]string{"200": "E", "101": "E", "601": "E", "501": "S", "502": "S"},
		purchaseClass: "200",
		excluded:      map[string]bool{"601": true, "603": true},
		failPurchases: map[entity.EntityKey]bool{},
	}
}

func mov(date time.Time, wh, prod, class, price, qty string) entity.MovementEvent {
	return entity.MovementEvent{
		Date: date, WarehouseID: wh, ProductID: prod, MovementClass: class,
		UnitPrice: d(price), Quantity: d(qty),
	}
}

func keyOf(e entity.MovementEvent) entity.EntityKey {
	return entity.EntityKey{WarehouseID: e.WarehouseID, ProductID: e.ProductID}
}

func (l *memLedger) ListEntityDates(ctx context.Context, cutoff time.Time) ([]entity.EntityDate, error) {
	return l.ListEntityDatesBetween(ctx, time.Time{}, cutoff)
}

func (l *memLedger) ListEntityDatesBetween(_ context.Context, from, to time.Time) ([]entity.EntityDate, error) {
	l.ranges = append(l.ranges, [2]time.Time{from, to})
	seen := map[entity.EntityDate]bool{}
	var out []entity.EntityDate
	for _, e := range l.events {
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		ed := entity.EntityDate{Date: e.Date, Key: keyOf(e)}
		if !seen[ed] {
			seen[ed] = true
			out = append(out, ed)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out, nil
}

func (l *memLedger) Purchases(_ context.Context, date time.Time, key entity.EntityKey) (entity.DailyPurchase, error) {
	if l.failPurchases[key] {
		return entity.DailyPurchase{}, errBoom
	}
	amount, qty := decimal.Zero, decimal.Zero
	for _, e := range l.events {
		if e.Date.Equal(date) && keyOf(e) == key && e.MovementClass == l.purchaseClass {
			amount = amount.Add(e.UnitPrice.Mul(e.Quantity))
			qty = qty.Add(e.Quantity)
		}
	}
	if qty.IsZero() {
		return entity.DailyPurchase{AvgUnitPrice: decimal.Zero, Quantity: decimal.Zero}, nil
	}
	return entity.DailyPurchase{AvgUnitPrice: amount.Div(qty), Quantity: qty}, nil
}

func (l *memLedger) OtherMovements(_ context.Context, date time.Time, key entity.EntityKey) (entity.DailyMovement, error) {
	qty := decimal.Zero
	for _, e := range l.events {
		if e.Date.Equal(date) && keyOf(e) == key && e.MovementClass != l.purchaseClass {
			qty = qty.Add(e.Quantity)
		}
	}
	return entity.DailyMovement{Quantity: qty}, nil
}

func (l *memLedger) InitialCostSeed(_ context.Context, key entity.EntityKey, asOf time.Time) (entity.CostSeed, error) {
	var first *time.Time
	for _, e := range l.events {
		if keyOf(e) != key || e.Date.After(asOf) || l.classTypes[e.MovementClass] != "E" || l.excluded[e.MovementClass] {
			continue
		}
		if first == nil || e.Date.Before(*first) {
			dt := e.Date
			first = &dt
		}
	}
	if first == nil {
		return entity.CostSeed{Cost: decimal.Zero}, nil
	}
	sum, n := decimal.Zero, 0
	for _, e := range l.events {
		if keyOf(e) == key && e.Date.Equal(*first) && l.classTypes[e.MovementClass] == "E" && !l.excluded[e.MovementClass] {
			sum = sum.Add(e.UnitPrice)
			n++
		}
	}
	return entity.CostSeed{Cost: sum.Div(decimal.NewFromInt(int64(n))), FoundDate: first}, nil
}

type snapKey struct {
	date time.Time
	key  entity.EntityKey
}

// memSnapshots histórico en memoria; failWrite hace fallar cualquier lote que contenga la entidad.
type memSnapshots struct {
	mu        sync.Mutex
	rows      map[snapKey]entity.CostSnapshot
	failWrite map[entity.EntityKey]bool
	batches   int
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{rows: map[snapKey]entity.CostSnapshot{}, failWrite: map[entity.EntityKey]bool{}}
}

func (s *memSnapshots) GetLatestBefore(_ context.Context, key entity.EntityKey, date time.Time) (*entity.CostSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *entity.CostSnapshot
	for k, row := range s.rows {
		if k.key != key || !k.date.Before(date) {
			continue
		}
		if best == nil || k.date.After(best.Date) {
			r := row
			best = &r
		}
	}
	return best, nil
}

func (s *memSnapshots) UpsertBatch(_ context.Context, snaps []entity.CostSnapshot) (repository.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	for _, sn := range snaps {
		if s.failWrite[sn.Key()] {
			return repository.UpsertResult{}, errBoom
		}
	}
	var res repository.UpsertResult
	for _, sn := range snaps {
		k := snapKey{date: sn.Date, key: sn.Key()}
		if _, ok := s.rows[k]; ok {
			res.Updated++
		} else {
			res.Inserted++
		}
		s.rows[k] = sn
	}
	return res, nil
}

func (s *memSnapshots) ListLatestAsOf(_ context.Context, asOf time.Time) ([]entity.CostSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := map[entity.EntityKey]entity.CostSnapshot{}
	for k, row := range s.rows {
		if k.date.After(asOf) {
			continue
		}
		if cur, ok := latest[k.key]; !ok || k.date.After(cur.Date) {
			latest[k.key] = row
		}
	}
	out := make([]entity.CostSnapshot, 0, len(latest))
	for _, row := range latest {
		out = append(out, row)
	}
	return out, nil
}

func (s *memSnapshots) get(date time.Time, wh, prod string) (entity.CostSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[snapKey{date: date, key: entity.EntityKey{WarehouseID: wh, ProductID: prod}}]
	return row, ok
}

// recordingObserver cuenta eventos del driver.
type recordingObserver struct {
	mu        sync.Mutex
	processed map[string]int
	failed    map[string]int
	written   repository.UpsertResult
	runs      int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{processed: map[string]int{}, failed: map[string]int{}}
}

func (o *recordingObserver) EntityProcessed(_, source string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.processed[source]++
}

func (o *recordingObserver) EntityFailed(_, stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed[stage]++
}

func (o *recordingObserver) SnapshotsWritten(_ string, res repository.UpsertResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.written = o.written.Add(res)
}

func (o *recordingObserver) RunFinished(string, *costing.RunReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
}

// stubWriter escribe una línea por fila.
type stubWriter struct{ format string }

func (w stubWriter) Format() string { return w.format }

func (w stubWriter) Write(out io.Writer, r costing.ValuationReport) error {
	for _, row := range r.Rows {
		if _, err := io.WriteString(out, row.Key().String()+"\n"); err != nil {
			return err
		}
	}
	return nil
}

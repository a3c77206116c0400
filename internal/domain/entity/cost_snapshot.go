package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/costos-bi/internal/domain"
)

// BalanceTolerance tolerancia para la conservación de unidades.
var BalanceTolerance = decimal.New(1, -6)

// Origen del saldo inicial de un día.
const (
	SeedSourceSnapshot = "snapshot" // último histórico anterior a la fecha
	SeedSourceLedger   = "ledger"   // primera entrada calificada del ledger
	SeedSourceNone     = "none"     // sin información: costo y unidades en cero
)

// InitialBalance saldo de arranque de una entidad para una fecha.
type InitialBalance struct {
	Cost     decimal.Decimal
	Quantity decimal.Decimal
	Source   string
}

// CostSnapshot cierre diario de costo promedio ponderado y unidades de una entidad.
// La llave primaria es (Date, WarehouseID, ProductID).
type CostSnapshot struct {
	Date         time.Time
	WarehouseID  string
	ProductID    string
	InitialCost  decimal.Decimal
	InitialQty   decimal.Decimal
	PurchaseCost decimal.Decimal
	PurchaseQty  decimal.Decimal
	MovementQty  decimal.Decimal
	FinalCost    decimal.Decimal
	FinalQty     decimal.Decimal
}

// Key devuelve la entidad del snapshot.
func (s CostSnapshot) Key() EntityKey {
	return EntityKey{WarehouseID: s.WarehouseID, ProductID: s.ProductID}
}

// Validate verifica las invariantes del cierre: conservación de unidades y costo no negativo.
func (s CostSnapshot) Validate() error {
	expected := s.InitialQty.Add(s.PurchaseQty).Add(s.MovementQty)
	if s.FinalQty.Sub(expected).Abs().GreaterThan(BalanceTolerance) {
		return fmt.Errorf("%s %s: %w", s.Date.Format(DateLayout), s.Key(), domain.ErrUnbalanced)
	}
	if s.FinalCost.IsNegative() {
		return fmt.Errorf("%s %s: %w", s.Date.Format(DateLayout), s.Key(), domain.ErrNegativeCost)
	}
	return nil
}

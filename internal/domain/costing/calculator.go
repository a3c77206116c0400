// Package costing contiene el cálculo puro de costo promedio ponderado (roll-forward diario).
package costing

import (
	"math"

	"github.com/shopspring/decimal"
)

// RollInput saldo inicial más las transacciones de un día para una entidad.
type RollInput struct {
	InitialCost  decimal.Decimal
	InitialQty   decimal.Decimal
	PurchaseCost decimal.Decimal
	PurchaseQty  decimal.Decimal
	MovementQty  decimal.Decimal
}

// RollResult cierre del día.
type RollResult struct {
	FinalCost decimal.Decimal
	FinalQty  decimal.Decimal
}

// Compute calcula el costo promedio ponderado y las unidades al cierre del día.
//
//	UnidadesFinal = UnidadesInicial + UnidadesCompra + UnidadesMovimiento
//	CostoFinal    = ((UnidadesInicial + UnidadesMovimiento) * CostoInicial + UnidadesCompra * CostoCompra) / UnidadesFinal
//
// Los movimientos que no son compra no alteran el costo unitario: se valoran al costo inicial.
// Si UnidadesFinal <= 0 se conserva el costo inicial.
// Con saldo previo en déficit (inicial + movimiento < 0) el promedio puede salir negativo:
// en ese caso las unidades que quedan provienen de la compra y se valoran a su costo.
func Compute(in RollInput) RollResult {
	finalQty := in.InitialQty.Add(in.PurchaseQty).Add(in.MovementQty)
	if !finalQty.IsPositive() {
		return RollResult{FinalCost: in.InitialCost, FinalQty: finalQty}
	}
	pooled := in.InitialQty.Add(in.MovementQty).Mul(in.InitialCost)
	bought := in.PurchaseQty.Mul(in.PurchaseCost)
	cost := pooled.Add(bought).Div(finalQty)
	if cost.IsNegative() {
		cost = decimal.Max(in.PurchaseCost, decimal.Zero)
	}
	return RollResult{FinalCost: cost, FinalQty: finalQty}
}

// SanitizeFloat convierte un valor leído del ledger (float) a decimal; NaN e infinitos valen cero.
func SanitizeFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// SanitizeNullable como SanitizeFloat pero acepta NULL (nil) del motor de base de datos.
func SanitizeNullable(f *float64) decimal.Decimal {
	if f == nil {
		return decimal.Zero
	}
	return SanitizeFloat(*f)
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseClassDefault clase de movimiento que marca las compras (entradas con costo propio).
const PurchaseClassDefault = "200"

// ClassTypeEntry tipo de clase de movimiento "entrada" en la tabla de clases.
const ClassTypeEntry = "E"

// MovementEvent fila del ledger logístico del ERP. Inmutable y de solo lectura para este núcleo.
type MovementEvent struct {
	Date          time.Time
	WarehouseID   string
	ProductID     string
	MovementClass string
	UnitPrice     decimal.Decimal
	Quantity      decimal.Decimal // con signo: negativo para salidas
}

// DailyPurchase agregado de compras de un día para una entidad.
// AvgUnitPrice es ponderado por cantidad: sum(precio*cant)/sum(cant).
type DailyPurchase struct {
	AvgUnitPrice decimal.Decimal
	Quantity     decimal.Decimal
}

// DailyMovement suma con signo de los movimientos que no son compra en un día.
type DailyMovement struct {
	Quantity decimal.Decimal
}

// CostSeed costo de arranque en frío cuando no existe histórico previo.
// FoundDate es nil si no hubo ninguna entrada calificada.
type CostSeed struct {
	Cost      decimal.Decimal
	FoundDate *time.Time
}

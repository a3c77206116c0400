package entity

import (
	"fmt"
	"time"
)

// DateLayout formato de fecha contable (sin hora) usado en todo el cálculo de costos.
const DateLayout = "2006-01-02"

// EntityKey identifica un flujo independiente de costo: bodega + producto.
type EntityKey struct {
	WarehouseID string
	ProductID   string
}

func (k EntityKey) String() string {
	return fmt.Sprintf("%s/%s", k.WarehouseID, k.ProductID)
}

// EntityDate combinación (fecha, bodega, producto) con al menos un movimiento en el ledger.
type EntityDate struct {
	Date time.Time
	Key  EntityKey
}

// TruncateDay normaliza una fecha a medianoche UTC; las fechas contables no llevan hora.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate interpreta una fecha YYYY-MM-DD como día contable UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("fecha %q: %w", s, err)
	}
	return t, nil
}

// Package ledgercsv lee extractos CSV del ledger logístico exportados por el ERP
// (separador ';', ISO-8859-1 o UTF-8).
package ledgercsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/costos-bi/internal/domain"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
)

// Columnas esperadas en el encabezado del extracto de movimientos (sin importar mayúsculas).
var movementColumns = []string{
	"dtcontabilizacion", "nbalmacen", "nbproducto", "nbmovimientoclase", "flpreciounitario", "flcantidad",
}

// NumberFormat convención numérica de un extracto; se fija por archivo porque "1.234" es
// ambiguo entre ambas.
type NumberFormat int

const (
	// DecimalComma "1.234,5": punto de miles y coma decimal (exportaciones del ERP en Colombia).
	DecimalComma NumberFormat = iota
	// DecimalPoint "1,234.5": coma de miles y punto decimal.
	DecimalPoint
)

// ParseNumberFormat acepta "coma" o "punto".
func ParseNumberFormat(s string) (NumberFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "coma", "comma", ",":
		return DecimalComma, nil
	case "punto", "point", "dot", ".":
		return DecimalPoint, nil
	default:
		return 0, fmt.Errorf("%w: separador decimal %q", domain.ErrInvalidInput, s)
	}
}

func (f NumberFormat) separators() (decimalSep, groupSep string) {
	if f == DecimalPoint {
		return ".", ","
	}
	return ",", "."
}

var dateLayouts = []string{entity.DateLayout, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "02/01/2006"}

// Decode envuelve r con el decodificador del charset ("utf-8" o "iso-8859-1"/"latin1").
func Decode(r io.Reader, charset string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return r, nil
	case "iso-8859-1", "iso8859-1", "latin1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("%w: charset %q", domain.ErrInvalidInput, charset)
	}
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return cr
}

// ReadMovements lee el extracto completo con la convención numérica format. Un error de formato
// indica la línea.
func ReadMovements(r io.Reader, format NumberFormat) ([]entity.MovementEvent, error) {
	cr := newReader(r)
	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: encabezado: %v", domain.ErrInvalidInput, err)
	}
	idx, err := columnIndex(head, movementColumns)
	if err != nil {
		return nil, err
	}

	var events []entity.MovementEvent
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		line, _ := cr.FieldPos(0)
		ev, err := parseMovement(rec, idx, format)
		if err != nil {
			return nil, fmt.Errorf("%w: línea %d: %v", domain.ErrInvalidInput, line, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// ReadClasses lee "nbmovimientoclase;tpmovimientoclase" y devuelve clase -> tipo.
func ReadClasses(r io.Reader) (map[string]string, error) {
	cr := newReader(r)
	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: encabezado: %v", domain.ErrInvalidInput, err)
	}
	idx, err := columnIndex(head, []string{"nbmovimientoclase", "tpmovimientoclase"})
	if err != nil {
		return nil, err
	}
	classes := make(map[string]string)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return classes, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		class := strings.TrimSpace(rec[idx[0]])
		if class == "" {
			continue
		}
		classes[class] = strings.ToUpper(strings.TrimSpace(rec[idx[1]]))
	}
}

func columnIndex(head, want []string) ([]int, error) {
	pos := make(map[string]int, len(head))
	for i, h := range head {
		pos[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	idx := make([]int, len(want))
	for i, c := range want {
		p, ok := pos[c]
		if !ok {
			return nil, fmt.Errorf("%w: falta la columna %s", domain.ErrInvalidInput, c)
		}
		idx[i] = p
	}
	return idx, nil
}

func parseMovement(rec []string, idx []int, format NumberFormat) (entity.MovementEvent, error) {
	date, err := parseDate(rec[idx[0]])
	if err != nil {
		return entity.MovementEvent{}, err
	}
	price, err := parseNumber(rec[idx[4]], format)
	if err != nil {
		return entity.MovementEvent{}, fmt.Errorf("precio: %w", err)
	}
	qty, err := parseNumber(rec[idx[5]], format)
	if err != nil {
		return entity.MovementEvent{}, fmt.Errorf("cantidad: %w", err)
	}
	ev := entity.MovementEvent{
		Date:          date,
		WarehouseID:   strings.TrimSpace(rec[idx[1]]),
		ProductID:     strings.TrimSpace(rec[idx[2]]),
		MovementClass: strings.TrimSpace(rec[idx[3]]),
		UnitPrice:     price,
		Quantity:      qty,
	}
	if ev.WarehouseID == "" || ev.ProductID == "" || ev.MovementClass == "" {
		return entity.MovementEvent{}, errors.New("almacén, producto y clase son obligatorios")
	}
	return ev, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return entity.TruncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("fecha %q no reconocida", s)
}

// parseNumber interpreta s según format. El separador de miles solo se acepta agrupando de a tres
// dígitos; vacío es cero (nulo en el ERP).
func parseNumber(s string, format NumberFormat) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	decSep, groupSep := format.separators()
	intPart, frac, hasFrac := strings.Cut(s, decSep)
	if strings.Contains(frac, decSep) || strings.Contains(frac, groupSep) {
		return decimal.Zero, fmt.Errorf("número %q mal formado", s)
	}
	if strings.Contains(intPart, groupSep) {
		if !validGrouping(strings.TrimLeft(intPart, "+-"), groupSep) {
			return decimal.Zero, fmt.Errorf("número %q: separador de miles %q mal ubicado", s, groupSep)
		}
		intPart = strings.ReplaceAll(intPart, groupSep, "")
	}
	if hasFrac {
		intPart += "." + frac
	}
	return decimal.NewFromString(intPart)
}

// validGrouping "1.234.567": primer grupo de 1 a 3 dígitos y los demás de exactamente 3.
func validGrouping(s, sep string) bool {
	groups := strings.Split(s, sep)
	for i, g := range groups {
		if g == "" || len(g) > 3 || (i > 0 && len(g) != 3) {
			return false
		}
	}
	return true
}

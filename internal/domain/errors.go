package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound       = errors.New("recurso no encontrado")
	ErrInvalidInput   = errors.New("entrada inválida")
	ErrConfig         = errors.New("configuración inválida")
	ErrTenantNotFound = errors.New("empresa no configurada")
	ErrUnbalanced     = errors.New("saldo final no cuadra con inicial + compras + movimientos")
	ErrNegativeCost   = errors.New("costo promedio negativo")
	ErrRunInProgress  = errors.New("ya hay una corrida en curso para la empresa")
)

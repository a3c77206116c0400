package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/costos-bi/internal/application/costing"
	"github.com/jhoicas/costos-bi/internal/application/dto"
	"github.com/jhoicas/costos-bi/internal/domain"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
)

// CostingService casos de uso expuestos por HTTP.
type CostingService interface {
	Run(ctx context.Context, tenant string, req costing.RunRequest) (*costing.RunReport, error)
	Valuation(ctx context.Context, tenant string, asOf time.Time) (costing.ValuationReport, error)
	Export(ctx context.Context, tenant string, asOf time.Time, format string, w io.Writer) error
}

var contentTypes = map[string]string{
	"csv": "text/csv; charset=utf-8",
	"pdf": "application/pdf",
}

// CostingHandler maneja corridas y valorización por empresa.
type CostingHandler struct {
	svc CostingService
}

// NewCostingHandler construye el handler.
func NewCostingHandler(svc CostingService) *CostingHandler {
	return &CostingHandler{svc: svc}
}

// Run POST /api/costos/:tenant/runs: ejecuta la corrida de forma síncrona y devuelve el resumen.
// Las entidades fallidas no cambian el código de respuesta; van en "failures".
func (h *CostingHandler) Run(c *fiber.Ctx) error {
	var in dto.RunCostsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	var req costing.RunRequest
	if in.Cutoff != "" {
		cutoff, err := entity.ParseDate(in.Cutoff)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "cutoff debe ser YYYY-MM-DD"})
		}
		req.Cutoff = cutoff
	}
	if in.Date != "" {
		date, err := entity.ParseDate(in.Date)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "date debe ser YYYY-MM-DD"})
		}
		req.Date = &date
	}

	report, err := h.svc.Run(c.UserContext(), c.Params("tenant"), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.NewRunCostsResponse(report))
}

// Valuation GET /api/costos/:tenant/valuation?as_of=YYYY-MM-DD&format=json|csv|pdf
func (h *CostingHandler) Valuation(c *fiber.Ctx) error {
	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := entity.ParseDate(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "as_of debe ser YYYY-MM-DD"})
		}
		asOf = parsed
	}
	tenant := c.Params("tenant")
	format := strings.ToLower(c.Query("format", "json"))

	if format == "json" {
		report, err := h.svc.Valuation(c.UserContext(), tenant, asOf)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(dto.NewValuationResponse(report))
	}

	var buf bytes.Buffer
	if err := h.svc.Export(c.UserContext(), tenant, asOf, format, &buf); err != nil {
		return errorResponse(c, err)
	}
	// Attachment fija el Content-Type por extensión; se sobrescribe después.
	c.Attachment("valorizacion_" + entity.TruncateDay(asOf).Format(entity.DateLayout) + "." + format)
	if ct, ok := contentTypes[format]; ok {
		c.Set(fiber.HeaderContentType, ct)
	}
	return c.Send(buf.Bytes())
}

// errorResponse traduce errores de dominio a códigos HTTP.
func errorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrTenantNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "TENANT_NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrRunInProgress):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "RUN_IN_PROGRESS", Message: err.Error()})
	case errors.Is(err, domain.ErrConfig):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "CONFIG", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

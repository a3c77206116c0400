package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/costos-bi/internal/application/costing"
	"github.com/jhoicas/costos-bi/internal/application/dto"
	"github.com/jhoicas/costos-bi/internal/domain"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
	apphttp "github.com/jhoicas/costos-bi/internal/interfaces/http"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

func day(n int) time.Time { return time.Date(2024, time.March, n, 0, 0, 0, 0, time.UTC) }

type fakeService struct {
	lastTenant string
	lastReq    costing.RunRequest
	lastAsOf   time.Time
	lastFormat string
	err        error
}

func (f *fakeService) Run(_ context.Context, tenant string, req costing.RunRequest) (*costing.RunReport, error) {
	f.lastTenant, f.lastReq = tenant, req
	if f.err != nil {
		return nil, f.err
	}
	return &costing.RunReport{
		RunID: "run-1", Tenant: "Acme", Cutoff: day(3),
		StartedAt: day(3), FinishedAt: day(3).Add(1500 * time.Millisecond),
		Dates: 3, Entities: 4, Inserted: 2, Updated: 1,
		Failures: []costing.EntityFailure{{
			Date: day(2), Key: entity.EntityKey{WarehouseID: "B2", ProductID: "P9"},
			Stage: costing.StagePurchases, Err: "boom",
		}},
	}, nil
}

func (f *fakeService) Valuation(_ context.Context, tenant string, asOf time.Time) (costing.ValuationReport, error) {
	f.lastTenant, f.lastAsOf = tenant, asOf
	if f.err != nil {
		return costing.ValuationReport{}, f.err
	}
	return costing.NewValuationReport("Acme", asOf, []entity.CostSnapshot{{
		Date: day(2), WarehouseID: "B1", ProductID: "P1",
		FinalCost: decimal.RequireFromString("6.25"), FinalQty: decimal.RequireFromString("12"),
	}}), nil
}

func (f *fakeService) Export(_ context.Context, tenant string, asOf time.Time, format string, w io.Writer) error {
	f.lastTenant, f.lastAsOf, f.lastFormat = tenant, asOf, format
	if format != "csv" {
		return fmt.Errorf("%w: formato %q", domain.ErrInvalidInput, format)
	}
	_, err := io.WriteString(w, "a;b\n")
	return err
}

func buildTestApp(svc apphttp.CostingService, metrics http.Handler) *fiber.App {
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{AppName: "costos-bi", Costing: svc, Metrics: metrics})
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestHealthYMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "costos_runs_total 1\n")
	})
	app := buildTestApp(&fakeService{}, metrics)

	resp := doRequest(t, app, http.MethodGet, "/health", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	mresp := doRequest(t, app, http.MethodGet, "/metrics", "")
	defer mresp.Body.Close()
	body, _ := io.ReadAll(mresp.Body)
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
	assert.Contains(t, string(body), "costos_runs_total 1")
}

func TestRun_DevuelveResumen(t *testing.T) {
	svc := &fakeService{}
	app := buildTestApp(svc, nil)

	resp := doRequest(t, app, http.MethodPost, "/api/costos/acme/runs", `{"cutoff":"2024-03-03"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out dto.RunCostsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, "2024-03-03", out.Cutoff)
	assert.Equal(t, int64(1500), out.DurationMS)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "purchases", out.Failures[0].Stage)

	assert.Equal(t, "acme", svc.lastTenant)
	assert.Equal(t, day(3), svc.lastReq.Cutoff)
	assert.Nil(t, svc.lastReq.Date)
}

func TestRun_SoloUnaFechaYSinCuerpo(t *testing.T) {
	svc := &fakeService{}
	app := buildTestApp(svc, nil)

	resp := doRequest(t, app, http.MethodPost, "/api/costos/acme/runs", `{"date":"2024-03-02"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.lastReq.Date)
	assert.Equal(t, day(2), *svc.lastReq.Date)

	resp = doRequest(t, app, http.MethodPost, "/api/costos/acme/runs", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, svc.lastReq.Cutoff.IsZero())
}

func TestRun_Errores(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
		code   string
	}{
		{"fecha inválida", nil, `{"cutoff":"03/03/2024"}`, http.StatusBadRequest, "VALIDATION"},
		{"cuerpo inválido", nil, `{`, http.StatusBadRequest, "INVALID_BODY"},
		{"empresa desconocida", domain.ErrTenantNotFound, "", http.StatusNotFound, "TENANT_NOT_FOUND"},
		{"corrida en curso", domain.ErrRunInProgress, "", http.StatusConflict, "RUN_IN_PROGRESS"},
		{"configuración", domain.ErrConfig, "", http.StatusServiceUnavailable, "CONFIG"},
		{"otro", fmt.Errorf("listar fechas: %w", io.ErrUnexpectedEOF), "", http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := buildTestApp(&fakeService{err: tt.err}, nil)
			resp := doRequest(t, app, http.MethodPost, "/api/costos/acme/runs", tt.body)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			var out dto.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Equal(t, tt.code, out.Code)
		})
	}
}

func TestValuation_JSON(t *testing.T) {
	svc := &fakeService{}
	app := buildTestApp(svc, nil)

	resp := doRequest(t, app, http.MethodGet, "/api/costos/acme/valuation?as_of=2024-03-02", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out dto.ValuationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "2024-03-02", out.AsOf)
	require.Len(t, out.Items, 1)
	assert.True(t, out.Items[0].Value.Equal(decimal.NewFromInt(75)))
	assert.True(t, out.TotalValue.Equal(decimal.NewFromInt(75)))
	assert.Equal(t, day(2), svc.lastAsOf)
}

func TestValuation_Exportacion(t *testing.T) {
	svc := &fakeService{}
	app := buildTestApp(svc, nil)

	resp := doRequest(t, app, http.MethodGet, "/api/costos/acme/valuation?as_of=2024-03-02&format=CSV", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "valorizacion_2024-03-02.csv")
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "a;b\n", string(body))

	bad := doRequest(t, app, http.MethodGet, "/api/costos/acme/valuation?format=xlsx", "")
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	badDate := doRequest(t, app, http.MethodGet, "/api/costos/acme/valuation?as_of=ayer", "")
	defer badDate.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badDate.StatusCode)
}

// costos ejecuta el cálculo de costo promedio ponderado de una empresa.
//
// Uso:
//
//	costos -tenant "Distribuidora Norte" [-cutoff 2024-03-31] [-date 2024-03-15]
//	       [-workers 4] [-export valorizacion.pdf] [-strict]
//
// Sale con código distinto de cero ante errores de configuración, o si -strict y hubo entidades fallidas.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/jhoicas/costos-bi/internal/application/costing"
	"github.com/jhoicas/costos-bi/internal/bootstrap"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
	"github.com/jhoicas/costos-bi/pkg/config"
	"github.com/jhoicas/costos-bi/pkg/logger"
)

const (
	exitOK = iota
	exitConfig
	exitFailures
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		tenantName = pflag.String("tenant", "", "empresa a procesar (obligatorio)")
		cutoffRaw  = pflag.String("cutoff", "", "fecha de corte YYYY-MM-DD (por defecto hoy)")
		dateRaw    = pflag.String("date", "", "recalcular desde esta fecha YYYY-MM-DD hasta el corte")
		workers    = pflag.Int("workers", 0, "entidades en paralelo por fecha (sobrescribe COSTING_WORKERS)")
		exportPath = pflag.String("export", "", "archivo de valorización al corte (.csv o .pdf)")
		strict     = pflag.Bool("strict", false, "salir con error si alguna entidad falló")
	)
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		return exitConfig
	}
	if *workers > 0 {
		cfg.Costing.Workers = *workers
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Output: os.Stderr})

	if strings.TrimSpace(*tenantName) == "" {
		log.Error().Msg("-tenant es obligatorio")
		return exitConfig
	}
	req, err := parseRequest(*cutoffRaw, *dateRaw)
	if err != nil {
		log.Error().Err(err).Msg("fechas inválidas")
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("inicializar servicio de costos")
		return exitConfig
	}
	defer deps.Close()

	report, err := deps.Service.Run(ctx, *tenantName, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("corrida interrumpida")
		} else {
			log.Error().Err(err).Str("tenant", *tenantName).Msg("corrida abortada")
		}
		return exitConfig
	}
	fmt.Printf("corrida %s: %d fechas, %d entidades, %d insertadas, %d actualizadas, %d fallidas (%s)\n",
		report.RunID, report.Dates, report.Entities, report.Inserted, report.Updated, report.Failed(),
		report.Duration().Round(time.Millisecond))

	if *exportPath != "" {
		if err := export(ctx, deps.Service, *tenantName, report.Cutoff, *exportPath); err != nil {
			log.Error().Err(err).Str("archivo", *exportPath).Msg("exportar valorización")
			return exitConfig
		}
		fmt.Printf("valorización al %s escrita en %s\n", report.Cutoff.Format(entity.DateLayout), *exportPath)
	}

	if *strict && report.Failed() > 0 {
		return exitFailures
	}
	return exitOK
}

func parseRequest(cutoffRaw, dateRaw string) (costing.RunRequest, error) {
	var req costing.RunRequest
	if cutoffRaw != "" {
		cutoff, err := entity.ParseDate(cutoffRaw)
		if err != nil {
			return req, err
		}
		req.Cutoff = cutoff
	}
	if dateRaw != "" {
		date, err := entity.ParseDate(dateRaw)
		if err != nil {
			return req, err
		}
		req.Date = &date
	}
	return req, nil
}

func export(ctx context.Context, svc *costing.Service, tenantName string, asOf time.Time, path string) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := svc.Export(ctx, tenantName, asOf, format, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

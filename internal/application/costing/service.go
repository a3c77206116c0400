package costing

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/costos-bi/internal/domain"
	"github.com/jhoicas/costos-bi/internal/domain/entity"
	"github.com/jhoicas/costos-bi/internal/domain/repository"
	"github.com/jhoicas/costos-bi/internal/domain/tenant"
	"github.com/jhoicas/costos-bi/pkg/logger"
)

// Stores adaptadores abiertos sobre la base BI de una empresa. Close libera las conexiones.
type Stores struct {
	Ledger    repository.LedgerRepository
	Snapshots repository.SnapshotRepository
	Close     func()
}

// StoreOpener abre ledger e histórico a partir de la configuración de la empresa.
type StoreOpener interface {
	Open(ctx context.Context, cfg tenant.Config) (*Stores, error)
}

// ServiceConfig parámetros comunes a todas las corridas.
type ServiceConfig struct {
	Workers  int
	Observer Observer
	Writers  []ReportWriter
}

// RunRequest corrida completa hasta Cutoff; con Date se recalcula desde esa fecha hasta Cutoff.
type RunRequest struct {
	Cutoff time.Time
	Date   *time.Time
}

// Service punto de entrada de CLI y HTTP: resuelve la empresa, abre sus bases y ejecuta.
// No permite dos corridas simultáneas de la misma empresa.
type Service struct {
	tenants tenant.Resolver
	opener  StoreOpener
	log     *logger.Logger
	cfg     ServiceConfig

	mu      sync.Mutex
	running map[string]struct{}
}

// NewService construye el servicio.
func NewService(tenants tenant.Resolver, opener StoreOpener, log *logger.Logger, cfg ServiceConfig) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{tenants: tenants, opener: opener, log: log, cfg: cfg, running: make(map[string]struct{})}
}

// open resuelve la configuración (error de configuración = abortar) y abre las bases.
func (s *Service) open(ctx context.Context, name string) (tenant.Config, *Stores, error) {
	cfg, err := s.tenants.Resolve(ctx, name)
	if err != nil {
		return tenant.Config{}, nil, err
	}
	stores, err := s.opener.Open(ctx, cfg)
	if err != nil {
		return tenant.Config{}, nil, fmt.Errorf("%w: abrir base de %s: %v", domain.ErrConfig, cfg.Name, err)
	}
	return cfg, stores, nil
}

func (s *Service) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.running[key]; busy {
		return false
	}
	s.running[key] = struct{}{}
	return true
}

func (s *Service) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, key)
}

// Run ejecuta una corrida para la empresa. Solo los errores de configuración o de enumeración
// del ledger se devuelven; los fallos por entidad van en el reporte.
func (s *Service) Run(ctx context.Context, name string, req RunRequest) (*RunReport, error) {
	key := tenant.NormalizeName(name)
	if !s.acquire(key) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunInProgress, name)
	}
	defer s.release(key)

	cfg, stores, err := s.open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer stores.Close()

	log := s.log.With(func(c zerolog.Context) zerolog.Context { return c.Strs("procedimientos", cfg.Procedures) })
	driver := NewBatchDriver(stores.Ledger, stores.Snapshots, log, DriverConfig{
		Tenant:   cfg.Name,
		Workers:  s.cfg.Workers,
		Observer: s.cfg.Observer,
	})
	cutoff := req.Cutoff
	if cutoff.IsZero() {
		cutoff = time.Now()
	}
	if req.Date != nil {
		return driver.ProcessDate(ctx, *req.Date, cutoff)
	}
	return driver.ProcessAllDates(ctx, cutoff)
}

// Valuation último cierre de cada entidad al asOf.
func (s *Service) Valuation(ctx context.Context, name string, asOf time.Time) (ValuationReport, error) {
	cfg, stores, err := s.open(ctx, name)
	if err != nil {
		return ValuationReport{}, err
	}
	defer stores.Close()
	return NewExportUseCase(cfg.Name, stores.Snapshots, s.cfg.Writers...).Valuation(ctx, asOf)
}

// Export serializa la valorización en el formato pedido.
func (s *Service) Export(ctx context.Context, name string, asOf time.Time, format string, w io.Writer) error {
	cfg, stores, err := s.open(ctx, name)
	if err != nil {
		return err
	}
	defer stores.Close()
	s.log.Info().Str("tenant", cfg.Name).Str("formato", format).
		Str("corte", entity.TruncateDay(asOf).Format(entity.DateLayout)).Msg("exportando valorización")
	return NewExportUseCase(cfg.Name, stores.Snapshots, s.cfg.Writers...).Export(ctx, asOf, format, w)
}

// Formats formatos de exportación disponibles.
func (s *Service) Formats() []string {
	out := make([]string, 0, len(s.cfg.Writers))
	for _, w := range s.cfg.Writers {
		out = append(out, w.Format())
	}
	return out
}

package costing_test

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/costos-bi/internal/application/costing"
	"github.com/jhoicas/costos-bi/internal/domain"
	"github.com/jhoicas/costos-bi/internal/domain/tenant"
)

type mapResolver map[string]tenant.Config

func (r mapResolver) Resolve(_ context.Context, name string) (tenant.Config, error) {
	cfg, ok := r[tenant.NormalizeName(name)]
	if !ok {
		return tenant.Config{}, fmt.Errorf("%w: %s", domain.ErrTenantNotFound, name)
	}
	return cfg, nil
}

type fakeOpener struct {
	ledger *memLedger
	snaps  *memSnapshots
	err    error
	// block detiene Open hasta que se cierre (pruebas de concurrencia).
	block   chan struct{}
	entered chan struct{}

	mu     sync.Mutex
	closed int
}

func (o *fakeOpener) Open(context.Context, tenant.Config) (*costing.Stores, error) {
	if o.entered != nil {
		o.entered <- struct{}{}
	}
	if o.block != nil {
		<-o.block
	}
	if o.err != nil {
		return nil, o.err
	}
	return &costing.Stores{
		Ledger:    o.ledger,
		Snapshots: o.snaps,
		Close: func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			o.closed++
		},
	}, nil
}

func newService(opener *fakeOpener) *costing.Service {
	tenants := mapResolver{"acme": {Name: "Acme", Database: tenant.Database{DatabaseURL: "postgres://x"}}}
	return costing.NewService(tenants, opener, nil, costing.ServiceConfig{
		Workers: 2,
		Writers: []costing.ReportWriter{stubWriter{format: "txt"}},
	})
}

func TestService_RunYExport(t *testing.T) {
	opener := &fakeOpener{ledger: ledgerEscenarios(), snaps: newMemSnapshots()}
	svc := newService(opener)
	ctx := context.Background()

	report, err := svc.Run(ctx, " ACME ", costing.RunRequest{Cutoff: day(3)})
	require.NoError(t, err)
	assert.Equal(t, "Acme", report.Tenant)
	assert.Equal(t, 3, report.Inserted)

	date := day(2)
	single, err := svc.Run(ctx, "acme", costing.RunRequest{Date: &date, Cutoff: day(3)})
	require.NoError(t, err)
	assert.Equal(t, 2, single.Updated)

	val, err := svc.Valuation(ctx, "acme", day(3))
	require.NoError(t, err)
	require.Len(t, val.Rows, 1)
	assert.True(t, val.TotalValue.IsZero(), "día 3 termina sin unidades")

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, "acme", day(2), "TXT", &buf))
	assert.Equal(t, "B1/P1\n", buf.String())
	assert.ErrorIs(t, svc.Export(ctx, "acme", day(2), "xlsx", &buf), domain.ErrInvalidInput)

	assert.Equal(t, []string{"txt"}, svc.Formats())
	assert.Equal(t, 5, opener.closed)
}

func TestService_ErroresDeConfiguracion(t *testing.T) {
	ctx := context.Background()

	_, err := newService(&fakeOpener{}).Run(ctx, "desconocida", costing.RunRequest{})
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)

	_, err = newService(&fakeOpener{err: errBoom}).Run(ctx, "acme", costing.RunRequest{})
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestService_UnaCorridaPorEmpresa(t *testing.T) {
	opener := &fakeOpener{
		ledger:  ledgerEscenarios(),
		snaps:   newMemSnapshots(),
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	svc := newService(opener)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(ctx, "acme", costing.RunRequest{Cutoff: day(3)})
		done <- err
	}()
	<-opener.entered

	_, err := svc.Run(ctx, "Acme", costing.RunRequest{Cutoff: day(3)})
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	close(opener.block)
	require.NoError(t, <-done)

	opener.entered = nil
	_, err = svc.Run(ctx, "acme", costing.RunRequest{Cutoff: day(3)})
	assert.NoError(t, err)
}

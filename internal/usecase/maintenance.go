package usecase

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"TenderScanner/internal/metrics"
	"TenderScanner/internal/ports"
)

// DefaultRetention is how long closed tenders are kept after deactivation.
const DefaultRetention = 180 * 24 * time.Hour

// MaintenanceResult reports one maintenance pass.
type MaintenanceResult struct {
	Deactivated int64 `json:"deactivated"`
	Deleted     int64 `json:"deleted"`
}

// Maintenance sweeps expired tenders and purges old inactive ones.
type Maintenance struct {
	store     ports.TenderStore
	retention time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// NewMaintenance builds the maintenance job. A non-positive retention uses
// DefaultRetention.
func NewMaintenance(store ports.TenderStore, retention time.Duration, now func() time.Time, logger *zap.Logger) *Maintenance {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Maintenance{store: store, retention: retention, now: now, log: logger.With(zap.String("component", "maintenance"))}
}

// Run sweeps first so that freshly expired rows age from their closing date.
func (m *Maintenance) Run(ctx context.Context) (MaintenanceResult, error) {
	var res MaintenanceResult
	now := m.now()

	n, err := m.store.SweepExpired(ctx, now)
	if err != nil {
		return res, eris.Wrap(err, "maintenance: sweep")
	}
	res.Deactivated = n
	metrics.ExpiredTotal.Add(float64(n))

	n, err = m.store.PurgeOld(ctx, now, m.retention)
	if err != nil {
		return res, eris.Wrap(err, "maintenance: purge")
	}
	res.Deleted = n
	metrics.PurgedTotal.Add(float64(n))

	m.log.Info("maintenance complete",
		zap.Int64("deactivated", res.Deactivated),
		zap.Int64("deleted", res.Deleted),
		zap.Duration("retention", m.retention),
	)
	return res, nil
}

package usecase

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/portal"
	"TenderScanner/internal/ports"
	"TenderScanner/internal/resilience"
)

// ScheduleTable holds the cron spec of each recurring job. An empty spec
// disables its job.
type ScheduleTable struct {
	All          string `mapstructure:"all"`
	HighPriority string `mapstructure:"high_priority"`
	Municipal    string `mapstructure:"municipal"`
	Provincial   string `mapstructure:"provincial"`
	Maintenance  string `mapstructure:"maintenance"`
}

// DefaultSchedule is the production cadence.
func DefaultSchedule() ScheduleTable {
	return ScheduleTable{
		All:          "0 * * * *",
		HighPriority: "*/15 * * * *",
		Municipal:    "30 7 * * *",
		Provincial:   "30 13 * * *",
		Maintenance:  "0 2 * * *",
	}
}

// Scheduler wires the cron-like driver with the orchestrator and the
// maintenance job.
type Scheduler struct {
	driver      ports.Scheduler
	runner      BatchRunner
	maintenance *Maintenance
	portals     *portal.Registry
	table       ScheduleTable
	retry       resilience.Policy
	log         *zap.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, runner BatchRunner, maintenance *Maintenance, portals *portal.Registry, table ScheduleTable, retry resilience.Policy, logger *zap.Logger) *Scheduler {
	if portals == nil {
		portals = portal.Default()
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Scheduler{
		driver:      driver,
		runner:      runner,
		maintenance: maintenance,
		portals:     portals,
		table:       table,
		retry:       retry,
		log:         logger.With(zap.String("component", "scheduler")),
	}
}

// Start registers every enabled job with the driver and starts it.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	jobs := []struct {
		spec string
		set  portal.Set
	}{
		{s.table.All, portal.SetAll},
		{s.table.HighPriority, portal.SetHighPriority},
		{s.table.Municipal, portal.SetMunicipal},
		{s.table.Provincial, portal.SetProvincial},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		set := j.set
		err := s.driver.Schedule("scan_"+string(set), j.spec, func(ctx context.Context) {
			if _, err := s.RunSet(ctx, set); err != nil {
				s.log.Error("scheduled scan failed", zap.String("set", string(set)), zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
	}

	if s.maintenance != nil && s.table.Maintenance != "" {
		err := s.driver.Schedule("maintenance", s.table.Maintenance, func(ctx context.Context) {
			if _, err := s.maintenance.Run(ctx); err != nil {
				s.log.Error("maintenance failed", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
	}

	return s.driver.Start(ctx)
}

// RunSet runs one batch over a named portal set, retrying only fatal
// batch failures with bounded backoff.
func (s *Scheduler) RunSet(ctx context.Context, set portal.Set) (*domain.RunReport, error) {
	ids, err := s.portals.Select(set)
	if err != nil {
		return nil, err
	}

	policy := s.retry
	policy.Retryable = IsRetryable
	policy.OnRetry = resilience.LogRetries(s.log, "scan_"+string(set))

	var report *domain.RunReport
	err = resilience.Do(ctx, policy, func(ctx context.Context) error {
		var runErr error
		report, runErr = s.runner.RunBatch(ctx, ids)
		return runErr
	})
	if err != nil {
		return report, eris.Wrapf(err, "scan set %s", set)
	}
	return report, nil
}

// IsRetryable reports whether a batch error warrants another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrFatalBatch)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

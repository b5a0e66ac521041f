package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"TenderScanner/internal/ports"
)

// DefaultTimezone is where the schedule table's wall-clock times live.
const DefaultTimezone = "America/Toronto"

// CronScheduler drives jobs from standard five-field cron specs.
type CronScheduler struct {
	cron   *cron.Cron
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler evaluating specs in the named zone.
func NewCronScheduler(timezone string, logger *zap.Logger) (*CronScheduler, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "scheduler: load timezone %s", timezone)
	}
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.With(zap.String("component", "scheduler"))
	cl := cronLogger{logger.Sugar()}

	ctx, cancel := context.WithCancel(context.Background())
	return &CronScheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:    logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Schedule registers job under spec.
func (c *CronScheduler) Schedule(name, spec string, job func(ctx context.Context)) error {
	if job == nil {
		return eris.Errorf("scheduler: job %s is nil", name)
	}
	_, err := c.cron.AddFunc(spec, func() {
		c.log.Info("job fired", zap.String("job", name))
		job(c.ctx)
	})
	if err != nil {
		return eris.Wrapf(err, "scheduler: add %s (%s)", name, spec)
	}
	c.log.Debug("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Start begins firing jobs. Calling it twice is a no-op.
func (c *CronScheduler) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true
	c.cron.Start()
	return nil
}

// Stop cancels running jobs and waits for them until ctx is done. A stopped
// scheduler is not restarted.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()

	c.cancel()
	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "scheduler: stop")
	}
}

// Entries reports how many jobs are registered.
func (c *CronScheduler) Entries() int {
	return len(c.cron.Entries())
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

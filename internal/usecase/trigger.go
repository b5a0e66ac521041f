package usecase

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ack is returned to a manual scan request before the batch runs.
type Ack struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	RunID   string `json:"run_id"`
}

// Trigger starts batches on demand without waiting for them.
type Trigger struct {
	base   context.Context
	runner BatchRunner
	log    *zap.Logger
	wg     sync.WaitGroup
}

// NewTrigger binds spawned batches to base, so they outlive the request
// that started them but stop with the process.
func NewTrigger(base context.Context, runner BatchRunner, logger *zap.Logger) *Trigger {
	if logger == nil {
		logger = zap.L()
	}
	return &Trigger{base: base, runner: runner, log: logger.With(zap.String("component", "trigger"))}
}

// Submit schedules a batch over ids and returns at once.
func (t *Trigger) Submit(ids []string) Ack {
	id := uuid.NewString()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		report, err := t.runner.RunBatch(WithRunID(t.base, id), ids)
		if err != nil {
			t.log.Error("manual scan failed", zap.String("run_id", id), zap.Error(err))
			return
		}
		t.log.Info("manual scan finished",
			zap.String("run_id", id),
			zap.Int("new", report.NewCount),
			zap.Int("errors", len(report.Errors)),
		)
	}()
	return Ack{Message: "Scan initiated", Status: "processing", RunID: id}
}

// Wait blocks until every submitted batch has returned.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

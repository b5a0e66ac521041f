package workflow

import (
	"context"
	"errors"
	"strings"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/portal"
	"TenderScanner/internal/usecase"
)

// Activities binds the use cases to Temporal activities.
type Activities struct {
	Runner      usecase.BatchRunner
	Maintenance *usecase.Maintenance
	Portals     *portal.Registry
	Log         *zap.Logger
}

// RunBatch resolves the requested portals and runs one batch. The workflow
// id doubles as the batch run id.
func (a *Activities) RunBatch(ctx context.Context, in IngestInput) (*domain.RunReport, error) {
	if a == nil || a.Runner == nil {
		return nil, temporal.NewNonRetryableApplicationError("batch activity not configured", ErrTypeInvalidInput, nil)
	}

	ids, err := a.resolve(in)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidInput, err)
	}

	info := activity.GetInfo(ctx)
	ctx = usecase.WithRunID(ctx, info.WorkflowExecution.ID)
	a.logger().Info("batch activity started",
		zap.String("workflow_id", info.WorkflowExecution.ID),
		zap.Int32("attempt", info.Attempt),
		zap.Int("sources", len(ids)),
	)

	report, err := a.Runner.RunBatch(ctx, ids)
	if err != nil {
		if errors.Is(err, usecase.ErrFatalBatch) {
			return nil, err
		}
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidInput, err)
	}
	return report, nil
}

// Maintain runs one maintenance pass.
func (a *Activities) Maintain(ctx context.Context) (usecase.MaintenanceResult, error) {
	if a == nil || a.Maintenance == nil {
		return usecase.MaintenanceResult{}, temporal.NewNonRetryableApplicationError("maintenance activity not configured", ErrTypeInvalidInput, nil)
	}
	return a.Maintenance.Run(ctx)
}

func (a *Activities) resolve(in IngestInput) ([]string, error) {
	portals := a.Portals
	if portals == nil {
		portals = portal.Default()
	}
	if len(in.Portals) > 0 {
		return in.Portals, nil
	}
	set := portal.SetAll
	if name := strings.TrimSpace(in.Set); name != "" {
		parsed, err := portal.ParseSet(name)
		if err != nil {
			return nil, err
		}
		set = parsed
	}
	return portals.Select(set)
}

func (a *Activities) logger() *zap.Logger {
	if a.Log == nil {
		return zap.L()
	}
	return a.Log
}

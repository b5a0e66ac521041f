// Package workflow exposes the batch and maintenance jobs as Temporal
// workflows so an external scheduler can drive ingestion with durable
// retries.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/usecase"
)

const (
	IngestWorkflowName      = "tenderscanner.ingest"
	MaintenanceWorkflowName = "tenderscanner.maintenance"

	ActivityRunBatch    = "tenderscanner.run_batch"
	ActivityMaintenance = "tenderscanner.maintenance"

	// ErrTypeInvalidInput marks activity failures that are never retried.
	ErrTypeInvalidInput = "InvalidInput"
)

const (
	batchTimeout       = 2 * time.Hour
	maintenanceTimeout = 15 * time.Minute
	maxAttempts        = 3
)

// IngestInput selects the portals of one batch. Portals wins over Set;
// with neither the full registry is scanned.
type IngestInput struct {
	Portals []string `json:"portals,omitempty"`
	Set     string   `json:"set,omitempty"`
}

func retryPolicy() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:        5 * time.Minute,
		BackoffCoefficient:     2,
		MaximumInterval:        30 * time.Minute,
		MaximumAttempts:        maxAttempts,
		NonRetryableErrorTypes: []string{ErrTypeInvalidInput},
	}
}

// IngestBatchWorkflow runs one batch as a single activity. Only fatal batch
// failures surface as activity errors, so those are what the retry policy
// repeats.
func IngestBatchWorkflow(ctx workflow.Context, in IngestInput) (*domain.RunReport, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: batchTimeout,
		RetryPolicy:         retryPolicy(),
	})

	var report domain.RunReport
	if err := workflow.ExecuteActivity(ctx, ActivityRunBatch, in).Get(ctx, &report); err != nil {
		return nil, err
	}
	workflow.GetLogger(ctx).Info("batch workflow finished",
		"run_id", report.RunID,
		"new", report.NewCount,
		"updated", report.UpdatedCount,
		"errors", len(report.Errors),
	)
	return &report, nil
}

// MaintenanceWorkflow sweeps expired tenders and purges old inactive ones.
func MaintenanceWorkflow(ctx workflow.Context) (usecase.MaintenanceResult, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: maintenanceTimeout,
		RetryPolicy:         retryPolicy(),
	})

	var res usecase.MaintenanceResult
	err := workflow.ExecuteActivity(ctx, ActivityMaintenance).Get(ctx, &res)
	return res, err
}

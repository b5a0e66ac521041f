package workflow

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

const (
	DefaultNamespace = "default"
	DefaultTaskQueue = "tenderscanner"
)

// Config locates the Temporal frontend. An empty Address disables Temporal.
type Config struct {
	Address   string `mapstructure:"address"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Enabled reports whether a frontend address is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Address) != ""
}

func (c Config) queue() string {
	if q := strings.TrimSpace(c.TaskQueue); q != "" {
		return q
	}
	return DefaultTaskQueue
}

// Dial connects to the configured Temporal frontend.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (client.Client, error) {
	if !cfg.Enabled() {
		return nil, eris.New("temporal address is not configured")
	}
	if logger == nil {
		logger = zap.L()
	}
	namespace := strings.TrimSpace(cfg.Namespace)
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c, err := client.DialContext(ctx, client.Options{
		HostPort:  cfg.Address,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "temporal dial %s (namespace=%s)", cfg.Address, namespace)
	}
	return c, nil
}

// Registry is the registration subset shared by workers and test
// environments.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register adds the workflows and activities to r.
func Register(r Registry, acts *Activities) {
	r.RegisterWorkflowWithOptions(IngestBatchWorkflow, workflow.RegisterOptions{Name: IngestWorkflowName})
	r.RegisterWorkflowWithOptions(MaintenanceWorkflow, workflow.RegisterOptions{Name: MaintenanceWorkflowName})
	r.RegisterActivityWithOptions(acts.RunBatch, activity.RegisterOptions{Name: ActivityRunBatch})
	r.RegisterActivityWithOptions(acts.Maintain, activity.RegisterOptions{Name: ActivityMaintenance})
}

// Serve polls the task queue until ctx is cancelled.
func Serve(ctx context.Context, c client.Client, cfg Config, acts *Activities, logger *zap.Logger) error {
	if c == nil {
		return eris.New("temporal client is not configured")
	}
	if logger == nil {
		logger = zap.L()
	}

	w := worker.New(c, cfg.queue(), worker.Options{
		MaxConcurrentActivityExecutionSize: 1,
	})
	Register(w, acts)

	if err := w.Start(); err != nil {
		return eris.Wrap(err, "temporal worker start")
	}
	logger.Info("temporal worker started", zap.String("task_queue", cfg.queue()))

	<-ctx.Done()
	w.Stop()
	logger.Info("temporal worker stopped")
	return nil
}

// StartIngest schedules one batch workflow and returns its run handle.
func StartIngest(ctx context.Context, c client.Client, cfg Config, in IngestInput) (client.WorkflowRun, error) {
	if c == nil {
		return nil, eris.New("temporal client is not configured")
	}
	opts := client.StartWorkflowOptions{
		ID:        "ingest-" + uuid.NewString(),
		TaskQueue: cfg.queue(),
	}
	run, err := c.ExecuteWorkflow(ctx, opts, IngestWorkflowName, in)
	if err != nil {
		return nil, eris.Wrap(err, "start ingest workflow")
	}
	return run, nil
}

// temporalLogger adapts zap to the key/value logger the SDK expects.
type temporalLogger struct {
	s *zap.SugaredLogger
}

func newTemporalLogger(logger *zap.Logger) *temporalLogger {
	return &temporalLogger{s: logger.With(zap.String("component", "temporal")).Sugar()}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) { l.s.Debugw(msg, keyvals...) }
func (l *temporalLogger) Info(msg string, keyvals ...interface{})  { l.s.Infow(msg, keyvals...) }
func (l *temporalLogger) Warn(msg string, keyvals ...interface{})  { l.s.Warnw(msg, keyvals...) }
func (l *temporalLogger) Error(msg string, keyvals ...interface{}) { l.s.Errorw(msg, keyvals...) }

package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"TenderScanner/internal/app"
	"TenderScanner/internal/workflow"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run batches and maintenance as a Temporal worker",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !cfg.Temporal.Enabled() {
			return eris.New("temporal.address is not configured")
		}

		a, err := app.New(ctx, cfg, zap.L())
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		c, err := workflow.Dial(ctx, cfg.Temporal, zap.L())
		if err != nil {
			return err
		}
		defer c.Close()

		return workflow.Serve(ctx, c, cfg.Temporal, a.Activities(), zap.L())
	},
}

var (
	triggerSet     string
	triggerPortals []string
	triggerWait    bool
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Start an ingest workflow on Temporal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		c, err := workflow.Dial(ctx, cfg.Temporal, zap.L())
		if err != nil {
			return err
		}
		defer c.Close()

		run, err := workflow.StartIngest(ctx, c, cfg.Temporal, workflow.IngestInput{
			Portals: triggerPortals,
			Set:     triggerSet,
		})
		if err != nil {
			return err
		}
		zap.L().Info("ingest workflow started",
			zap.String("workflow_id", run.GetID()),
			zap.String("run_id", run.GetRunID()),
		)
		if !triggerWait {
			return nil
		}

		if err := run.Get(ctx, nil); err != nil {
			return eris.Wrap(err, "ingest workflow")
		}
		zap.L().Info("ingest workflow finished", zap.String("workflow_id", run.GetID()))
		return nil
	},
}

func init() {
	triggerCmd.Flags().StringVar(&triggerSet, "set", "", "portal set (default all)")
	triggerCmd.Flags().StringSliceVar(&triggerPortals, "portals", nil, "explicit portal ids (overrides --set)")
	triggerCmd.Flags().BoolVar(&triggerWait, "wait", false, "block until the workflow completes")
	rootCmd.AddCommand(workerCmd, triggerCmd)
}

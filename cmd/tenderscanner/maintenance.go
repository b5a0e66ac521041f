package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"TenderScanner/internal/app"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Deactivate tenders whose closing date has passed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := app.OpenStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.SweepExpired(ctx, time.Now().UTC())
		if err != nil {
			return eris.Wrap(err, "sweep")
		}
		fmt.Fprintf(os.Stdout, "deactivated %d tenders\n", n)
		return nil
	},
}

var purgeRetention time.Duration

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete inactive tenders closed longer ago than the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := app.OpenStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		retention := purgeRetention
		if retention <= 0 {
			retention = cfg.Retention.PurgeAfter
		}
		n, err := st.PurgeOld(ctx, time.Now().UTC(), retention)
		if err != nil {
			return eris.Wrap(err, "purge")
		}
		fmt.Fprintf(os.Stdout, "deleted %d tenders\n", n)
		return nil
	},
}

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run sweep and purge as one maintenance pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := app.New(ctx, cfg, zap.L())
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		res, err := a.Maintenance().Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "deactivated %d, deleted %d tenders\n", res.Deactivated, res.Deleted)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the tenders schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := app.OpenStore(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("schema up to date", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	purgeCmd.Flags().DurationVar(&purgeRetention, "retention", 0, "retention window (default from config)")
	rootCmd.AddCommand(sweepCmd, purgeCmd, maintainCmd, migrateCmd)
}

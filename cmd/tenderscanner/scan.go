package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"TenderScanner/internal/app"
	"TenderScanner/internal/portal"
)

var (
	scanSet     string
	scanPortals []string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one batch and print its report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, zap.L())
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		ids := scanPortals
		if len(ids) == 0 {
			set, err := portal.ParseSet(scanSet)
			if err != nil {
				return err
			}
			if ids, err = a.Portals().Select(set); err != nil {
				return err
			}
		}

		report, runErr := a.Scan(ctx, ids)
		if report != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return eris.Wrap(err, "write report")
			}
		}
		return runErr
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanSet, "set", string(portal.SetAll), "portal set: all, high_priority, municipal, provincial")
	scanCmd.Flags().StringSliceVar(&scanPortals, "portals", nil, "explicit portal ids (overrides --set)")
	rootCmd.AddCommand(scanCmd)
}

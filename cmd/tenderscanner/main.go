package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"TenderScanner/internal/config"
	"TenderScanner/internal/logging"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tenderscanner",
	Short: "Canadian procurement tender scanner",
	Long:  "Scans federal, provincial and municipal procurement portals, classifies training-related tenders and serves them over a query API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if _, err := logging.New(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

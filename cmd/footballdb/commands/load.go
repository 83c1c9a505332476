package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fortuna/footballdb/internal/loader"
)

func init() {
	rootCmd.AddCommand(loadCmd)
}

var loadCmd = &cobra.Command{
	Use:   "load [--raw-dir <dir>] [--store <path>]",
	Short: "Rebuilds the store from the league CSVs and the xG file in the raw data directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ld := newLoader(cfg)
		report, err := ld.Run(cmd.Context(), loader.NewLogReporter(nil))
		if report != nil {
			loader.WriteSummary(os.Stdout, report)
		}
		return err
	},
}

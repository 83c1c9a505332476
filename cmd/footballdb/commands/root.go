package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fortuna/footballdb/internal/config"
	"github.com/fortuna/footballdb/internal/loader"
)

const appVersion = "1.0.0"

var (
	configPath string
	rawDir     string
	storeDSN   string
)

var rootCmd = &cobra.Command{
	Use:          "footballdb",
	Short:        "footballdb scrapes league results and understat xG and loads them into a queryable store.",
	Version:      appVersion,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config overlaid on the built-in defaults (default $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&rawDir, "raw-dir", "", "Raw data directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&storeDSN, "store", "", "Store path or DSN (overrides config)")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the layered config and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if rawDir != "" {
		cfg.Paths.RawDir = rawDir
	}
	if storeDSN != "" {
		cfg.Store.DSN = storeDSN
	}
	return cfg, nil
}

func newLoader(cfg *config.Config) *loader.Loader {
	return loader.New(loader.Config{
		RawDir:     cfg.Paths.RawDir,
		XGFileName: cfg.Paths.XGFile,
		Driver:     cfg.Store.Driver,
		DSN:        cfg.Store.DSN,
	}, log.New(log.Writer(), "[loader] ", log.LstdFlags))
}

func xgPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.RawDir, cfg.Paths.XGFile)
}

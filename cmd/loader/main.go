package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fortuna/footballdb/internal/config"
	"github.com/fortuna/footballdb/internal/loader"
)

const (
	appName    = "footballdb-loader"
	appVersion = "1.0.0"
)

func main() {
	log.Printf("=== %s v%s ===", appName, appVersion)

	var (
		configPath = flag.String("config", os.Getenv(config.EnvConfigPath), "YAML config overlaid on the built-in defaults")
		rawDir     = flag.String("raw-dir", "", "Directory holding the league CSVs and the xG file")
		xgFile     = flag.String("xg-file", "", "xG file name inside the raw directory")
		driver     = flag.String("driver", "", "Store driver (sqlite or postgres)")
		dsn        = flag.String("store", "", "Store path or DSN")
		quiet      = flag.Bool("quiet", false, "Skip the summary table")
	)

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	overlay(&cfg.Paths.RawDir, *rawDir)
	overlay(&cfg.Paths.XGFile, *xgFile)
	overlay(&cfg.Store.Driver, *driver)
	overlay(&cfg.Store.DSN, *dsn)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ld := loader.New(loader.Config{
		RawDir:     cfg.Paths.RawDir,
		XGFileName: cfg.Paths.XGFile,
		Driver:     cfg.Store.Driver,
		DSN:        cfg.Store.DSN,
	}, nil)

	report, err := ld.Run(ctx, loader.NewLogReporter(nil))
	if report != nil && !*quiet {
		loader.WriteSummary(os.Stdout, report)
	}
	if err != nil {
		stop()
		log.Fatalf("load failed: %v", err)
	}
	if len(report.Failures) > 0 {
		log.Printf("⚠️  %d of %d league files failed", len(report.Failures), len(report.Failures)+len(report.Tables))
	}
}

func overlay(dst *string, flagValue string) {
	if flagValue != "" {
		*dst = flagValue
	}
}

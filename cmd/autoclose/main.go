// Command autoclose runs a single auto-close sweep and exits. It is meant for
// cron-style scheduling when the server's periodic worker is disabled.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/travel-desk/internal/config"
	"github.com/garyjia/travel-desk/internal/container"
	"github.com/garyjia/travel-desk/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file (empty to use env only)")
	asOf := flag.String("as-of", "", "treat this date (YYYY-MM-DD) as today")
	timeout := flag.Duration("timeout", 5*time.Minute, "sweep timeout")
	flag.Parse()

	now := time.Now()
	if *asOf != "" {
		d, err := time.ParseInLocation("2006-01-02", *asOf, time.Local)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -as-of date: %v\n", err)
			os.Exit(2)
		}
		now = d
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "travel-desk-autoclose",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx, false); err != nil {
		logger.Error("Failed to start container", zap.Error(err))
		_ = c.Close()
		os.Exit(1)
	}

	result, sweepErr := c.Services().AutoClose.Sweep(ctx, now)

	// Close drains the status-change notifications the sweep published
	if err := c.Close(); err != nil {
		logger.Error("Container shutdown reported errors", zap.Error(err))
	}

	if sweepErr != nil {
		logger.Error("Auto-close sweep failed", zap.Error(sweepErr))
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	if result.Failed > 0 {
		os.Exit(1)
	}
}

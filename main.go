package main

import (
	"context"
	"fmt"
	"os"

	"github.com/athena-web3/dashboard-core/internal/app"
	"github.com/athena-web3/dashboard-core/internal/config"
	"github.com/athena-web3/dashboard-core/internal/logging"
	"github.com/athena-web3/dashboard-core/pkg/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info(version.GetBanner())

	dashboard, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Errorw("startup failed", "error", err)
		os.Exit(1)
	}
	if err := dashboard.Run(); err != nil {
		log.Errorw("dashboard exited", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/upstreamhub/csv2spotify/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadEnvFile(".env"); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	runner := NewRunner(RunnerOpts{Logger: logger, Lookup: os.LookupEnv})
	app := runner.App()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.Run(ctx, os.Args)
	stop()

	if err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mlaa/commons-sync/internal/setup"
	"github.com/mlaa/commons-sync/internal/worker/roster"
	"github.com/urfave/cli/v3"
)

// WorkerLogDir specifies where worker log files are stored.
const WorkerLogDir = "logs/worker_logs"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "worker",
		Usage: "Start the commons-sync worker",
		Commands: []*cli.Command{
			{
				Name:  "roster",
				Usage: "Start the roster sweep worker",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return runRosterWorker(ctx)
				},
			},
			{
				Name:  "sweep",
				Usage: "Run a single roster sweep and exit",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return runSingleSweep(ctx)
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

func runRosterWorker(ctx context.Context) error {
	app, err := setup.InitializeApp(ctx, WorkerLogDir)
	if err != nil {
		return err
	}
	defer app.Cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	newWorker(app).Start(ctx)

	return nil
}

func runSingleSweep(ctx context.Context) error {
	app, err := setup.InitializeApp(ctx, WorkerLogDir)
	if err != nil {
		return err
	}
	defer app.Cleanup()

	newWorker(app).Sweep(ctx)

	return nil
}

func newWorker(app *setup.App) *roster.Worker {
	return roster.New(
		app.DB.Model().Cursor(),
		app.Orchestrator,
		roster.Options{
			UpdateInterval: time.Duration(app.Config.Sync.UpdateInterval) * time.Second,
			SweepInterval:  time.Duration(app.Config.Sync.SweepInterval) * time.Second,
			Concurrency:    app.Config.Sync.Concurrency,
			BatchSize:      app.Config.Sync.BatchSize,
		},
		app.Logger,
	)
}

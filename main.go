package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/scones-unlimited/image-workflows/runner"
	"github.com/scones-unlimited/image-workflows/runner/lambdarunner"
	"github.com/scones-unlimited/image-workflows/runner/localrunner"
	"github.com/scones-unlimited/image-workflows/runner/managerrunner"
	"github.com/scones-unlimited/image-workflows/runner/workerrunner"
	"github.com/scones-unlimited/image-workflows/runner/workflowrunner"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner.Banner()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan

		log.Println("Received signal, shutting down...")

		cancel()
	}()

	cfg := runner.ParseConfig()

	runnerInstance, err := runnerFactory(cfg)
	if err != nil {
		cancel()
		os.Stderr.WriteString(err.Error() + "\n")

		runner.Telemetry().Close()

		os.Exit(1)
	}

	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		if err := runnerInstance.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := egroup.Wait(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		_ = runnerInstance.Close(ctx)
		runner.Telemetry().Close()
		os.Exit(1)
	}

	_ = runnerInstance.Close(ctx)
	runner.Telemetry().Close()

	os.Exit(0)
}

func runnerFactory(cfg *runner.Config) (runner.Runner, error) {
	switch cfg.RunMode {
	case runner.RunModeLambda:
		return lambdarunner.New(cfg)
	case runner.RunModeWorkflow:
		return workflowrunner.New(cfg)
	case runner.RunModeLocal:
		return localrunner.New(cfg)
	case runner.RunModeManager:
		return managerrunner.New(&managerrunner.Config{
			DatabaseURL:  cfg.Dsn,
			Address:      cfg.Addr,
			DataFolder:   cfg.DataFolder,
			StaticFolder: cfg.StaticFolder,
			RedisURL:     cfg.RedisURL,
			RedisAddr:    cfg.RedisAddr,
			RedisPass:    cfg.RedisPass,
			RedisDB:      cfg.RedisDB,
			RabbitMQURL:  cfg.RabbitMQURL,
			// Spawner configuration
			SpawnerType:             cfg.SpawnerType,
			SpawnerImage:            cfg.SpawnerImage,
			SpawnerNetwork:          cfg.SpawnerNetwork,
			SpawnerMaxWorkers:       cfg.SpawnerMaxWorkers,
			SpawnerAutoRemove:       cfg.SpawnerAutoRemove,
			SpawnerManagerURL:       cfg.SpawnerManagerURL,
			SpawnerLambdaFunction:   cfg.SpawnerLambdaFunction,
			SpawnerLambdaRegion:     cfg.SpawnerLambdaRegion,
			SpawnerLambdaInvocation: cfg.SpawnerLambdaInvocation,
			SpawnerLambdaMaxConc:    cfg.SpawnerLambdaMaxConc,
		})
	case runner.RunModeWorker:
		return workerrunner.New(&workerrunner.Config{
			ManagerURL:   cfg.ManagerURL,
			WorkerID:     cfg.WorkerID,
			RunnerConfig: cfg,
		})
	default:
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}
}

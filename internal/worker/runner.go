package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/scones-unlimited/image-workflows/internal/domain"
	"github.com/scones-unlimited/image-workflows/internal/mq"
	"github.com/scones-unlimited/image-workflows/internal/pipeline"
	"github.com/scones-unlimited/image-workflows/internal/predictor"
	"github.com/scones-unlimited/image-workflows/internal/queue"
	"github.com/scones-unlimited/image-workflows/internal/storage"
	"github.com/scones-unlimited/image-workflows/runner"
)

// Runner is a worker that claims and processes executions from the manager
type Runner struct {
	client      *Client
	config      *runner.Config
	store       storage.ObjectStore
	dataFolder  string
	currentExec *domain.Execution
	stopChan    chan struct{}
	workerID    string

	// wake is nudged by queue consumers so a new execution is claimed
	// without waiting for the next poll tick
	wake chan struct{}

	// Predictors are created lazily per endpoint name
	predictors map[string]predictor.Predictor
}

// NewRunner creates a new worker runner
func NewRunner(ctx context.Context, managerURL, workerID string, cfg *runner.Config) (*Runner, error) {
	if cfg.DataFolder == "" {
		cfg.DataFolder = "."
	}

	if err := os.MkdirAll(cfg.DataFolder, os.ModePerm); err != nil {
		return nil, err
	}

	var (
		store storage.ObjectStore
		err   error
	)

	if cfg.LocalRoot != "" {
		store = storage.NewFileStore(cfg.LocalRoot)
	} else {
		store, err = storage.NewS3Store(ctx, storage.S3Config{
			Region:    cfg.AwsRegion,
			AccessKey: cfg.AwsAccessKey,
			SecretKey: cfg.AwsSecretKey,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Runner{
		client:     NewClient(managerURL, workerID),
		config:     cfg,
		store:      store,
		dataFolder: cfg.DataFolder,
		workerID:   workerID,
		stopChan:   make(chan struct{}),
		wake:       make(chan struct{}, 1),
		predictors: make(map[string]predictor.Predictor),
	}, nil
}

// Run starts the worker
func (r *Runner) Run(ctx context.Context) error {
	// Register with manager
	worker, err := r.client.Register(ctx)
	if err != nil {
		return err
	}

	log.Printf("worker registered: %s (hostname: %s)", worker.ID, worker.Hostname)

	// Start heartbeat goroutine
	go r.heartbeatLoop(ctx)

	// Queue consumers only hint that work is available. The manager's
	// claim endpoint stays the source of truth, so a lost or duplicate
	// message is harmless.
	r.startQueueListener(ctx)

	// Main work loop
	return r.workLoop(ctx)
}

func (r *Runner) startQueueListener(ctx context.Context) {
	if r.config.RabbitMQURL != "" {
		consumer, err := mq.NewConsumer(mq.ConsumerConfig{
			URL:        r.config.RabbitMQURL,
			ConsumerID: r.workerID,
		})
		if err != nil {
			log.Printf("warning: RabbitMQ unavailable, falling back to polling only: %v", err)
			return
		}

		go func() {
			defer consumer.Close()

			err := consumer.Consume(ctx, func(ctx context.Context, msg *mq.ExecutionMessage) error {
				r.nudge()
				return nil
			})
			if err != nil && ctx.Err() == nil {
				log.Printf("warning: RabbitMQ consumer stopped: %v", err)
			}
		}()

		return
	}

	if r.config.RedisURL != "" || r.config.RedisAddr != "" {
		qw, err := queue.NewWorker(&queue.WorkerConfig{
			RedisURL:    r.config.RedisURL,
			RedisAddr:   r.config.RedisAddr,
			Password:    r.config.RedisPass,
			DB:          r.config.RedisDB,
			Concurrency: 1,
		}, func(ctx context.Context, payload *queue.ExecutionPayload) error {
			r.nudge()
			return nil
		})
		if err != nil {
			log.Printf("warning: Redis queue unavailable, falling back to polling only: %v", err)
			return
		}

		go func() {
			if err := qw.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("warning: Redis queue worker stopped: %v", err)
			}
		}()
	}
}

func (r *Runner) nudge() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Stop gracefully stops the worker
func (r *Runner) Stop(ctx context.Context) error {
	close(r.stopChan)

	// Release current execution if any
	if r.currentExec != nil {
		if err := r.client.ReleaseExecution(ctx, r.currentExec.ID); err != nil {
			log.Printf("warning: failed to release execution: %v", err)
		}
	}

	// Unregister from manager
	if err := r.client.Unregister(ctx); err != nil {
		log.Printf("warning: failed to unregister: %v", err)
	}

	return nil
}

func (r *Runner) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(domain.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			status := domain.WorkerStatusIdle
			var execID *domain.Execution

			if r.currentExec != nil {
				status = domain.WorkerStatusBusy
				execID = r.currentExec
			}

			cpuPct, memPct := systemUsage(ctx)

			if execID != nil {
				if err := r.client.Heartbeat(ctx, status, &execID.ID, cpuPct, memPct); err != nil {
					log.Printf("warning: heartbeat failed: %v", err)
				}
			} else {
				if err := r.client.Heartbeat(ctx, status, nil, cpuPct, memPct); err != nil {
					log.Printf("warning: heartbeat failed: %v", err)
				}
			}
		}
	}
}

// systemUsage samples CPU and memory utilisation for the heartbeat
func systemUsage(ctx context.Context) (cpuPct, memPct float64) {
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		cpuPct = percents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		memPct = vm.UsedPercent
	}

	return cpuPct, memPct
}

func (r *Runner) workLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stopChan:
			return nil
		case <-ticker.C:
		case <-r.wake:
		}

		// Try to claim an execution
		exec, err := r.client.ClaimExecution(ctx)
		if err != nil {
			log.Printf("error claiming execution: %v", err)
			continue
		}

		if exec == nil {
			// No pending executions
			continue
		}

		r.currentExec = exec
		log.Printf("claimed execution: %s (%s)", exec.Name, exec.ID)

		result, err := r.processExecution(ctx, exec)
		if err != nil {
			log.Printf("execution failed: %s - %v", exec.ID, err)
			if failErr := r.client.FailExecution(ctx, exec.ID, err.Error()); failErr != nil {
				log.Printf("warning: failed to mark execution as failed: %v", failErr)
			}
		} else {
			log.Printf("execution completed: %s (top score %.4f)", exec.ID, result.TopScore)
			if completeErr := r.client.CompleteExecution(ctx, exec.ID, result); completeErr != nil {
				log.Printf("warning: failed to mark execution as completed: %v", completeErr)
			}
		}

		r.currentExec = nil
	}
}

// processExecution runs the three pipeline stages for a claimed execution
func (r *Runner) processExecution(ctx context.Context, exec *domain.Execution) (domain.ExecutionResult, error) {
	p, err := r.predictorFor(ctx, exec.Config.EndpointName)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	steps := []pipeline.Step{
		pipeline.NewSerializer(r.store),
		pipeline.NewClassifier(p),
		pipeline.NewConfidenceFilter(exec.Config.Threshold),
	}

	out, err := pipeline.Chain(ctx, domain.WorkflowEvent{
		S3Bucket: exec.Config.S3Bucket,
		S3Key:    exec.Config.S3Key,
	}, steps...)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	result := domain.ExecutionResult{
		Inferences: out.Inferences,
		TopScore:   pipeline.TopScore(out),
		Passed:     true,
	}

	if err := r.writeResult(exec, out); err != nil {
		log.Printf("warning: failed to write result file for %s: %v", exec.ID, err)
	}

	return result, nil
}

// predictorFor returns a cached predictor for the endpoint, creating it
// on first use. Falls back to the worker's configured endpoint.
func (r *Runner) predictorFor(ctx context.Context, endpointName string) (predictor.Predictor, error) {
	if endpointName == "" {
		endpointName = r.config.EndpointName
	}
	if endpointName == "" {
		return nil, fmt.Errorf("no inference endpoint configured")
	}

	if p, ok := r.predictors[endpointName]; ok {
		return p, nil
	}

	p, err := predictor.NewSageMakerPredictor(ctx, predictor.SageMakerConfig{
		EndpointName: endpointName,
		Region:       r.config.AwsRegion,
		AccessKey:    r.config.AwsAccessKey,
		SecretKey:    r.config.AwsSecretKey,
		ContentType:  r.config.ContentType,
	})
	if err != nil {
		return nil, err
	}

	r.predictors[endpointName] = p
	return p, nil
}

// writeResult keeps a local JSON copy of the workflow output
func (r *Runner) writeResult(exec *domain.Execution, out domain.WorkflowEvent) error {
	out.ImageData = ""

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	outpath := filepath.Join(r.dataFolder, exec.ID.String()+".json")
	return os.WriteFile(outpath, append(data, '\n'), 0o644)
}

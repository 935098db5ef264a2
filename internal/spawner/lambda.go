package spawner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// LambdaSpawner spawns workers by invoking AWS Lambda functions
type LambdaSpawner struct {
	client      *lambda.Client
	cfg         *LambdaConfig
	managerURL  string
	rabbitmqURL string
	redisAddr   string

	// Track active invocations
	mu          sync.Mutex
	invocations map[string]invocationInfo
	activeCount int64
}

// invocationInfo tracks invocation state. Only async invocations count
// toward activeCount.
type invocationInfo struct {
	status  string
	isAsync bool
}

// LambdaPayload is the payload sent to the Lambda function
type LambdaPayload struct {
	ExecutionID string `json:"execution_id"`
	Priority    int    `json:"priority"`
	ManagerURL  string `json:"manager_url"`
	RabbitMQURL string `json:"rabbitmq_url,omitempty"`
	RedisAddr   string `json:"redis_addr,omitempty"`
}

// NewLambdaSpawner creates a new AWS Lambda spawner
func NewLambdaSpawner(cfg *LambdaConfig, managerURL, rabbitmqURL, redisAddr string) (*LambdaSpawner, error) {
	if cfg.InvocationType == "" {
		cfg.InvocationType = "Event" // Async by default
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = 100
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := lambda.NewFromConfig(awsCfg)

	// Verify function exists
	_, err = client.GetFunction(context.Background(), &lambda.GetFunctionInput{
		FunctionName: aws.String(cfg.FunctionName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get Lambda function %s: %w", cfg.FunctionName, err)
	}

	log.Printf("[LambdaSpawner] Connected to AWS Lambda, function=%s, region=%s", cfg.FunctionName, cfg.Region)

	return &LambdaSpawner{
		client:      client,
		cfg:         cfg,
		managerURL:  managerURL,
		rabbitmqURL: rabbitmqURL,
		redisAddr:   redisAddr,
		invocations: make(map[string]invocationInfo),
	}, nil
}

func (s *LambdaSpawner) Spawn(ctx context.Context, req *SpawnRequest) (*SpawnResult, error) {
	current := atomic.LoadInt64(&s.activeCount)
	if s.cfg.MaxConcurrent > 0 && int(current) >= s.cfg.MaxConcurrent {
		log.Printf("[LambdaSpawner] Max concurrent invocations reached (%d/%d), skipping spawn for execution %s",
			current, s.cfg.MaxConcurrent, req.ExecutionID)
		return &SpawnResult{
			Status: "skipped",
			Error:  "max concurrent limit reached",
		}, nil
	}

	payload := LambdaPayload{
		ExecutionID: req.ExecutionID.String(),
		Priority:    req.Priority,
		ManagerURL:  s.managerURL,
		RabbitMQURL: s.rabbitmqURL,
		RedisAddr:   s.redisAddr,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var invocationType lambdatypes.InvocationType
	switch s.cfg.InvocationType {
	case "RequestResponse":
		invocationType = lambdatypes.InvocationTypeRequestResponse
	default:
		invocationType = lambdatypes.InvocationTypeEvent
	}

	log.Printf("[LambdaSpawner] Invoking Lambda function %s for execution %s", s.cfg.FunctionName, req.ExecutionID)

	result, err := s.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(s.cfg.FunctionName),
		Payload:        payloadBytes,
		InvocationType: invocationType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Lambda: %w", err)
	}

	if result.FunctionError != nil {
		return &SpawnResult{
			Status: "failed",
			Error:  *result.FunctionError,
		}, nil
	}

	// The execution ID doubles as the tracking ID. For async invocations
	// Lambda only acknowledges the request; sync invocations have already
	// completed and don't count toward the active total.
	requestID := req.ExecutionID.String()
	if invocationType == lambdatypes.InvocationTypeEvent {
		atomic.AddInt64(&s.activeCount, 1)

		s.mu.Lock()
		s.invocations[requestID] = invocationInfo{status: "invoked", isAsync: true}
		s.mu.Unlock()
	} else {
		s.mu.Lock()
		s.invocations[requestID] = invocationInfo{status: "completed", isAsync: false}
		s.mu.Unlock()
	}

	log.Printf("[LambdaSpawner] Lambda invoked for execution %s (status: %d)", req.ExecutionID, result.StatusCode)

	return &SpawnResult{
		WorkerID: requestID,
		Status:   "invoked",
	}, nil
}

func (s *LambdaSpawner) Status(ctx context.Context, workerID string) (*SpawnResult, error) {
	s.mu.Lock()
	info, ok := s.invocations[workerID]
	s.mu.Unlock()

	if !ok {
		return &SpawnResult{
			WorkerID: workerID,
			Status:   "unknown",
		}, nil
	}

	return &SpawnResult{
		WorkerID: workerID,
		Status:   info.status,
	}, nil
}

func (s *LambdaSpawner) Stop(ctx context.Context, workerID string) error {
	// Lambda invocations cannot be stopped once started; only mark them
	// as cancelled in our tracking.
	s.mu.Lock()
	if info, ok := s.invocations[workerID]; ok {
		if info.isAsync && !isTerminal(info.status) {
			atomic.AddInt64(&s.activeCount, -1)
		}
		s.invocations[workerID] = invocationInfo{status: "cancelled", isAsync: info.isAsync}
	}
	s.mu.Unlock()

	log.Printf("[LambdaSpawner] Marked invocation %s as cancelled (Lambda functions cannot be stopped)", workerID)
	return nil
}

func (s *LambdaSpawner) Close() error {
	return nil
}

func (s *LambdaSpawner) Name() string {
	return "lambda"
}

// MarkCompleted marks an invocation as completed. Called when the worker
// reports execution completion.
func (s *LambdaSpawner) MarkCompleted(workerID string) {
	s.markTerminal(workerID, "completed")
}

// MarkFailed marks an invocation as failed
func (s *LambdaSpawner) MarkFailed(workerID string) {
	s.markTerminal(workerID, "failed")
}

func (s *LambdaSpawner) markTerminal(workerID, status string) {
	s.mu.Lock()
	if info, ok := s.invocations[workerID]; ok {
		if info.isAsync && !isTerminal(info.status) {
			atomic.AddInt64(&s.activeCount, -1)
		}
		s.invocations[workerID] = invocationInfo{status: status, isAsync: info.isAsync}
	}
	s.mu.Unlock()
}

func isTerminal(status string) bool {
	return status == "completed" || status == "failed" || status == "cancelled"
}

// ActiveCount returns the number of active invocations
func (s *LambdaSpawner) ActiveCount() int {
	return int(atomic.LoadInt64(&s.activeCount))
}

// CleanupOld removes terminal invocation tracking entries
func (s *LambdaSpawner) CleanupOld() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, info := range s.invocations {
		if isTerminal(info.status) {
			delete(s.invocations, id)
		}
	}
}

package statemachine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	sfntypes "github.com/aws/aws-sdk-go-v2/service/sfn/types"

	"github.com/scones-unlimited/image-workflows/internal/domain"
)

// ErrExecutionFailed is returned when the workflow terminates in a
// non-success state
var ErrExecutionFailed = errors.New("execution failed")

// Client wraps the Step Functions API for deploying and running the
// classification workflow
type Client struct {
	sfn *sfn.Client
}

// Config holds Step Functions client configuration
type Config struct {
	Region    string
	AccessKey string
	SecretKey string
}

// NewClient creates a Step Functions client
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{sfn: sfn.NewFromConfig(awsCfg)}, nil
}

// Deploy creates the state machine, or updates its definition when a
// machine with the same name already exists. Returns the machine ARN.
func (c *Client) Deploy(ctx context.Context, name, roleARN string, def *Definition) (string, error) {
	definition, err := def.JSON()
	if err != nil {
		return "", err
	}

	existing, err := c.findByName(ctx, name)
	if err != nil {
		return "", err
	}

	if existing != "" {
		_, err := c.sfn.UpdateStateMachine(ctx, &sfn.UpdateStateMachineInput{
			StateMachineArn: aws.String(existing),
			Definition:      aws.String(definition),
			RoleArn:         aws.String(roleARN),
		})
		if err != nil {
			return "", fmt.Errorf("failed to update state machine %s: %w", name, err)
		}

		log.Printf("[StateMachine] updated %s", existing)

		return existing, nil
	}

	out, err := c.sfn.CreateStateMachine(ctx, &sfn.CreateStateMachineInput{
		Name:       aws.String(name),
		Definition: aws.String(definition),
		RoleArn:    aws.String(roleARN),
		Type:       sfntypes.StateMachineTypeStandard,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create state machine %s: %w", name, err)
	}

	log.Printf("[StateMachine] created %s", aws.ToString(out.StateMachineArn))

	return aws.ToString(out.StateMachineArn), nil
}

func (c *Client) findByName(ctx context.Context, name string) (string, error) {
	paginator := sfn.NewListStateMachinesPaginator(c.sfn, &sfn.ListStateMachinesInput{})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to list state machines: %w", err)
		}

		for _, sm := range page.StateMachines {
			if aws.ToString(sm.Name) == name {
				return aws.ToString(sm.StateMachineArn), nil
			}
		}
	}

	return "", nil
}

// StartExecution starts the workflow for a single event and returns the
// execution ARN
func (c *Client) StartExecution(ctx context.Context, stateMachineARN string, event domain.WorkflowEvent) (string, error) {
	input, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal input: %w", err)
	}

	out, err := c.sfn.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(stateMachineARN),
		Input:           aws.String(string(input)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to start execution: %w", err)
	}

	return aws.ToString(out.ExecutionArn), nil
}

// ExecutionOutcome is the terminal state of an execution
type ExecutionOutcome struct {
	Status sfntypes.ExecutionStatus
	Output domain.WorkflowEvent
	Error  string
	Cause  string
}

// WaitForExecution polls the execution until it leaves the RUNNING
// state. Returns ErrExecutionFailed (with the outcome) for any
// non-success terminal status.
func (c *Client) WaitForExecution(ctx context.Context, executionARN string, pollInterval time.Duration) (*ExecutionOutcome, error) {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		out, err := c.sfn.DescribeExecution(ctx, &sfn.DescribeExecutionInput{
			ExecutionArn: aws.String(executionARN),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe execution: %w", err)
		}

		if out.Status != sfntypes.ExecutionStatusRunning {
			outcome := &ExecutionOutcome{
				Status: out.Status,
				Error:  aws.ToString(out.Error),
				Cause:  aws.ToString(out.Cause),
			}

			if out.Output != nil {
				// Output errors are non-fatal: a failed execution has none
				_ = json.Unmarshal([]byte(aws.ToString(out.Output)), &outcome.Output)
			}

			if out.Status != sfntypes.ExecutionStatusSucceeded {
				return outcome, fmt.Errorf("%w: %s (%s)", ErrExecutionFailed, outcome.Error, out.Status)
			}

			return outcome, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/scones-unlimited/image-workflows/internal/domain"
)

// Client is a worker client that communicates with the manager API
type Client struct {
	baseURL    string
	workerID   string
	hostname   string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a new worker client
func NewClient(baseURL, workerID string) *Client {
	hostname, _ := os.Hostname()
	apiToken := os.Getenv("API_TOKEN")
	if apiToken == "" {
		apiToken = os.Getenv("API_KEY")
	}

	return &Client{
		baseURL:  baseURL,
		workerID: workerID,
		hostname: hostname,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Register registers the worker with the manager
func (c *Client) Register(ctx context.Context) (*domain.Worker, error) {
	body := map[string]string{
		"worker_id": c.workerID,
	}

	resp, err := c.post(ctx, "/api/v2/workers/register", body)
	if err != nil {
		return nil, fmt.Errorf("failed to register worker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, c.parseError(resp)
	}

	var worker domain.Worker
	if err := json.NewDecoder(resp.Body).Decode(&worker); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &worker, nil
}

// Heartbeat sends a heartbeat to the manager
func (c *Client) Heartbeat(ctx context.Context, status domain.WorkerStatus, currentExecutionID *uuid.UUID, cpuPercent, memPercent float64) error {
	body := map[string]interface{}{
		"worker_id":   c.workerID,
		"hostname":    c.hostname,
		"status":      status,
		"cpu_percent": cpuPercent,
		"mem_percent": memPercent,
	}

	if currentExecutionID != nil {
		body["current_execution_id"] = currentExecutionID.String()
	}

	resp, err := c.post(ctx, "/api/v2/workers/heartbeat", body)
	if err != nil {
		return fmt.Errorf("failed to send heartbeat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.parseError(resp)
	}

	return nil
}

// ClaimExecution claims a pending execution from the manager
func (c *Client) ClaimExecution(ctx context.Context) (*domain.Execution, error) {
	url := fmt.Sprintf("/api/v2/workers/%s/claim", c.workerID)

	resp, err := c.post(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to claim execution: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result struct {
		Execution *domain.Execution `json:"execution"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return result.Execution, nil
}

// CompleteExecution marks an execution as completed and submits its result
func (c *Client) CompleteExecution(ctx context.Context, execID uuid.UUID, result domain.ExecutionResult) error {
	url := fmt.Sprintf("/api/v2/workers/%s/complete", c.workerID)

	body := map[string]interface{}{
		"execution_id": execID.String(),
		"result":       result,
	}

	resp, err := c.post(ctx, url, body)
	if err != nil {
		return fmt.Errorf("failed to complete execution: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.parseError(resp)
	}

	return nil
}

// FailExecution marks an execution as failed
func (c *Client) FailExecution(ctx context.Context, execID uuid.UUID, errMsg string) error {
	url := fmt.Sprintf("/api/v2/workers/%s/fail", c.workerID)

	body := map[string]interface{}{
		"execution_id": execID.String(),
		"message":      errMsg,
	}

	resp, err := c.post(ctx, url, body)
	if err != nil {
		return fmt.Errorf("failed to fail execution: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.parseError(resp)
	}

	return nil
}

// ReleaseExecution releases an execution back to pending
func (c *Client) ReleaseExecution(ctx context.Context, execID uuid.UUID) error {
	url := fmt.Sprintf("/api/v2/workers/%s/release", c.workerID)

	body := map[string]interface{}{
		"execution_id": execID.String(),
	}

	resp, err := c.post(ctx, url, body)
	if err != nil {
		return fmt.Errorf("failed to release execution: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.parseError(resp)
	}

	return nil
}

// Unregister unregisters the worker from the manager
func (c *Client) Unregister(ctx context.Context) error {
	url := fmt.Sprintf("/api/v2/workers/%s", c.workerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.parseError(resp)
	}

	return nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	return c.httpClient.Do(req)
}

func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}

	if err := json.Unmarshal(body, &apiErr); err != nil {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", apiErr.Message)
}

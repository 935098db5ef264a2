package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
)

// DefaultContentType is the payload type sent to the model endpoint
const DefaultContentType = "image/png"

// SageMakerPredictor implements Predictor against a deployed SageMaker
// inference endpoint
type SageMakerPredictor struct {
	client      *sagemakerruntime.Client
	endpoint    string
	contentType string
}

// SageMakerConfig holds endpoint configuration
type SageMakerConfig struct {
	EndpointName string
	Region       string
	AccessKey    string
	SecretKey    string
	ContentType  string
}

// NewSageMakerPredictor creates a predictor for the given endpoint
func NewSageMakerPredictor(ctx context.Context, cfg SageMakerConfig) (*SageMakerPredictor, error) {
	if cfg.EndpointName == "" {
		return nil, fmt.Errorf("endpoint name is required")
	}

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

	contentType := cfg.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	return &SageMakerPredictor{
		client:      sagemakerruntime.NewFromConfig(awsCfg),
		endpoint:    cfg.EndpointName,
		contentType: contentType,
	}, nil
}

// Predict invokes the endpoint with the raw image bytes
func (p *SageMakerPredictor) Predict(ctx context.Context, image []byte) ([]Inference, error) {
	out, err := p.client.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(p.endpoint),
		ContentType:  aws.String(p.contentType),
		Body:         image,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke endpoint %s: %w", p.endpoint, err)
	}

	inferences, err := decodeEndpointOutput(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode endpoint %s response: %w", p.endpoint, err)
	}

	return inferences, nil
}

// decodeEndpointOutput parses the endpoint response body. The image
// classifier returns a JSON array of per-class probabilities; labels
// are the class indices. A comma-separated list of floats is accepted
// as a fallback.
func decodeEndpointOutput(body []byte) ([]Inference, error) {
	var scores []float64
	if err := json.Unmarshal(body, &scores); err == nil {
		return scoresToInferences(scores), nil
	}

	parts := strings.Split(strings.Trim(string(body), "[] \n"), ",")

	scores = scores[:0]
	for _, part := range parts {
		score, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("unexpected response body %q", string(body))
		}
		scores = append(scores, score)
	}

	return scoresToInferences(scores), nil
}

func scoresToInferences(scores []float64) []Inference {
	out := make([]Inference, 0, len(scores))
	for i, score := range scores {
		out = append(out, Inference{
			Label: strconv.Itoa(i),
			Score: score,
		})
	}

	return out
}

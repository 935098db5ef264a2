package goposthog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"

	"github.com/posthog/posthog-go"

	"github.com/scones-unlimited/image-workflows/tlmt"
)

type service struct {
	client     posthog.Client
	distinctID string
}

// New creates a PostHog-backed telemetry service. The distinct ID is a
// hash of the hostname, never the hostname itself.
func New(apiKey, endpoint string) (tlmt.Telemetry, error) {
	if apiKey == "" {
		return nil, errors.New("missing posthog api key")
	}

	client, err := posthog.NewWithConfig(apiKey, posthog.Config{
		Endpoint: endpoint,
	})
	if err != nil {
		return nil, err
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	sum := sha256.Sum256([]byte(hostname))

	return &service{
		client:     client,
		distinctID: hex.EncodeToString(sum[:]),
	}, nil
}

func (s *service) Send(_ context.Context, event tlmt.Event) error {
	properties := posthog.NewProperties()
	for k, v := range event.Properties {
		properties.Set(k, v)
	}

	return s.client.Enqueue(posthog.Capture{
		DistinctId: s.distinctID,
		Event:      event.Name,
		Properties: properties,
	})
}

func (s *service) Close() error {
	return s.client.Close()
}

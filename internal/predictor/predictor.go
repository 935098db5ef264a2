// Package predictor provides access to the image classification model
// endpoint and parsing of its inference output.
package predictor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Inference is a single prediction returned by the model endpoint
type Inference struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// String formats an inference as "label:score", the wire format carried
// in the workflow event's inferences field.
func (i Inference) String() string {
	return i.Label + ":" + strconv.FormatFloat(i.Score, 'f', -1, 64)
}

// Predictor runs a prediction call against a model endpoint
type Predictor interface {
	// Predict classifies an image and returns the model's inferences
	Predict(ctx context.Context, image []byte) ([]Inference, error)
}

// ParseInference parses a "label:score" entry. A bare float is accepted
// and treated as an unlabeled score.
func ParseInference(s string) (Inference, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Inference{}, fmt.Errorf("empty inference entry")
	}

	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		score, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Inference{}, fmt.Errorf("invalid inference entry %q: %w", s, err)
		}
		return Inference{Score: score}, nil
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(s[idx+1:]), 64)
	if err != nil {
		return Inference{}, fmt.Errorf("invalid inference entry %q: %w", s, err)
	}

	return Inference{
		Label: strings.TrimSpace(s[:idx]),
		Score: score,
	}, nil
}

// ParseInferences parses every entry of the event's inferences field.
// Entries may additionally be comma-joined within a single element.
func ParseInferences(entries []string) ([]Inference, error) {
	var out []Inference

	for _, entry := range entries {
		for _, part := range strings.Split(entry, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}

			inf, err := ParseInference(part)
			if err != nil {
				return nil, err
			}

			out = append(out, inf)
		}
	}

	return out, nil
}

// FormatInferences renders inferences in the event wire format
func FormatInferences(inferences []Inference) []string {
	out := make([]string, 0, len(inferences))
	for _, inf := range inferences {
		out = append(out, inf.String())
	}

	return out
}

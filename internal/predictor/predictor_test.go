package predictor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInference(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    Inference
		expectedErr bool
	}{
		{
			name:     "Labeled score",
			input:    "bicycle:0.93",
			expected: Inference{Label: "bicycle", Score: 0.93},
		},
		{
			name:     "Bare float",
			input:    "0.93",
			expected: Inference{Score: 0.93},
		},
		{
			name:     "Whitespace",
			input:    "  bicycle : 0.93 ",
			expected: Inference{Label: "bicycle", Score: 0.93},
		},
		{
			name:     "Label containing colon",
			input:    "class:1:0.50",
			expected: Inference{Label: "class:1", Score: 0.50},
		},
		{
			name:        "Empty",
			input:       "",
			expectedErr: true,
		},
		{
			name:        "Non-numeric score",
			input:       "bicycle:high",
			expectedErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inf, err := ParseInference(tt.input)
			if tt.expectedErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.expected, inf)
		})
	}
}

func TestParseInferences(t *testing.T) {
	inferences, err := ParseInferences([]string{"bicycle:0.93,motorcycle:0.07", "0.5"})
	assert.NoError(t, err)
	assert.Equal(t, []Inference{
		{Label: "bicycle", Score: 0.93},
		{Label: "motorcycle", Score: 0.07},
		{Score: 0.5},
	}, inferences)
}

func TestFormatInferencesRoundTrip(t *testing.T) {
	in := []Inference{
		{Label: "bicycle", Score: 0.93},
		{Label: "motorcycle", Score: 0.07},
	}

	formatted := FormatInferences(in)
	assert.Equal(t, []string{"bicycle:0.93", "motorcycle:0.07"}, formatted)

	parsed, err := ParseInferences(formatted)
	assert.NoError(t, err)
	assert.Equal(t, in, parsed)
}

func TestDecodeEndpointOutput(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expected    []Inference
		expectedErr bool
	}{
		{
			name: "JSON array of probabilities",
			body: "[0.93, 0.07]",
			expected: []Inference{
				{Label: "0", Score: 0.93},
				{Label: "1", Score: 0.07},
			},
		},
		{
			name: "Comma separated floats",
			body: "0.93, 0.07",
			expected: []Inference{
				{Label: "0", Score: 0.93},
				{Label: "1", Score: 0.07},
			},
		},
		{
			name:        "Garbage",
			body:        "<html>",
			expectedErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inferences, err := decodeEndpointOutput([]byte(tt.body))
			if tt.expectedErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.expected, inferences)
		})
	}
}

// Package statemachine builds and deploys the Step Functions workflow
// that chains the three Lambda functions.
package statemachine

import (
	"encoding/json"
	"fmt"
)

// State machine stage names
const (
	StateSerialize = "SerializeImageData"
	StateClassify  = "ClassifyImageData"
	StateFilter    = "FilterLowConfidence"
)

// Definition is an Amazon States Language document
type Definition struct {
	Comment string           `json:"Comment,omitempty"`
	StartAt string           `json:"StartAt"`
	States  map[string]State `json:"States"`
}

// State is a single ASL state. Only the fields the workflow uses are
// modeled.
type State struct {
	Type       string `json:"Type"`
	Resource   string `json:"Resource,omitempty"`
	Next       string `json:"Next,omitempty"`
	End        bool   `json:"End,omitempty"`
	InputPath  string `json:"InputPath,omitempty"`
	OutputPath string `json:"OutputPath,omitempty"`
}

// FunctionARNs names the three deployed Lambda functions
type FunctionARNs struct {
	Serialize string
	Classify  string
	Filter    string
}

// Validate checks that all three functions are named
func (f FunctionARNs) Validate() error {
	if f.Serialize == "" || f.Classify == "" || f.Filter == "" {
		return fmt.Errorf("all three function ARNs are required")
	}

	return nil
}

// NewDefinition builds the classification workflow definition. Each
// state filters its output on $.body so the next Lambda receives the
// bare event record. The filter state has no catcher: a failed
// threshold check fails the whole execution.
func NewDefinition(arns FunctionARNs) (*Definition, error) {
	if err := arns.Validate(); err != nil {
		return nil, err
	}

	return &Definition{
		Comment: "Image classification workflow: serialize, classify, filter",
		StartAt: StateSerialize,
		States: map[string]State{
			StateSerialize: {
				Type:       "Task",
				Resource:   arns.Serialize,
				OutputPath: "$.body",
				Next:       StateClassify,
			},
			StateClassify: {
				Type:       "Task",
				Resource:   arns.Classify,
				OutputPath: "$.body",
				Next:       StateFilter,
			},
			StateFilter: {
				Type:       "Task",
				Resource:   arns.Filter,
				OutputPath: "$.body",
				End:        true,
			},
		},
	}, nil
}

// JSON renders the definition for the CreateStateMachine API
func (d *Definition) JSON() (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal definition: %w", err)
	}

	return string(data), nil
}

package statemachine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefinition(t *testing.T) {
	def, err := NewDefinition(FunctionARNs{
		Serialize: "arn:aws:lambda:us-east-1:605922365623:function:serializeImageData",
		Classify:  "arn:aws:lambda:us-east-1:605922365623:function:classifyImageData",
		Filter:    "arn:aws:lambda:us-east-1:605922365623:function:filterLowConfidence",
	})
	require.NoError(t, err)

	assert.Equal(t, StateSerialize, def.StartAt)
	require.Len(t, def.States, 3)

	serialize := def.States[StateSerialize]
	assert.Equal(t, "Task", serialize.Type)
	assert.Equal(t, StateClassify, serialize.Next)
	assert.Equal(t, "$.body", serialize.OutputPath)

	classify := def.States[StateClassify]
	assert.Equal(t, StateFilter, classify.Next)
	assert.Equal(t, "$.body", classify.OutputPath)

	filter := def.States[StateFilter]
	assert.True(t, filter.End)
	assert.Empty(t, filter.Next)
}

func TestNewDefinitionMissingARNs(t *testing.T) {
	_, err := NewDefinition(FunctionARNs{Serialize: "arn:only-one"})
	assert.Error(t, err)
}

func TestDefinitionJSON(t *testing.T) {
	def, err := NewDefinition(FunctionARNs{
		Serialize: "arn:s",
		Classify:  "arn:c",
		Filter:    "arn:f",
	})
	require.NoError(t, err)

	raw, err := def.JSON()
	require.NoError(t, err)

	// The document must round-trip as valid ASL JSON
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))

	assert.Equal(t, StateSerialize, decoded["StartAt"])

	states, ok := decoded["States"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, states, 3)

	// End:true must serialize, Next must be omitted on the final state
	filter := states[StateFilter].(map[string]any)
	assert.Equal(t, true, filter["End"])
	_, hasNext := filter["Next"]
	assert.False(t, hasNext)
}

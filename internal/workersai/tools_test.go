package workersai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/workersai/internal/provider"
)

var testTools = []provider.ToolSpec{
	{Name: "get_weather", Description: "Weather for a city", Parameters: json.RawMessage(`{"type":"object"}`)},
	{Name: "get_time"},
}

func toolNames(tools []functionTool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Function.Name
	}
	return names
}

func TestPrepareTools(t *testing.T) {
	tests := []struct {
		name       string
		choice     provider.ToolChoice
		wantNames  []string
		wantChoice string
	}{
		{name: "unset", choice: provider.ToolChoice{}, wantNames: []string{"get_weather", "get_time"}, wantChoice: ""},
		{name: "auto", choice: provider.ToolChoice{Type: provider.ToolChoiceAuto}, wantNames: []string{"get_weather", "get_time"}, wantChoice: "auto"},
		{name: "none", choice: provider.ToolChoice{Type: provider.ToolChoiceNone}, wantNames: []string{"get_weather", "get_time"}, wantChoice: "none"},
		{name: "required", choice: provider.ToolChoice{Type: provider.ToolChoiceRequired}, wantNames: []string{"get_weather", "get_time"}, wantChoice: "any"},
		{name: "specific tool", choice: provider.ToolChoice{Type: provider.ToolChoiceTool, ToolName: "get_time"}, wantNames: []string{"get_time"}, wantChoice: "any"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tools, choice, err := prepareTools(testTools, tt.choice)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNames, toolNames(tools))
			assert.Equal(t, tt.wantChoice, choice)
		})
	}
}

func TestPrepareToolsNoTools(t *testing.T) {
	tools, choice, err := prepareTools(nil, provider.ToolChoice{Type: provider.ToolChoiceRequired})
	require.NoError(t, err)
	assert.Nil(t, tools)
	assert.Empty(t, choice)
}

func TestPrepareToolsUnknownTool(t *testing.T) {
	_, _, err := prepareTools(testTools, provider.ToolChoice{Type: provider.ToolChoiceTool, ToolName: "missing"})

	var noSuchTool *NoSuchToolError
	require.ErrorAs(t, err, &noSuchTool)
	assert.Equal(t, "missing", noSuchTool.ToolName)
}

func TestPrepareToolsUnsupportedChoice(t *testing.T) {
	_, _, err := prepareTools(testTools, provider.ToolChoice{Type: "sometimes"})
	assert.Error(t, err)
}

func TestFunctionToolWireFormat(t *testing.T) {
	b, err := json.Marshal(toFunctionTool(testTools[0]))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "function",
		"function": {
			"name": "get_weather",
			"description": "Weather for a city",
			"parameters": {"type": "object"}
		}
	}`, string(b))

	b, err = json.Marshal(toFunctionTool(testTools[1]))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"function","function":{"name":"get_time"}}`, string(b))
}

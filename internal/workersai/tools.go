package workersai

import (
	"encoding/json"
	"fmt"

	"github.com/howard-nolan/workersai/internal/provider"
)

// toolChoiceAny is the backend's "must call some tool" directive.
const toolChoiceAny = "any"

// functionTool is a backend tool descriptor.
type functionTool struct {
	Type     string      `json:"type"`
	Function functionDef `json:"function"`
}

type functionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

func toFunctionTool(spec provider.ToolSpec) functionTool {
	return functionTool{
		Type: "function",
		Function: functionDef{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.Parameters,
		},
	}
}

// prepareTools maps the neutral tool list and choice policy onto backend
// tools and a tool_choice directive. An empty choice string means the
// directive is omitted.
//
// The backend has no way to force one particular tool, so a specific
// choice narrows the tool list down to that tool and forces "any".
func prepareTools(specs []provider.ToolSpec, choice provider.ToolChoice) ([]functionTool, string, error) {
	if len(specs) == 0 {
		return nil, "", nil
	}

	tools := make([]functionTool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, toFunctionTool(spec))
	}

	switch choice.Type {
	case "":
		return tools, "", nil
	case provider.ToolChoiceAuto:
		return tools, "auto", nil
	case provider.ToolChoiceNone:
		return tools, "none", nil
	case provider.ToolChoiceRequired:
		return tools, toolChoiceAny, nil
	case provider.ToolChoiceTool:
		for _, t := range tools {
			if t.Function.Name == choice.ToolName {
				return []functionTool{t}, toolChoiceAny, nil
			}
		}
		return nil, "", &NoSuchToolError{ToolName: choice.ToolName}
	default:
		return nil, "", fmt.Errorf("workersai: unsupported tool choice type %q", choice.Type)
	}
}

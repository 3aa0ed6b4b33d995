// Package tools exposes local functions to the model as callable tools.
package tools

import (
	"context"
	"encoding/json"
	"sort"
)

// Definition describes a tool to the model. Parameters is a JSON schema
// object.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Tool is a function the model may call.
type Tool interface {
	Definition() Definition
	// Invoke runs the tool with the model-supplied JSON arguments and returns
	// the text handed back to the model.
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// FuncTool adapts a plain function to Tool.
type FuncTool struct {
	Def Definition
	Fn  func(ctx context.Context, args json.RawMessage) (string, error)
}

func (t FuncTool) Definition() Definition { return t.Def }

func (t FuncTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	return t.Fn(ctx, args)
}

// Object builds a JSON schema object with the given properties, all of
// them required.
func Object(props map[string]Property) map[string]any {
	properties := make(map[string]any, len(props))
	required := make([]string, 0, len(props))
	for name, p := range props {
		properties[name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		required = append(required, name)
	}
	sort.Strings(required)
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Property is one schema property.
type Property struct {
	Type        string
	Description string
}

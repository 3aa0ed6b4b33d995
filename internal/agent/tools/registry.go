package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sashabaranov/go-openai"

	apperrors "github.com/lk2023060901/agent-gateway/internal/pkg/errors"
)

// ErrUnknownTool is returned when the model names a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Registry holds the tools available to one model or agent.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tools. A duplicate name is an error.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tools {
		name := t.Definition().Name
		if _, exists := r.tools[name]; exists {
			return fmt.Errorf("tool '%s' already registered", name)
		}
		r.tools[name] = t
	}
	return nil
}

// Get returns a tool by name. A nil registry has no tools.
func (r *Registry) Get(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports how many tools are registered. A nil registry is empty.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns tool definitions sorted by name.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, r.Len())
	for _, name := range r.Names() {
		t, _ := r.Get(name)
		defs = append(defs, t.Definition())
	}
	return defs
}

// OpenAITools converts the registry into the chat-completions tool list.
func (r *Registry) OpenAITools() []openai.Tool {
	if r.Len() == 0 {
		return nil
	}
	defs := r.Definitions()
	result := make([]openai.Tool, len(defs))
	for i, d := range defs {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		}
	}
	return result
}

// Invoke runs the named tool. Failures come back as ErrToolExecution
// application errors.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", apperrors.Wrapf(ErrUnknownTool, apperrors.ErrToolExecution, "tool %q is not registered", name)
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	out, err := t.Invoke(ctx, args)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrToolExecution, "tool %q failed", name)
	}
	return out, nil
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lk2023060901/agent-gateway/internal/pkg/errors"
)

func echoTool(name string) Tool {
	return FuncTool{
		Def: Definition{
			Name:        name,
			Description: "echoes its input",
			Parameters:  Object(map[string]Property{"text": {Type: "string", Description: "input"}}),
		},
		Fn: func(_ context.Context, args json.RawMessage) (string, error) {
			return string(args), nil
		},
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("b"), echoTool("a")))
	assert.Error(t, r.Register(echoTool("a")))

	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, 2, r.Len())

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Name)
	assert.Equal(t, []string{"text"}, defs[0].Parameters["required"])
}

func TestRegistryOpenAITools(t *testing.T) {
	var empty *Registry
	assert.Nil(t, empty.OpenAITools())

	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	tools := r.OpenAITools()
	require.Len(t, tools, 1)
	assert.Equal(t, openai.ToolTypeFunction, tools[0].Type)
	assert.Equal(t, "echo", tools[0].Function.Name)
}

func TestRegistryInvoke(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry()
	require.NoError(t, r.Register(
		echoTool("echo"),
		FuncTool{
			Def: Definition{Name: "fail"},
			Fn: func(context.Context, json.RawMessage) (string, error) {
				return "", boom
			},
		},
	))

	out, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"text":"hi"}`, out)

	out, err = r.Invoke(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", out)

	_, err = r.Invoke(context.Background(), "fail", nil)
	assert.ErrorIs(t, err, boom)
	assert.True(t, apperrors.Is(err, apperrors.ErrToolExecution))

	_, err = r.Invoke(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
	assert.True(t, apperrors.Is(err, apperrors.ErrToolExecution))
}

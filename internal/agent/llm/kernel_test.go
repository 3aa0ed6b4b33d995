package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/agent-gateway/internal/agent/tools"
)

// scriptedCompleter replays canned responses and records requests.
type scriptedCompleter struct {
	responses []openai.ChatCompletionResponse
	requests  []openai.ChatCompletionRequest
	err       error
}

func (s *scriptedCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	if len(s.responses) == 0 {
		return answer("done"), nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func answer(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text},
	}}}
}

func toolCalls(calls ...openai.ToolCall) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, ToolCalls: calls},
	}}}
}

func call(id, name, args string) openai.ToolCall {
	return openai.ToolCall{ID: id, Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: name, Arguments: args}}
}

func testRegistry(t *testing.T, invoked *[]string) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	require.NoError(t, r.Register(
		tools.FuncTool{
			Def: tools.Definition{Name: "lookup"},
			Fn: func(_ context.Context, args json.RawMessage) (string, error) {
				*invoked = append(*invoked, string(args))
				return "42", nil
			},
		},
		tools.FuncTool{
			Def: tools.Definition{Name: "broken"},
			Fn: func(context.Context, json.RawMessage) (string, error) {
				return "", errors.New("upstream down")
			},
		},
	))
	return r
}

func TestPrompt(t *testing.T) {
	c := &scriptedCompleter{responses: []openai.ChatCompletionResponse{answer(`{"Latitude":1}`)}}
	k := NewKernel(c, Config{Deployment: "gpt-4o"}, nil)

	out, err := k.Prompt(context.Background(), "where?", 100)
	require.NoError(t, err)
	assert.Equal(t, `{"Latitude":1}`, out)

	require.Len(t, c.requests, 1)
	assert.Equal(t, "gpt-4o", c.requests[0].Model)
	assert.Equal(t, 100, c.requests[0].MaxTokens)
	assert.Empty(t, c.requests[0].Tools)
}

func TestPromptEmptyChoices(t *testing.T) {
	c := &scriptedCompleter{responses: []openai.ChatCompletionResponse{{}}}
	_, err := NewKernel(c, Config{}, nil).Prompt(context.Background(), "x", 10)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestInvokeWithoutToolCalls(t *testing.T) {
	var invoked []string
	c := &scriptedCompleter{responses: []openai.ChatCompletionResponse{answer("sunny")}}
	k := NewKernel(c, Config{}, nil)

	var calls []FunctionCall
	msg, err := k.Invoke(context.Background(),
		[]openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "weather?"}},
		testRegistry(t, &invoked),
		func(fc FunctionCall) { calls = append(calls, fc) })
	require.NoError(t, err)

	assert.Equal(t, "sunny", msg.Content)
	assert.Empty(t, calls)
	assert.Empty(t, invoked)
	require.Len(t, c.requests, 1)
	assert.Len(t, c.requests[0].Tools, 2)
}

func TestInvokeRunsToolCallsInOrder(t *testing.T) {
	var invoked []string
	c := &scriptedCompleter{responses: []openai.ChatCompletionResponse{
		toolCalls(call("c1", "lookup", `{"q":1}`), call("c2", "broken", `{}`)),
		toolCalls(call("c3", "lookup", `{"q":2}`)),
		answer("final"),
	}}
	k := NewKernel(c, Config{}, nil)

	var calls []string
	msg, err := k.Invoke(context.Background(),
		[]openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "go"}},
		testRegistry(t, &invoked),
		func(fc FunctionCall) { calls = append(calls, fc.Name) })
	require.NoError(t, err)

	assert.Equal(t, "final", msg.Content)
	assert.Equal(t, []string{"lookup", "broken", "lookup"}, calls)
	assert.Equal(t, []string{`{"q":1}`, `{"q":2}`}, invoked)

	require.Len(t, c.requests, 3)
	second := c.requests[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, openai.ChatMessageRoleTool, second[2].Role)
	assert.Equal(t, "c1", second[2].ToolCallID)
	assert.Equal(t, "42", second[2].Content)
	assert.Equal(t, "c2", second[3].ToolCallID)
	assert.Contains(t, second[3].Content, "Error: ")
	assert.Contains(t, second[3].Content, "upstream down")
}

func TestInvokeStopsOfferingToolsAfterLimit(t *testing.T) {
	var invoked []string
	loop := toolCalls(call("c", "lookup", `{}`))
	c := &scriptedCompleter{responses: []openai.ChatCompletionResponse{loop, loop, loop}}
	k := NewKernel(c, Config{MaxAutoInvoke: 2}, nil)

	msg, err := k.Invoke(context.Background(), nil, testRegistry(t, &invoked), nil)
	require.NoError(t, err)

	// two tool rounds, then a tool-less request that must be the answer
	require.Len(t, c.requests, 3)
	assert.NotEmpty(t, c.requests[1].Tools)
	assert.Empty(t, c.requests[2].Tools)
	assert.Len(t, invoked, 2)
	assert.Len(t, msg.ToolCalls, 1)
}

func TestInvokePropagatesModelError(t *testing.T) {
	c := &scriptedCompleter{err: errors.New("429")}
	_, err := NewKernel(c, Config{}, nil).Invoke(context.Background(), nil, nil, nil)
	assert.Error(t, err)
}

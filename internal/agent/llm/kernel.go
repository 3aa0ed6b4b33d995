package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-gateway/internal/agent/tools"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
)

// ErrEmptyResponse is returned when the model answers with no choices.
var ErrEmptyResponse = errors.New("llm: model returned no choices")

// ChatCompleter is the part of the go-openai client the kernel needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// FunctionCall is one tool call requested by the model.
type FunctionCall struct {
	ID        string
	Name      string
	Arguments string
}

// OnFunctionCall observes tool calls before they run.
type OnFunctionCall func(FunctionCall)

// Kernel runs chat completions against one deployment.
type Kernel struct {
	client        ChatCompleter
	model         string
	maxAutoInvoke int
	logger        *logger.Logger
}

func NewKernel(client ChatCompleter, cfg Config, log *logger.Logger) *Kernel {
	if log == nil {
		log = logger.NewNop()
	}
	maxAutoInvoke := cfg.MaxAutoInvoke
	if maxAutoInvoke <= 0 {
		maxAutoInvoke = DefaultMaxAutoInvoke
	}
	return &Kernel{
		client:        client,
		model:         cfg.Deployment,
		maxAutoInvoke: maxAutoInvoke,
		logger:        log.Named("llm"),
	}
}

// Prompt sends a single user message and returns the reply text.
func (k *Kernel) Prompt(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := k.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     k.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Invoke runs the conversation with automatic function calling. Requested
// tool calls are executed in order and their results (or error text) are
// fed back to the model. After maxAutoInvoke rounds the request is sent
// without tools so the model has to answer.
func (k *Kernel) Invoke(ctx context.Context, messages []openai.ChatCompletionMessage, registry *tools.Registry, onCall OnFunctionCall) (openai.ChatCompletionMessage, error) {
	log := k.logger.WithContext(ctx)
	history := append([]openai.ChatCompletionMessage(nil), messages...)

	for round := 0; ; round++ {
		req := openai.ChatCompletionRequest{
			Model:    k.model,
			Messages: history,
		}
		withTools := registry.Len() > 0 && round < k.maxAutoInvoke
		if withTools {
			req.Tools = registry.OpenAITools()
		}

		resp, err := k.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return openai.ChatCompletionMessage{}, fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return openai.ChatCompletionMessage{}, ErrEmptyResponse
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 || !withTools {
			return msg, nil
		}

		history = append(history, msg)
		for _, call := range msg.ToolCalls {
			fc := FunctionCall{ID: call.ID, Name: call.Function.Name, Arguments: call.Function.Arguments}
			if onCall != nil {
				onCall(fc)
			}

			out, err := registry.Invoke(ctx, fc.Name, []byte(fc.Arguments))
			if err != nil {
				log.Warn("tool call failed",
					zap.String("tool", fc.Name),
					zap.String("arguments", fc.Arguments),
					zap.Error(err),
				)
				out = "Error: " + err.Error()
			}

			history = append(history, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    out,
				ToolCallID: fc.ID,
			})
		}

		if err := ctx.Err(); err != nil {
			return openai.ChatCompletionMessage{}, err
		}
	}
}

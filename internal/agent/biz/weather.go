package biz

import (
	"context"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-gateway/internal/agent/diagnostics"
	"github.com/lk2023060901/agent-gateway/internal/agent/llm"
	"github.com/lk2023060901/agent-gateway/internal/agent/tools"
	"github.com/lk2023060901/agent-gateway/internal/agent/types"
	apperrors "github.com/lk2023060901/agent-gateway/internal/pkg/errors"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agent-gateway/internal/prompts"
)

// PromptSource reads prompt templates by logical name.
type PromptSource interface {
	Read(name string) (string, error)
}

// WeatherConfig bounds the history replayed by the weather agent.
type WeatherConfig struct {
	// MaxHistoryTokens caps replayed history; zero disables trimming.
	MaxHistoryTokens int
}

// WeatherUseCase answers weather questions with the model and the weather tools
type WeatherUseCase struct {
	model    Model
	registry *tools.Registry
	prompts  PromptSource
	history  HistoryStore
	tokens   TokenCounter
	config   WeatherConfig
	logger   *logger.Logger
}

func NewWeatherUseCase(
	model Model,
	registry *tools.Registry,
	prompts PromptSource,
	history HistoryStore,
	tokens TokenCounter,
	cfg WeatherConfig,
	log *logger.Logger,
) *WeatherUseCase {
	if log == nil {
		log = logger.NewNop()
	}
	return &WeatherUseCase{
		model:    model,
		registry: registry,
		prompts:  prompts,
		history:  history,
		tokens:   tokens,
		config:   cfg,
		logger:   log.Named("weather"),
	}
}

// RunWeather answers a stateless conversation.
func (uc *WeatherUseCase) RunWeather(ctx context.Context, req *types.ChatRequest) (*types.RequestResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	system, err := uc.systemPrompt()
	if err != nil {
		return nil, err
	}

	messages := []openai.ChatCompletionMessage{system}
	for _, m := range req.Messages {
		switch m.NormalizedRole() {
		case types.RoleUser:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case types.RoleAssistant:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content})
		}
	}

	rec := diagnostics.NewRecorder()
	reply, err := uc.model.Invoke(diagnostics.WithRecorder(ctx, rec), messages, uc.registry, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer, "model invocation failed")
	}

	result := types.NewRequestResult()
	result.Content = reply.Content
	result.ExecutionDiagnostics = rec.Diagnostics()
	return result, nil
}

// RunWeatherAgent answers one turn of a weather conversation, replaying the
// thread history kept by this service.
func (uc *WeatherUseCase) RunWeatherAgent(ctx context.Context, req *types.ChatThreadRequest) (*types.RequestResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	threadID := req.Thread()
	if threadID == "" {
		threadID = uuid.NewString()
	}
	ctx = logger.WithThreadID(ctx, threadID)
	log := uc.logger.WithContext(ctx)

	system, err := uc.systemPrompt()
	if err != nil {
		return nil, err
	}

	var history []types.ChatMessage
	if uc.history != nil && req.Thread() != "" {
		history, err = uc.history.Load(ctx, threadID)
		if err != nil {
			log.Warn("history unavailable, continuing without it", zap.Error(err))
			history = nil
		}
	}
	history = uc.trimHistory(system.Content, req.Message, history)

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, system)
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: string(m.NormalizedRole()), Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})

	steps := []string{}
	rec := diagnostics.NewRecorder()
	reply, err := uc.model.Invoke(diagnostics.WithRecorder(ctx, rec), messages, uc.registry, func(fc llm.FunctionCall) {
		steps = append(steps, FunctionCallStep(fc))
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer, "model invocation failed")
	}

	if uc.history != nil {
		err := uc.history.Append(ctx, threadID,
			types.ChatMessage{Role: types.RoleUser, Content: req.Message},
			types.ChatMessage{Role: types.RoleAssistant, Content: reply.Content},
		)
		if err != nil {
			log.Warn("failed to save history", zap.Error(err))
		}
	}

	result := types.NewRequestResult()
	result.Content = reply.Content
	result.ExecutionDiagnostics = rec.Diagnostics()
	result.IntermediateSteps = steps
	result.ThreadID = &threadID

	log.Info("weather agent turn completed",
		zap.Int("history", len(history)),
		zap.Int("steps", len(steps)),
	)
	return result, nil
}

func (uc *WeatherUseCase) systemPrompt() (openai.ChatCompletionMessage, error) {
	text, err := uc.prompts.Read(prompts.WeatherSystemPrompt)
	if err != nil {
		return openai.ChatCompletionMessage{}, apperrors.Wrap(err, apperrors.ErrConfiguration, "read weather system prompt")
	}
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: text}, nil
}

// trimHistory keeps the newest messages that fit the token budget left
// after the system prompt and the new message.
func (uc *WeatherUseCase) trimHistory(system, message string, history []types.ChatMessage) []types.ChatMessage {
	if uc.config.MaxHistoryTokens <= 0 || uc.tokens == nil || len(history) == 0 {
		return history
	}

	budget := uc.config.MaxHistoryTokens - uc.tokens.Count(system) - uc.tokens.Count(message)
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		n := uc.tokens.Count(history[i].Content)
		if n > budget {
			break
		}
		budget -= n
		start = i
	}
	return history[start:]
}

package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-gateway/internal/agent/diagnostics"
	"github.com/lk2023060901/agent-gateway/internal/agent/llm"
	"github.com/lk2023060901/agent-gateway/internal/agent/tools"
	"github.com/lk2023060901/agent-gateway/internal/agent/types"
	apperrors "github.com/lk2023060901/agent-gateway/internal/pkg/errors"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
)

// ChatConfig identifies the hosted agent used by the chat route.
type ChatConfig struct {
	AgentID           string
	VectorStorePrefix string
}

// ChatUseCase runs one turn of a hosted-agent conversation
type ChatUseCase struct {
	platform AgentPlatform
	blob     BlobStore
	registry *tools.Registry
	config   ChatConfig
	logger   *logger.Logger
}

// NewChatUseCase creates a chat use case. blob may be nil, in which case
// file attachments are skipped with a warning.
func NewChatUseCase(platform AgentPlatform, blob BlobStore, registry *tools.Registry, cfg ChatConfig, log *logger.Logger) *ChatUseCase {
	if cfg.VectorStorePrefix == "" {
		cfg.VectorStorePrefix = "chat"
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ChatUseCase{
		platform: platform,
		blob:     blob,
		registry: registry,
		config:   cfg,
		logger:   log.Named("chat"),
	}
}

// FunctionCallStep renders a function call as an intermediate step line.
func FunctionCallStep(fc llm.FunctionCall) string {
	return fmt.Sprintf("Function Call: %s with arguments: %s", fc.Name, fc.Arguments)
}

// RunChat sends req to the agent and aggregates the streamed answer.
func (uc *ChatUseCase) RunChat(ctx context.Context, req *types.ChatThreadRequest) (*types.RequestResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if uc.config.AgentID == "" {
		return nil, apperrors.NewConfigurationError("AZURE_AI_AGENT_ID")
	}

	threadID := req.Thread()
	if threadID != "" {
		ctx = logger.WithThreadID(ctx, threadID)
	}

	if name := req.FileName(); name != "" {
		attached, err := uc.attachFile(ctx, threadID, name)
		if err != nil {
			uc.logger.WithContext(ctx).Warn("continuing without attachment",
				zap.String("file", name),
				zap.Error(err),
			)
		}
		if threadID == "" && attached != "" {
			threadID = attached
			ctx = logger.WithThreadID(ctx, threadID)
		}
	}

	if threadID == "" {
		id, err := uc.platform.CreateThread(ctx, nil)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrThread, "create thread")
		}
		threadID = id
		ctx = logger.WithThreadID(ctx, threadID)
	}

	rec := diagnostics.NewRecorder()
	ctx = diagnostics.WithRecorder(ctx, rec)

	steps := []string{}
	run := RunRequest{
		ThreadID: threadID,
		AgentID:  uc.config.AgentID,
		Message:  req.Message,
		Tools:    uc.registry,
		OnFunctionCall: func(fc llm.FunctionCall) {
			steps = append(steps, FunctionCallStep(fc))
		},
	}

	agg := newAggregator(threadID)
	for chunk, err := range uc.platform.StreamRun(ctx, run) {
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrStreaming)
		}
		if err := agg.add(chunk); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrStreaming)
		}
	}

	result := agg.result()
	result.IntermediateSteps = steps
	result.ExecutionDiagnostics = rec.Diagnostics()

	uc.logger.WithContext(ctx).Info("chat turn completed",
		zap.Int("content_length", len(result.Content)),
		zap.Int("steps", len(steps)),
		zap.Int("sources", len(result.Sources)),
		zap.Int("files", len(result.Files)),
	)
	return result, nil
}

// attachFile makes the named blob searchable by the agent. When threadID is
// empty the file gets a new vector store and a thread bound to it, whose id
// is returned.
func (uc *ChatUseCase) attachFile(ctx context.Context, threadID, name string) (string, error) {
	if uc.blob == nil {
		return "", apperrors.New(apperrors.ErrFileAttachment, "blob storage is not configured")
	}

	data, err := uc.blob.Download(ctx, name)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrFileAttachment, "download %s", name)
	}
	fileID, err := uc.platform.UploadFile(ctx, name, data)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrFileAttachment, "upload %s", name)
	}

	if threadID == "" {
		vsID, err := uc.platform.CreateVectorStore(ctx, uc.vectorStoreName(), []string{fileID})
		if err != nil {
			return "", apperrors.Wrapf(err, apperrors.ErrFileAttachment, "index %s", name)
		}
		id, err := uc.platform.CreateThread(ctx, []string{vsID})
		if err != nil {
			return "", apperrors.Wrapf(err, apperrors.ErrFileAttachment, "create thread for %s", name)
		}
		return id, nil
	}

	stores, err := uc.platform.ThreadVectorStores(ctx, threadID)
	if err != nil {
		uc.logger.WithContext(ctx).Warn("could not read thread vector stores",
			zap.String("thread_id", threadID), zap.Error(err))
		stores = nil
	}
	if len(stores) > 0 {
		if err := uc.platform.AddVectorStoreFile(ctx, stores[0], fileID); err != nil {
			return "", apperrors.Wrapf(err, apperrors.ErrFileAttachment, "index %s", name)
		}
		return threadID, nil
	}

	vsID, err := uc.platform.CreateVectorStore(ctx, uc.vectorStoreName(), []string{fileID})
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrFileAttachment, "index %s", name)
	}
	if err := uc.platform.SetThreadVectorStores(ctx, threadID, []string{vsID}); err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrFileAttachment, "bind vector store to %s", threadID)
	}
	return threadID, nil
}

func (uc *ChatUseCase) vectorStoreName() string {
	return uc.config.VectorStorePrefix + "_vs_" + uuid.NewString()
}

// aggregator folds chunks into a result in arrival order.
type aggregator struct {
	content  strings.Builder
	code     strings.Builder
	sources  []types.Source
	files    []types.FileReference
	threadID string
}

func newAggregator(threadID string) *aggregator {
	return &aggregator{
		sources:  []types.Source{},
		files:    []types.FileReference{},
		threadID: threadID,
	}
}

func (a *aggregator) add(chunk types.Chunk) error {
	switch c := chunk.(type) {
	case types.TextChunk:
		a.content.WriteString(c.Text)
	case types.CodeChunk:
		a.code.WriteString(c.Code)
	case types.AnnotationChunk:
		a.sources = append(a.sources, c.Source)
	case types.FileChunk:
		a.files = append(a.files, c.File)
	default:
		return &types.UnknownChunkError{Chunk: chunk}
	}
	if id := chunk.Thread(); id != "" {
		a.threadID = id
	}
	return nil
}

func (a *aggregator) result() *types.RequestResult {
	r := types.NewRequestResult()
	r.Content = a.content.String()
	r.CodeContent = strings.TrimSpace(a.code.String())
	r.Sources = a.sources
	r.Files = a.files
	threadID := a.threadID
	r.ThreadID = &threadID
	return r
}

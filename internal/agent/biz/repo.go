package biz

import (
	"context"
	"iter"

	"github.com/sashabaranov/go-openai"

	"github.com/lk2023060901/agent-gateway/internal/agent/llm"
	"github.com/lk2023060901/agent-gateway/internal/agent/tools"
	"github.com/lk2023060901/agent-gateway/internal/agent/types"
)

// RunRequest starts one streamed agent run on a thread.
type RunRequest struct {
	ThreadID string
	AgentID  string
	Message  string
	// Tools serves function calls the run asks for.
	Tools *tools.Registry
	// OnFunctionCall sees every function call and every completed
	// code_interpreter or file_search step, in order.
	OnFunctionCall llm.OnFunctionCall
}

// AgentPlatform is the hosted agent runtime: threads, files, vector
// stores and streamed runs.
type AgentPlatform interface {
	CreateThread(ctx context.Context, vectorStoreIDs []string) (string, error)
	// ThreadVectorStores lists the file_search vector stores bound to a thread.
	ThreadVectorStores(ctx context.Context, threadID string) ([]string, error)
	SetThreadVectorStores(ctx context.Context, threadID string, vectorStoreIDs []string) error

	UploadFile(ctx context.Context, name string, data []byte) (string, error)
	// CreateVectorStore returns once the files are indexed.
	CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error)
	// AddVectorStoreFile returns once the file is indexed.
	AddVectorStoreFile(ctx context.Context, vectorStoreID, fileID string) error

	StreamRun(ctx context.Context, req RunRequest) iter.Seq2[types.Chunk, error]
}

// BlobStore downloads user uploads.
type BlobStore interface {
	Download(ctx context.Context, name string) ([]byte, error)
}

// HistoryStore keeps the conversation of weather-agent threads.
type HistoryStore interface {
	Load(ctx context.Context, threadID string) ([]types.ChatMessage, error)
	Append(ctx context.Context, threadID string, messages ...types.ChatMessage) error
}

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	Count(text string) int
}

// Model is the chat-completions kernel.
type Model interface {
	Invoke(ctx context.Context, messages []openai.ChatCompletionMessage, registry *tools.Registry, onCall llm.OnFunctionCall) (openai.ChatCompletionMessage, error)
}

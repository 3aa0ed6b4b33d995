package biz

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/lk2023060901/agent-gateway/internal/agent/llm"
	"github.com/lk2023060901/agent-gateway/internal/agent/tools"
	"github.com/lk2023060901/agent-gateway/internal/agent/types"
)

// mockPlatform replays a fixed chunk sequence and counts calls.
type mockPlatform struct {
	mu    sync.Mutex
	calls map[string]int

	chunks       []types.Chunk
	streamErr    error
	invoke       []llm.FunctionCall
	stores       []string
	storesErr    error
	cancel       context.CancelFunc
	uploadErr    error
	lastRun      RunRequest
	boundStores  []string
	threadStores []string
}

func newMockPlatform(chunks ...types.Chunk) *mockPlatform {
	return &mockPlatform{calls: map[string]int{}, chunks: chunks}
}

func (m *mockPlatform) count(name string) {
	m.mu.Lock()
	m.calls[name]++
	m.mu.Unlock()
}

func (m *mockPlatform) total() int {
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockPlatform) CreateThread(_ context.Context, vectorStoreIDs []string) (string, error) {
	m.count("CreateThread")
	m.threadStores = vectorStoreIDs
	return "thread_new", nil
}

func (m *mockPlatform) ThreadVectorStores(context.Context, string) ([]string, error) {
	m.count("ThreadVectorStores")
	return m.stores, m.storesErr
}

func (m *mockPlatform) SetThreadVectorStores(_ context.Context, _ string, ids []string) error {
	m.count("SetThreadVectorStores")
	m.boundStores = ids
	return nil
}

func (m *mockPlatform) UploadFile(context.Context, string, []byte) (string, error) {
	m.count("UploadFile")
	return "file-1", m.uploadErr
}

func (m *mockPlatform) CreateVectorStore(context.Context, string, []string) (string, error) {
	m.count("CreateVectorStore")
	return "vs_new", nil
}

func (m *mockPlatform) AddVectorStoreFile(context.Context, string, string) error {
	m.count("AddVectorStoreFile")
	return nil
}

func (m *mockPlatform) StreamRun(ctx context.Context, req RunRequest) iter.Seq2[types.Chunk, error] {
	m.count("StreamRun")
	m.lastRun = req
	return func(yield func(types.Chunk, error) bool) {
		for _, fc := range m.invoke {
			if req.OnFunctionCall != nil {
				req.OnFunctionCall(fc)
			}
			_, _ = req.Tools.Invoke(ctx, fc.Name, []byte(fc.Arguments))
		}
		for _, c := range m.chunks {
			if !yield(c, nil) {
				return
			}
			if m.cancel != nil {
				m.cancel()
				yield(nil, ctx.Err())
				return
			}
		}
		if m.streamErr != nil {
			yield(nil, m.streamErr)
		}
	}
}

type mockBlob struct {
	data []byte
	err  error
}

func (b mockBlob) Download(context.Context, string) ([]byte, error) {
	return b.data, b.err
}

// mockModel calls each scripted tool through the registry, then answers.
type mockModel struct {
	calls    []llm.FunctionCall
	reply    string
	err      error
	messages []openai.ChatCompletionMessage
}

func (m *mockModel) Invoke(ctx context.Context, messages []openai.ChatCompletionMessage, registry *tools.Registry, onCall llm.OnFunctionCall) (openai.ChatCompletionMessage, error) {
	m.messages = messages
	if m.err != nil {
		return openai.ChatCompletionMessage{}, m.err
	}
	for _, fc := range m.calls {
		if onCall != nil {
			onCall(fc)
		}
		_, _ = registry.Invoke(ctx, fc.Name, []byte(fc.Arguments))
	}
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.reply}, nil
}

type mockPrompts map[string]string

func (p mockPrompts) Read(name string) (string, error) {
	text, ok := p[name]
	if !ok {
		return "", errors.New("not mapped")
	}
	return text, nil
}

type mockHistory struct {
	loaded  map[string][]types.ChatMessage
	saved   map[string][]types.ChatMessage
	loadErr error
}

func newMockHistory() *mockHistory {
	return &mockHistory{loaded: map[string][]types.ChatMessage{}, saved: map[string][]types.ChatMessage{}}
}

func (h *mockHistory) Load(_ context.Context, threadID string) ([]types.ChatMessage, error) {
	return h.loaded[threadID], h.loadErr
}

func (h *mockHistory) Append(_ context.Context, threadID string, messages ...types.ChatMessage) error {
	h.saved[threadID] = append(h.saved[threadID], messages...)
	return nil
}

// byteCounter counts one token per byte.
type byteCounter struct{}

func (byteCounter) Count(text string) int { return len(text) }

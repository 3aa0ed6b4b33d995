package data

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-gateway/internal/agent/biz"
	"github.com/lk2023060901/agent-gateway/internal/agent/llm"
	"github.com/lk2023060901/agent-gateway/internal/agent/types"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
)

const (
	vectorStoreCompleted = "completed"
	vectorStoreFailed    = "failed"
	vectorStoreCancelled = "cancelled"
)

// ErrIndexingFailed is returned when the platform could not index a file.
var ErrIndexingFailed = errors.New("vector store indexing failed")

// AssistantsClient is the subset of the go-openai client used for threads,
// files and vector stores.
type AssistantsClient interface {
	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	RetrieveThread(ctx context.Context, threadID string) (openai.Thread, error)
	ModifyThread(ctx context.Context, threadID string, request openai.ModifyThreadRequest) (openai.Thread, error)
	CreateFileBytes(ctx context.Context, request openai.FileBytesRequest) (openai.File, error)
	CreateVectorStore(ctx context.Context, request openai.VectorStoreRequest) (openai.VectorStore, error)
	RetrieveVectorStore(ctx context.Context, vectorStoreID string) (openai.VectorStore, error)
	CreateVectorStoreFile(ctx context.Context, vectorStoreID string, request openai.VectorStoreFileRequest) (openai.VectorStoreFile, error)
	RetrieveVectorStoreFile(ctx context.Context, vectorStoreID, fileID string) (openai.VectorStoreFile, error)
}

// PlatformConfig tunes polling while files are indexed.
type PlatformConfig struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Platform implements biz.AgentPlatform on the Assistants v2 API.
type Platform struct {
	client   AssistantsClient
	streamer *RunStreamer
	config   PlatformConfig
	logger   *logger.Logger
}

var _ biz.AgentPlatform = (*Platform)(nil)

// NewPlatform wires the go-openai client for resource calls and a raw
// streaming client for runs.
func NewPlatform(client AssistantsClient, streamer *RunStreamer, cfg PlatformConfig, log *logger.Logger) *Platform {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Minute
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Platform{
		client:   client,
		streamer: streamer,
		config:   cfg,
		logger:   log.Named("platform"),
	}
}

// NewAgentPlatform builds a Platform for the agent endpoint described by cfg.
func NewAgentPlatform(cfg llm.Config, httpClient *http.Client, pc PlatformConfig, log *logger.Logger) (*Platform, error) {
	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewPlatform(client, NewRunStreamer(cfg, httpClient, log), pc, log), nil
}

func (p *Platform) CreateThread(ctx context.Context, vectorStoreIDs []string) (string, error) {
	req := openai.ThreadRequest{}
	if len(vectorStoreIDs) > 0 {
		req.ToolResources = &openai.ToolResourcesRequest{
			FileSearch: &openai.FileSearchToolResourcesRequest{VectorStoreIDs: vectorStoreIDs},
		}
	}

	thread, err := p.client.CreateThread(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}

	p.logger.WithContext(ctx).Info("thread created",
		zap.String("thread_id", thread.ID),
		zap.Strings("vector_store_ids", vectorStoreIDs),
	)
	return thread.ID, nil
}

func (p *Platform) ThreadVectorStores(ctx context.Context, threadID string) ([]string, error) {
	thread, err := p.client.RetrieveThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("retrieve thread %s: %w", threadID, err)
	}
	if thread.ToolResources.FileSearch == nil {
		return nil, nil
	}
	return thread.ToolResources.FileSearch.VectorStoreIDs, nil
}

func (p *Platform) SetThreadVectorStores(ctx context.Context, threadID string, vectorStoreIDs []string) error {
	_, err := p.client.ModifyThread(ctx, threadID, openai.ModifyThreadRequest{
		ToolResources: &openai.ToolResources{
			FileSearch: &openai.FileSearchToolResources{VectorStoreIDs: vectorStoreIDs},
		},
	})
	if err != nil {
		return fmt.Errorf("modify thread %s: %w", threadID, err)
	}
	return nil
}

func (p *Platform) UploadFile(ctx context.Context, name string, data []byte) (string, error) {
	file, err := p.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    name,
		Bytes:   data,
		Purpose: openai.PurposeAssistants,
	})
	if err != nil {
		return "", fmt.Errorf("upload file %s: %w", name, err)
	}

	p.logger.WithContext(ctx).Info("file uploaded",
		zap.String("name", name),
		zap.String("file_id", file.ID),
		zap.Int("size", len(data)),
	)
	return file.ID, nil
}

func (p *Platform) CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error) {
	vs, err := p.client.CreateVectorStore(ctx, openai.VectorStoreRequest{
		Name:    name,
		FileIDs: fileIDs,
	})
	if err != nil {
		return "", fmt.Errorf("create vector store %s: %w", name, err)
	}

	err = p.poll(ctx, func(ctx context.Context) (bool, error) {
		vs, err := p.client.RetrieveVectorStore(ctx, vs.ID)
		if err != nil {
			return false, err
		}
		if vs.FileCounts.Failed > 0 {
			return false, fmt.Errorf("%w: %d file(s) in %s", ErrIndexingFailed, vs.FileCounts.Failed, vs.ID)
		}
		return vs.FileCounts.InProgress == 0 && vs.Status == vectorStoreCompleted, nil
	})
	if err != nil {
		return "", fmt.Errorf("wait for vector store %s: %w", vs.ID, err)
	}

	p.logger.WithContext(ctx).Info("vector store created",
		zap.String("vector_store_id", vs.ID),
		zap.String("name", name),
	)
	return vs.ID, nil
}

func (p *Platform) AddVectorStoreFile(ctx context.Context, vectorStoreID, fileID string) error {
	if _, err := p.client.CreateVectorStoreFile(ctx, vectorStoreID, openai.VectorStoreFileRequest{FileID: fileID}); err != nil {
		return fmt.Errorf("add file %s to vector store %s: %w", fileID, vectorStoreID, err)
	}

	err := p.poll(ctx, func(ctx context.Context) (bool, error) {
		f, err := p.client.RetrieveVectorStoreFile(ctx, vectorStoreID, fileID)
		if err != nil {
			return false, err
		}
		switch f.Status {
		case vectorStoreCompleted:
			return true, nil
		case vectorStoreFailed, vectorStoreCancelled:
			return false, fmt.Errorf("%w: file %s is %s", ErrIndexingFailed, fileID, f.Status)
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("wait for file %s in vector store %s: %w", fileID, vectorStoreID, err)
	}
	return nil
}

func (p *Platform) StreamRun(ctx context.Context, req biz.RunRequest) iter.Seq2[types.Chunk, error] {
	return p.streamer.Stream(ctx, req)
}

// poll calls check until it reports done, fails, or PollTimeout elapses.
func (p *Platform) poll(ctx context.Context, check func(context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.PollTimeout)
	defer cancel()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

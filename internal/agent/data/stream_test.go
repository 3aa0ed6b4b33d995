package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/agent-gateway/internal/agent/biz"
	"github.com/lk2023060901/agent-gateway/internal/agent/llm"
	"github.com/lk2023060901/agent-gateway/internal/agent/tools"
	"github.com/lk2023060901/agent-gateway/internal/agent/types"
)

type sseEvent struct {
	name string
	data string
}

func writeEvents(w http.ResponseWriter, events ...sseEvent) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, e := range events {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.name, e.data)
	}
}

type recordedRequest struct {
	path   string
	query  string
	header http.Header
	body   map[string]any
}

// fakeRuns serves the create-run and submit-tool-outputs endpoints.
type fakeRuns struct {
	mu       sync.Mutex
	requests []recordedRequest
	run      []sseEvent
	submit   []sseEvent
	status   int
}

func (f *fakeRuns) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{path: r.URL.Path, query: r.URL.RawQuery, header: r.Header.Clone(), body: body})
	f.mu.Unlock()

	if f.status != 0 {
		http.Error(w, `{"error":{"message":"no such assistant"}}`, f.status)
		return
	}
	if strings.HasSuffix(r.URL.Path, "/submit_tool_outputs") {
		writeEvents(w, f.submit...)
		return
	}
	writeEvents(w, f.run...)
}

func newTestStreamer(t *testing.T, f *fakeRuns, cfg llm.Config) *RunStreamer {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	cfg.Endpoint = srv.URL
	return NewRunStreamer(cfg, srv.Client(), nil)
}

func collect(seq func(func(types.Chunk, error) bool)) ([]types.Chunk, error) {
	var chunks []types.Chunk
	for c, err := range seq {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

const (
	runCreated   = `{"id":"run_1","object":"thread.run","thread_id":"thread_1","status":"queued"}`
	runCompleted = `{"id":"run_1","object":"thread.run","thread_id":"thread_1","status":"completed"}`
)

func TestStreamRoutesDeltas(t *testing.T) {
	f := &fakeRuns{run: []sseEvent{
		{eventRunCreated, runCreated},
		{eventMessageDelta, `{"id":"msg_1","delta":{"content":[{"index":0,"type":"text","text":{"value":"Hello"}}]}}`},
		{eventStepDelta, `{"id":"step_1","delta":{"step_details":{"type":"tool_calls","tool_calls":[{"index":0,"type":"code_interpreter","code_interpreter":{"input":"print(1)","outputs":[{"index":0,"type":"image","image":{"file_id":"file-img"}}]}}]}}}`},
		{eventMessageDelta, `{"id":"msg_1","delta":{"content":[{"index":0,"type":"text","text":{"value":" see【4:0†source】","annotations":[` +
			`{"index":0,"type":"file_citation","text":"【4:0†source】","start_index":4,"end_index":16,"file_citation":{"file_id":"file-doc"}},` +
			`{"index":1,"type":"file_path","text":"sandbox:/mnt/data/out.csv","start_index":20,"end_index":40,"file_path":{"file_id":"file-csv"}}]}},` +
			`{"index":1,"type":"image_file","image_file":{"file_id":"file-png"}}]}}`},
		{eventRunCompleted, runCompleted},
		{"done", "[DONE]"},
	}}
	s := newTestStreamer(t, f, llm.Config{APIKey: "secret"})

	chunks, err := collect(s.Stream(context.Background(), biz.RunRequest{ThreadID: "thread_1", AgentID: "asst_1", Message: "hi"}))
	require.NoError(t, err)

	quote := "【4:0†source】"
	start, end := 4, 16
	assert.Equal(t, []types.Chunk{
		types.TextChunk{ThreadID: "thread_1", Text: "Hello"},
		types.CodeChunk{ThreadID: "thread_1", Code: "print(1)"},
		types.FileChunk{ThreadID: "thread_1", File: types.FileReference{ID: "file-img"}},
		types.TextChunk{ThreadID: "thread_1", Text: " see【4:0†source】"},
		types.AnnotationChunk{ThreadID: "thread_1", Source: types.Source{Title: "file-doc", Quote: &quote, StartIndex: &start, EndIndex: &end}},
		types.FileChunk{ThreadID: "thread_1", File: types.FileReference{ID: "file-csv"}},
		types.FileChunk{ThreadID: "thread_1", File: types.FileReference{ID: "file-png"}},
	}, chunks)

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Equal(t, "/openai/threads/thread_1/runs", req.path)
	assert.Equal(t, "api-version="+llm.DefaultAPIVersion, req.query)
	assert.Equal(t, "secret", req.header.Get("api-key"))
	assert.Equal(t, "assistants=v2", req.header.Get("OpenAI-Beta"))
	assert.Equal(t, "asst_1", req.body["assistant_id"])
	assert.Equal(t, true, req.body["stream"])
	assert.Equal(t, []any{map[string]any{"role": "user", "content": "hi"}}, req.body["additional_messages"])
}

func TestStreamRequiresActionSubmitsToolOutputs(t *testing.T) {
	f := &fakeRuns{
		run: []sseEvent{
			{eventRunCreated, runCreated},
			{eventRequiresAction, `{"id":"run_1","thread_id":"thread_1","status":"requires_action","required_action":{"type":"submit_tool_outputs","submit_tool_outputs":{"tool_calls":[` +
				`{"id":"call_1","type":"function","function":{"name":"echo","arguments":"{\"v\":1}"}},` +
				`{"id":"call_2","type":"function","function":{"name":"missing","arguments":"{}"}}]}}}`},
		},
		submit: []sseEvent{
			{eventStepCompleted, `{"id":"step_2","type":"tool_calls","step_details":{"type":"tool_calls","tool_calls":[{"id":"call_3","type":"file_search","file_search":{}},{"id":"call_4","type":"function","function":{"name":"echo"}}]}}`},
			{eventMessageDelta, `{"id":"msg_2","delta":{"content":[{"index":0,"type":"text","text":{"value":"done"}}]}}`},
			{eventRunCompleted, runCompleted},
		},
	}
	s := newTestStreamer(t, f, llm.Config{Provider: llm.ProviderOpenAI, APIKey: "k"})

	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.FuncTool{
		Def: tools.Definition{Name: "echo"},
		Fn: func(_ context.Context, args json.RawMessage) (string, error) {
			return "echo:" + string(args), nil
		},
	}))

	var calls []string
	chunks, err := collect(s.Stream(context.Background(), biz.RunRequest{
		ThreadID: "thread_1",
		AgentID:  "asst_1",
		Message:  "hi",
		Tools:    reg,
		OnFunctionCall: func(fc llm.FunctionCall) {
			calls = append(calls, fc.Name+" "+fc.Arguments)
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, []types.Chunk{types.TextChunk{ThreadID: "thread_1", Text: "done"}}, chunks)
	assert.Equal(t, []string{`echo {"v":1}`, "missing {}", "file_search {}"}, calls)

	require.Len(t, f.requests, 2)
	submit := f.requests[1]
	assert.Equal(t, "/threads/thread_1/runs/run_1/submit_tool_outputs", submit.path)
	assert.Equal(t, "Bearer k", submit.header.Get("Authorization"))
	assert.Equal(t, true, submit.body["stream"])

	outputs := submit.body["tool_outputs"].([]any)
	require.Len(t, outputs, 2)
	assert.Equal(t, map[string]any{"tool_call_id": "call_1", "output": `echo:{"v":1}`}, outputs[0])
	second := outputs[1].(map[string]any)
	assert.Equal(t, "call_2", second["tool_call_id"])
	assert.True(t, strings.HasPrefix(second["output"].(string), "Error: "))
}

func TestStreamRequiresActionWithoutFunctionCalls(t *testing.T) {
	f := &fakeRuns{
		run: []sseEvent{
			{eventRunCreated, runCreated},
			{eventRequiresAction, `{"id":"run_1","thread_id":"thread_1","status":"requires_action","required_action":{"type":"submit_tool_outputs","submit_tool_outputs":{"tool_calls":[` +
				`{"id":"call_1","type":"file_search","file_search":{}}]}}}`},
		},
		submit: []sseEvent{
			{eventRunCompleted, runCompleted},
		},
	}
	s := newTestStreamer(t, f, llm.Config{Provider: llm.ProviderOpenAI, APIKey: "k"})

	_, err := collect(s.Stream(context.Background(), biz.RunRequest{
		ThreadID: "thread_1",
		AgentID:  "asst_1",
		Message:  "hi",
		Tools:    tools.NewRegistry(),
	}))
	require.NoError(t, err)

	require.Len(t, f.requests, 2)
	outputs, ok := f.requests[1].body["tool_outputs"].([]any)
	require.True(t, ok)
	assert.Empty(t, outputs)
}

func TestStreamFailures(t *testing.T) {
	tests := []struct {
		name   string
		events []sseEvent
		check  func(t *testing.T, err error)
	}{
		{
			name:   "truncated stream",
			events: []sseEvent{{eventRunCreated, runCreated}, {eventMessageDelta, `{"delta":{"content":[{"type":"text","text":{"value":"par"}}]}}`}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrRunIncomplete)
			},
		},
		{
			name:   "failed run",
			events: []sseEvent{{eventRunFailed, `{"id":"run_1","status":"failed","last_error":{"code":"rate_limit_exceeded","message":"slow down"}}`}},
			check: func(t *testing.T, err error) {
				var rf *RunFailedError
				require.True(t, errors.As(err, &rf))
				assert.Equal(t, "failed", rf.Status)
				assert.Equal(t, "rate_limit_exceeded", rf.Code)
			},
		},
		{
			name:   "error event",
			events: []sseEvent{{eventError, `{"error":{"message":"server_error"}}`}},
			check: func(t *testing.T, err error) {
				var rf *RunFailedError
				require.True(t, errors.As(err, &rf))
				assert.Equal(t, "server_error", rf.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStreamer(t, &fakeRuns{run: tt.events}, llm.Config{APIKey: "k"})
			_, err := collect(s.Stream(context.Background(), biz.RunRequest{ThreadID: "thread_1"}))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestStreamHTTPError(t *testing.T) {
	s := newTestStreamer(t, &fakeRuns{status: http.StatusNotFound}, llm.Config{APIKey: "k"})
	_, err := collect(s.Stream(context.Background(), biz.RunRequest{ThreadID: "thread_1"}))

	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusNotFound, he.StatusCode)
}

func TestStreamConsumerStops(t *testing.T) {
	f := &fakeRuns{run: []sseEvent{
		{eventMessageDelta, `{"delta":{"content":[{"type":"text","text":{"value":"a"}}]}}`},
		{eventMessageDelta, `{"delta":{"content":[{"type":"text","text":{"value":"b"}}]}}`},
	}}
	s := newTestStreamer(t, f, llm.Config{APIKey: "k"})

	n := 0
	for _, err := range s.Stream(context.Background(), biz.RunRequest{ThreadID: "thread_1"}) {
		require.NoError(t, err)
		n++
		break
	}
	assert.Equal(t, 1, n)
}

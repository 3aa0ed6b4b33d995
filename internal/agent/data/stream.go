package data

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tmaxmax/go-sse"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-gateway/internal/agent/biz"
	"github.com/lk2023060901/agent-gateway/internal/agent/llm"
	"github.com/lk2023060901/agent-gateway/internal/agent/types"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
)

// Assistants v2 run stream events.
const (
	eventRunCreated     = "thread.run.created"
	eventMessageDelta   = "thread.message.delta"
	eventStepDelta      = "thread.run.step.delta"
	eventStepCompleted  = "thread.run.step.completed"
	eventRequiresAction = "thread.run.requires_action"
	eventRunCompleted   = "thread.run.completed"
	eventRunFailed      = "thread.run.failed"
	eventRunCancelled   = "thread.run.cancelled"
	eventRunExpired     = "thread.run.expired"
	eventRunIncomplete  = "thread.run.incomplete"
	eventError          = "error"
)

const (
	toolCodeInterpreter = "code_interpreter"
	toolFileSearch      = "file_search"
	toolFunction        = "function"

	maxEventSize = 4 << 20
	maxErrorBody = 1024
)

// ErrRunIncomplete is returned when the stream ends before the run completes.
var ErrRunIncomplete = errors.New("run stream ended before thread.run.completed")

// RunFailedError reports a run that ended in a terminal state other than
// completed.
type RunFailedError struct {
	Status  string
	Code    string
	Message string
}

func (e *RunFailedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("run %s: %s: %s", e.Status, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("run %s: %s", e.Status, e.Message)
	}
	return "run " + e.Status
}

// HTTPError reports a non-2xx response from the runs endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("runs endpoint returned HTTP %d: %s", e.StatusCode, e.Body)
}

// RunStreamer starts runs with stream=true and turns the event stream
// into chunks. go-openai has no run streaming, so this talks HTTP directly.
type RunStreamer struct {
	config llm.Config
	http   *http.Client
	logger *logger.Logger
}

func NewRunStreamer(cfg llm.Config, httpClient *http.Client, log *logger.Logger) *RunStreamer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RunStreamer{config: cfg, http: httpClient, logger: log.Named("run_stream")}
}

type runState struct {
	threadID  string
	runID     string
	completed bool
}

// Stream starts a run and yields its chunks in arrival order. Function
// calls requested by the run are served from req.Tools and submitted back
// on a new stream. The sequence ends with an error unless the run completed.
func (s *RunStreamer) Stream(ctx context.Context, req biz.RunRequest) iter.Seq2[types.Chunk, error] {
	return func(yield func(types.Chunk, error) bool) {
		body, err := s.post(ctx, s.url("threads", req.ThreadID, "runs"), map[string]any{
			"assistant_id": req.AgentID,
			"stream":       true,
			"additional_messages": []map[string]string{
				{"role": "user", "content": req.Message},
			},
		})
		if err != nil {
			yield(nil, err)
			return
		}

		st := &runState{threadID: req.ThreadID}
		for body != nil {
			next, stopped, err := s.consume(ctx, body, st, req, yield)
			body.Close()
			if stopped {
				if next != nil {
					next.Close()
				}
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			body = next
		}

		if !st.completed {
			yield(nil, ErrRunIncomplete)
		}
	}
}

// consume reads one event stream. It returns the continuation stream after
// tool outputs were submitted, or stopped=true when the consumer quit.
func (s *RunStreamer) consume(ctx context.Context, body io.Reader, st *runState, req biz.RunRequest, yield func(types.Chunk, error) bool) (io.ReadCloser, bool, error) {
	log := s.logger.WithContext(ctx)

	for ev, err := range sse.Read(body, &sse.ReadConfig{MaxEventSize: maxEventSize}) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, false, ctxErr
			}
			return nil, false, fmt.Errorf("read run stream: %w", err)
		}

		log.Debug("run event", zap.String("event", ev.Type))

		switch ev.Type {
		case eventRunCreated:
			if tid := gjson.Get(ev.Data, "thread_id").String(); tid != "" {
				st.threadID = tid
			}
			st.runID = gjson.Get(ev.Data, "id").String()

		case eventMessageDelta:
			for _, c := range messageDeltaChunks(st.threadID, ev.Data) {
				if !yield(c, nil) {
					return nil, true, nil
				}
			}

		case eventStepDelta:
			for _, c := range stepDeltaChunks(st.threadID, ev.Data) {
				if !yield(c, nil) {
					return nil, true, nil
				}
			}

		case eventStepCompleted:
			reportCompletedStep(ev.Data, req.OnFunctionCall)

		case eventRequiresAction:
			next, err := s.submitToolOutputs(ctx, st, ev.Data, req)
			return next, false, err

		case eventRunCompleted:
			st.completed = true
			return nil, false, nil

		case eventRunFailed, eventRunCancelled, eventRunExpired, eventRunIncomplete:
			return nil, false, &RunFailedError{
				Status:  strings.TrimPrefix(ev.Type, "thread.run."),
				Code:    gjson.Get(ev.Data, "last_error.code").String(),
				Message: gjson.Get(ev.Data, "last_error.message").String(),
			}

		case eventError:
			msg := gjson.Get(ev.Data, "error.message").String()
			if msg == "" {
				msg = gjson.Get(ev.Data, "message").String()
			}
			if msg == "" {
				msg = ev.Data
			}
			return nil, false, &RunFailedError{Status: "error", Message: msg}
		}
	}
	return nil, false, nil
}

// submitToolOutputs runs every requested function and posts the results,
// returning the continuation stream.
func (s *RunStreamer) submitToolOutputs(ctx context.Context, st *runState, data string, req biz.RunRequest) (io.ReadCloser, error) {
	if id := gjson.Get(data, "id").String(); id != "" {
		st.runID = id
	}
	if tid := gjson.Get(data, "thread_id").String(); tid != "" {
		st.threadID = tid
	}

	type toolOutput struct {
		ToolCallID string `json:"tool_call_id"`
		Output     string `json:"output"`
	}
	outputs := []toolOutput{}

	calls := gjson.Get(data, "required_action.submit_tool_outputs.tool_calls").Array()
	for _, call := range calls {
		if call.Get("type").String() != toolFunction {
			continue
		}
		fc := llm.FunctionCall{
			ID:        call.Get("id").String(),
			Name:      call.Get("function.name").String(),
			Arguments: call.Get("function.arguments").String(),
		}
		if req.OnFunctionCall != nil {
			req.OnFunctionCall(fc)
		}

		out, err := req.Tools.Invoke(ctx, fc.Name, json.RawMessage(fc.Arguments))
		if err != nil {
			s.logger.WithContext(ctx).Warn("tool call failed",
				zap.String("tool", fc.Name),
				zap.String("arguments", fc.Arguments),
				zap.Error(err),
			)
			out = "Error: " + err.Error()
		}
		outputs = append(outputs, toolOutput{ToolCallID: fc.ID, Output: out})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.post(ctx, s.url("threads", st.threadID, "runs", st.runID, "submit_tool_outputs"), map[string]any{
		"tool_outputs": outputs,
		"stream":       true,
	})
}

func messageDeltaChunks(threadID, data string) []types.Chunk {
	var chunks []types.Chunk

	for _, part := range gjson.Get(data, "delta.content").Array() {
		switch part.Get("type").String() {
		case "text":
			if v := part.Get("text.value").String(); v != "" {
				chunks = append(chunks, types.TextChunk{ThreadID: threadID, Text: v})
			}
			for _, a := range part.Get("text.annotations").Array() {
				if c := annotationChunk(threadID, a); c != nil {
					chunks = append(chunks, c)
				}
			}
		case "image_file":
			if id := part.Get("image_file.file_id").String(); id != "" {
				chunks = append(chunks, types.FileChunk{ThreadID: threadID, File: types.FileReference{ID: id}})
			}
		}
	}
	return chunks
}

func annotationChunk(threadID string, a gjson.Result) types.Chunk {
	switch a.Get("type").String() {
	case "file_citation":
		src := types.Source{Title: a.Get("file_citation.file_id").String()}
		if text := a.Get("text").String(); text != "" {
			src.Quote = &text
		}
		setIndexes(&src, a)
		return types.AnnotationChunk{ThreadID: threadID, Source: src}

	case "url_citation":
		u := a.Get("url_citation.url").String()
		src := types.Source{Title: a.Get("url_citation.title").String()}
		if src.Title == "" {
			src.Title = u
		}
		if u != "" {
			src.URL = &u
		}
		setIndexes(&src, a)
		return types.AnnotationChunk{ThreadID: threadID, Source: src}

	case "file_path":
		id := a.Get("file_path.file_id").String()
		if id == "" {
			return nil
		}
		return types.FileChunk{ThreadID: threadID, File: types.FileReference{ID: id}}
	}
	return nil
}

func setIndexes(src *types.Source, a gjson.Result) {
	if v := a.Get("start_index"); v.Exists() {
		i := int(v.Int())
		src.StartIndex = &i
	}
	if v := a.Get("end_index"); v.Exists() {
		i := int(v.Int())
		src.EndIndex = &i
	}
}

func stepDeltaChunks(threadID, data string) []types.Chunk {
	var chunks []types.Chunk

	for _, call := range gjson.Get(data, "delta.step_details.tool_calls").Array() {
		if call.Get("type").String() != toolCodeInterpreter {
			continue
		}
		if input := call.Get("code_interpreter.input").String(); input != "" {
			chunks = append(chunks, types.CodeChunk{ThreadID: threadID, Code: input})
		}
		for _, out := range call.Get("code_interpreter.outputs").Array() {
			if out.Get("type").String() != "image" {
				continue
			}
			if id := out.Get("image.file_id").String(); id != "" {
				chunks = append(chunks, types.FileChunk{ThreadID: threadID, File: types.FileReference{ID: id}})
			}
		}
	}
	return chunks
}

// reportCompletedStep surfaces built-in tool steps. Function steps were
// already reported when the run asked for them.
func reportCompletedStep(data string, onCall llm.OnFunctionCall) {
	if onCall == nil {
		return
	}
	for _, call := range gjson.Get(data, "step_details.tool_calls").Array() {
		switch call.Get("type").String() {
		case toolCodeInterpreter:
			args, _ := json.Marshal(map[string]string{"code": call.Get("code_interpreter.input").String()})
			onCall(llm.FunctionCall{ID: call.Get("id").String(), Name: toolCodeInterpreter, Arguments: string(args)})
		case toolFileSearch:
			onCall(llm.FunctionCall{ID: call.Get("id").String(), Name: toolFileSearch, Arguments: "{}"})
		}
	}
}

func (s *RunStreamer) url(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		escaped[i] = url.PathEscape(seg)
	}
	path := strings.Join(escaped, "/")
	base := strings.TrimRight(s.config.Endpoint, "/")

	if s.config.IsAzure() {
		return fmt.Sprintf("%s/openai/%s?api-version=%s", base, path, url.QueryEscape(s.config.Version()))
	}
	return base + "/" + path
}

func (s *RunStreamer) post(ctx context.Context, target string, payload any) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal run request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create run request: %w", err)
	}
	name, value := s.config.AuthHeader()
	httpReq.Header.Set(name, value)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send run request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return resp.Body, nil
}

// Package diagnostics collects the execution steps of a single turn.
package diagnostics

import (
	"context"
	"sync"
	"time"

	"github.com/lk2023060901/agent-gateway/internal/agent/types"
)

// Recorder is an append-only list of execution steps. A nil *Recorder
// accepts and drops records.
type Recorder struct {
	mu    sync.Mutex
	steps []types.ExecutionStep
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a step with the given boundaries.
func (r *Recorder) Record(name, content string, start, end time.Time) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.steps = append(r.steps, types.ExecutionStep{
		Name:      name,
		Content:   content,
		StartTime: Timestamp(start),
		EndTime:   Timestamp(end),
	})
	r.mu.Unlock()
}

// Len returns the number of recorded steps.
func (r *Recorder) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.steps)
}

// Diagnostics returns a copy of the recorded steps in order.
func (r *Recorder) Diagnostics() types.ExecutionDiagnostics {
	steps := []types.ExecutionStep{}
	if r != nil {
		r.mu.Lock()
		steps = append(steps, r.steps...)
		r.mu.Unlock()
	}
	return types.ExecutionDiagnostics{Steps: steps}
}

// TimeLayout is RFC 3339 with a fixed six-digit fraction, so timestamps
// sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Timestamp formats t with TimeLayout.
func Timestamp(t time.Time) string {
	return t.Format(TimeLayout)
}

type recorderKey struct{}

// WithRecorder scopes r to ctx.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// FromContext returns the turn recorder, or nil when none is attached.
func FromContext(ctx context.Context) *Recorder {
	r, _ := ctx.Value(recorderKey{}).(*Recorder)
	return r
}

package types

// ExecutionStep records one tool invocation. Times are RFC 3339 with
// fractional seconds.
type ExecutionStep struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ExecutionDiagnostics holds the steps of one turn in invocation order
type ExecutionDiagnostics struct {
	Steps []ExecutionStep `json:"steps"`
}

// Source is a citation extracted from the agent output
type Source struct {
	Title      string  `json:"title"`
	Quote      *string `json:"quote,omitempty"`
	URL        *string `json:"url,omitempty"`
	StartIndex *int    `json:"start_index,omitempty"`
	EndIndex   *int    `json:"end_index,omitempty"`
}

// FileReference points at a file the agent produced or cited
type FileReference struct {
	ID  string  `json:"id"`
	URL *string `json:"url,omitempty"`
}

// RequestResult is the response body of every route
type RequestResult struct {
	Content              string               `json:"content"`
	ExecutionDiagnostics ExecutionDiagnostics `json:"execution_diagnostics"`
	IntermediateSteps    []string             `json:"intermediate_steps"`
	Sources              []Source             `json:"sources"`
	Files                []FileReference      `json:"files"`
	ThreadID             *string              `json:"thread_id"`
	CodeContent          string               `json:"code_content"`
}

// NewRequestResult returns a result with empty, non-nil collections so they
// serialize as [] rather than null.
func NewRequestResult() *RequestResult {
	return &RequestResult{
		ExecutionDiagnostics: ExecutionDiagnostics{Steps: []ExecutionStep{}},
		IntermediateSteps:    []string{},
		Sources:              []Source{},
		Files:                []FileReference{},
	}
}

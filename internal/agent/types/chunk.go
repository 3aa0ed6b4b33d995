package types

import "fmt"

// Chunk is one incremental piece of a streamed agent response. The set of
// implementations is closed: TextChunk, CodeChunk, AnnotationChunk and
// FileChunk.
type Chunk interface {
	Thread() string
	isChunk()
}

// TextChunk carries assistant message text
type TextChunk struct {
	ThreadID string
	Text     string
}

// CodeChunk carries code-interpreter input
type CodeChunk struct {
	ThreadID string
	Code     string
}

// AnnotationChunk carries a citation
type AnnotationChunk struct {
	ThreadID string
	Source   Source
}

// FileChunk carries a reference to a generated or cited file
type FileChunk struct {
	ThreadID string
	File     FileReference
}

func (c TextChunk) Thread() string       { return c.ThreadID }
func (c CodeChunk) Thread() string       { return c.ThreadID }
func (c AnnotationChunk) Thread() string { return c.ThreadID }
func (c FileChunk) Thread() string       { return c.ThreadID }

func (TextChunk) isChunk()       {}
func (CodeChunk) isChunk()       {}
func (AnnotationChunk) isChunk() {}
func (FileChunk) isChunk()       {}

// UnknownChunkError is returned by consumers that meet a Chunk they do not
// handle.
type UnknownChunkError struct {
	Chunk Chunk
}

func (e *UnknownChunkError) Error() string {
	return fmt.Sprintf("unknown chunk kind %T", e.Chunk)
}

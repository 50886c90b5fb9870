// Package llmclient implements the LLM client capability (spec §6.2): the
// contract the core consumes to drive an agent turn, plus a deterministic
// fake used throughout the orchestrator's own test suite.
package llmclient

import (
	"context"
)

// ToolCall is one tool invocation the model made during a turn.
type ToolCall struct {
	Name   string
	Input  map[string]any
	Output string
}

// ToolCallHandler is invoked synchronously as each tool call streams in,
// mirroring the source's onToolCall callback.
type ToolCallHandler func(ToolCall)

// StreamRequest carries the per-invocation configuration for one agent turn.
type StreamRequest struct {
	AgentID     string
	MessageID   string
	UserMessage string
	SessionID   string
	OnToolCall  ToolCallHandler
}

// StreamResult holds the completed turn's text and every tool call made
// while producing it. TextStream is nil once the stream has fully drained;
// callers that only need the final text can ignore it.
type StreamResult struct {
	TextStream <-chan string
	Text       string
	ToolCalls  []ToolCall
}

// ClientError is the error shape a Client must surface so transient
// classification upstream (internal/orchestrator.IsTransient) stays
// deterministic: a retryable marker plus, where known, an HTTP-like status.
type ClientError struct {
	Message      string
	RetryableVal bool
	Status       int
	CodeVal      string
}

func (e *ClientError) Error() string { return e.Message }

// Retryable reports whether the orchestrator's transient classifier should
// treat this error as eligible for stage-retry.
func (e *ClientError) Retryable() bool { return e.RetryableVal }

// HTTPStatus returns the HTTP-like status associated with this error, or -1
// if none is known (a zero Status means unknown; the transient classifier
// treats a reported status of 0 as retryable, so unknown is not reported as 0).
func (e *ClientError) HTTPStatus() int {
	if e.Status == 0 {
		return -1
	}
	return e.Status
}

// Code returns the client-level error code (e.g. a socket error name), or
// "" if none is known.
func (e *ClientError) Code() string { return e.CodeVal }

// Client is the capability-level contract for driving one agent turn
// against an LLM backend (spec §6.2).
type Client interface {
	Stream(ctx context.Context, req StreamRequest) (*StreamResult, error)
}

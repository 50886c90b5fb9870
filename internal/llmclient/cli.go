package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/conductor-run/orchestrator/internal/procrunner"
)

// DefaultSystemPrompt tells the model it is a build agent in an autonomous
// pipeline and asks for the requested output only; the JSON envelope parsed
// below comes from the CLI's --output-format flag, not from this prompt.
const DefaultSystemPrompt = "You are a build agent operating inside an autonomous pipeline. Respond with the requested output only."

// CLIClient drives agent turns through an external CLI binary via a
// procrunner.Runner, rather than a network SDK. Thread-safe for concurrent
// use: every field is read-only after construction.
type CLIClient struct {
	Runner       procrunner.Runner
	BinaryPath   string
	Timeout      time.Duration
	SystemPrompt string
}

// NewCLIClient builds a CLIClient with default binary path and system
// prompt.
func NewCLIClient(runner procrunner.Runner) *CLIClient {
	return &CLIClient{
		Runner:       runner,
		BinaryPath:   "agent-cli",
		SystemPrompt: DefaultSystemPrompt,
	}
}

func (c *CLIClient) Stream(ctx context.Context, req StreamRequest) (*StreamResult, error) {
	if req.UserMessage == "" {
		return nil, fmt.Errorf("user message is required")
	}

	systemPrompt := c.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	args := []string{
		"--system-prompt", systemPrompt,
		"--agent-id", req.AgentID,
		"--message-id", req.MessageID,
		"--session-id", req.SessionID,
		"-p", req.UserMessage,
		"--output-format", "json",
	}

	binary := c.BinaryPath
	if binary == "" {
		binary = "agent-cli"
	}

	result, err := c.Runner.RunCommand(ctx, binary, args, procrunner.Options{Timeout: c.Timeout})
	if err != nil {
		return nil, &ClientError{Message: fmt.Sprintf("agent cli invocation failed: %v", err), RetryableVal: false}
	}
	if result.TimedOut {
		return nil, &ClientError{Message: "agent cli invocation timed out", RetryableVal: true, Status: 408}
	}
	if result.ExitCode != 0 {
		return nil, &ClientError{Message: fmt.Sprintf("agent cli exited %d: %s", result.ExitCode, result.Stderr), RetryableVal: false}
	}

	text, toolCalls, err := parseCLIOutput(result.Stdout)
	if err != nil {
		return nil, &ClientError{Message: err.Error(), RetryableVal: false}
	}

	if req.OnToolCall != nil {
		for _, tc := range toolCalls {
			req.OnToolCall(tc)
		}
	}

	return &StreamResult{Text: text, ToolCalls: toolCalls}, nil
}

// cliEnvelope mirrors the wrapper object the agent CLI prints to stdout:
// the turn's text payload plus any tool calls it made while producing it.
type cliEnvelope struct {
	Content   string `json:"content"`
	Result    string `json:"result"`
	ToolCalls []struct {
		Name   string         `json:"name"`
		Input  map[string]any `json:"input"`
		Output string         `json:"output"`
	} `json:"tool_calls"`
}

// parseCLIOutput extracts the turn's text and tool calls from raw CLI
// stdout. It tries a direct JSON decode first and, on mixed output (a CLI
// that occasionally prints a warning line before its JSON), falls back to
// locating the outermost {...} span.
func parseCLIOutput(raw string) (string, []ToolCall, error) {
	var env cliEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return "", nil, fmt.Errorf("agent cli produced no JSON output")
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &env); err != nil {
			return "", nil, fmt.Errorf("agent cli produced malformed JSON output: %w", err)
		}
	}

	text := env.Content
	if text == "" {
		text = env.Result
	}

	calls := make([]ToolCall, 0, len(env.ToolCalls))
	for _, tc := range env.ToolCalls {
		calls = append(calls, ToolCall{Name: tc.Name, Input: tc.Input, Output: tc.Output})
	}
	return text, calls, nil
}

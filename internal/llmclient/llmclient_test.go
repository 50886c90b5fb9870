package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-run/orchestrator/internal/orchestrator"
	"github.com/conductor-run/orchestrator/internal/procrunner"
)

func TestClientErrorSatisfiesTransientErrorInterface(t *testing.T) {
	err := &ClientError{Message: "timeout", RetryableVal: true}
	assert.True(t, orchestrator.IsTransient(err))

	err2 := &ClientError{Message: "bad request", RetryableVal: false, Status: 400}
	assert.False(t, orchestrator.IsTransient(err2))
}

func TestFakeClientConsumesScriptInOrderThenRepeatsLast(t *testing.T) {
	fake := NewFakeClient(map[string][]ScriptedTurn{
		"agent-1": {{Text: "first"}, {Text: "second"}},
	})

	r1, err := fake.Stream(context.Background(), StreamRequest{AgentID: "agent-1"})
	require.NoError(t, err)
	assert.Equal(t, "first", r1.Text)

	r2, err := fake.Stream(context.Background(), StreamRequest{AgentID: "agent-1"})
	require.NoError(t, err)
	assert.Equal(t, "second", r2.Text)

	r3, err := fake.Stream(context.Background(), StreamRequest{AgentID: "agent-1"})
	require.NoError(t, err)
	assert.Equal(t, "second", r3.Text)

	assert.Equal(t, 3, fake.CallCount("agent-1"))
}

func TestFakeClientInvokesOnToolCall(t *testing.T) {
	var seen []string
	fake := NewFakeClient(map[string][]ScriptedTurn{
		"agent-1": {{Text: "done", ToolCalls: []ToolCall{{Name: "write_file"}, {Name: "read_file"}}}},
	})

	_, err := fake.Stream(context.Background(), StreamRequest{
		AgentID:    "agent-1",
		OnToolCall: func(tc ToolCall) { seen = append(seen, tc.Name) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"write_file", "read_file"}, seen)
}

func TestFakeClientPropagatesScriptedError(t *testing.T) {
	wantErr := errors.New("boom")
	fake := NewFakeClient(map[string][]ScriptedTurn{
		"agent-1": {{Err: wantErr}},
	})
	_, err := fake.Stream(context.Background(), StreamRequest{AgentID: "agent-1"})
	assert.Equal(t, wantErr, err)
}

type fakeRunner struct {
	result procrunner.Result
	err    error
}

func (r *fakeRunner) RunCommand(ctx context.Context, executable string, args []string, opts procrunner.Options) (procrunner.Result, error) {
	return r.result, r.err
}

func TestCLIClientParsesContentField(t *testing.T) {
	runner := &fakeRunner{result: procrunner.Result{Stdout: `{"content":"hello world"}`}}
	client := NewCLIClient(runner)

	res, err := client.Stream(context.Background(), StreamRequest{AgentID: "a", UserMessage: "do thing"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)
}

func TestCLIClientFallsBackToResultField(t *testing.T) {
	runner := &fakeRunner{result: procrunner.Result{Stdout: `{"result":"fallback text"}`}}
	client := NewCLIClient(runner)

	res, err := client.Stream(context.Background(), StreamRequest{AgentID: "a", UserMessage: "do thing"})
	require.NoError(t, err)
	assert.Equal(t, "fallback text", res.Text)
}

func TestCLIClientExtractsJSONFromMixedOutput(t *testing.T) {
	runner := &fakeRunner{result: procrunner.Result{Stdout: "warning: deprecated flag\n" + `{"content":"ok"}` + "\ntrailer"}}
	client := NewCLIClient(runner)

	res, err := client.Stream(context.Background(), StreamRequest{AgentID: "a", UserMessage: "do thing"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
}

func TestCLIClientReturnsRetryableErrorOnTimeout(t *testing.T) {
	runner := &fakeRunner{result: procrunner.Result{TimedOut: true}}
	client := NewCLIClient(runner)

	_, err := client.Stream(context.Background(), StreamRequest{AgentID: "a", UserMessage: "do thing"})
	require.Error(t, err)
	assert.True(t, orchestrator.IsTransient(err))
}

func TestCLIClientReturnsNonRetryableErrorOnNonZeroExit(t *testing.T) {
	runner := &fakeRunner{result: procrunner.Result{ExitCode: 1, Stderr: "bad args"}}
	client := NewCLIClient(runner)

	_, err := client.Stream(context.Background(), StreamRequest{AgentID: "a", UserMessage: "do thing"})
	require.Error(t, err)
	assert.False(t, orchestrator.IsTransient(err))
}

func TestCLIClientRequiresUserMessage(t *testing.T) {
	client := NewCLIClient(&fakeRunner{})
	_, err := client.Stream(context.Background(), StreamRequest{AgentID: "a"})
	assert.Error(t, err)
}

package llmclient

import (
	"context"
)

// ScriptedTurn is one canned response a FakeClient returns for a given
// AgentID, in the order Stream is called for that agent.
type ScriptedTurn struct {
	Text      string
	ToolCalls []ToolCall
	Err       error
}

// FakeClient is a deterministic Client for tests: each AgentID has its own
// queue of ScriptedTurn values, consumed in order. Calling Stream past the
// end of an agent's queue repeats its last entry, so a test doesn't have to
// script every iteration of an open-ended repair loop.
type FakeClient struct {
	turns map[string][]ScriptedTurn
	calls map[string]int
}

// NewFakeClient builds a FakeClient with the given per-agent scripts.
func NewFakeClient(turns map[string][]ScriptedTurn) *FakeClient {
	return &FakeClient{turns: turns, calls: make(map[string]int)}
}

func (f *FakeClient) Stream(ctx context.Context, req StreamRequest) (*StreamResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	script := f.turns[req.AgentID]
	if len(script) == 0 {
		return &StreamResult{Text: ""}, nil
	}

	idx := f.calls[req.AgentID]
	f.calls[req.AgentID] = idx + 1
	if idx >= len(script) {
		idx = len(script) - 1
	}

	turn := script[idx]
	if turn.Err != nil {
		return nil, turn.Err
	}

	if req.OnToolCall != nil {
		for _, tc := range turn.ToolCalls {
			req.OnToolCall(tc)
		}
	}

	return &StreamResult{Text: turn.Text, ToolCalls: turn.ToolCalls}, nil
}

// CallCount returns how many times Stream was invoked for the given agent.
func (f *FakeClient) CallCount(agentID string) int {
	return f.calls[agentID]
}

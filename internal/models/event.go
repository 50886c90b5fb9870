package models

import "time"

// EventType enumerates the runtime event taxonomy from spec.md §6.5.
type EventType string

const (
	EventPipelineStage    EventType = "render.pipeline.stage"
	EventAssistantDelta   EventType = "assistant.delta"
	EventToolCallStarted  EventType = "tool.call.started"
	EventToolCallProgress EventType = "tool.call.progress"
	EventToolCallComplete EventType = "tool.call.completed"
	EventToolCallFailed   EventType = "tool.call.failed"
	EventArtifactChanged  EventType = "artifact.file.changed"
	EventTaskStarted      EventType = "agent.task.started"
	EventTaskProgress     EventType = "agent.task.progress"
	EventTaskBlocked      EventType = "agent.task.blocked"
	EventTaskCompleted    EventType = "agent.task.completed"
	EventAutonomyBudget   EventType = "autonomy.budget"
	EventRunCompleted     EventType = "run.completed"
	EventRunError         EventType = "run.error"
)

// IsTerminal reports whether the event type ends a run.
func (t EventType) IsTerminal() bool {
	return t == EventRunCompleted || t == EventRunError
}

// RuntimeEvent is the envelope every runtime event is wrapped in before
// delivery to SSE/WebSocket consumers.
type RuntimeEvent struct {
	SessionID   string
	RunID       string
	Sequence    int64
	Timestamp   time.Time
	DurationMs  *int64
	Type        EventType
	Payload     map[string]any
}

// TerminationReason enumerates why a run's run.completed event fired.
type TerminationReason string

const (
	TerminationAccept       TerminationReason = "accept"
	TerminationMaxIterations TerminationReason = "max_iterations"
	TerminationBudget       TerminationReason = "budget"
	TerminationError        TerminationReason = "error"
	TerminationCancelled    TerminationReason = "cancelled"
)

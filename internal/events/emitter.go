// Package events implements the runtime event emitter: a per-run sequence
// number generator that pairs started/completed events by duration and
// enforces that a run emits exactly one terminal event (run.completed xor
// run.error).
package events

import (
	"sync"
	"time"

	"github.com/conductor-run/orchestrator/internal/models"
)

// Sink receives emitted events. Transport-layer consumers (SSE, WebSocket,
// the console logger) implement this.
type Sink interface {
	Receive(models.RuntimeEvent)
}

// SinkFunc adapts a plain function to a Sink.
type SinkFunc func(models.RuntimeEvent)

// Receive implements Sink.
func (f SinkFunc) Receive(e models.RuntimeEvent) { f(e) }

// pendingStart records when an in-flight operation started, so its matching
// completion event can compute and attach a duration.
type pendingStart struct {
	startedAt time.Time
}

// Emitter assigns monotonically increasing sequence numbers to a run's
// events and delivers them to a set of sinks. It is safe for concurrent use;
// the Execution Kernel's per-wave worker pool emits task events from
// multiple goroutines.
type Emitter struct {
	mu       sync.Mutex
	sessionID string
	runID    string
	sequence int64
	sinks    []Sink
	pending  map[string]pendingStart
	terminal bool
	now      func() time.Time
}

// New creates an Emitter for one run. now defaults to time.Now; tests may
// override it for deterministic timestamps.
func New(sessionID, runID string, now func() time.Time, sinks ...Sink) *Emitter {
	if now == nil {
		now = time.Now
	}
	return &Emitter{
		sessionID: sessionID,
		runID:     runID,
		sinks:     sinks,
		pending:   make(map[string]pendingStart),
		now:       now,
	}
}

// AddSink registers an additional sink after construction.
func (e *Emitter) AddSink(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// Emit assigns the event a sequence number and timestamp and delivers it to
// every registered sink. Terminal-event discipline: a run emits at most one
// of run.completed / run.error; later terminal attempts are dropped
// silently (zero value returned), even when this emitter is shared between
// a normal path and an error path racing to close the run.
func (e *Emitter) Emit(eventType models.EventType, payload map[string]any) models.RuntimeEvent {
	return e.emit(eventType, payload, nil)
}

func (e *Emitter) emit(eventType models.EventType, payload map[string]any, durationMs *int64) models.RuntimeEvent {
	e.mu.Lock()
	if eventType.IsTerminal() {
		if e.terminal {
			e.mu.Unlock()
			return models.RuntimeEvent{}
		}
		e.terminal = true
	}

	e.sequence++
	evt := models.RuntimeEvent{
		SessionID: e.sessionID,
		RunID:     e.runID,
		Sequence:  e.sequence,
		Timestamp:  e.now(),
		DurationMs: durationMs,
		Type:       eventType,
		Payload:    payload,
	}
	sinks := append([]Sink(nil), e.sinks...)
	e.mu.Unlock()

	for _, s := range sinks {
		s.Receive(evt)
	}
	return evt
}

// Start records the beginning of a named operation (keyed by an id unique
// within the run, e.g. a task id or tool-call id) and emits startType.
func (e *Emitter) Start(key string, startType models.EventType, payload map[string]any) models.RuntimeEvent {
	e.mu.Lock()
	e.pending[key] = pendingStart{startedAt: e.now()}
	e.mu.Unlock()
	return e.Emit(startType, payload)
}

// Complete emits completeType with a DurationMs computed against the
// matching Start call for key. If no matching Start was recorded the
// duration is omitted rather than guessed.
func (e *Emitter) Complete(key string, completeType models.EventType, payload map[string]any) models.RuntimeEvent {
	e.mu.Lock()
	start, ok := e.pending[key]
	if ok {
		delete(e.pending, key)
	}
	e.mu.Unlock()

	var duration *int64
	if ok {
		ms := e.now().Sub(start.startedAt).Milliseconds()
		duration = &ms
	}
	return e.emit(completeType, payload, duration)
}

// Terminal reports whether this emitter has already emitted its one
// allowed terminal event.
func (e *Emitter) Terminal() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminal
}

package models

// ReflectionIssue is a single actionable finding surfaced by Reflection.
type ReflectionIssue struct {
	Severity   string // "critical", "warning", "info"
	Summary    string
	Suggestion string
}

// Reflection is the scored assessment of one execution iteration.
type Reflection struct {
	Score          float64
	DemandMatch    float64
	Consistency    float64
	CodeQuality    float64
	BestPractice   float64
	SignalCoverage float64
	ShouldIterate  bool
	Summary        string
	Issues         []ReflectionIssue

	// MissingCriticalPhases lists plan phases among
	// {pages, interactions, states, quality} that are present in the plan
	// but were not completed in this iteration.
	MissingCriticalPhases []Phase

	// StrictGatePassed reports whether the strict-prototype acceptance gate
	// (§4.5) passed for this iteration. Only meaningful when
	// StrictPrototypeRequired is true.
	StrictGatePassed       bool
	StrictPrototypeRequired bool
}

// IterationDecision is the verdict of the Iteration Controller.
type IterationDecision string

const (
	DecisionAccept  IterationDecision = "accept"
	DecisionIterate IterationDecision = "iterate"
	DecisionAbort   IterationDecision = "abort"
)

// ReplanDiagnosticBundle carries the context needed to compose a replan
// prompt when the Iteration Controller decides to iterate.
type ReplanDiagnosticBundle struct {
	Iteration     int
	MaxIterations int
	ReplanDepth   int
	MaxReplanDepth int
	Issues        []ReflectionIssue
	Summary       string
	NextTaskHints []string
	Brainstorm    bool
	StrictGate    bool
}

package models

import "time"

// SessionMode selects whether a session is generating a new project from
// scratch or modifying an existing one.
type SessionMode string

const (
	ModeCreator     SessionMode = "creator"
	ModeImplementer SessionMode = "implementer"
)

// ProjectTemplate enumerates the supported scaffolds a session can target.
type ProjectTemplate string

const (
	TemplateNextJS      ProjectTemplate = "next-js"
	TemplateReactVite   ProjectTemplate = "react-vite"
	TemplateReactNative ProjectTemplate = "react-native"
	TemplateUniApp      ProjectTemplate = "uniapp"
	TemplateUnknown     ProjectTemplate = "unknown"
)

// Session is the durable handle the orchestrator, scheduler, and self-repair
// loop are all keyed on.
type Session struct {
	ID              string
	OwnerID         string
	Mode            SessionMode
	ActiveAgentID   string
	ModelSelection  string
	ProjectTemplate ProjectTemplate
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

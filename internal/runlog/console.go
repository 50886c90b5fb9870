package runlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/conductor-run/orchestrator/internal/models"
)

// ConsoleLogger renders the runtime event stream to a writer (typically
// os.Stdout) for a human watching a run live. It implements events.Sink so
// it can be registered directly on an Emitter.
type ConsoleLogger struct {
	writer  io.Writer
	level   Level
	mu      sync.Mutex
	colored bool
}

// NewConsoleLogger returns a ConsoleLogger writing to w, filtered to level
// and above. Color is enabled only when w is a terminal (os.Stdout or
// os.Stderr attached to a TTY); any other writer (a file, a bytes.Buffer in
// tests) gets plain text.
func NewConsoleLogger(w io.Writer, level string) *ConsoleLogger {
	colored := false
	if f, ok := w.(*os.File); ok {
		colored = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &ConsoleLogger{writer: w, level: normalizeLevel(level), colored: colored}
}

func (c *ConsoleLogger) shouldLog(l Level) bool { return l >= c.level }

func (c *ConsoleLogger) write(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.writer, line)
}

func (c *ConsoleLogger) colorize(col color.Attribute, s string) string {
	if !c.colored {
		return s
	}
	return color.New(col).Sprint(s)
}

func levelColor(l Level) color.Attribute {
	switch l {
	case LevelTrace:
		return color.FgHiBlack
	case LevelDebug:
		return color.FgCyan
	case LevelWarn:
		return color.FgYellow
	case LevelError:
		return color.FgRed
	default:
		return color.FgBlue
	}
}

func (c *ConsoleLogger) logWithLevel(l Level, message string) {
	if !c.shouldLog(l) {
		return
	}
	c.write(fmt.Sprintf("[%s] [%s] %s", time.Now().Format(timeFormat), c.colorize(levelColor(l), l.String()), message))
}

func (c *ConsoleLogger) LogTrace(message string) { c.logWithLevel(LevelTrace, message) }
func (c *ConsoleLogger) LogDebug(message string) { c.logWithLevel(LevelDebug, message) }
func (c *ConsoleLogger) LogInfo(message string)  { c.logWithLevel(LevelInfo, message) }
func (c *ConsoleLogger) LogWarn(message string)  { c.logWithLevel(LevelWarn, message) }
func (c *ConsoleLogger) LogError(message string) { c.logWithLevel(LevelError, message) }

// Receive implements events.Sink: it renders one runtime event as a single
// human-readable line, dispatching on the event's type and payload shape.
func (c *ConsoleLogger) Receive(evt models.RuntimeEvent) {
	switch evt.Type {
	case models.EventTaskStarted:
		c.logTaskStarted(evt)
	case models.EventTaskCompleted, models.EventTaskBlocked:
		c.logTaskCompleted(evt)
	case models.EventArtifactChanged:
		c.logArtifactChanged(evt)
	case models.EventAutonomyBudget:
		c.logBudget(evt)
	case models.EventRunError:
		c.logWithLevel(LevelError, payloadString(evt.Payload, "message", "run failed"))
	case models.EventRunCompleted:
		c.logWithLevel(LevelInfo, c.colorize(color.FgGreen, "run complete"))
	default:
		c.logWithLevel(LevelDebug, fmt.Sprintf("%s %v", evt.Type, evt.Payload))
	}
}

func (c *ConsoleLogger) logTaskStarted(evt models.RuntimeEvent) {
	taskID := payloadString(evt.Payload, "taskId", "?")
	if stage, ok := evt.Payload["stage"]; ok {
		c.logWithLevel(LevelInfo, fmt.Sprintf("starting %s (%v)", taskID, stage))
		return
	}
	if phase, ok := evt.Payload["phase"]; ok {
		c.logWithLevel(LevelInfo, fmt.Sprintf("starting %s [%v]", taskID, phase))
		return
	}
	c.logWithLevel(LevelInfo, fmt.Sprintf("starting %s", taskID))
}

func (c *ConsoleLogger) logTaskCompleted(evt models.RuntimeEvent) {
	taskID := payloadString(evt.Payload, "taskId", "?")
	status := payloadString(evt.Payload, "status", "")
	icon, col := statusIconAndColor(status)
	durSuffix := ""
	if evt.DurationMs != nil {
		durSuffix = fmt.Sprintf(" (%.1fs)", float64(*evt.DurationMs)/1000)
	}
	line := fmt.Sprintf("%s %s%s", c.colorize(col, icon), taskID, durSuffix)
	if status != "" {
		line = fmt.Sprintf("%s %s: %s%s", c.colorize(col, icon), taskID, c.colorize(col, status), durSuffix)
	}
	level := LevelInfo
	if status == "red" || status == "failed" || evt.Type == models.EventTaskBlocked {
		level = LevelWarn
	}
	c.logWithLevel(level, line)
}

func (c *ConsoleLogger) logArtifactChanged(evt models.RuntimeEvent) {
	path := payloadString(evt.Payload, "path", "?")
	c.logWithLevel(LevelDebug, fmt.Sprintf("file changed: %s", path))
}

// logBudget renders an autonomy.budget event, grounded on the teacher's
// rate-limit/budget status logging: ok is debug-level noise, warning and
// exhausted escalate to warn so an operator watching at info level still
// sees them.
func (c *ConsoleLogger) logBudget(evt models.RuntimeEvent) {
	kind := payloadString(evt.Payload, "kind", "?")
	status := payloadString(evt.Payload, "status", "ok")
	limit, _ := evt.Payload["limit"]
	used, _ := evt.Payload["used"]

	msg := fmt.Sprintf("budget[%s] %v/%v %s", kind, used, limit, status)
	switch status {
	case "warning":
		c.logWithLevel(LevelWarn, c.colorize(color.FgYellow, msg))
	case "exhausted":
		c.logWithLevel(LevelWarn, c.colorize(color.FgRed, msg))
	default:
		c.logWithLevel(LevelDebug, msg)
	}
}

// LogRateLimitPause logs a transient-retry backoff pause at warn level.
func (c *ConsoleLogger) LogRateLimitPause(reason string, delay time.Duration) {
	c.logWithLevel(LevelWarn, fmt.Sprintf("pausing %.1fs: %s", delay.Seconds(), reason))
}

// LogRateLimitResume logs the end of a backoff pause at info level.
func (c *ConsoleLogger) LogRateLimitResume() {
	c.logWithLevel(LevelInfo, "resuming after backoff")
}

// LogWaveStart logs a scheduler wave beginning execution, grounded on the
// teacher's LogWaveStart.
func (c *ConsoleLogger) LogWaveStart(wave models.Wave) {
	if !c.shouldLog(LevelInfo) {
		return
	}
	taskCount := len(wave.TaskIDs())
	label := "task"
	if taskCount != 1 {
		label = "tasks"
	}
	name := c.colorize(color.Bold, fmt.Sprintf("wave %d", wave.Index))
	c.logWithLevel(LevelInfo, fmt.Sprintf("starting %s: %d %s", name, taskCount, label))
}

// LogWaveComplete logs a scheduler wave finishing, grounded on the
// teacher's LogWaveComplete.
func (c *ConsoleLogger) LogWaveComplete(wave models.Wave, duration time.Duration) {
	if !c.shouldLog(LevelInfo) {
		return
	}
	name := c.colorize(color.Bold, fmt.Sprintf("wave %d", wave.Index))
	c.logWithLevel(LevelInfo, fmt.Sprintf("%s complete: %.1fs", name, duration.Seconds()))
}

// LogRunSummary renders the boxed end-of-run summary the teacher's
// LogSummary draws, adapted to this spec's run/task/reflection vocabulary.
func (c *ConsoleLogger) LogRunSummary(s RunSummary) {
	if !c.shouldLog(LevelInfo) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	w := getTerminalWidth()
	fmt.Fprintln(c.writer, drawBoxTop(w, c.colored))
	fmt.Fprintln(c.writer, drawBoxLine(c.colorize(color.Bold, "run summary"), w, c.colored))
	fmt.Fprintln(c.writer, drawBoxDivider(w, c.colored))
	fmt.Fprintln(c.writer, drawBoxLine(fmt.Sprintf("tasks:      %d total, %d completed, %d failed", s.TotalTasks, s.Completed, s.Failed), w, c.colored))
	fmt.Fprintln(c.writer, drawBoxLine(fmt.Sprintf("iterations: %d", s.Iterations), w, c.colored))
	fmt.Fprintln(c.writer, drawBoxLine(fmt.Sprintf("duration:   %.1fs", s.Duration.Seconds()), w, c.colored))
	statusLine := fmt.Sprintf("status:     %s", s.TerminationReason)
	fmt.Fprintln(c.writer, drawBoxLine(statusLine, w, c.colored))
	if s.RepairAttempted {
		fmt.Fprintln(c.writer, drawBoxLine(fmt.Sprintf("repair:     attempted (accepted=%v)", s.RepairAccepted), w, c.colored))
	}
	fmt.Fprintln(c.writer, drawBoxBottom(w, c.colored))
}

// RunSummary is the data LogRunSummary needs; callers assemble it from the
// orchestrator/kernel/reflect return values once a run terminates.
type RunSummary struct {
	TotalTasks        int
	Completed         int
	Failed            int
	Iterations        int
	Duration          time.Duration
	TerminationReason models.TerminationReason
	RepairAttempted   bool
	RepairAccepted    bool
}

func statusIconAndColor(status string) (string, color.Attribute) {
	switch status {
	case "green":
		return "✓", color.FgGreen
	case "yellow":
		return "⚠", color.FgYellow
	case "red", "failed", "blocked":
		return "✗", color.FgRed
	default:
		return "•", color.FgWhite
	}
}

func payloadString(payload map[string]any, key, fallback string) string {
	v, ok := payload[key]
	if !ok {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return s
}

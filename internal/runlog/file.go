package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/conductor-run/orchestrator/internal/models"
)

// FileLogger writes the runtime event stream to a timestamped run log under
// a log directory, plus a latest.log symlink pointing at the current run.
// It implements events.Sink. Grounded on the teacher's FileLogger: same
// run-YYYYMMDD-HHMMSS.log naming, same latest.log symlink convention.
type FileLogger struct {
	mu      sync.Mutex
	level   Level
	logDir  string
	runFile *os.File
}

// NewFileLogger creates logDir (and any missing parents) and opens a fresh
// timestamped run log inside it, updating logDir/latest.log to point at it.
func NewFileLogger(logDir string, level string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("runlog: create log directory: %w", err)
	}

	name := fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405"))
	path := filepath.Join(logDir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runlog: create run log: %w", err)
	}

	symlink := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlink); err == nil {
		if err := os.Remove(symlink); err != nil {
			f.Close()
			return nil, fmt.Errorf("runlog: replace latest.log: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(path), symlink); err != nil {
		f.Close()
		return nil, fmt.Errorf("runlog: link latest.log: %w", err)
	}

	fl := &FileLogger{level: normalizeLevel(level), logDir: logDir, runFile: f}
	fl.writeLine(fmt.Sprintf("=== run log started %s ===", time.Now().Format(time.RFC3339)))
	return fl, nil
}

func (fl *FileLogger) writeLine(line string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runFile == nil {
		return
	}
	fmt.Fprintln(fl.runFile, line)
	fl.runFile.Sync()
}

func (fl *FileLogger) shouldLog(l Level) bool { return l >= fl.level }

func (fl *FileLogger) logWithLevel(l Level, message string) {
	if !fl.shouldLog(l) {
		return
	}
	fl.writeLine(fmt.Sprintf("[%s] [%s] %s", time.Now().Format(timeFormat), l, message))
}

func (fl *FileLogger) LogTrace(message string) { fl.logWithLevel(LevelTrace, message) }
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel(LevelDebug, message) }
func (fl *FileLogger) LogInfo(message string)  { fl.logWithLevel(LevelInfo, message) }
func (fl *FileLogger) LogWarn(message string)  { fl.logWithLevel(LevelWarn, message) }
func (fl *FileLogger) LogError(message string) { fl.logWithLevel(LevelError, message) }

// Receive implements events.Sink with a plain-text rendering of the same
// event taxonomy ConsoleLogger.Receive handles, without color codes.
func (fl *FileLogger) Receive(evt models.RuntimeEvent) {
	taskID := payloadString(evt.Payload, "taskId", "")
	switch evt.Type {
	case models.EventTaskStarted:
		fl.logWithLevel(LevelInfo, fmt.Sprintf("starting %s %v", taskID, evt.Payload))
	case models.EventTaskCompleted, models.EventTaskBlocked:
		status := payloadString(evt.Payload, "status", "")
		level := LevelInfo
		if status == "red" || status == "failed" || evt.Type == models.EventTaskBlocked {
			level = LevelWarn
		}
		dur := ""
		if evt.DurationMs != nil {
			dur = fmt.Sprintf(" (%dms)", *evt.DurationMs)
		}
		fl.logWithLevel(level, fmt.Sprintf("%s: %s%s", taskID, status, dur))
	case models.EventArtifactChanged:
		fl.logWithLevel(LevelDebug, fmt.Sprintf("file changed: %s", payloadString(evt.Payload, "path", "?")))
	case models.EventAutonomyBudget:
		fl.logWithLevel(LevelDebug, fmt.Sprintf("budget[%s] %v/%v %s",
			payloadString(evt.Payload, "kind", "?"), evt.Payload["used"], evt.Payload["limit"], payloadString(evt.Payload, "status", "")))
	case models.EventRunError:
		fl.logWithLevel(LevelError, payloadString(evt.Payload, "message", "run failed"))
	case models.EventRunCompleted:
		fl.logWithLevel(LevelInfo, "run complete")
	default:
		fl.logWithLevel(LevelDebug, fmt.Sprintf("%s %v", evt.Type, evt.Payload))
	}
}

// LogRunSummary writes the end-of-run summary block, mirroring the
// teacher's LogSummary footer.
func (fl *FileLogger) LogRunSummary(s RunSummary) {
	if !fl.shouldLog(LevelInfo) {
		return
	}
	fl.writeLine(fmt.Sprintf(
		"=== run summary === tasks=%d completed=%d failed=%d iterations=%d duration=%.1fs status=%s completed_at=%s",
		s.TotalTasks, s.Completed, s.Failed, s.Iterations, s.Duration.Seconds(), s.TerminationReason, time.Now().Format(time.RFC3339),
	))
}

// Close flushes and closes the run log file. Safe to call once; subsequent
// writes after Close are silently dropped.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runFile == nil {
		return nil
	}
	err := fl.runFile.Close()
	fl.runFile = nil
	return err
}

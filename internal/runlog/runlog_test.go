package runlog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-run/orchestrator/internal/events"
	"github.com/conductor-run/orchestrator/internal/models"
)

func TestConsoleLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleLogger(&buf, "warn")
	c.LogInfo("should not appear")
	c.LogWarn("should appear")
	assert.NotContains(t, buf.String(), "should not appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestConsoleLoggerIsNotColoredForNonTTYWriter(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleLogger(&buf, "info")
	assert.False(t, c.colored)
	c.LogInfo("plain")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestConsoleLoggerReceiveRendersTaskLifecycle(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleLogger(&buf, "trace")

	c.Receive(models.RuntimeEvent{Type: models.EventTaskStarted, Payload: map[string]any{"taskId": "skeleton", "phase": "skeleton"}})
	ms := int64(1500)
	c.Receive(models.RuntimeEvent{Type: models.EventTaskCompleted, DurationMs: &ms, Payload: map[string]any{"taskId": "skeleton", "status": "green"}})

	out := buf.String()
	assert.Contains(t, out, "starting skeleton")
	assert.Contains(t, out, "skeleton")
	assert.Contains(t, out, "1.5s")
}

func TestConsoleLoggerReceiveEscalatesFailedStatusToWarn(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleLogger(&buf, "warn")
	c.Receive(models.RuntimeEvent{Type: models.EventTaskCompleted, Payload: map[string]any{"taskId": "t1", "status": "red"}})
	assert.Contains(t, buf.String(), "t1")
}

func TestConsoleLoggerReceiveBudgetEscalatesOnExhausted(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleLogger(&buf, "warn")
	c.Receive(models.RuntimeEvent{Type: models.EventAutonomyBudget, Payload: map[string]any{"kind": "steps", "used": int64(10), "limit": int64(10), "status": "exhausted"}})
	assert.Contains(t, buf.String(), "budget[steps]")
}

func TestConsoleLoggerImplementsEventsSink(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleLogger(&buf, "info")
	var _ events.Sink = c
}

func TestConsoleLoggerLogRunSummaryDrawsBox(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleLogger(&buf, "info")
	c.LogRunSummary(RunSummary{
		TotalTasks: 9, Completed: 8, Failed: 1, Iterations: 2,
		Duration: 12500 * time.Millisecond, TerminationReason: models.TerminationAccept,
	})
	out := buf.String()
	assert.Contains(t, out, "run summary")
	assert.Contains(t, out, "9 total, 8 completed, 1 failed")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
}

func TestFileLoggerCreatesRunFileAndLatestSymlink(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "info")
	require.NoError(t, err)
	defer fl.Close()

	fl.LogInfo("hello")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var sawRunFile, sawSymlink bool
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "run-") && strings.HasSuffix(e.Name(), ".log") {
			sawRunFile = true
		}
		if e.Name() == "latest.log" {
			sawSymlink = true
		}
	}
	assert.True(t, sawRunFile)
	assert.True(t, sawSymlink)

	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(target, "run-"))

	content, err := os.ReadFile(filepath.Join(dir, "latest.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "hello")
}

func TestFileLoggerReceiveWritesEventLine(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "debug")
	require.NoError(t, err)
	defer fl.Close()

	fl.Receive(models.RuntimeEvent{Type: models.EventArtifactChanged, Payload: map[string]any{"path": "src/App.tsx"}})

	content, err := os.ReadFile(filepath.Join(dir, "latest.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "src/App.tsx")
}

func TestFileLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "error")
	require.NoError(t, err)
	defer fl.Close()

	fl.LogWarn("should be dropped")
	fl.LogError("should remain")

	content, err := os.ReadFile(filepath.Join(dir, "latest.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "should be dropped")
	assert.Contains(t, string(content), "should remain")
}

func TestFileLoggerImplementsEventsSink(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "info")
	require.NoError(t, err)
	defer fl.Close()
	var _ events.Sink = fl
}

func TestDrawBoxLineTruncatesOverlongContentAndPadsShortContent(t *testing.T) {
	short := drawBoxLine("hi", 20, false)
	assert.Equal(t, 20, visibleWidth(short))

	long := drawBoxLine(strings.Repeat("x", 100), 20, false)
	assert.LessOrEqual(t, visibleWidth(long), 20)
}

func TestNormalizeLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, LevelInfo, normalizeLevel("nonsense"))
	assert.Equal(t, LevelDebug, normalizeLevel("DEBUG"))
	assert.Equal(t, LevelWarn, normalizeLevel("warning"))
}

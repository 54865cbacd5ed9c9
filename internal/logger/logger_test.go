package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	entries []string
}

func (r *recordingLogger) Debug(message string, keyvals ...any) { r.entries = append(r.entries, "DEBUG "+message) }
func (r *recordingLogger) Info(message string, keyvals ...any)  { r.entries = append(r.entries, "INFO "+message) }
func (r *recordingLogger) Warn(message string, keyvals ...any)  { r.entries = append(r.entries, "WARN "+message) }
func (r *recordingLogger) Error(message string, keyvals ...any) { r.entries = append(r.entries, "ERROR "+message) }
func (r *recordingLogger) Fatal(message string, keyvals ...any) { r.entries = append(r.entries, "FATAL "+message) }

func TestDispatchesToEveryInstance(t *testing.T) {
	t.Cleanup(func() { singleton = nil })

	first := &recordingLogger{}
	second := &recordingLogger{}
	Init(first, second)

	Debug("loading", "path", "a.db")
	Info("loaded")
	Warn("skipped", "count", 2)
	Error("failed")

	expected := []string{"DEBUG loading", "INFO loaded", "WARN skipped", "ERROR failed"}
	assert.Equal(t, expected, first.entries)
	assert.Equal(t, expected, second.entries)
}

func TestCallsBeforeInitAreDropped(t *testing.T) {
	singleton = nil

	assert.NotPanics(t, func() {
		Debug("a")
		Info("b")
		Warn("c")
		Error("d")
	})
}

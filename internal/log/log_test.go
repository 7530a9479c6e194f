package log

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" Warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LevelWarn)

	Debug("hidden debug")
	Info("hidden info")
	Warn("shown warn", "k", "v")
	Error("shown error", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown warn k=v")
	assert.Contains(t, out, "[ERROR] shown error err=boom")
}

func TestFormatKVs(t *testing.T) {
	assert.Equal(t, " a=1 b=\"two words\"", formatKVs("a", 1, "b", "two words"))
	assert.Equal(t, " a=\"\"", formatKVs("a", ""))
	// Non-string keys and a dangling value are skipped.
	assert.Equal(t, " c=3", formatKVs(42, "x", "c", 3, "dangling"))
}

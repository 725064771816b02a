package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(level LogLevel) (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewZerologLogger(&Config{
		Level:       level,
		Format:      JSONFormat,
		Outputs:     []io.Writer{buf},
		Environment: "production",
	}), buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	return entry
}

func TestZerologLogger_TypedFields(t *testing.T) {
	log, buf := newBufferedLogger(DebugLevel)

	log.Info("entry written",
		String("full_key", "abc"),
		Int("count", 3),
		Bool("healed", true),
	)

	entry := decodeLine(t, buf)
	assert.Equal(t, "entry written", entry["message"])
	assert.Equal(t, "abc", entry["full_key"])
	assert.Equal(t, float64(3), entry["count"])
	assert.Equal(t, true, entry["healed"])
}

func TestZerologLogger_LevelFiltering(t *testing.T) {
	log, buf := newBufferedLogger(WarnLevel)

	log.Debug("should be dropped")
	assert.Empty(t, buf.String())

	assert.False(t, log.IsLevelEnabled(DebugLevel))
	assert.True(t, log.IsLevelEnabled(ErrorLevel))
}

func TestZerologLogger_WithSubsystem(t *testing.T) {
	log, buf := newBufferedLogger(InfoLevel)

	log.WithSubsystem("cache").WithSubsystem("reconciler").Info("hello")

	entry := decodeLine(t, buf)
	assert.Equal(t, "cache.reconciler", entry["module"])
}

func TestZerologLogger_WithFields(t *testing.T) {
	log, buf := newBufferedLogger(InfoLevel)

	log.WithFields(String("group", "g1")).Info("migrated")

	entry := decodeLine(t, buf)
	assert.Equal(t, "g1", entry["group"])
}

func TestHCLogAdapter_RoundTrip(t *testing.T) {
	log, buf := newBufferedLogger(TraceLevel)

	hl := NewHCLogAdapter(log).Named("store").With("op", "add")
	hl.Info("record added", "uid", "u-1")

	entry := decodeLine(t, buf)
	assert.Equal(t, "record added", entry["message"])
	assert.Equal(t, "add", entry["op"])
	assert.Equal(t, "u-1", entry["uid"])
	assert.Equal(t, "store", hl.Name())
	assert.True(t, hl.IsTrace())
}

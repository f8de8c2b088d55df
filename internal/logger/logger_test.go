package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestThrottleCountsSuppressed(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)
	th := NewThrottle(time.Hour, 1)

	th.Event(l.Warn()).Msg("first")
	for i := 0; i < 4; i++ {
		th.Event(l.Warn()).Msg("dropped")
	}
	assert.Equal(t, 4, th.Suppressed())
	assert.Contains(t, buf.String(), "first")
	assert.NotContains(t, buf.String(), "dropped")
}

func TestInitWithFileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posestreamer.log")
	InitWithFile("info", false, FileOptions{Path: path})
	defer Init("info", false)

	WithComponent("test").Info().Str("k", "v").Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), `"message":"hello"`)
}

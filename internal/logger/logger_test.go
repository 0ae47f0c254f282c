package logger

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ConsoleOnly(t *testing.T) {
	log, err := New(FileLogConfig{LogLevel: "debug", LogFormat: "console"})

	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestNew_WithFileOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := FileLogConfig{
		LogLevel:  "info",
		LogFormat: "json",
		LogFile:   filepath.Join(dir, "logs", "envdrift.log"),
	}

	log, err := New(cfg)

	require.NoError(t, err)
	log.Info().Str("component", "test").Msg("file writer smoke")
}

func TestNew_InvalidLevelFallsBack(t *testing.T) {
	log, err := New(FileLogConfig{LogLevel: "chatty", LogFormat: "console"})

	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestLogFormatParser(t *testing.T) {
	parser := NewLogFormatParser()

	assert.Equal(t, FormatJSON, parser.ParseFormat("json"))
	assert.Equal(t, FormatConsole, parser.ParseFormat("console"))
	assert.Equal(t, FormatText, parser.ParseFormat("TEXT"))
	assert.Equal(t, FormatConsole, parser.ParseFormat("unknown"))
}

func TestLogLevelParser_Invalid(t *testing.T) {
	parser := NewLogLevelParser()

	_, err := parser.ParseLevel("nope")
	assert.Error(t, err)
}

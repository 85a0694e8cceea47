package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"Error", ErrorLevel},
		{"invalid", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"console", FormatConsole},
		{"", FormatConsole},
		{"yaml", FormatConsole},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.expected, ParseFormat(tt.input))
		})
	}

	require.Equal(t, FormatJSON, ParseFormat(FormatJSON.String()))
	require.Equal(t, FormatConsole, ParseFormat(FormatConsole.String()))
}

func TestNewWithOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(DebugLevel, buf)

	require.Equal(t, DebugLevel, logger.Level())
	require.Same(t, buf, logger.output)
	require.NotNil(t, logger.mu)
}

func TestLogger_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(WarnLevel, buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	require.NotContains(t, output, "debug message")
	require.NotContains(t, output, "info message")
	require.Contains(t, output, "WARN warn message")
	require.Contains(t, output, "ERROR error message")

	logger.SetLevel(DebugLevel)
	logger.Debug("now visible")
	require.Contains(t, buf.String(), "DEBUG now visible")
}

func TestLogger_ConsoleFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(InfoLevel, buf)

	logger.Info("relay done",
		String("session", "abc"),
		Int64("sent", 42),
		Port("source", 8080),
		Duration("elapsed", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)

	output := buf.String()
	for _, want := range []string{"session=abc", "sent=42", "source=:8080", "elapsed=1.5s", "error=boom"} {
		require.Contains(t, output, want)
	}

	parts := strings.Fields(output)
	require.GreaterOrEqual(t, len(parts), 4)
	_, err := time.Parse(time.RFC3339, parts[0])
	require.NoError(t, err, "first part should be an RFC3339 timestamp")
	require.Equal(t, "INFO", parts[1])
}

func TestLogger_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(InfoLevel, buf)
	logger.SetFormat(FormatJSON)

	logger.Info(":8080 -> :3000 in 2ms",
		Duration("elapsed", 2*time.Millisecond),
		Port("destination", 3000),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	require.Equal(t, "INFO", entry["level"])
	require.Equal(t, ":8080 -> :3000 in 2ms", entry["message"])
	require.Equal(t, "2ms", entry["elapsed"])
	require.Equal(t, ":3000", entry["destination"])
}

func TestLogger_With(t *testing.T) {
	buf := &bytes.Buffer{}
	parent := NewWithOutput(InfoLevel, buf)
	child := parent.With(String("route", ":8080"))
	grandchild := child.With(String("session", "s1"))

	grandchild.Info("accepted", String("remote", "127.0.0.1:5555"))
	parent.Info("parent line")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "route=:8080 session=s1 remote=127.0.0.1:5555")
	require.NotContains(t, lines[1], "route=")
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewWithOutput(InfoLevel, buf)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.With(Int("worker", i)).Info("line")
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, writers)
	for _, line := range lines {
		require.Contains(t, line, "INFO line worker=")
	}
}

func TestLogger_NilIsNoop(t *testing.T) {
	var logger *Logger
	require.NotPanics(t, func() {
		logger.Info("should not panic")
		logger.With(String("k", "v")).Warn("still nothing")
	})
}

func TestField_Error(t *testing.T) {
	field := Error(errors.New("test error"))
	require.Equal(t, "error", field.Key)
	require.Equal(t, "test error", field.Value)

	require.Equal(t, "<nil>", Error(nil).Value)
}

func TestConstructors(t *testing.T) {
	l := New(WarnLevel)
	require.Equal(t, WarnLevel, l.Level())
	require.Equal(t, FormatConsole, l.format)

	l = NewWithFormat(InfoLevel, FormatJSON)
	require.Equal(t, FormatJSON, l.format)
	require.NotNil(t, l.mu)
}

package logging

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func resetLoggingState() {
	mu.Lock()
	defer mu.Unlock()

	baseLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	log.Logger = baseLogger
	zerolog.TimeFieldFormat = defaultTimeFmt
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	isTerminalFn = func(int) bool { return false }
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"trace", zerolog.TraceLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"disabled", zerolog.Disabled},
		{"  DEBUG  ", zerolog.DebugLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Fatalf("parseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestInitSetsGlobalLevel(t *testing.T) {
	t.Cleanup(resetLoggingState)

	Init(Config{Format: "json", Level: "debug", Component: "metering"})

	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("expected global level debug, got %s", zerolog.GlobalLevel())
	}
}

func TestSelectWriterConsole(t *testing.T) {
	t.Cleanup(resetLoggingState)

	if _, ok := selectWriter("console").(zerolog.ConsoleWriter); !ok {
		t.Fatal("expected console writer for console format")
	}
	if _, ok := selectWriter("json").(zerolog.ConsoleWriter); ok {
		t.Fatal("expected plain writer for json format")
	}
}

func TestSelectWriterAutoFollowsTerminal(t *testing.T) {
	t.Cleanup(resetLoggingState)

	isTerminalFn = func(int) bool { return true }
	if _, ok := selectWriter("auto").(zerolog.ConsoleWriter); !ok {
		t.Fatal("expected console writer when stderr is a terminal")
	}

	isTerminalFn = func(int) bool { return false }
	if _, ok := selectWriter("auto").(zerolog.ConsoleWriter); ok {
		t.Fatal("expected plain writer when stderr is not a terminal")
	}
}

func TestIsLevelEnabled(t *testing.T) {
	t.Cleanup(resetLoggingState)

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if IsLevelEnabled(zerolog.DebugLevel) {
		t.Fatal("debug should be disabled at warn level")
	}
	if !IsLevelEnabled(zerolog.ErrorLevel) {
		t.Fatal("error should be enabled at warn level")
	}
}

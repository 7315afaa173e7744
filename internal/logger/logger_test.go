package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zap.DebugLevel,
		"":        zap.InfoLevel,
		" INFO ":  zap.InfoLevel,
		"warn":    zap.WarnLevel,
		"error":   zap.ErrorLevel,
	}
	for in, want := range cases {
		got, err := parseLevel(in)
		if err != nil {
			t.Fatalf("parseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud"); err == nil {
		t.Fatal("want error for unknown level")
	}
}

func TestNew_HonoursLevel(t *testing.T) {
	log, err := New("warn")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if log.Core().Enabled(zap.InfoLevel) {
		t.Fatal("info must be disabled at warn level")
	}
	if !log.Core().Enabled(zap.WarnLevel) {
		t.Fatal("warn must be enabled at warn level")
	}
}
